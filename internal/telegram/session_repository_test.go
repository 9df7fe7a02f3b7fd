package telegram

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"nutrition-bot/internal/database"
	"nutrition-bot/internal/norms"
)

func newTestSessions(t *testing.T) *SessionRepository {
	t.Helper()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("NewDB failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewSessionRepository(db.SQL)
}

func TestSessionRepository(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

	t.Run("StartAndGet", func(t *testing.T) {
		sr := newTestSessions(t)
		id, err := sr.Start(ctx, 1, SessionPortion, "awaiting", SessionContextData{EntryID: 42}, time.Hour, now)
		if err != nil {
			t.Fatalf("Start failed: %v", err)
		}

		s, err := sr.GetActive(ctx, 1, now.Add(time.Minute))
		if err != nil || s == nil {
			t.Fatalf("Expected an active session, got %v (%v)", s, err)
		}
		if s.ID != id || s.SessionType != SessionPortion {
			t.Errorf("Unexpected session: %+v", s)
		}
		data, err := s.GetContextData()
		if err != nil || data.EntryID != 42 {
			t.Errorf("Expected entry 42, got %+v (%v)", data, err)
		}
	})

	t.Run("Expired", func(t *testing.T) {
		sr := newTestSessions(t)
		sr.Start(ctx, 1, SessionPortion, "awaiting", SessionContextData{}, time.Minute, now)

		s, err := sr.GetActive(ctx, 1, now.Add(2*time.Minute))
		if err != nil {
			t.Fatalf("GetActive failed: %v", err)
		}
		if s != nil {
			t.Errorf("Expected no active session, got %+v", s)
		}

		n, err := sr.CleanupExpired(ctx, now.Add(2*time.Minute))
		if err != nil || n != 1 {
			t.Errorf("Expected 1 removed session, got %d (%v)", n, err)
		}
	})

	t.Run("StartReplacesPrevious", func(t *testing.T) {
		sr := newTestSessions(t)
		sr.Start(ctx, 1, SessionPortion, "awaiting", SessionContextData{EntryID: 1}, time.Hour, now)
		sr.Start(ctx, 1, SessionSetup, "age", SessionContextData{}, time.Hour, now)

		s, _ := sr.GetActive(ctx, 1, now)
		if s == nil || s.SessionType != SessionSetup {
			t.Fatalf("Expected the setup session, got %+v", s)
		}

		var n int
		sr.db.QueryRow(`SELECT COUNT(*) FROM sessions WHERE user_id = 1`).Scan(&n)
		if n != 1 {
			t.Errorf("Expected 1 session, got %d", n)
		}
	})

	t.Run("UpdateAndDelete", func(t *testing.T) {
		sr := newTestSessions(t)
		id, _ := sr.Start(ctx, 1, SessionSetup, "gender", SessionContextData{}, time.Hour, now)

		draft := SessionContextData{Profile: norms.Profile{Gender: norms.Female, Age: 28}}
		if err := sr.Update(ctx, id, "weight", draft); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		s, _ := sr.GetActive(ctx, 1, now)
		data, _ := s.GetContextData()
		if s.State != "weight" || data.Profile.Age != 28 || data.Profile.Gender != norms.Female {
			t.Errorf("Unexpected session after update: %+v %+v", s, data)
		}

		if err := sr.Delete(ctx, id); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if s, _ := sr.GetActive(ctx, 1, now); s != nil {
			t.Errorf("Expected no session after delete, got %+v", s)
		}
	})

	t.Run("OtherUser", func(t *testing.T) {
		sr := newTestSessions(t)
		sr.Start(ctx, 1, SessionPortion, "awaiting", SessionContextData{}, time.Hour, now)
		if s, _ := sr.GetActive(ctx, 2, now); s != nil {
			t.Errorf("Expected no session for another user, got %+v", s)
		}
	})
}
