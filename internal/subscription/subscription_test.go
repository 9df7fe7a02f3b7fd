package subscription

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"nutrition-bot/internal/database"
)

func newTestStore(t *testing.T, limit int) (*Store, *database.DB) {
	t.Helper()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "subscription.db"))
	if err != nil {
		t.Fatalf("NewDB failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewStore(db.SQL, limit), db
}

func addAnalyses(t *testing.T, db *database.DB, userID int64, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := db.SQL.Exec(`
			INSERT INTO food_analyses (user_id, analyzed_at, day, meal_type, name, calories, proteins, fats, carbs,
				portion_weight, source, original)
			VALUES (?, '2025-03-14 10:00:00', '2025-03-14', 'lunch', 'x', 1, 1, 1, 1, 100, 'name_lookup', '{}')`, userID)
		if err != nil {
			t.Fatalf("insert failed: %v", err)
		}
	}
}

func TestQuota(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

	t.Run("FreeUsage", func(t *testing.T) {
		s, db := newTestStore(t, 3)
		addAnalyses(t, db, 1, 2)

		q, err := s.Check(ctx, 1, now)
		if err != nil {
			t.Fatalf("Check failed: %v", err)
		}
		if q.Remaining() != 1 || q.Subscribed {
			t.Errorf("Expected 1 remaining free request, got %+v", q)
		}

		addAnalyses(t, db, 1, 1)
		q, err = s.Check(ctx, 1, now)
		if !errors.Is(err, ErrQuotaExceeded) {
			t.Fatalf("Expected ErrQuotaExceeded, got %v", err)
		}
		if q.Remaining() != 0 {
			t.Errorf("Expected 0 remaining, got %d", q.Remaining())
		}
	})

	t.Run("SubscriptionLiftsLimit", func(t *testing.T) {
		s, db := newTestStore(t, 1)
		addAnalyses(t, db, 1, 5)

		sub, err := s.Add(ctx, 1, 2, "pay_123", now)
		if err != nil {
			t.Fatalf("Add failed: %v", err)
		}
		if want := now.AddDate(0, 0, 60); !sub.EndDate.Equal(want) {
			t.Errorf("Expected end %v, got %v", want, sub.EndDate)
		}

		q, err := s.Check(ctx, 1, now)
		if err != nil {
			t.Fatalf("Expected subscriber to pass, got %v", err)
		}
		if !q.Subscribed || !q.Until.Equal(sub.EndDate) {
			t.Errorf("Expected subscription until %v, got %+v", sub.EndDate, q)
		}

		if _, err := s.Check(ctx, 1, now.AddDate(0, 0, 61)); !errors.Is(err, ErrQuotaExceeded) {
			t.Errorf("Expected expired subscription to fall back to quota, got %v", err)
		}
	})

	t.Run("Cancel", func(t *testing.T) {
		s, _ := newTestStore(t, 0)
		s.Add(ctx, 1, 1, "", now)
		if err := s.Cancel(ctx, 1); err != nil {
			t.Fatalf("Cancel failed: %v", err)
		}
		if _, ok, _ := s.ActiveUntil(ctx, 1, now); ok {
			t.Error("Expected no active subscription after cancel")
		}
	})

	t.Run("RejectsNonPositiveMonths", func(t *testing.T) {
		s, _ := newTestStore(t, 0)
		if _, err := s.Add(ctx, 1, 0, "", now); err == nil {
			t.Error("Expected an error, got nil")
		}
	})
}
