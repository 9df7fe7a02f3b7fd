package database

import (
	"path/filepath"
	"testing"
	"time"
)

func TestNewDB(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "test.db")

	db, err := NewDB(path)
	if err != nil {
		t.Fatalf("NewDB failed: %v", err)
	}

	for _, table := range []string{"users", "food_analyses", "user_subscriptions", "sessions", "execution_metrics"} {
		var name string
		err := db.SQL.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		if err != nil {
			t.Errorf("Expected table %s to exist: %v", table, err)
		}
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	t.Run("ReopenIsNoChange", func(t *testing.T) {
		db, err := NewDB(path)
		if err != nil {
			t.Fatalf("Expected reopening to succeed, got %v", err)
		}
		db.Close()
	})
}

func TestTimeRoundTrip(t *testing.T) {
	loc := time.FixedZone("MSK", 3*60*60)
	in := time.Date(2025, 3, 14, 9, 30, 15, 0, loc)

	s := FormatTime(in)
	if s != "2025-03-14 06:30:15" {
		t.Errorf("Expected UTC layout, got %s", s)
	}
	out, err := ParseTime(s)
	if err != nil {
		t.Fatalf("ParseTime failed: %v", err)
	}
	if !out.Equal(in) {
		t.Errorf("Expected %v, got %v", in, out)
	}

	if _, err := ParseTime("yesterday"); err == nil {
		t.Error("Expected an error for a bad timestamp, got nil")
	}
}
