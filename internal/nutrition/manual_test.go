package nutrition

import (
	"errors"
	"testing"
)

func TestParseManual(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		rec, err := ParseManual("Кефир", "40 3,0 1 4.04")
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		want := Macros{Calories: 40, Proteins: 3, Fats: 1, Carbs: 4}
		if rec.Macros() != want {
			t.Errorf("Expected %+v, got %+v", want, rec.Macros())
		}
		if rec.Source != SourceManual || rec.Estimated || rec.PortionWeight != 100 {
			t.Errorf("Unexpected record: %+v", rec)
		}
	})

	t.Run("DefaultName", func(t *testing.T) {
		rec, err := ParseManual("  ", "100 1 1 1")
		if err != nil || rec.Name != ManualEntryName {
			t.Errorf("Expected name %q, got %q (%v)", ManualEntryName, rec.Name, err)
		}
	})

	t.Run("Invalid", func(t *testing.T) {
		for _, in := range []string{"", "100 1 1", "100 1 1 1 1", "100 -1 1 1", "a b c d", "0 0 0 0"} {
			if _, err := ParseManual("x", in); !errors.Is(err, ErrInvalidManual) {
				t.Errorf("ParseManual(%q): expected ErrInvalidManual, got %v", in, err)
			}
		}
	})
}
