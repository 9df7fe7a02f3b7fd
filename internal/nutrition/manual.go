package nutrition

import (
	"errors"
	"strconv"
	"strings"
)

// ErrInvalidManual is returned for manual values that are not four non-negative numbers.
var ErrInvalidManual = errors.New("manual values must be four non-negative numbers: kcal proteins fats carbs")

// ManualEntryName names a manual record when the user gave no name.
const ManualEntryName = "Manual entry"

// ParseManual builds a per-100g record from user input such as "250 6,5 12 30".
// Values typed by the user are taken as verified.
func ParseManual(name, input string) (Record, error) {
	fields := strings.Fields(input)
	if len(fields) != 4 {
		return Record{}, ErrInvalidManual
	}

	var v [4]float64
	for i, f := range fields {
		n, err := strconv.ParseFloat(strings.ReplaceAll(f, ",", "."), 64)
		if err != nil || n < 0 {
			return Record{}, ErrInvalidManual
		}
		v[i] = n
	}
	m := Macros{Calories: v[0], Proteins: v[1], Fats: v[2], Carbs: v[3]}
	if m.IsZero() {
		return Record{}, ErrInvalidManual
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = ManualEntryName
	}
	rec := Record{
		Name:          name,
		PortionWeight: DefaultPortionWeight,
		Source:        SourceManual,
		DetectedItems: []string{},
	}
	return rec.WithMacros(m.Scale(1)), nil
}
