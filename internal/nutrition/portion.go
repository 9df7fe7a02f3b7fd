package nutrition

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidPortion is returned for portion input that is not a positive whole number of grams.
var ErrInvalidPortion = errors.New("portion must be a positive whole number of grams")

// ParsePortion validates user input such as "150". Only ASCII digits are accepted.
func ParsePortion(input string) (int, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return 0, ErrInvalidPortion
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, ErrInvalidPortion
		}
	}
	grams, err := strconv.Atoi(s)
	if err != nil || grams <= 0 {
		return 0, ErrInvalidPortion
	}
	return grams, nil
}

// Rescale returns a copy of original with every quantity scaled to newWeight grams.
// Always pass the record as it was before any rescale: chaining on rescaled output
// compounds the per-field rounding.
func Rescale(original Record, newWeight float64) (Record, error) {
	if newWeight <= 0 {
		return original, fmt.Errorf("%w: got %v", ErrInvalidPortion, newWeight)
	}

	ratio := newWeight / original.Basis()
	scaled := original.WithMacros(original.Macros().Scale(ratio))
	scaled.PortionWeight = newWeight
	return scaled, nil
}

// RescaleInput parses input and rescales original. On invalid input the original
// record is returned unchanged together with ErrInvalidPortion.
func RescaleInput(original Record, input string) (Record, error) {
	grams, err := ParsePortion(input)
	if err != nil {
		return original, err
	}
	return Rescale(original, float64(grams))
}
