package barcode

import (
	"errors"
	"strings"

	"nutrition-bot/internal/nutrition"
)

// ErrNotFound is returned by a product source that has no entry for a barcode.
var ErrNotFound = errors.New("product not found")

// Product is what a product database knows about one barcode. Name-only sources
// leave HasMacros unset.
type Product struct {
	Barcode       string
	Name          string
	Macros        nutrition.Macros
	PortionWeight float64
	HasMacros     bool
	Source        string
}

// Normalize strips everything except digits, so "4 600000 123456" and
// "4600000123456" share a cache key.
func Normalize(code string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, code)
}

// IsCandidate reports whether s looks like an EAN-8 to EAN-13 or UPC code.
func IsCandidate(s string) bool {
	if len(s) < 8 || len(s) > 13 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
