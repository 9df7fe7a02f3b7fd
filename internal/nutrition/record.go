package nutrition

import "math"

// Source identifies which tier produced a Record.
type Source string

const (
	SourceBarcode          Source = "barcode"
	SourceVisionStructured Source = "vision_structured"
	SourceNameLookup       Source = "name_lookup"
	SourceManual           Source = "manual"
	SourceFused            Source = "fused"
)

// DefaultPortionWeight is the basis, in grams, assumed when a record carries no weight.
const DefaultPortionWeight = 100.0

const (
	UnknownDishName    = "Unknown dish"
	UnknownProductName = "Unknown product"
	NoFoodDetectedName = "No food detected"
)

// Macros holds the four tracked quantities (KBJU).
type Macros struct {
	Calories float64 `json:"calories"`
	Proteins float64 `json:"proteins"`
	Fats     float64 `json:"fats"`
	Carbs    float64 `json:"carbs"`
}

// DefaultGenericEstimate is what Lookup returns when nothing in the knowledge base matches.
// It stands for "no information" and is not an average of anything.
var DefaultGenericEstimate = Macros{Calories: 200, Proteins: 10, Fats: 7, Carbs: 20}

// Scale multiplies every field by ratio and rounds each one independently.
func (m Macros) Scale(ratio float64) Macros {
	return Macros{
		Calories: Round1(m.Calories * ratio),
		Proteins: Round1(m.Proteins * ratio),
		Fats:     Round1(m.Fats * ratio),
		Carbs:    Round1(m.Carbs * ratio),
	}
}

// Clamp replaces negative fields with zero.
func (m Macros) Clamp() Macros {
	return Macros{
		Calories: math.Max(0, m.Calories),
		Proteins: math.Max(0, m.Proteins),
		Fats:     math.Max(0, m.Fats),
		Carbs:    math.Max(0, m.Carbs),
	}
}

// IsZero reports whether all four fields are zero.
func (m Macros) IsZero() bool {
	return m.Calories == 0 && m.Proteins == 0 && m.Fats == 0 && m.Carbs == 0
}

// Record is the canonical nutrition result every source is converted into.
type Record struct {
	Name          string   `json:"name"`
	Calories      float64  `json:"calories"`
	Proteins      float64  `json:"proteins"`
	Fats          float64  `json:"fats"`
	Carbs         float64  `json:"carbs"`
	PortionWeight float64  `json:"portion_weight"`
	Estimated     bool     `json:"estimated"`
	Source        Source   `json:"source"`
	DetectedItems []string `json:"detected_items"`
	Barcode       string   `json:"barcode,omitempty"`
}

// Macros returns the record's four quantities.
func (r Record) Macros() Macros {
	return Macros{Calories: r.Calories, Proteins: r.Proteins, Fats: r.Fats, Carbs: r.Carbs}
}

// WithMacros returns a copy of r with the quantities replaced by m.
func (r Record) WithMacros(m Macros) Record {
	r.Calories = m.Calories
	r.Proteins = m.Proteins
	r.Fats = m.Fats
	r.Carbs = m.Carbs
	r.DetectedItems = append([]string(nil), r.DetectedItems...)
	return r
}

// Basis is the portion weight rescaling starts from.
func (r Record) Basis() float64 {
	if r.PortionWeight > 0 {
		return r.PortionWeight
	}
	return DefaultPortionWeight
}

// UnknownDish is returned when no source produced a single candidate.
func UnknownDish() Record {
	return Record{
		Name:          UnknownDishName,
		PortionWeight: DefaultPortionWeight,
		Estimated:     true,
		Source:        SourceFused,
		DetectedItems: []string{},
	}
}

// Round1 rounds to one decimal place, half away from zero.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}
