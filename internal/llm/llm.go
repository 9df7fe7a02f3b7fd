package llm

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"nutrition-bot/internal/nutrition"
	"nutrition-bot/internal/shared"
)

//go:embed vision_prompt.md
var visionPrompt string

// Analysis is the structured answer of a vision model about one photo.
// Macros is nil when the model named the food but gave no usable totals.
type Analysis struct {
	FoodPresent   bool
	Name          string
	Ingredients   []string
	PortionWeight float64
	Macros        *nutrition.Macros
	Meta          shared.AgentMeta
}

// Closer is an interface for closing resources.
type Closer interface {
	Close() error
}

var noFoodPhrases = []string{"no food", "еда не обнаружена", "нет еды"}

// parseNumber accepts both JSON numbers and numeric strings such as "250" or "12,5".
// Missing or null values report ok=false.
func parseNumber(b json.RawMessage) (float64, bool) {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		return 0, false
	}
	s = strings.TrimSuffix(strings.TrimSpace(strings.ReplaceAll(s, ",", ".")), "g")
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Numeric fields stay raw so one unusable value does not cost the dish name.
type rawAnalysis struct {
	Name          string          `json:"name"`
	HasFood       *bool           `json:"has_food"`
	Ingredients   []string        `json:"ingredients"`
	PortionWeight json.RawMessage `json:"portion_weight"`
	Nutrition     *struct {
		Calories json.RawMessage `json:"calories"`
		Proteins json.RawMessage `json:"proteins"`
		Fats     json.RawMessage `json:"fats"`
		Carbs    json.RawMessage `json:"carbs"`
	} `json:"nutrition"`
}

// ParseAnalysis extracts the JSON object from a model reply. Replies without a
// JSON object are accepted only when they say no food is present.
func ParseAnalysis(content string) (Analysis, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end < start {
		if mentionsNoFood(content) {
			return Analysis{Name: nutrition.NoFoodDetectedName}, nil
		}
		return Analysis{}, fmt.Errorf("no JSON object in model reply: %q", truncate(content, 120))
	}

	var raw rawAnalysis
	if err := json.Unmarshal([]byte(content[start:end+1]), &raw); err != nil {
		return Analysis{}, fmt.Errorf("failed to unmarshal model reply: %w", err)
	}

	name := strings.TrimSpace(raw.Name)
	if (raw.HasFood != nil && !*raw.HasFood) || mentionsNoFood(name) {
		return Analysis{Name: nutrition.NoFoodDetectedName}, nil
	}

	a := Analysis{FoodPresent: true, Name: name}
	if w, ok := parseNumber(raw.PortionWeight); ok {
		a.PortionWeight = max(0, w)
	}
	for _, ing := range raw.Ingredients {
		if ing = strings.TrimSpace(ing); ing != "" {
			a.Ingredients = append(a.Ingredients, ing)
		}
	}

	if n := raw.Nutrition; n != nil {
		kcal, ok1 := parseNumber(n.Calories)
		p, ok2 := parseNumber(n.Proteins)
		f, ok3 := parseNumber(n.Fats)
		c, ok4 := parseNumber(n.Carbs)
		m := nutrition.Macros{Calories: kcal, Proteins: p, Fats: f, Carbs: c}.Clamp()
		// All zeros is how models fill the template when they could not estimate.
		if ok1 && ok2 && ok3 && ok4 && !m.IsZero() {
			a.Macros = &m
		}
	}
	return a, nil
}

func mentionsNoFood(s string) bool {
	lower := strings.ToLower(s)
	for _, p := range noFoodPhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
