// Package vision proposes food names for a photo from general-purpose image
// labelling services. It is the last-resort signal behind structured extraction.
package vision

import (
	"sort"
	"strings"

	"nutrition-bot/internal/nutrition"
)

const (
	maxCandidates      = 10
	minConfidentScore  = 0.7
	minWebEntityScore  = 0.5
	maxLabelAnnotation = 15
)

// foodKeywords marks labels worth keeping even when the service is unsure about them.
var foodKeywords = []string{
	"food", "meal", "dish", "cuisine", "breakfast", "lunch", "dinner",
	"snack", "fruit", "vegetable", "meat", "fish", "salad",
	"pasta", "rice", "potato", "bread", "dessert", "cake", "soup",
	"pizza", "burger", "sandwich", "steak", "chicken", "beef", "pork",
	"seafood", "sushi", "noodle", "carbonara", "borsch", "pilaf", "cutlet",
	"dumplings", "rolls", "paella", "lasagna", "ravioli",
	"apple", "banana", "orange", "grape", "milk", "cheese",
	"еда", "блюдо", "питание", "завтрак", "обед", "ужин", "фрукт",
	"овощ", "мясо", "рыба", "салат", "паста", "рис", "картофель",
	"хлеб", "десерт", "торт", "суп", "пицца", "бургер", "сэндвич",
	"стейк", "курица", "говядина", "свинина", "морепродукты", "суши",
	"лапша", "карбонара", "борщ", "плов", "котлета", "пельмени",
	"вареники", "роллы", "паэлья", "лазанья", "равиоли",
	"яблоко", "банан", "апельсин", "виноград", "молоко", "сыр",
}

// Annotation is one name/score pair reported by a labelling service. Scores are in [0, 1].
type Annotation struct {
	Name  string
	Score float64
}

func isFoodRelated(name string) bool {
	lower := strings.ToLower(name)
	for _, k := range foodKeywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// Candidates merges the three annotation kinds into ranked food candidates.
// Objects and labels pass when food-related or confident; web entities need both
// a food keyword and a moderate score. Duplicate names keep their best score.
func Candidates(objects, labels, web []Annotation) []nutrition.Candidate {
	best := make(map[string]float64)
	var order []string

	keep := func(a Annotation) {
		if a.Name == "" {
			return
		}
		prev, seen := best[a.Name]
		if !seen {
			order = append(order, a.Name)
		}
		if !seen || a.Score > prev {
			best[a.Name] = a.Score
		}
	}

	for _, a := range objects {
		if isFoodRelated(a.Name) || a.Score > minConfidentScore {
			keep(a)
		}
	}
	for _, a := range labels {
		if isFoodRelated(a.Name) || a.Score > minConfidentScore {
			keep(a)
		}
	}
	for _, a := range web {
		if a.Score > minWebEntityScore && isFoodRelated(a.Name) {
			keep(a)
		}
	}

	candidates := make([]nutrition.Candidate, 0, len(order))
	for _, name := range order {
		candidates = append(candidates, nutrition.Candidate{Name: name, Confidence: best[name]})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Confidence > candidates[j].Confidence
	})
	if len(candidates) > maxCandidates {
		candidates = candidates[:maxCandidates]
	}
	return candidates
}
