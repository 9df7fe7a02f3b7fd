package nutrition

import (
	"math"
	"reflect"
	"testing"
)

func TestResolve(t *testing.T) {
	r := NewResolver(NewMatcher(DefaultKnowledgeBase()))

	t.Run("Empty", func(t *testing.T) {
		rec := r.Resolve(nil)
		if !rec.Macros().IsZero() {
			t.Errorf("Expected zero values, got %+v", rec.Macros())
		}
		if !rec.Estimated {
			t.Error("Expected empty input to be estimated")
		}
	})

	t.Run("ConfidentTopHitIsNotFused", func(t *testing.T) {
		rec := r.Resolve([]Candidate{
			{Name: "xyz_unknown", Confidence: 0.1},
			{Name: "pizza", Confidence: 0.9},
		})
		if rec.Estimated {
			t.Error("Expected a verified direct hit")
		}
		if rec.Source != SourceNameLookup {
			t.Errorf("Expected source %s, got %s", SourceNameLookup, rec.Source)
		}
		want := Macros{Calories: 266, Proteins: 11, Fats: 10, Carbs: 33}
		if rec.Macros() != want {
			t.Errorf("Expected %+v, got %+v", want, rec.Macros())
		}
		if rec.Name != "pizza" {
			t.Errorf("Expected name 'pizza', got '%s'", rec.Name)
		}
	})

	t.Run("AllUnknownFuseToGeneric", func(t *testing.T) {
		rec := r.Resolve([]Candidate{
			{Name: "xyz1", Confidence: 0.5},
			{Name: "xyz2", Confidence: 0.3},
			{Name: "xyz3", Confidence: 0.2},
		})
		if !rec.Estimated {
			t.Error("Expected fused generic values to be estimated")
		}
		if rec.Macros() != DefaultGenericEstimate {
			t.Errorf("Expected %+v, got %+v", DefaultGenericEstimate, rec.Macros())
		}
		if rec.Source != SourceFused {
			t.Errorf("Expected source %s, got %s", SourceFused, rec.Source)
		}
		if !reflect.DeepEqual(rec.DetectedItems, []string{"xyz1", "xyz2", "xyz3"}) {
			t.Errorf("Unexpected detected items: %v", rec.DetectedItems)
		}
	})

	t.Run("WeightedBlendUsesTopThree", func(t *testing.T) {
		rec := r.Resolve([]Candidate{
			{Name: "Mystery Bowl", Confidence: 0.4},
			{Name: "rice", Confidence: 0.3},
			{Name: "chicken", Confidence: 0.3},
			{Name: "chocolate", Confidence: 0.05},
		})
		// 0.4*200 + 0.3*130 + 0.3*165
		if math.Abs(rec.Calories-168.5) > 1e-9 {
			t.Errorf("Expected 168.5 kcal, got %v", rec.Calories)
		}
		// 0.4*10 + 0.3*2.7 + 0.3*31 = 14.11
		if rec.Proteins != 14.1 {
			t.Errorf("Expected 14.1 g protein, got %v", rec.Proteins)
		}
		if rec.Name != "Mystery Bowl" {
			t.Errorf("Expected top-1 raw name, got '%s'", rec.Name)
		}
		if !rec.Estimated {
			t.Error("Expected estimated to propagate from the generic contributor")
		}
		if len(rec.DetectedItems) != 3 {
			t.Errorf("Expected 3 contributors, got %v", rec.DetectedItems)
		}
	})

	t.Run("ZeroConfidenceSplitsEvenly", func(t *testing.T) {
		rec := r.Resolve([]Candidate{
			{Name: "unknown thing", Confidence: 0},
			{Name: "rice", Confidence: 0},
		})
		// (200 + 130) / 2
		if rec.Calories != 165 {
			t.Errorf("Expected 165 kcal, got %v", rec.Calories)
		}
	})

	t.Run("TiesKeepInputOrder", func(t *testing.T) {
		rec := r.Resolve([]Candidate{
			{Name: "qqq", Confidence: 0.5},
			{Name: "www", Confidence: 0.5},
		})
		if rec.Name != "qqq" {
			t.Errorf("Expected stable sort to keep 'qqq' first, got '%s'", rec.Name)
		}
	})

	t.Run("DoesNotMutateInput", func(t *testing.T) {
		in := []Candidate{{Name: "a1", Confidence: 0.1}, {Name: "b1", Confidence: 0.9}}
		r.Resolve(in)
		if in[0].Name != "a1" {
			t.Error("Expected input order to be preserved")
		}
	})
}
