package nutrition

import "sort"

// maxFusedCandidates caps how many detections contribute to a fused estimate.
const maxFusedCandidates = 3

// Candidate is one name proposed by label-based recognition.
type Candidate struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// Resolver turns ranked candidate detections into a single Record.
type Resolver struct {
	matcher *Matcher
}

// NewResolver creates a Resolver backed by matcher.
func NewResolver(matcher *Matcher) *Resolver {
	return &Resolver{matcher: matcher}
}

// Resolve returns the direct lookup of the most confident candidate when it hits
// the knowledge base. Otherwise it blends the top candidates weighted by confidence.
func (r *Resolver) Resolve(candidates []Candidate) Record {
	if len(candidates) == 0 {
		return UnknownDish()
	}

	ranked := append([]Candidate(nil), candidates...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Confidence > ranked[j].Confidence
	})

	main := ranked[0]
	if direct := r.matcher.Lookup(main.Name); !direct.Estimated {
		return direct
	}

	top := ranked[:min(len(ranked), maxFusedCandidates)]

	var total float64
	for _, c := range top {
		total += c.Confidence
	}

	var sum Macros
	estimated := false
	detected := make([]string, 0, len(top))
	for _, c := range top {
		weight := 1 / float64(len(top))
		if total > 0 {
			weight = c.Confidence / total
		}

		rec := r.matcher.Lookup(c.Name)
		if rec.Estimated {
			estimated = true
		}
		sum.Calories += rec.Calories * weight
		sum.Proteins += rec.Proteins * weight
		sum.Fats += rec.Fats * weight
		sum.Carbs += rec.Carbs * weight
		detected = append(detected, c.Name)
	}

	fused := Record{
		Name:          main.Name,
		PortionWeight: DefaultPortionWeight,
		Estimated:     estimated,
		Source:        SourceFused,
		DetectedItems: detected,
	}
	return fused.WithMacros(sum.Clamp().Scale(1))
}
