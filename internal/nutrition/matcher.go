package nutrition

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// MatchTier tells which matching step produced a hit.
type MatchTier int

const (
	TierNone MatchTier = iota
	TierExact
	TierPartial
	TierDish
)

func (t MatchTier) String() string {
	switch t {
	case TierExact:
		return "exact"
	case TierPartial:
		return "partial"
	case TierDish:
		return "dish"
	default:
		return "none"
	}
}

// Match is the outcome of resolving one name against the knowledge base.
type Match struct {
	Key        string
	Tier       MatchTier
	Per100g    Macros
	Components []string
}

// Matcher resolves free-text food names against a KnowledgeBase.
type Matcher struct {
	kb      *KnowledgeBase
	generic Macros
}

// MatcherOption customizes a Matcher.
type MatcherOption func(*Matcher)

// WithGenericEstimate overrides the values returned for unmatched names.
func WithGenericEstimate(m Macros) MatcherOption {
	return func(mt *Matcher) {
		mt.generic = m
	}
}

// NewMatcher creates a Matcher over kb.
func NewMatcher(kb *KnowledgeBase, opts ...MatcherOption) *Matcher {
	m := &Matcher{kb: kb, generic: DefaultGenericEstimate}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GenericEstimate returns the configured "no information" values.
func (m *Matcher) GenericEstimate() Macros {
	return m.generic
}

// Normalize folds case, strips punctuation and trims the name. If any synonym
// occurs in the result, the whole name is replaced by the synonym's standard key.
func (m *Matcher) Normalize(raw string) string {
	name := clean(raw)
	if name == "" {
		return ""
	}
	for _, s := range m.kb.synonyms {
		if strings.Contains(name, s.from) {
			return s.to
		}
	}
	return name
}

// Match runs exact, partial and dish-component matching in that order.
func (m *Matcher) Match(raw string) Match {
	key := m.Normalize(raw)
	if key == "" {
		return Match{Tier: TierNone}
	}

	if e, ok := m.kb.Get(key); ok {
		return Match{Key: e.Key, Tier: TierExact, Per100g: e.Per100g}
	}

	for _, e := range m.kb.entries {
		if strings.Contains(key, e.Key) || strings.Contains(e.Key, key) {
			return Match{Key: e.Key, Tier: TierPartial, Per100g: e.Per100g}
		}
	}

	// Components are informational; the dish's own entry supplies the values.
	for _, d := range m.kb.dishes {
		if !strings.Contains(key, d.Name) && !strings.Contains(d.Name, key) {
			continue
		}
		if e, ok := m.kb.Get(d.Name); ok {
			return Match{
				Key:        e.Key,
				Tier:       TierDish,
				Per100g:    e.Per100g,
				Components: append([]string(nil), d.Components...),
			}
		}
	}

	return Match{Tier: TierNone}
}

// Lookup converts a name into a per-100g Record. Unmatched names get the generic
// estimate with Estimated set.
func (m *Matcher) Lookup(raw string) Record {
	match := m.Match(raw)

	rec := Record{
		Name:          raw,
		PortionWeight: DefaultPortionWeight,
		Source:        SourceNameLookup,
		DetectedItems: []string{},
	}
	if match.Tier == TierNone {
		rec.Estimated = true
		return rec.WithMacros(m.generic)
	}
	if len(match.Components) > 0 {
		rec.DetectedItems = match.Components
	}
	return rec.WithMacros(match.Per100g)
}

func clean(s string) string {
	// Casers are stateful; one per call keeps clean safe for concurrent use.
	s = cases.Fold().String(norm.NFC.String(s))

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), unicode.IsMark(r), r == '_':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
