package nutrition

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
)

//go:embed knowledge_base.json
var defaultKnowledgeBase []byte

// Entry is one knowledge base key with its per-100g values.
type Entry struct {
	Key     string
	Per100g Macros
}

// Dish is a composite dish with its enumerated components.
type Dish struct {
	Name       string
	Components []string
}

// KnowledgeBase is the static food table. It is read-only once loaded, so a
// single instance can be shared by every request.
type KnowledgeBase struct {
	entries  []Entry
	index    map[string]int
	dishes   []Dish
	synonyms []synonym
}

type synonym struct {
	from string
	to   string
}

type rawKnowledgeBase struct {
	Foods []struct {
		Names   []string   `json:"names"`
		Per100g [4]float64 `json:"per_100g"`
	} `json:"foods"`
	Dishes []struct {
		Name       string   `json:"name"`
		Components []string `json:"components"`
	} `json:"dishes"`
	Synonyms []struct {
		Synonym  string `json:"synonym"`
		Standard string `json:"standard"`
	} `json:"synonyms"`
}

// DefaultKnowledgeBase returns the table compiled into the binary.
func DefaultKnowledgeBase() *KnowledgeBase {
	kb, err := ParseKnowledgeBase(defaultKnowledgeBase)
	if err != nil {
		panic(fmt.Sprintf("embedded knowledge base is invalid: %v", err))
	}
	return kb
}

// LoadKnowledgeBase reads a knowledge base file in the same JSON layout as the embedded one.
func LoadKnowledgeBase(path string) (*KnowledgeBase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read knowledge base %s: %w", path, err)
	}
	return ParseKnowledgeBase(data)
}

// ParseKnowledgeBase builds a KnowledgeBase from JSON. Keys are stored in their
// normalized form and keep file order, which decides partial-match priority.
func ParseKnowledgeBase(data []byte) (*KnowledgeBase, error) {
	var raw rawKnowledgeBase
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal knowledge base: %w", err)
	}

	kb := &KnowledgeBase{index: make(map[string]int)}
	for _, food := range raw.Foods {
		per100g := Macros{
			Calories: food.Per100g[0],
			Proteins: food.Per100g[1],
			Fats:     food.Per100g[2],
			Carbs:    food.Per100g[3],
		}
		if per100g.Clamp() != per100g {
			return nil, fmt.Errorf("food %v has negative values", food.Names)
		}
		for _, name := range food.Names {
			key := clean(name)
			if key == "" {
				return nil, fmt.Errorf("food %v has an empty name", food.Names)
			}
			if _, dup := kb.index[key]; dup {
				continue
			}
			kb.index[key] = len(kb.entries)
			kb.entries = append(kb.entries, Entry{Key: key, Per100g: per100g})
		}
	}

	for _, d := range raw.Dishes {
		kb.dishes = append(kb.dishes, Dish{Name: clean(d.Name), Components: d.Components})
	}
	for _, s := range raw.Synonyms {
		kb.synonyms = append(kb.synonyms, synonym{from: clean(s.Synonym), to: clean(s.Standard)})
	}

	if len(kb.entries) == 0 {
		return nil, fmt.Errorf("knowledge base has no foods")
	}
	return kb, nil
}

// Get returns the entry stored under an already normalized key.
func (kb *KnowledgeBase) Get(key string) (Entry, bool) {
	i, ok := kb.index[key]
	if !ok {
		return Entry{}, false
	}
	return kb.entries[i], true
}

// Entries returns the keys in priority order.
func (kb *KnowledgeBase) Entries() []Entry {
	return append([]Entry(nil), kb.entries...)
}

// Dishes returns the composite dish table.
func (kb *KnowledgeBase) Dishes() []Dish {
	return append([]Dish(nil), kb.dishes...)
}

// Len returns the number of keys.
func (kb *KnowledgeBase) Len() int {
	return len(kb.entries)
}
