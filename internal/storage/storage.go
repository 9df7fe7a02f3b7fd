package storage

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"nutrition-bot/internal/barcode"
	"nutrition-bot/internal/nutrition"
)

// cacheEntry is the on-disk shape of one product, keyed by its digits-only barcode.
type cacheEntry struct {
	Name          string  `json:"name"`
	Calories      float64 `json:"calories"`
	Proteins      float64 `json:"proteins"`
	Fats          float64 `json:"fats"`
	Carbs         float64 `json:"carbs"`
	PortionWeight float64 `json:"portion_weight"`
	Barcode       string  `json:"barcode"`
	Estimated     bool    `json:"estimated"`
	Source        string  `json:"source,omitempty"`
}

// ProductCache is a JSON file mapping barcodes to products. Reads are served
// from memory; every Put merges with the file on disk and atomically replaces it.
type ProductCache struct {
	path     string
	mu       sync.Mutex
	products map[string]cacheEntry
}

// NewProductCache loads the cache at path, creating its directory if needed.
func NewProductCache(path string) (*ProductCache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory for %s: %w", path, err)
	}

	products, err := readEntries(path)
	if err != nil {
		return nil, err
	}
	log.Printf("Loaded %d products from barcode cache %s", len(products), path)
	return &ProductCache{path: path, products: products}, nil
}

// Get returns the cached product for code. Any non-digit characters in code are ignored.
func (c *ProductCache) Get(code string) (barcode.Product, bool) {
	key := barcode.Normalize(code)

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.products[key]
	if !ok || e.Estimated {
		return barcode.Product{}, false
	}
	return barcode.Product{
		Barcode: key,
		Name:    e.Name,
		Macros: nutrition.Macros{
			Calories: e.Calories,
			Proteins: e.Proteins,
			Fats:     e.Fats,
			Carbs:    e.Carbs,
		},
		PortionWeight: e.PortionWeight,
		HasMacros:     true,
		Source:        "cache",
	}, true
}

// Put stores p under its digits-only barcode. Products without values are ignored.
func (c *ProductCache) Put(p barcode.Product) error {
	key := barcode.Normalize(p.Barcode)
	if key == "" {
		return fmt.Errorf("product %q has no barcode", p.Name)
	}
	if !p.HasMacros {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	onDisk, err := readEntries(c.path)
	if err != nil {
		return err
	}
	for k, v := range onDisk {
		if _, ok := c.products[k]; !ok {
			c.products[k] = v
		}
	}

	c.products[key] = cacheEntry{
		Name:          p.Name,
		Calories:      p.Macros.Calories,
		Proteins:      p.Macros.Proteins,
		Fats:          p.Macros.Fats,
		Carbs:         p.Macros.Carbs,
		PortionWeight: p.PortionWeight,
		Barcode:       key,
		Source:        p.Source,
	}
	return c.save()
}

// Len returns the number of cached products.
func (c *ProductCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.products)
}

func (c *ProductCache) save() error {
	data, err := json.MarshalIndent(c.products, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal barcode cache: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(c.path), ".barcodes-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp cache file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		return fmt.Errorf("failed to replace cache file %s: %w", c.path, err)
	}
	return nil
}

func readEntries(path string) (map[string]cacheEntry, error) {
	products := make(map[string]cacheEntry)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return products, nil
		}
		return nil, fmt.Errorf("failed to read cache file %s: %w", path, err)
	}
	if len(data) == 0 {
		return products, nil
	}

	if err := json.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cache data from %s: %w", path, err)
	}
	return products, nil
}
