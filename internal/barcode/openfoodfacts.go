package barcode

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"nutrition-bot/internal/nutrition"
)

const DefaultOpenFoodFactsURL = "https://world.openfoodfacts.org/api/v0/product"

// OpenFoodFactsClient queries the Open Food Facts product API.
type OpenFoodFactsClient struct {
	httpSource
}

func NewOpenFoodFactsClient(baseURL string, attempts int) *OpenFoodFactsClient {
	if baseURL == "" {
		baseURL = DefaultOpenFoodFactsURL
	}
	return &OpenFoodFactsClient{newHTTPSource(strings.TrimSuffix(baseURL, "/"), attempts)}
}

func (c *OpenFoodFactsClient) Name() string { return "openfoodfacts" }

type offResponse struct {
	Status  int `json:"status"`
	Product struct {
		ProductName   string         `json:"product_name"`
		ProductNameRu string         `json:"product_name_ru"`
		GenericName   string         `json:"generic_name"`
		Nutriments    map[string]any `json:"nutriments"`
	} `json:"product"`
}

// Lookup returns per-100g values, preferring the Russian product name.
func (c *OpenFoodFactsClient) Lookup(ctx context.Context, code string) (Product, error) {
	var data offResponse
	err := c.get(ctx, c.Name(), fmt.Sprintf("%s/%s.json", c.baseURL, code), func(resp *http.Response) error {
		if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
			return fmt.Errorf("failed to decode open food facts response: %w", err)
		}
		return nil
	})
	if err != nil {
		return Product{}, err
	}
	if data.Status != 1 {
		return Product{}, ErrNotFound
	}

	p := data.Product
	name := firstNonEmpty(p.ProductNameRu, p.ProductName, p.GenericName)
	if name == "" {
		name = nutrition.UnknownProductName
	}

	kcal, hasKcal := extractFloat(p.Nutriments, "energy-kcal_100g")
	if !hasKcal {
		if kj, ok := extractFloat(p.Nutriments, "energy-kj_100g"); ok {
			kcal, hasKcal = nutrition.Round1(kj/4.184), true
		}
	}
	proteins, hasProteins := extractFloat(p.Nutriments, "proteins_100g")
	fats, hasFats := extractFloat(p.Nutriments, "fat_100g")
	carbs, hasCarbs := extractFloat(p.Nutriments, "carbohydrates_100g")

	m := nutrition.Macros{Calories: kcal, Proteins: proteins, Fats: fats, Carbs: carbs}.Clamp()
	return Product{
		Name:          name,
		Macros:        m,
		PortionWeight: 100,
		HasMacros:     (hasKcal || hasProteins || hasFats || hasCarbs) && !m.IsZero(),
	}, nil
}

// extractFloat coerces a nutriments value, which may be a number or a string, to float64.
func extractFloat(m map[string]any, key string) (float64, bool) {
	switch x := m[key].(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return 0, false
		}
		return x, true
	case string:
		f, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(x), ",", "."), 64)
		if err == nil {
			return f, true
		}
	}
	return 0, false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
