package barcode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"nutrition-bot/internal/nutrition"
)

const DefaultEdadealURL = "https://api.edadeal.ru/web/v1/product_details"

// EdadealClient looks products up in the Edadeal catalogue, which covers many
// Russian products missing from Open Food Facts.
type EdadealClient struct {
	httpSource
}

func NewEdadealClient(baseURL string, attempts int) *EdadealClient {
	if baseURL == "" {
		baseURL = DefaultEdadealURL
	}
	return &EdadealClient{newHTTPSource(baseURL, attempts)}
}

func (c *EdadealClient) Name() string { return "edadeal" }

type edadealValue struct {
	Value float64 `json:"value"`
}

type edadealResponse struct {
	Product *struct {
		Title     string `json:"title"`
		Nutrition struct {
			Energy        *edadealValue `json:"energy"`
			Proteins      *edadealValue `json:"proteins"`
			Fats          *edadealValue `json:"fats"`
			Carbohydrates *edadealValue `json:"carbohydrates"`
		} `json:"nutrition"`
	} `json:"product"`
}

// Lookup returns per-100g values. A product with no nutrition block is name-only.
func (c *EdadealClient) Lookup(ctx context.Context, code string) (Product, error) {
	var data edadealResponse
	err := c.get(ctx, c.Name(), c.baseURL+"?product_id="+url.QueryEscape(code), func(resp *http.Response) error {
		if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
			return fmt.Errorf("failed to decode edadeal response: %w", err)
		}
		return nil
	})
	if err != nil {
		return Product{}, err
	}
	if data.Product == nil || data.Product.Title == "" {
		return Product{}, ErrNotFound
	}

	n := data.Product.Nutrition
	m := nutrition.Macros{
		Calories: valueOf(n.Energy),
		Proteins: valueOf(n.Proteins),
		Fats:     valueOf(n.Fats),
		Carbs:    valueOf(n.Carbohydrates),
	}.Clamp()

	return Product{
		Name:          data.Product.Title,
		Macros:        m,
		PortionWeight: 100,
		HasMacros:     !m.IsZero(),
	}, nil
}

func valueOf(v *edadealValue) float64 {
	if v == nil {
		return 0
	}
	return v.Value
}
