package barcode

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"nutrition-bot/internal/nutrition"
	"nutrition-bot/internal/retry"

	"github.com/googleapis/gax-go/v2"
)

type memoryCache struct {
	products map[string]Product
	puts     int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{products: make(map[string]Product)}
}

func (c *memoryCache) Get(code string) (Product, bool) {
	p, ok := c.products[code]
	return p, ok
}

func (c *memoryCache) Put(p Product) error {
	c.puts++
	c.products[p.Barcode] = p
	return nil
}

type stubSource struct {
	name    string
	product Product
	err     error
	calls   int
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Lookup(ctx context.Context, code string) (Product, error) {
	s.calls++
	return s.product, s.err
}

func fast(s *httpSource) {
	s.policy = retry.Policy{MaxAttempts: 2, Backoff: gax.Backoff{Initial: time.Millisecond}}
}

func TestChain(t *testing.T) {
	kefir := Product{Name: "Kefir", Macros: nutrition.Macros{Calories: 40, Proteins: 3, Fats: 1, Carbs: 4}, HasMacros: true}

	t.Run("CacheHitSkipsSources", func(t *testing.T) {
		cache := newMemoryCache()
		cache.products["4607001771562"] = Product{Barcode: "4607001771562", Name: "Cached", HasMacros: true}
		src := &stubSource{name: "edadeal", product: kefir}

		p, err := NewChain(cache, src).LookupProduct(context.Background(), "4607001-771562")
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if p.Name != "Cached" {
			t.Errorf("Expected cached product, got '%s'", p.Name)
		}
		if src.calls != 0 {
			t.Errorf("Expected no source calls, got %d", src.calls)
		}
	})

	t.Run("FallsThroughAndCaches", func(t *testing.T) {
		cache := newMemoryCache()
		down := &stubSource{name: "edadeal", err: &retry.StatusError{StatusCode: 502}}
		missing := &stubSource{name: "openfoodfacts", err: ErrNotFound}
		hit := &stubSource{name: "other", product: kefir}

		p, err := NewChain(cache, down, missing, hit).LookupProduct(context.Background(), "4607001771562")
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if p.Source != "other" || p.Barcode != "4607001771562" || p.PortionWeight != 100 {
			t.Errorf("Unexpected product: %+v", p)
		}
		if cache.puts != 1 {
			t.Errorf("Expected product to be cached once, got %d", cache.puts)
		}
	})

	t.Run("PrefersValuesOverNameOnly", func(t *testing.T) {
		nameOnly := &stubSource{name: "barcode-list", product: Product{Name: "Kefir 1%"}}
		withValues := &stubSource{name: "openfoodfacts", product: kefir}

		p, err := NewChain(nil, nameOnly, withValues).LookupProduct(context.Background(), "4607001771562")
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if !p.HasMacros || p.Source != "openfoodfacts" {
			t.Errorf("Expected product with values, got %+v", p)
		}
	})

	t.Run("NameOnlyAsLastResort", func(t *testing.T) {
		cache := newMemoryCache()
		nameOnly := &stubSource{name: "barcode-list", product: Product{Name: "Kefir 1%"}}

		p, err := NewChain(cache, &stubSource{name: "edadeal", err: ErrNotFound}, nameOnly).LookupProduct(context.Background(), "4607001771562")
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if p.HasMacros || p.Name != "Kefir 1%" {
			t.Errorf("Expected name-only product, got %+v", p)
		}
		if cache.puts != 0 {
			t.Errorf("Expected name-only product not to be cached, got %d puts", cache.puts)
		}
	})

	t.Run("NotFoundAnywhere", func(t *testing.T) {
		_, err := NewChain(newMemoryCache(), &stubSource{name: "edadeal", err: ErrNotFound}).LookupProduct(context.Background(), "12345678")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})
}

func TestEdadealClient(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("product_id") != "4607001771562" {
				t.Errorf("Expected product_id '4607001771562', got '%s'", r.URL.Query().Get("product_id"))
			}
			w.WriteHeader(http.StatusOK)
			fmt.Fprintln(w, `{"product": {"title": "Кефир 1%", "nutrition": {
				"energy": {"value": 40}, "proteins": {"value": 3}, "fats": {"value": 1}, "carbohydrates": {"value": 4}}}}`)
		}))
		defer server.Close()

		p, err := NewEdadealClient(server.URL, 1).Lookup(context.Background(), "4607001771562")
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		want := nutrition.Macros{Calories: 40, Proteins: 3, Fats: 1, Carbs: 4}
		if p.Name != "Кефир 1%" || p.Macros != want || !p.HasMacros {
			t.Errorf("Unexpected product: %+v", p)
		}
	})

	t.Run("NoNutrition", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprintln(w, `{"product": {"title": "Хлеб"}}`)
		}))
		defer server.Close()

		p, err := NewEdadealClient(server.URL, 1).Lookup(context.Background(), "4600000000001")
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if p.HasMacros {
			t.Errorf("Expected name-only product, got %+v", p)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		_, err := NewEdadealClient(server.URL, 1).Lookup(context.Background(), "4600000000001")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("ServerErrorIsRetried", func(t *testing.T) {
		calls := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		c := NewEdadealClient(server.URL, 2)
		fast(&c.httpSource)
		if _, err := c.Lookup(context.Background(), "4600000000001"); err == nil {
			t.Fatal("Expected an error for non-200 status code, got nil")
		}
		if calls != 2 {
			t.Errorf("Expected 2 attempts, got %d", calls)
		}
	})
}

func TestOpenFoodFactsClient(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/3017620422003.json" {
				t.Errorf("Unexpected path '%s'", r.URL.Path)
			}
			fmt.Fprintln(w, `{"status": 1, "product": {
				"product_name": "Nutella", "product_name_ru": "Нутелла",
				"nutriments": {"energy-kcal_100g": 539, "proteins_100g": 6.3, "fat_100g": "30.9", "carbohydrates_100g": 57.5}}}`)
		}))
		defer server.Close()

		p, err := NewOpenFoodFactsClient(server.URL+"/", 1).Lookup(context.Background(), "3017620422003")
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		want := nutrition.Macros{Calories: 539, Proteins: 6.3, Fats: 30.9, Carbs: 57.5}
		if p.Name != "Нутелла" || p.Macros != want || !p.HasMacros {
			t.Errorf("Unexpected product: %+v", p)
		}
	})

	t.Run("KilojouleFallback", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprintln(w, `{"status": 1, "product": {"product_name": "Oats",
				"nutriments": {"energy-kj_100g": 1560, "proteins_100g": 13}}}`)
		}))
		defer server.Close()

		p, err := NewOpenFoodFactsClient(server.URL, 1).Lookup(context.Background(), "12345678")
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		// 1560 / 4.184 = 372.84
		if p.Macros.Calories != 372.8 || p.Name != "Oats" {
			t.Errorf("Unexpected product: %+v", p)
		}
	})

	t.Run("StatusZero", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprintln(w, `{"status": 0, "status_verbose": "product not found"}`)
		}))
		defer server.Close()

		_, err := NewOpenFoodFactsClient(server.URL, 1).Lookup(context.Background(), "12345678")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("MalformedJSON", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprintln(w, `{"status": `)
		}))
		defer server.Close()

		_, err := NewOpenFoodFactsClient(server.URL, 1).Lookup(context.Background(), "12345678")
		if err == nil || errors.Is(err, ErrNotFound) {
			t.Errorf("Expected a decode error, got %v", err)
		}
	})
}

func TestBarcodeListClient(t *testing.T) {
	page := `<html><body>
		<table class="randomBarcodes">
			<tr><th>#</th><th>Штрихкод</th><th>Наименование</th><th>Ед.</th></tr>
			<tr><td>1</td><td>4607001771562</td><td>  Кефир  1%   900 г </td><td>шт</td></tr>
		</table></body></html>`

	t.Run("Success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("barcode") != "4607001771562" {
				t.Errorf("Unexpected query '%s'", r.URL.RawQuery)
			}
			fmt.Fprint(w, page)
		}))
		defer server.Close()

		p, err := NewBarcodeListClient(server.URL, 1).Lookup(context.Background(), "4607001771562")
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if p.Name != "Кефир 1% 900 г" {
			t.Errorf("Expected 'Кефир 1%% 900 г', got '%s'", p.Name)
		}
		if p.HasMacros {
			t.Error("Expected a name-only product")
		}
	})

	t.Run("NoMatchingRow", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, page)
		}))
		defer server.Close()

		_, err := NewBarcodeListClient(server.URL, 1).Lookup(context.Background(), "12345678")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})
}
