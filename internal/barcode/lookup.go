package barcode

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"nutrition-bot/internal/retry"
)

// Source is one external product database.
type Source interface {
	Name() string
	Lookup(ctx context.Context, code string) (Product, error)
}

// Cache is the local barcode store consulted before any Source.
type Cache interface {
	Get(code string) (Product, bool)
	Put(p Product) error
}

// Chain resolves a barcode against the cache and then each source in order.
type Chain struct {
	cache   Cache
	sources []Source
}

// NewChain creates a Chain. cache may be nil.
func NewChain(cache Cache, sources ...Source) *Chain {
	return &Chain{cache: cache, sources: sources}
}

// LookupProduct returns the first product with nutrition values. When only
// name-only sources know the barcode, the first such product is returned.
// Products with values found externally are written back to the cache.
func (c *Chain) LookupProduct(ctx context.Context, code string) (*Product, error) {
	key := Normalize(code)
	if key == "" {
		return nil, fmt.Errorf("%w: empty barcode %q", ErrNotFound, code)
	}

	if c.cache != nil {
		if p, ok := c.cache.Get(key); ok {
			return &p, nil
		}
	}

	var nameOnly *Product
	for _, src := range c.sources {
		p, err := src.Lookup(ctx, key)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				log.Printf("%s unavailable: %v", src.Name(), err)
			}
			continue
		}

		p.Barcode = key
		p.Source = src.Name()
		if p.PortionWeight <= 0 {
			p.PortionWeight = 100
		}

		if !p.HasMacros {
			if nameOnly == nil && p.Name != "" {
				nameOnly = &p
			}
			continue
		}

		if c.cache != nil {
			if err := c.cache.Put(p); err != nil {
				log.Printf("Failed to cache product %s: %v", key, err)
			}
		}
		return &p, nil
	}

	if nameOnly != nil {
		return nameOnly, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
}

// httpSource holds what every HTTP product client shares.
type httpSource struct {
	baseURL    string
	httpClient *http.Client
	policy     retry.Policy
}

func newHTTPSource(baseURL string, attempts int) httpSource {
	return httpSource{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		policy:     retry.WithAttempts(attempts),
	}
}

// get performs a GET with retries and hands a 200 response body to decode.
// A 404 becomes ErrNotFound.
func (s httpSource) get(ctx context.Context, name, url string, decode func(*http.Response) error) error {
	return retry.Do(ctx, s.policy, name, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("User-Agent", "nutrition-bot/1.0")

		resp, err := s.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("failed to send request: %w", err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return ErrNotFound
		case resp.StatusCode != http.StatusOK:
			return &retry.StatusError{StatusCode: resp.StatusCode, Body: http.StatusText(resp.StatusCode)}
		}
		return decode(resp)
	})
}
