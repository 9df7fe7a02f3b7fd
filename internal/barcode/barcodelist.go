package barcode

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const DefaultBarcodeListURL = "https://barcode-list.ru/barcode/RU/Поиск.htm"

// BarcodeListClient scrapes barcode-list.ru search results. The site only
// knows product names, so results never carry nutrition values.
type BarcodeListClient struct {
	httpSource
}

func NewBarcodeListClient(baseURL string, attempts int) *BarcodeListClient {
	if baseURL == "" {
		baseURL = DefaultBarcodeListURL
	}
	return &BarcodeListClient{newHTTPSource(baseURL, attempts)}
}

func (c *BarcodeListClient) Name() string { return "barcode-list" }

// Lookup finds the results row whose barcode cell equals code and returns the
// name from the cell after it.
func (c *BarcodeListClient) Lookup(ctx context.Context, code string) (Product, error) {
	var name string
	err := c.get(ctx, c.Name(), c.baseURL+"?barcode="+url.QueryEscape(code), func(resp *http.Response) error {
		doc, err := goquery.NewDocumentFromReader(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to parse HTML: %w", err)
		}
		name = findProductName(doc, code)
		return nil
	})
	if err != nil {
		return Product{}, err
	}
	if name == "" {
		return Product{}, ErrNotFound
	}
	return Product{Name: name, PortionWeight: 100}, nil
}

func findProductName(doc *goquery.Document, code string) string {
	var name string
	doc.Find("table tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		cells := row.Find("td")
		cells.EachWithBreak(func(i int, cell *goquery.Selection) bool {
			if Normalize(cell.Text()) != code || i+1 >= cells.Length() {
				return true
			}
			name = strings.Join(strings.Fields(cells.Eq(i+1).Text()), " ")
			return false
		})
		return name == ""
	})
	return name
}
