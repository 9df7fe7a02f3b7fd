package acceptance_tests

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"nutrition-bot/internal/app"
	"nutrition-bot/internal/barcode"
	"nutrition-bot/internal/database"
	"nutrition-bot/internal/diary"
	"nutrition-bot/internal/nutrition"
	"nutrition-bot/internal/profile"
	"nutrition-bot/internal/recognition"
	"nutrition-bot/internal/storage"
	"nutrition-bot/internal/subscription"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
)

const testCode = "4006381333931"

type productServers struct {
	edadeal, off           *httptest.Server
	edadealCalls, offCalls int
}

func newProductServers(t *testing.T) *productServers {
	t.Helper()
	s := &productServers{}
	s.edadeal = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.edadealCalls++
		w.WriteHeader(http.StatusNotFound)
	}))
	s.off = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.offCalls++
		fmt.Fprintln(w, `{"status": 1, "product": {"product_name": "Oat cookies",
			"nutriments": {"energy-kcal_100g": 450, "proteins_100g": 6.5, "fat_100g": 18, "carbohydrates_100g": 65}}}`)
	}))
	t.Cleanup(func() {
		s.edadeal.Close()
		s.off.Close()
	})
	return s
}

func (s *productServers) chain(t *testing.T, cachePath string) *barcode.Chain {
	t.Helper()
	cache, err := storage.NewProductCache(cachePath)
	if err != nil {
		t.Fatalf("Failed to open product cache: %v", err)
	}
	return barcode.NewChain(cache,
		barcode.NewEdadealClient(s.edadeal.URL, 1),
		barcode.NewOpenFoodFactsClient(s.off.URL, 1),
	)
}

func barcodePhoto(t *testing.T) []byte {
	t.Helper()
	matrix, err := oned.NewEAN13Writer().Encode(testCode, gozxing.BarcodeFormat_EAN_13, 400, 120, nil)
	if err != nil {
		t.Fatalf("Failed to render barcode: %v", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, matrix); err != nil {
		t.Fatalf("Failed to encode PNG: %v", err)
	}
	return buf.Bytes()
}

func newApp(t *testing.T, db *database.DB, products recognition.ProductLookup) *app.App {
	t.Helper()
	matcher := nutrition.NewMatcher(nutrition.DefaultKnowledgeBase())
	pipeline := recognition.NewPipeline(matcher, recognition.WithBarcode(barcode.NewScanner(nil), products))
	return app.NewApp(
		pipeline,
		diary.NewRepository(db.SQL, time.UTC),
		profile.NewStore(db.SQL),
		subscription.NewStore(db.SQL, 10),
		nil,
	)
}

func TestBarcodeCacheWorkflow(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cachePath := filepath.Join(dir, "barcodes.json")
	servers := newProductServers(t)

	db, err := database.NewDB(filepath.Join(dir, "nutrition.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	photo := barcodePhoto(t)
	at := time.Date(2025, 3, 14, 8, 30, 0, 0, time.UTC)

	// --- First run: the product comes from Open Food Facts ---
	first := newApp(t, db, servers.chain(t, cachePath))
	analysis, err := first.AnalyzeImage(ctx, recognition.Submission{
		UserID:     1,
		Image:      recognition.Image{Data: photo},
		ReceivedAt: at,
	})
	if err != nil {
		t.Fatalf("First analysis failed: %v", err)
	}
	if analysis.Result.Kind != recognition.KindBarcode {
		t.Fatalf("Expected kind %s, got %s", recognition.KindBarcode, analysis.Result.Kind)
	}
	if analysis.Entry == nil {
		t.Fatal("Expected the analysis to be logged")
	}
	rec := analysis.Entry.Record
	if rec.Name != "Oat cookies" || rec.Calories != 450 || rec.Barcode != testCode || rec.Source != nutrition.SourceBarcode {
		t.Errorf("Unexpected record: %+v", rec)
	}
	if servers.edadealCalls != 1 || servers.offCalls != 1 {
		t.Errorf("Expected one call per source, got edadeal=%d off=%d", servers.edadealCalls, servers.offCalls)
	}

	cacheFile, err := os.ReadFile(cachePath)
	if err != nil {
		t.Fatalf("Expected the cache file to exist: %v", err)
	}
	if !strings.Contains(string(cacheFile), testCode) {
		t.Errorf("Expected the cache file to contain %s, got %s", testCode, cacheFile)
	}

	// --- Second run after a restart: served from the cache file ---
	second := newApp(t, db, servers.chain(t, cachePath))
	analysis, err = second.AnalyzeImage(ctx, recognition.Submission{
		UserID:     1,
		Image:      recognition.Image{Data: photo},
		ReceivedAt: at.Add(5 * time.Hour),
	})
	if err != nil {
		t.Fatalf("Second analysis failed: %v", err)
	}
	if analysis.Entry == nil || analysis.Entry.Record.Calories != 450 {
		t.Fatalf("Expected the cached product, got %+v", analysis.Entry)
	}
	if servers.edadealCalls != 1 || servers.offCalls != 1 {
		t.Errorf("Expected the sources to be skipped, got edadeal=%d off=%d", servers.edadealCalls, servers.offCalls)
	}

	// --- Portion correction rescales from the stored original ---
	updated, err := second.ApplyPortion(ctx, 1, analysis.Entry.ID, "250")
	if err != nil {
		t.Fatalf("ApplyPortion failed: %v", err)
	}
	want := nutrition.Macros{Calories: 1125, Proteins: 16.3, Fats: 45, Carbs: 162.5}
	if got := updated.Entry.Record.Macros(); got != want {
		t.Errorf("Expected %+v, got %+v", want, got)
	}

	// --- Both analyses show up in the day's statistics ---
	report, err := second.DayStats(ctx, 1, at)
	if err != nil {
		t.Fatalf("DayStats failed: %v", err)
	}
	if report.Stats.Total.Count != 2 {
		t.Errorf("Expected 2 analyses, got %d", report.Stats.Total.Count)
	}
	if report.Stats.Total.Calories != 1575 {
		t.Errorf("Expected 1575 kcal, got %v", report.Stats.Total.Calories)
	}
	if report.Stats.Meals[diary.Breakfast].Totals.Count != 1 || report.Stats.Meals[diary.Lunch].Totals.Count != 1 {
		t.Errorf("Expected one breakfast and one lunch, got %+v / %+v",
			report.Stats.Meals[diary.Breakfast].Totals, report.Stats.Meals[diary.Lunch].Totals)
	}

	q, err := second.Quota(ctx, 1)
	if err != nil {
		t.Fatalf("Quota failed: %v", err)
	}
	if q.Used != 2 || q.Remaining() != 8 {
		t.Errorf("Expected 2 used and 8 remaining, got %+v", q)
	}
}
