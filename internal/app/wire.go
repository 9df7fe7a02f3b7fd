package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"nutrition-bot/internal/barcode"
	"nutrition-bot/internal/config"
	"nutrition-bot/internal/database"
	"nutrition-bot/internal/diary"
	"nutrition-bot/internal/llm"
	"nutrition-bot/internal/metrics"
	"nutrition-bot/internal/nutrition"
	"nutrition-bot/internal/profile"
	"nutrition-bot/internal/recognition"
	"nutrition-bot/internal/storage"
	"nutrition-bot/internal/subscription"
	"nutrition-bot/internal/vision"
)

// Services is everything a binary needs, built from configuration.
type Services struct {
	DB       *database.DB
	Cache    *storage.ProductCache
	Products *barcode.Chain
	Matcher  *nutrition.Matcher
	Pipeline *recognition.Pipeline
	Metrics  *metrics.Store
	App      *App

	closers []func() error
}

// Close releases the database and model clients.
func (s *Services) Close() {
	for _, c := range s.closers {
		if err := c(); err != nil {
			log.Printf("Warning: close failed: %v", err)
		}
	}
}

// Build opens storage and creates every configured collaborator. Missing
// providers are skipped; the pipeline degrades to the tiers that remain.
func Build(ctx context.Context, cfg *config.Config) (*Services, error) {
	s := &Services{}

	kb := nutrition.DefaultKnowledgeBase()
	if cfg.KnowledgeBasePath != "" {
		var err error
		if kb, err = nutrition.LoadKnowledgeBase(cfg.KnowledgeBasePath); err != nil {
			return nil, err
		}
		log.Printf("Loaded knowledge base with %d keys from %s", kb.Len(), cfg.KnowledgeBasePath)
	}
	s.Matcher = nutrition.NewMatcher(kb, nutrition.WithGenericEstimate(cfg.GenericEstimate))

	cache, err := storage.NewProductCache(cfg.BarcodeCachePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open barcode cache: %w", err)
	}
	s.Cache = cache
	s.Products = barcode.NewChain(cache,
		barcode.NewEdadealClient(barcode.DefaultEdadealURL, cfg.RetryMaxAttempts),
		barcode.NewOpenFoodFactsClient(barcode.DefaultOpenFoodFactsURL, cfg.RetryMaxAttempts),
		barcode.NewBarcodeListClient(barcode.DefaultBarcodeListURL, cfg.RetryMaxAttempts),
	)

	opts, err := s.recognitionOptions(ctx, cfg)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.Pipeline = recognition.NewPipeline(s.Matcher, opts...)

	db, err := database.NewDB(cfg.DatabasePath)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.DB = db
	s.closers = append(s.closers, db.Close)

	s.Metrics = metrics.NewStore(db.SQL)
	s.App = NewApp(
		s.Pipeline,
		diary.NewRepository(db.SQL, time.Local),
		profile.NewStore(db.SQL),
		subscription.NewStore(db.SQL, cfg.FreeRequestsLimit),
		s.Metrics,
		WithProductStore(cache),
		WithNameLookup(s.Matcher),
	)
	return s, nil
}

func (s *Services) recognitionOptions(ctx context.Context, cfg *config.Config) ([]recognition.Option, error) {
	var (
		opts     []recognition.Option
		ocr      barcode.TextReader
		detector recognition.CandidateDetector
	)

	switch cfg.CandidateProvider {
	case config.CandidatesGoogle:
		g, err := vision.NewGoogleVision(ctx, cfg.GoogleCredentialsFile, cfg.RetryMaxAttempts)
		if err != nil {
			return nil, err
		}
		ocr, detector = g, g
	case config.CandidatesRekognition:
		r, err := vision.NewRekognition(ctx, cfg.AWSRegion)
		if err != nil {
			return nil, err
		}
		ocr, detector = r, r
	}

	opts = append(opts, recognition.WithBarcode(barcode.NewScanner(ocr), s.Products))
	if detector != nil {
		opts = append(opts, recognition.WithCandidates(detector))
	}

	switch cfg.VisionProvider {
	case config.VisionGemini:
		g, err := llm.NewGeminiAnalyzer(ctx, cfg)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, g.Close)
		opts = append(opts, recognition.WithVision(g))
	case config.VisionOpenAI:
		opts = append(opts, recognition.WithVision(llm.NewOpenAIAnalyzer(cfg)))
	default:
		log.Println("Warning: no structured vision provider configured; photos fall back to label recognition")
	}

	log.Printf("Recognition: vision=%s candidates=%s", cfg.VisionProvider, cfg.CandidateProvider)
	return opts, nil
}
