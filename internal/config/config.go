package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"nutrition-bot/internal/nutrition"

	"github.com/joho/godotenv"
)

const (
	VisionGemini = "gemini"
	VisionOpenAI = "openai"
	ProviderNone = "none"

	CandidatesGoogle      = "google"
	CandidatesRekognition = "rekognition"
)

// Config holds the configuration for the application.
type Config struct {
	// Structured vision
	VisionProvider    string
	GeminiAPIKey      string
	GeminiModel       string
	OpenAICompatURL   string
	OpenAICompatKey   string
	OpenAICompatModel string

	// Secondary candidate recognition and OCR
	CandidateProvider     string
	GoogleCredentialsFile string
	AWSRegion             string

	// Storage
	DatabasePath      string
	BarcodeCachePath  string
	KnowledgeBasePath string

	GenericEstimate   nutrition.Macros
	FreeRequestsLimit int
	RetryMaxAttempts  int

	// Telegram Config
	TelegramBotToken   string
	TelegramWebhookURL string
	AdminTelegramID    int64

	// HTTP API
	APIJWTSecret string
	Port         string
}

// NewFromEnv creates a new Config object from environment variables. A .env
// file in the working directory is loaded first when present.
func NewFromEnv() (*Config, error) {
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env")
	}

	cfg := &Config{
		GeminiAPIKey:          os.Getenv("GEMINI_API_KEY"),
		GeminiModel:           getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		OpenAICompatURL:       getEnv("OPENAI_COMPAT_URL", "https://api.groq.com/openai/v1/chat/completions"),
		OpenAICompatKey:       os.Getenv("OPENAI_COMPAT_KEY"),
		OpenAICompatModel:     getEnv("OPENAI_COMPAT_MODEL", "meta-llama/llama-4-scout-17b-16e-instruct"),
		GoogleCredentialsFile: os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),
		AWSRegion:             os.Getenv("AWS_REGION"),
		DatabasePath:          getEnv("DATABASE_PATH", "data/nutrition.db"),
		BarcodeCachePath:      getEnv("BARCODE_CACHE_PATH", "data/barcodes.json"),
		KnowledgeBasePath:     os.Getenv("KNOWLEDGE_BASE_PATH"),
		TelegramBotToken:      os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramWebhookURL:    os.Getenv("TELEGRAM_WEBHOOK_URL"),
		APIJWTSecret:          os.Getenv("API_JWT_SECRET"),
		Port:                  getEnv("PORT", "8080"),
		GenericEstimate:       nutrition.DefaultGenericEstimate,
	}

	var err error
	if cfg.FreeRequestsLimit, err = getInt("FREE_REQUESTS_LIMIT", 100); err != nil {
		return nil, err
	}
	if cfg.RetryMaxAttempts, err = getInt("RETRY_MAX_ATTEMPTS", 3); err != nil {
		return nil, err
	}
	if v := os.Getenv("ADMIN_TELEGRAM_ID"); v != "" {
		if cfg.AdminTelegramID, err = strconv.ParseInt(v, 10, 64); err != nil {
			return nil, fmt.Errorf("ADMIN_TELEGRAM_ID must be an integer: %w", err)
		}
	}
	if v := os.Getenv("GENERIC_ESTIMATE"); v != "" {
		if cfg.GenericEstimate, err = ParseMacros(v); err != nil {
			return nil, fmt.Errorf("invalid GENERIC_ESTIMATE: %w", err)
		}
	}

	if cfg.VisionProvider, err = visionProvider(cfg); err != nil {
		return nil, err
	}
	if cfg.CandidateProvider, err = candidateProvider(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ValidateBot checks the settings only the Telegram bot needs.
func (c *Config) ValidateBot() error {
	if c.TelegramBotToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN environment variable not set")
	}
	if c.TelegramWebhookURL == "" {
		return fmt.Errorf("TELEGRAM_WEBHOOK_URL environment variable not set")
	}
	return nil
}

// ParseMacros reads "kcal,proteins,fats,carbs".
func ParseMacros(s string) (nutrition.Macros, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nutrition.Macros{}, fmt.Errorf("expected 4 comma separated values, got %d", len(parts))
	}
	var vals [4]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil || v < 0 {
			return nutrition.Macros{}, fmt.Errorf("value %q is not a non-negative number", p)
		}
		vals[i] = v
	}
	return nutrition.Macros{Calories: vals[0], Proteins: vals[1], Fats: vals[2], Carbs: vals[3]}, nil
}

func visionProvider(cfg *Config) (string, error) {
	p := strings.ToLower(os.Getenv("VISION_PROVIDER"))
	switch p {
	case "":
		switch {
		case cfg.GeminiAPIKey != "":
			return VisionGemini, nil
		case cfg.OpenAICompatKey != "":
			return VisionOpenAI, nil
		}
		return ProviderNone, nil
	case VisionGemini:
		if cfg.GeminiAPIKey == "" {
			return "", fmt.Errorf("GEMINI_API_KEY environment variable not set")
		}
	case VisionOpenAI:
		if cfg.OpenAICompatKey == "" {
			return "", fmt.Errorf("OPENAI_COMPAT_KEY environment variable not set")
		}
	case ProviderNone:
	default:
		return "", fmt.Errorf("unknown VISION_PROVIDER %q", p)
	}
	return p, nil
}

func candidateProvider(cfg *Config) (string, error) {
	p := strings.ToLower(os.Getenv("CANDIDATE_PROVIDER"))
	switch p {
	case "":
		if cfg.GoogleCredentialsFile != "" {
			return CandidatesGoogle, nil
		}
		return ProviderNone, nil
	case CandidatesGoogle, CandidatesRekognition, ProviderNone:
		return p, nil
	}
	return "", fmt.Errorf("unknown CANDIDATE_PROVIDER %q", p)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer, got %q", key, v)
	}
	return n, nil
}
