package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nutrition-bot/internal/api"
	"nutrition-bot/internal/app"
	"nutrition-bot/internal/config"
	"nutrition-bot/internal/telegram"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.ValidateBot(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// 2. Initialize storage, recognition providers and the app
	services, err := app.Build(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize services: %v", err)
	}
	defer services.Close()

	// 3. Initialize Telegram Bot
	sessions := telegram.NewSessionRepository(services.DB.SQL)
	bot, err := telegram.NewBot(cfg, services.App, sessions)
	if err != nil {
		log.Fatalf("Failed to initialize Telegram Bot: %v", err)
	}
	go bot.RunSessionJanitor(ctx, 10*time.Minute)

	// 4. Start Server with Graceful Shutdown
	mux := http.NewServeMux()
	bot.RegisterHandlers(mux)
	if cfg.APIJWTSecret != "" {
		api.NewServer(services.App, []byte(cfg.APIJWTSecret)).RegisterHandlers(mux)
		log.Println("HTTP API enabled under /api/v1")
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: mux,
	}

	go func() {
		log.Printf("Telegram Bot Server listening on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")
	stop()

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting")
}
