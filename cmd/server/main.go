package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	gormlogger "gorm.io/gorm/logger"

	"github.com/codyseavey/card-vault/internal/api"
	"github.com/codyseavey/card-vault/internal/config"
	"github.com/codyseavey/card-vault/internal/database"
	"github.com/codyseavey/card-vault/internal/forecast"
	"github.com/codyseavey/card-vault/internal/logger"
	"github.com/codyseavey/card-vault/internal/services"
)

func main() {
	// .env is optional; real environment variables win
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Failed to load .env: %v", err)
	}

	cfg := config.Load()
	logger.SetupDefault(os.Stdout, logger.ParseLevel(cfg.LogLevel))

	// Initialize database
	db, err := database.Open(cfg.DBPath, gormlogger.Warn)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	cardRepo := database.NewCardRepository(db)
	displayCaseRepo := database.NewDisplayCaseRepository(db)
	snapshotRepo := database.NewSnapshotRepository(db)

	// Initialize services
	sanitizer := services.NewTextSanitizer()
	imageStorageService := services.NewImageStorageService(cfg.ImageStorageDir)
	displayCaseService := services.NewDisplayCaseService(cardRepo, displayCaseRepo, sanitizer, cfg.DisplayCaseTTL, cfg.ShareBaseURL)
	collectionService := services.NewCollectionService(cardRepo, displayCaseService, imageStorageService, sanitizer)

	var saleSource services.SaleSource
	if cfg.SalesConfigured() {
		source, err := services.NewSaleSource(cfg.SalesSource, cfg.SalesAPIURL, cfg.SalesRSSURL, services.SaleSourceConfig{
			APIKey:        cfg.SalesAPIKey,
			RatePerMinute: cfg.SalesRatePerMinute,
			CacheTTL:      cfg.SalesCacheTTL,
		}, sanitizer)
		if err != nil {
			log.Fatalf("Failed to initialize sale source: %v", err)
		}
		saleSource = source
		slog.Info("sale source configured", "source", cfg.SalesSource)
	} else {
		slog.Warn("no sale source configured: market search and price updates are disabled")
	}

	forecastOpts := forecast.Options{Timeout: cfg.ForecastTimeout, Seed: cfg.ForecastSeed}
	if cfg.PlayerStatsFile != "" {
		table, err := forecast.LoadStatsTable(cfg.PlayerStatsFile)
		if err != nil {
			log.Printf("Failed to load player stats, forecasts use a neutral market factor: %v", err)
		} else {
			forecastOpts.Stats = table
			log.Printf("Loaded stats for %d players", len(table))
		}
	}
	marketService := services.NewMarketService(saleSource, forecast.New(forecastOpts), cfg.AnalysisCacheSize, cfg.SalesCacheTTL)

	// Initialize snapshot service for daily value tracking
	snapshotService := services.NewSnapshotService(snapshotRepo, cardRepo, cardRepo, displayCaseService)

	// Create a cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var priceWorker *services.PriceWorker
	if saleSource != nil {
		priceWorker = services.NewPriceWorker(cardRepo, saleSource, displayCaseService, db, cfg.PriceUpdateInterval, cfg.PriceBatchSize)

		// Start price worker in background with panic recovery
		go func() {
			for {
				func() {
					defer func() {
						if r := recover(); r != nil {
							log.Printf("PANIC in price worker: %v - restarting in 30 seconds", r)
						}
					}()
					priceWorker.Start(ctx)
				}()

				select {
				case <-ctx.Done():
					return // Graceful shutdown
				case <-time.After(30 * time.Second):
					log.Println("Price worker restarting after panic recovery...")
				}
			}
		}()
	}

	// Start snapshot service in background
	go snapshotService.Start(ctx)

	router := api.SetupRouter(cfg, api.Services{
		Collection:   collectionService,
		DisplayCases: displayCaseService,
		Market:       marketService,
		PriceWorker:  priceWorker,
		Snapshots:    snapshotService,
		Images:       imageStorageService,
	})

	// Create HTTP server for graceful shutdown
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("Starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Cancel the context to stop the background workers
	cancel()

	// Give outstanding requests a deadline to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
