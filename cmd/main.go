package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kkkkikiki/codecast/internal/config"
	"github.com/kkkkikiki/codecast/internal/database"
	"github.com/kkkkikiki/codecast/internal/dispatch"
	"github.com/kkkkikiki/codecast/internal/model"
	"github.com/kkkkikiki/codecast/internal/repository"
	"github.com/kkkkikiki/codecast/internal/scheduler"
	"github.com/kkkkikiki/codecast/internal/service"
	"github.com/kkkkikiki/codecast/internal/source"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load .env if present; real deployments use the environment directly
	_ = godotenv.Load()

	// Load configuration from environment variables
	cfg, err := config.Load(ctx)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Printf("Starting codecast in %s mode", cfg.App.Environment)

	// Initialize database connections
	db, err := database.NewDB(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("Error closing database connections: %v", err)
		}
	}()

	if err := db.EnsureSchema(ctx); err != nil {
		log.Fatalf("Failed to ensure schema: %v", err)
	}

	// Wire the discovery pipeline: sources -> store -> dispatcher
	seenRepo := repository.NewSeenCodeRepository(db.Postgres)
	destRepo := repository.NewDestinationRepository(db.Postgres)

	client := source.NewClient(cfg.Source.FetchTimeout, cfg.Source.RequestsPerSecond, cfg.Source.Burst)
	apiSource := source.NewStructuredAPISource(client, cfg.Source.APIBaseURL)
	wuwaSource := source.NewScrapedHTMLSource(client, cfg.Source.WuwaScrapeURL)
	sources := map[model.Game]service.Source{
		model.GameGenshin:  apiSource,
		model.GameStarRail: apiSource,
		model.GameZenless:  apiSource,
		model.GameWuwa:     wuwaSource,
	}

	notifier := dispatch.NewWebhookNotifier(cfg.Source.FetchTimeout)
	dispatcher := dispatch.NewDispatcher(notifier)

	discovery := service.NewDiscoveryService(seenRepo, destRepo, dispatcher, sources)

	sched := scheduler.New(discovery, cfg.Discovery.Interval, cfg.Discovery.StartupDelay, nil)
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	// Create HTTP mux
	mux := http.NewServeMux()

	// Register operator endpoints
	admin := service.NewAdmin(discovery, destRepo, seenRepo, sched, cfg.Server.AdminToken)
	admin.RegisterRoutes(mux)

	// Add health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		hostname, _ := os.Hostname()
		w.WriteHeader(http.StatusOK)
		response := fmt.Sprintf(`{"status":"ok","service":"codecast","hostname":"%s"}`, hostname)
		w.Write([]byte(response))
	})

	// Add database health check endpoint
	mux.HandleFunc("/health/db", func(w http.ResponseWriter, r *http.Request) {
		if err := db.Postgres.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"error","message":"postgres unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok","postgres":"connected"}`))
	})

	// Add Prometheus metrics endpoint
	mux.Handle("/metrics", promhttp.Handler())

	// Create server; h2c so we can serve HTTP/2 without TLS
	server := &http.Server{
		Addr:           cfg.Server.GetServerAddr(),
		ReadTimeout:    time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1MB
		Handler:        h2c.NewHandler(mux, &http2.Server{}),
	}

	// Start server in goroutine
	go func() {
		log.Printf("Starting codecast on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down...")

	cancel()
	if err := sched.Stop(); err != nil {
		log.Printf("Error stopping scheduler: %v", err)
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited gracefully")
}
