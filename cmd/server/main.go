// cmd/server runs the HTTP surface: the webhook receiver, the
// Marketplace B poller, and the read-side inventory/audit API.
// Wiring style follows the teacher's cmd/main.go composition.
package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/ep-eaglepoint-ai/inventory-sync/internal/config"
	"github.com/ep-eaglepoint-ai/inventory-sync/internal/httpapi"
	"github.com/ep-eaglepoint-ai/inventory-sync/internal/ingestion"
	"github.com/ep-eaglepoint-ai/inventory-sync/internal/queue"
	"github.com/ep-eaglepoint-ai/inventory-sync/internal/repository"
)

func main() {
	cfg := config.Load()

	db, err := sql.Open("postgres", cfg.PostgresDSN())
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(20)
	db.SetConnMaxIdleTime(30 * time.Second)

	if err := db.Ping(); err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	repo := repository.NewPostgresRepository(db)
	if err := repo.InitSchema(); err != nil {
		log.Fatalf("failed to initialize schema: %v", err)
	}

	// One Redis client per subsystem (spec §5): queue and cursor
	// storage each get their own connection so a blocking command on
	// one never stalls the other.
	queueRedis := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr()})
	defer queueRedis.Close()
	cursorRedis := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr()})
	defer cursorRedis.Close()

	q := queue.NewManager(queueRedis)
	poller := ingestion.NewPoller(cfg.MarketplaceBAPI, cfg.MarketplaceBAPIKey, cursorRedis, q)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := poller.Start(ctx); err != nil {
		log.Fatalf("failed to start poller: %v", err)
	}
	defer poller.Stop()

	webhookHandler := ingestion.NewWebhookHandler(cfg.MarketplaceASecret, q)
	apiHandler := httpapi.NewHandler(repo, q, poller)

	router := mux.NewRouter()
	router.Handle("/webhooks/marketplace-a", webhookHandler).Methods(http.MethodPost)
	apiHandler.RegisterRoutes(router)
	router.Use(httpapi.LoggingMiddleware)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("inventory-sync server starting on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownGracePeriodSeconds)*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}
