// cmd/worker runs the dequeue -> lock -> upsert loop as its own
// process (spec §4.F), independent of the HTTP-facing server.
package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/ep-eaglepoint-ai/inventory-sync/internal/config"
	"github.com/ep-eaglepoint-ai/inventory-sync/internal/lock"
	"github.com/ep-eaglepoint-ai/inventory-sync/internal/queue"
	"github.com/ep-eaglepoint-ai/inventory-sync/internal/repository"
	"github.com/ep-eaglepoint-ai/inventory-sync/internal/worker"
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

	// One Redis client per subsystem (spec §5): queue, lock, and
	// dispatch-rate bucket each get their own connection so a blocking
	// command on one never stalls the others.
	queueRedis := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr()})
	defer queueRedis.Close()
	lockRedis := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr()})
	defer lockRedis.Close()
	limiterRedis := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr()})
	defer limiterRedis.Close()

	q := queue.NewManager(queueRedis)
	locks := lock.NewManager(lockRedis)
	limiter := queue.NewDispatchLimiter(limiterRedis)
	events := queue.NewEvents()

	w := worker.New(q, locks, repo, events, limiter)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go w.Run(ctx)
	log.Println("inventory-sync worker started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("shutting down worker...")
	cancel()
	w.Shutdown(time.Duration(cfg.ShutdownGracePeriodSeconds) * time.Second)
}
