package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"campusevents/internal/config"
	"campusevents/internal/events"
	"campusevents/internal/queue"
	"campusevents/internal/store"
	"campusevents/internal/uploads"
)

// Worker removes image files queued for deletion and periodically sweeps
// uploads no event references.
func main() {
	cfg := config.Load()
	logger := cfg.Logger()
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		logger.Error("db connect failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	uploadStore := uploads.NewStore(cfg.UploadDir)
	repo := events.NewRepository(db)

	go sweepLoop(ctx, repo, uploadStore, cfg.OrphanGrace, cfg.SweepInterval, logger)

	if cfg.QueueBackend == "memory" {
		// an in-memory queue only exists inside the api process
		logger.Info("memory queue configured, running sweeps only")
		<-ctx.Done()
		logger.Info("worker stopped")
		return
	}

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()
	if !redisClient.Healthy(ctx) {
		logger.Warn("redis not reachable, will keep retrying", "addr", cfg.RedisAddr)
	}

	messages, err := queue.NewRedisQueue(redisClient.Client, queue.DefaultKey).Consume(ctx)
	if err != nil {
		logger.Error("queue consume init failed", "error", err)
		os.Exit(1)
	}

	logger.Info("worker started, waiting for messages")
	uploads.Consume(ctx, messages, uploadStore, logger)
	logger.Info("worker stopped")
}

// sweepLoop runs an orphan sweep now and then every interval until ctx ends.
func sweepLoop(ctx context.Context, repo *events.Repository, st *uploads.Store, grace, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		sweep(ctx, repo, st, grace, logger)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func sweep(ctx context.Context, repo *events.Repository, st *uploads.Store, grace time.Duration, logger *slog.Logger) {
	referenced, err := repo.EventImageURLs(ctx)
	if err != nil {
		logger.Error("orphan sweep: list images failed", "error", err)
		return
	}
	n, err := st.Sweep(ctx, referenced, grace)
	if err != nil {
		logger.Error("orphan sweep failed", "removed", n, "error", err)
		return
	}
	if n > 0 {
		logger.Info("orphan sweep removed files", "removed", n)
	}
}
