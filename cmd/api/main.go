package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"campusevents/internal/auth"
	"campusevents/internal/config"
	"campusevents/internal/events"
	"campusevents/internal/httpmiddleware"
	"campusevents/internal/metrics"
	"campusevents/internal/queue"
	"campusevents/internal/seed"
	"campusevents/internal/store"
	"campusevents/internal/uploads"
	"campusevents/internal/web"
)

func main() {
	cfg := config.Load()
	logger := cfg.Logger()
	slog.SetDefault(logger)

	// Set Gin mode based on environment
	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg, logger); err != nil {
		logger.Error("http server failed", "error", err)
		os.Exit(1)
	}
}

func runHTTP(cfg config.App, logger *slog.Logger) error {
	db, err := store.NewDB(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return err
	}

	var redisClient *store.Redis
	if cfg.SessionBackend == "redis" || (cfg.CleanupMode == "queue" && cfg.QueueBackend != "memory") {
		redisClient = store.NewRedis(cfg.RedisAddr)
		defer redisClient.Close()
		if !redisClient.Healthy(context.Background()) {
			logger.Warn("redis not reachable at startup", "addr", cfg.RedisAddr)
		}
	}

	var sessionStore auth.SessionStore
	if cfg.SessionBackend == "redis" {
		sessionStore = auth.NewRedisSessions(redisClient.Client, "", cfg.SessionTTL)
	} else {
		sessionStore = auth.NewMemorySessions(cfg.SessionTTL)
	}

	uploadStore := uploads.NewStore(cfg.UploadDir)
	var cleaner events.ImageCleaner = uploadStore
	if cfg.CleanupMode == "queue" {
		var q queue.Queue
		if cfg.QueueBackend == "memory" {
			// in-process queue: consume it here since no worker can see it
			mq := queue.NewInMemory(64)
			msgs, _ := mq.Consume(context.Background())
			go uploads.Consume(context.Background(), msgs, uploadStore, logger)
			q = mq
		} else {
			q = queue.NewRedisQueue(redisClient.Client, queue.DefaultKey)
		}
		cleaner = uploads.NewQueuedCleaner(q)
	}
	logger.Info("image cleanup configured", "mode", cfg.CleanupMode, "upload_dir", cfg.UploadDir)

	users := auth.NewRepository(db)
	svc := events.NewService(events.NewRepository(db), cleaner, events.WithLogger(logger))

	if cfg.SeedOnStart {
		if err := seed.Run(context.Background(), users, svc, cfg.AdminPassword, time.Now(), logger); err != nil {
			return err
		}
	}

	srv := web.NewServer(web.Deps{
		Gate:           auth.NewGate(users, logger),
		Sessions:       auth.NewSessions(sessionStore, cfg.SessionKey, cfg.SessionIssuer, cfg.CookieSecure, logger),
		Events:         svc,
		Uploads:        uploadStore,
		DB:             db,
		Log:            logger,
		MaxUploadBytes: int64(cfg.MaxUploadMB) << 20,
		LoginLimiter:   httpmiddleware.NewSimpleTokenBucket(cfg.LoginRatePerMin, cfg.LoginRatePerMin).GinMiddleware(),
	})

	r := gin.New()
	r.MaxMultipartMemory = int64(cfg.MaxUploadMB) << 20
	r.Use(web.Recovery(logger))
	r.Use(httpmiddleware.RequestLogger(logger, "/healthz", "/metrics"))
	r.Use(corsMiddleware(cfg.CORSOrigins))
	r.Use(httpmiddleware.SecurityHeaders())
	r.Use(httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())
	r.Use(metrics.GinMiddleware())
	srv.Register(r)

	// Graceful shutdown
	httpSrv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "port", cfg.HTTPPort, "db_driver", cfg.DBDriver, "sessions", cfg.SessionBackend)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}
	logger.Info("shutting down server")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced shutdown", "error", err)
	}

	logger.Info("server exited")
	return nil
}

// corsMiddleware allows the configured origins with credentials. With none
// configured any origin may read, without cookies.
func corsMiddleware(origins []string) gin.HandlerFunc {
	if len(origins) == 0 {
		return cors.Default()
	}
	return cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		AllowCredentials: true,
		MaxAge:           24 * time.Hour,
	})
}
