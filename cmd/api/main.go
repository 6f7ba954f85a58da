package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"hotelbooking/internal/app"
	"hotelbooking/internal/config"
	"hotelbooking/internal/database"
	"hotelbooking/internal/notification"
	"hotelbooking/internal/pkg/logger"
	"hotelbooking/internal/tracer"

	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	appLogger := logger.NewZapLogger(cfg.LogFile, cfg.IsProd())
	defer appLogger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer := tracer.InitTracer(ctx, cfg.OtelEnabled, cfg.OtelEndpoint, appLogger)

	db, err := database.Connect(cfg.DatabaseURL, appLogger)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	opts := app.Options{Config: cfg, DB: db, Logger: appLogger}

	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("REDIS_URL: %v", err)
		}
		rdb := redis.NewClient(redisOpts)
		defer rdb.Close()
		opts.Redis = rdb
	}

	if cfg.SMTP.Host != "" {
		opts.Mail = notification.NewMailer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From)
	}
	if cfg.NatsURL != "" {
		stream, err := notification.NewStream(cfg.NatsURL)
		if err != nil {
			appLogger.Warn("main", "NATS unavailable, event stream disabled", map[string]interface{}{"error": err.Error()})
		} else {
			defer stream.Close()
			opts.Stream = stream
		}
	}

	a, err := app.New(ctx, opts)
	if err != nil {
		log.Fatalf("app: %v", err)
	}
	defer a.Close()
	a.Start(ctx)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		appLogger.Info("main", "HTTP server listening", map[string]interface{}{"addr": srv.Addr, "env": cfg.AppEnv})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http: %v", err)
		}
	}()

	<-ctx.Done()
	appLogger.Info("main", "Shutting down", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("main", "HTTP shutdown failed", map[string]interface{}{"error": err.Error()})
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		appLogger.Warn("main", "Tracer shutdown failed", map[string]interface{}{"error": err.Error()})
	}
}
