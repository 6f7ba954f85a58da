package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"hotelbooking/internal/config"
	"hotelbooking/internal/database"
	"hotelbooking/internal/events"
	"hotelbooking/internal/modules/booking"
	"hotelbooking/internal/modules/sweeper"
	"hotelbooking/internal/pkg/logger"
	"hotelbooking/internal/repository"

	"github.com/redis/go-redis/v9"
)

// One-shot auto-checkout sweep, meant for cron. Shares the scheduler lock with running API instances.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	appLogger := logger.NewZapLogger(cfg.LogFile, cfg.IsProd())
	defer appLogger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(cfg.DatabaseURL, appLogger)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("REDIS_URL: %v", err)
		}
		rdb = redis.NewClient(opts)
		defer rdb.Close()
	}

	store := repository.NewStore(db)
	// No subscribers run in this process, so events are dropped.
	bookings := booking.NewService(store, events.Discard{}, appLogger).WithLocation(cfg.Location)
	svc := sweeper.NewService(store, bookings, appLogger)

	res, ran, err := sweeper.NewScheduler(svc, rdb, cfg.AutoCheckoutInterval, appLogger).RunOnce(ctx)
	if err != nil {
		log.Fatalf("auto checkout failed: %v", err)
	}
	if !ran {
		log.Printf("auto checkout skipped: another instance holds the lock")
		return
	}
	log.Printf("auto checkout completed: processed=%d failed=%d skipped=%d", res.Processed, res.Failed, res.Skipped)
}
