package database

import (
	"strings"

	"hotelbooking/internal/domain"
	"hotelbooking/internal/pkg/logger"

	"gorm.io/driver/postgres"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

func Connect(dsn string, log logger.ILogger) (*gorm.DB, error) {
	cfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)}

	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		log.Info("database", "Connecting to PostgreSQL", nil)
		return gorm.Open(postgres.Open(dsn), cfg)
	}

	log.Info("database", "Using SQLite", map[string]interface{}{"dsn": dsn})

	return gorm.Open(
		gormsqlite.New(gormsqlite.Config{
			DriverName: "sqlite",
			DSN:        dsn,
		}),
		cfg,
	)
}

// Models lists every table owned by the service, in dependency order.
func Models() []any {
	return []any{
		&domain.Room{},
		&domain.Booking{},
		&domain.Payment{},
		&domain.Refund{},
		&domain.WebhookEvent{},
		&domain.Notification{},
	}
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}
