// Package app assembles the HTTP service from its modules. cmd/api and the end-to-end
// tests build the same router through New.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"hotelbooking/internal/config"
	"hotelbooking/internal/events"
	"hotelbooking/internal/gateway"
	"hotelbooking/internal/middleware"
	"hotelbooking/internal/modules/booking"
	notificationmodule "hotelbooking/internal/modules/notification"
	"hotelbooking/internal/modules/payment"
	"hotelbooking/internal/modules/reconciliation"
	"hotelbooking/internal/modules/refund"
	"hotelbooking/internal/modules/room"
	"hotelbooking/internal/modules/sweeper"
	"hotelbooking/internal/modules/webhook"
	"hotelbooking/internal/notification"
	jwtsvc "hotelbooking/internal/pkg/jwt"
	"hotelbooking/internal/pkg/logger"
	"hotelbooking/internal/realtime"
	"hotelbooking/internal/repository"
	"hotelbooking/internal/tracer"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options carries the infrastructure New wires together. Redis, Mail and Stream are optional.
// Gateway defaults to the provider named in Config. Clock is for tests.
type Options struct {
	Config  *config.Config
	DB      *gorm.DB
	Redis   *redis.Client
	Gateway gateway.Gateway
	Mail    notification.Sender
	Stream  notification.EventPublisher
	Logger  logger.ILogger
	Clock   func() time.Time
}

type App struct {
	Router *gin.Engine
	Bus    *events.Bus
	Hub    *realtime.Hub
	JWT    *jwtsvc.Service

	Bookings  *booking.Service
	Payments  *payment.Service
	Refunds   *refund.Service
	Rooms     *room.Service
	Reports   *reconciliation.Service
	Sweeper   *sweeper.Service
	Scheduler *sweeper.Scheduler

	cfg   *config.Config
	sqlDB *sql.DB
	rdb   *redis.Client
	log   logger.ILogger
}

// New builds services and routes and subscribes notifications and the realtime hub to the
// event bus for the lifetime of ctx.
func New(ctx context.Context, opts Options) (*App, error) {
	cfg, log := opts.Config, opts.Logger
	if log == nil {
		log = logger.NewNop()
	}
	sqlDB, err := opts.DB.DB()
	if err != nil {
		return nil, fmt.Errorf("sql DB: %w", err)
	}

	gw, parser := newGateway(cfg, opts.Gateway)
	store := repository.NewStore(opts.DB)
	bus := events.NewBus(log)

	bookings := booking.NewService(store, bus, log).WithLocation(cfg.Location)
	payments := payment.NewService(store, gw, bookings, bus, log)
	refunds := refund.NewService(store, gw, bookings, bus, log)
	rooms := room.NewService(store, bus, log).WithLocation(cfg.Location)
	reports := reconciliation.NewService(store, log)
	sweep := sweeper.NewService(store, bookings, log)
	if opts.Clock != nil {
		bookings.WithClock(opts.Clock)
		payments.WithClock(opts.Clock)
		refunds.WithClock(opts.Clock)
		rooms.WithClock(opts.Clock)
		sweep.WithClock(opts.Clock)
	}
	reconciler := webhook.NewReconciler(store, payments, refunds, log)

	inbox := notification.NewInbox(opts.DB)
	dispatcher := notification.NewDispatcher(inbox, opts.Mail, cfg.SMTP.OpsEmail, opts.Stream, log)
	if err := dispatcher.Subscribe(ctx, bus); err != nil {
		return nil, fmt.Errorf("subscribe notifications: %w", err)
	}
	hub := realtime.NewHub(opts.Redis, log)
	if err := bus.Subscribe(ctx, "realtime", hub.Handle); err != nil {
		return nil, fmt.Errorf("subscribe realtime: %w", err)
	}

	a := &App{
		Bus:       bus,
		Hub:       hub,
		JWT:       jwtsvc.New(cfg.JWTSecret, cfg.JWTAccessTTL),
		Bookings:  bookings,
		Payments:  payments,
		Refunds:   refunds,
		Rooms:     rooms,
		Reports:   reports,
		Sweeper:   sweep,
		Scheduler: sweeper.NewScheduler(sweep, opts.Redis, cfg.AutoCheckoutInterval, log),
		cfg:       cfg,
		sqlDB:     sqlDB,
		rdb:       opts.Redis,
		log:       log,
	}

	if cfg.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins))
	r.Use(tracer.Middleware())

	r.GET("/health", a.health)

	// Gateway callbacks authenticate by signature, the status socket by token query param.
	webhook.NewHandler(parser, reconciler, log).RegisterRoutes(r)
	realtime.NewHandler(hub, a.JWT, cfg.CORSAllowedOrigins).RegisterRoutes(r)

	v1 := r.Group("/api/v1")
	v1.Use(middleware.JWTAuth(a.JWT))
	{
		room.NewHandler(rooms).RegisterRoutes(v1)
		booking.NewHandler(bookings).RegisterRoutes(v1)
		payment.NewHandler(payments).RegisterRoutes(v1)
		refund.NewHandler(refunds).RegisterRoutes(v1)
		reconciliation.NewHandler(reports).RegisterRoutes(v1)
		sweeper.NewHandler(sweep).RegisterRoutes(v1)
		notificationmodule.NewHandler(inbox).RegisterRoutes(v1)
	}

	a.Router = r
	return a, nil
}

// Start runs the background loops: cross-instance status fan-out and, when enabled,
// the auto-checkout ticker. Both stop with ctx.
func (a *App) Start(ctx context.Context) {
	go a.Hub.Run(ctx)
	if a.cfg.AutoCheckoutEnabled {
		go a.Scheduler.Run(ctx)
	}
}

func (a *App) Close() {
	a.Hub.Close()
	if err := a.Bus.Close(); err != nil {
		a.log.Warn("app", "Event bus close failed", map[string]interface{}{"error": err.Error()})
	}
}

func newGateway(cfg *config.Config, gw gateway.Gateway) (gateway.Gateway, webhook.Parser) {
	var parser webhook.Parser = webhook.HMACParser{Secret: cfg.Gateway.WebhookSecret}
	if cfg.Gateway.Provider == "midtrans" {
		parser = webhook.MidtransParser{ServerKey: cfg.Gateway.ServerKey}
	}
	if gw == nil {
		if cfg.Gateway.Provider == "midtrans" {
			gw = gateway.NewMidtrans(cfg.Gateway.ServerKey, cfg.Gateway.IsProduction)
		} else {
			gw = gateway.NewFake()
		}
	}
	return gateway.WithTimeout(gw, cfg.Gateway.Timeout), parser
}

func (a *App) health(c *gin.Context) {
	checks := gin.H{"database": "ok"}
	status := http.StatusOK
	if err := a.sqlDB.PingContext(c.Request.Context()); err != nil {
		checks["database"] = err.Error()
		status = http.StatusServiceUnavailable
	}
	if a.rdb != nil {
		checks["redis"] = "ok"
		if err := a.rdb.Ping(c.Request.Context()).Err(); err != nil {
			checks["redis"] = err.Error()
		}
	}
	c.JSON(status, gin.H{"status": http.StatusText(status), "checks": checks, "online": a.Hub.OnlineCount()})
}
