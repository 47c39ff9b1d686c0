package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/eventsphere/internal/config"
	"github.com/iliyamo/eventsphere/internal/database"
	"github.com/iliyamo/eventsphere/internal/handler"
	"github.com/iliyamo/eventsphere/internal/logger"
	"github.com/iliyamo/eventsphere/internal/middleware"
	"github.com/iliyamo/eventsphere/internal/monitoring"
	"github.com/iliyamo/eventsphere/internal/notification"
	"github.com/iliyamo/eventsphere/internal/presence"
	"github.com/iliyamo/eventsphere/internal/realtime"
	"github.com/iliyamo/eventsphere/internal/repository"
	"github.com/iliyamo/eventsphere/internal/router"
	"github.com/iliyamo/eventsphere/internal/ticket"
	"github.com/iliyamo/eventsphere/internal/utils"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg := config.Load() // Load environment config

	log, err := logger.New(cfg.Env)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := monitoring.NewMetrics(reg)

	// MySQL
	db, err := database.Open(ctx, database.Options{
		User: cfg.DBUser, Pass: cfg.DBPass, Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName,
	})
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	if err := database.EnsureSchema(ctx, db); err != nil {
		return err
	}
	events := repository.NewEventRepo(db)
	tickets := repository.NewTicketRepo(db)

	// Redis is optional: without it presence is per-instance and the
	// limiter and cache are disabled.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Warn("redis unavailable; presence is in-process, rate limiting and caching are off")
	} else {
		defer func() { _ = rdb.Close() }()
	}

	// Realtime
	rtCfg := config.LoadRealtimeConfig()
	var store presence.SetStore = presence.NewMemoryStore()
	if rdb != nil {
		store = presence.NewRedisStore(rdb)
	}
	tracker := presence.NewTracker(store, rtCfg.RefCount)
	hub := realtime.NewHub(log, metrics)
	var emitter realtime.Emitter = hub
	var relay *realtime.RedisRelay
	if rdb != nil {
		relay = realtime.NewRedisRelay(rdb, rtCfg.RelayChannel, hub, log)
		emitter = relay
	}
	gateway := realtime.NewGateway(hub, emitter, tracker, utils.NewJWTVerifier(cfg.JWTSecret), rtCfg, log, metrics)

	// Notifications
	qCfg := config.LoadQueueConfig()
	broker := notification.NewBroker(qCfg, log)
	defer func() { _ = broker.Close() }()
	queue := notification.NewQueue(broker, qCfg, log, metrics)
	worker := notification.NewWorker(qCfg, broker, log, metrics)
	worker.Handle(notification.JobTicketPurchased,
		notification.NewTicketPurchasedProcessor(notification.NewLogMailer(log), gateway, log).Handle)

	// Purchases
	purchases := ticket.NewService(events, tickets,
		ticket.NewSimulatedGateway(config.LoadPaymentConfig()), queue, log, metrics)

	// HTTP
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handler.ErrorHandler(log)
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogRequestID: true,
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("request_id", v.RequestID),
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
			}
			log.Info("request", fields...)
			return nil
		},
	}))

	router.RegisterRoutes(e, reg)
	router.RegisterPublic(e, handler.NewEventHandler(events), handler.NewRealtimeHandler(gateway),
		middleware.NewRedisCache(config.LoadCacheConfig(), rdb, log))
	router.RegisterTickets(e, handler.NewTicketHandler(purchases), cfg.JWTSecret,
		middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log))
	router.RegisterRealtime(e, gateway.ServeWS)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addr := ":" + cfg.Port
		log.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error { return worker.Run(gctx) })
	if relay != nil {
		g.Go(func() error { return relay.Run(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		gateway.Shutdown()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return e.Shutdown(sctx)
	})
	return g.Wait()
}
