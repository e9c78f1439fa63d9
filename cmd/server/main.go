package main // Entry point package

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/canteen-order-service/internal/auth"
	"github.com/iliyamo/canteen-order-service/internal/config"
	"github.com/iliyamo/canteen-order-service/internal/database"
	"github.com/iliyamo/canteen-order-service/internal/handler"
	"github.com/iliyamo/canteen-order-service/internal/logger"
	"github.com/iliyamo/canteen-order-service/internal/middleware"
	"github.com/iliyamo/canteen-order-service/internal/queue"
	"github.com/iliyamo/canteen-order-service/internal/repository"
	"github.com/iliyamo/canteen-order-service/internal/router"
	"github.com/iliyamo/canteen-order-service/internal/service"
	"github.com/iliyamo/canteen-order-service/internal/utils"
)

func main() {
	_ = godotenv.Load() // .env is optional; the process env wins

	zl, err := logger.Init(logger.ConfigFromEnv())
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		zl.Fatal("open database", zap.Error(err))
	}
	defer func() { _ = db.Close() }()
	if cfg.AutoMigrate {
		if err := database.ApplySchema(ctx, db); err != nil {
			zl.Fatal("apply schema", zap.Error(err))
		}
	}

	// Redis only backs the rate limiter; run without it when unreachable.
	var rdb *redis.Client
	if c, err := config.NewRedisClient(ctx); err != nil {
		zl.Warn("redis unavailable, rate limiting disabled", zap.Error(err))
	} else {
		rdb = c
		defer func() { _ = rdb.Close() }()
	}

	clk := clockwork.NewRealClock()
	operatorCfg := utils.OperatorTokenConfig{
		Secret:   []byte(cfg.OperatorSecret),
		Issuer:   cfg.OperatorIssuer,
		Audience: cfg.OperatorAudience,
		TTL:      cfg.OperatorTokenTTL,
	}

	// Repositories
	tx := repository.NewTxRunner(db)
	items := repository.NewMenuItemRepo(db)
	holds := repository.NewHoldRepo(db)
	orders := repository.NewOrderRepo(db)
	users := repository.NewUserRepo(db)
	canteens := repository.NewCanteenRepo(db)

	opts := []service.Option{
		service.WithClock(clk),
		service.WithHoldTTL(cfg.HoldTTL),
		service.WithCancelRestoresStock(cfg.CancelRestoresStock),
		service.WithLogger(zl),
	}

	// Lifecycle events go out through a buffered dispatcher so a slow
	// broker never holds up a request.
	var events *queue.Dispatcher
	consumerDone := make(chan struct{})
	if cfg.AMQPURL != "" {
		events = queue.NewDispatcher(queue.NewPublisher(cfg.AMQPURL, zl), 0, zl)
		opts = append(opts, service.WithEvents(events))

		eventLog, err := queue.NewEventLog(cfg.EventLogDir)
		if err != nil {
			zl.Fatal("open order event log", zap.Error(err))
		}
		go func() {
			defer close(consumerDone)
			defer func() { _ = eventLog.Close() }()
			if err := queue.NewConsumer(cfg.AMQPURL, eventLog, zl).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				zl.Error("order consumer stopped", zap.Error(err))
			}
		}()
	} else {
		close(consumerDone)
		zl.Info("AMQP_URL not set, lifecycle events disabled")
	}

	lifecycle := service.NewLifecycle(tx, items, holds, orders, opts...)
	pickup := service.NewPickup(orders, utils.NewQRSigner(cfg.QRSecret, cfg.QRMaxAge, clk))
	operatorAuth := service.NewOperatorAuth(canteens, operatorCfg, clk)

	keys := auth.NewKeyCache(cfg.UserKeysURL, &http.Client{Timeout: 10 * time.Second}, clk, zl)
	resolver := auth.NewResolver(operatorCfg, cfg.UserProjectID, keys, users, clk)

	sweeper := service.NewSweeper(lifecycle, cfg.SweepInterval, clk, zl)
	sweeper.Start(ctx)

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = handler.ErrorHandler(zl)
	e.Use(echomw.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLogger(zl))
	e.Use(middleware.Principal(resolver, zl, router.PublicPaths...))
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, zl))

	orderHandler := handler.NewOrderHandler(lifecycle, pickup, zl)
	router.RegisterRoutes(e, handler.NewAuthHandler(operatorAuth, zl))
	router.RegisterUser(e, orderHandler)
	router.RegisterAdmin(e, orderHandler)

	addr := ":" + cfg.Port
	go func() {
		zl.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zl.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		zl.Error("http shutdown", zap.Error(err))
	}
	sweeper.Stop()
	if events != nil {
		events.Close()
	}
	<-consumerDone
}
