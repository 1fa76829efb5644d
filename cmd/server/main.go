package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/seat-inventory/internal/config"
	"github.com/iliyamo/seat-inventory/internal/database"
	"github.com/iliyamo/seat-inventory/internal/feed"
	"github.com/iliyamo/seat-inventory/internal/handler"
	"github.com/iliyamo/seat-inventory/internal/logger"
	"github.com/iliyamo/seat-inventory/internal/middleware"
	"github.com/iliyamo/seat-inventory/internal/queue"
	"github.com/iliyamo/seat-inventory/internal/repository"
	"github.com/iliyamo/seat-inventory/internal/router"
	"github.com/iliyamo/seat-inventory/internal/service"
)

func main() {
	// a missing .env is fine; the environment may already be set
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	zl, err := logger.New(cfg.Env)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	if err := run(cfg, zl); err != nil {
		zl.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, zl *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return err
	}
	defer db.Close()
	schemaCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	err = database.EnsureSchema(schemaCtx, db)
	cancel()
	if err != nil {
		return err
	}

	rdb, err := config.NewRedisClient(config.LoadRedisConfig())
	if err != nil {
		if cfg.InventoryBackend == config.BackendRedis {
			return err
		}
		zl.Warn("redis unavailable; live seats, cache and rate limiting disabled", zap.Error(err))
		rdb = nil
	}
	if rdb != nil {
		defer rdb.Close()
	}

	inventory := inventoryRepo(cfg, db, rdb)
	zl.Info("inventory store selected", zap.String("backend", cfg.InventoryBackend))

	var seatPub service.SeatPublisher
	var live handler.SeatSubscriber
	if rdb != nil {
		seatPub = feed.NewPublisher(rdb, cfg.FeedChannelPrefix)
		live = feed.NewHub(rdb, cfg.FeedChannelPrefix, inventory, zl.Named("feed"))
	}

	events := queue.NewPublisher(cfg.RabbitMQURL, zl.Named("amqp"))
	reservations := service.NewReservationService(inventory, seatPub, zl.Named("reserve"), cfg.ReserveTimeout)
	bookings := service.NewBookingService(repository.NewBookingRepo(db), repository.NewTicketIDGenerator(), events, zl.Named("booking"))
	checkout := service.NewCheckoutService(reservations, bookings, zl.Named("checkout"))

	showH := handler.NewShowHandler(reservations, live, zl)
	reserveH := handler.NewReservationHandler(reservations, checkout, zl)
	bookingH := handler.NewBookingHandler(bookings, zl)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.RequestID())
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(zl.Named("http")))

	router.RegisterRoutes(e, db, rdb)
	router.RegisterShows(e, showH, middleware.NewRedisCache(config.LoadCacheConfig(), rdb))
	router.RegisterPurchases(e, reserveH, bookingH, cfg.JWTSecret, middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, zl))
	router.RegisterCustomer(e, bookingH, cfg.JWTSecret)
	router.RegisterAdmin(e, showH, cfg.JWTSecret)

	go func() {
		if err := queue.StartBookingConsumer(ctx, cfg.RabbitMQURL, queue.AuditLogHandler(cfg.BookingAuditLog), zl.Named("consumer")); err != nil {
			zl.Warn("booking consumer stopped", zap.Error(err))
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		zl.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	zl.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func inventoryRepo(cfg config.Config, db *sql.DB, rdb *redis.Client) repository.InventoryRepository {
	if cfg.InventoryBackend == config.BackendRedis {
		return repository.NewRedisInventoryRepo(rdb, cfg.InventoryKeyPrefix, cfg.ReserveMaxRetries)
	}
	return repository.NewMySQLInventoryRepo(db, cfg.ReserveMaxRetries)
}
