package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Freeeeeet/class_scheduler/internal/app"
	"github.com/Freeeeeet/class_scheduler/internal/auth"
	"github.com/Freeeeeet/class_scheduler/internal/config"
	"github.com/Freeeeeet/class_scheduler/internal/controller"
	"github.com/Freeeeeet/class_scheduler/internal/controller/handlers"
	"github.com/Freeeeeet/class_scheduler/internal/controller/socket"
	"github.com/Freeeeeet/class_scheduler/internal/metrics"
	"github.com/Freeeeeet/class_scheduler/internal/notify"
	"github.com/Freeeeeet/class_scheduler/internal/pubsub"
	"github.com/Freeeeeet/class_scheduler/internal/repository"
	"github.com/Freeeeeet/class_scheduler/internal/repository/memory"
	"github.com/Freeeeeet/class_scheduler/internal/service"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := app.NewLogger(cfg.Environment, cfg.LogLevel)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("Server stopped with error", zap.Error(err))
	}
	logger.Info("Server exited")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("Starting class scheduler",
		zap.String("environment", cfg.Environment),
		zap.String("storage", cfg.Storage),
		zap.Bool("redis", cfg.RedisEnabled()),
		zap.Bool("telegram", cfg.TelegramEnabled()),
	)

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	m := metrics.New()
	hub := socket.NewHub(m, logger)

	var publisher service.Publisher = hub
	var subscriber *pubsub.Subscriber
	if cfg.RedisEnabled() {
		client, err := pubsub.NewClient(cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			return err
		}
		defer client.Close()

		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		publisher = pubsub.NewRedisPublisher(client, cfg.RedisChannel, m)
		subscriber = pubsub.NewSubscriber(client, cfg.RedisChannel, hub, logger)
	}

	var notifier service.Notifier = notify.Nop{}
	if cfg.TelegramEnabled() {
		tg, err := notify.NewTelegram(cfg.TelegramToken, cfg.TelegramTeacherChatID, logger)
		if err != nil {
			return err
		}
		notifier = tg
	}

	broadcaster := service.NewBroadcaster(store, publisher, logger)
	slotService := service.NewSlotService(store, broadcaster, notifier, logger, cfg.RejectOverlappingSlots)
	requestService := service.NewRequestService(store, broadcaster, notifier, logger)
	authService := service.NewAuthService(store.Users(), auth.NewManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL), logger)

	router := socket.NewRouter(slotService, requestService, broadcaster, m, logger, cfg.CommandTimeout)
	socketHandler := socket.NewHandler(hub, router, authService, cfg.CORSOrigins, logger)
	server := controller.NewServer(handlers.NewHandlers(authService, store, logger), socketHandler, m.Handler(), cfg.CORSOrigins, logger)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		hub.Close()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		return app.NewScheduler(requestService, cfg.SweepInterval, logger).Run(gctx)
	})

	if subscriber != nil {
		g.Go(func() error {
			return subscriber.Run(gctx)
		})
	}

	return g.Wait()
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.Store, func(), error) {
	if cfg.Storage == config.StorageMemory {
		logger.Warn("Using in-memory storage, data is lost on restart")
		return memory.New(), func() {}, nil
	}

	pool, err := pgxpool.New(ctx, cfg.DBDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping database: %w", err)
	}

	migrator, err := app.NewMigrator(pool, logger)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	defer migrator.Close()

	if err := migrator.Run(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}

	return repository.NewPgStore(pool), pool.Close, nil
}
