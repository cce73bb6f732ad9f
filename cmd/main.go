package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/go_cart/storefront/internal/backend"
	c "github.com/fjod/go_cart/storefront/internal/cache"
	"github.com/fjod/go_cart/storefront/internal/config"
	h "github.com/fjod/go_cart/storefront/internal/http"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/fjod/go_cart/storefront/internal/orders"
	"github.com/fjod/go_cart/storefront/internal/poller"
	"github.com/fjod/go_cart/storefront/internal/repository"
	s "github.com/fjod/go_cart/storefront/internal/service"
	"github.com/fjod/go_cart/storefront/internal/session"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	zap.ReplaceGlobals(log)

	if err := run(cfg, log); err != nil {
		log.Fatal("storefront stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx := context.Background()

	// Set up MongoDB connection
	mongoDB, err := repository.ConnectMongoDB(ctx, repository.MongoConfig{
		URI:         cfg.MongoURI,
		Database:    cfg.MongoDatabase,
		MaxPoolSize: cfg.MongoMaxPool,
	})
	if err != nil {
		return fmt.Errorf("connect to MongoDB: %w", err)
	}
	defer mongoDB.Client().Disconnect(context.Background())
	repo := repository.NewMongoRepository(mongoDB)
	log.Info("connected to MongoDB", zap.String("database", cfg.MongoDatabase))

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}
	log.Info("redis ping succeeded", zap.String("addr", cfg.RedisAddr))

	var receipts orders.ReceiptStore
	if cfg.Postgres != nil {
		ordersRepo, err := orders.NewRepository(ctx, cfg.Postgres)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		defer ordersRepo.Close()
		if err := ordersRepo.RunMigrations(); err != nil {
			return err
		}
		receipts = ordersRepo
		log.Info("connected to postgres", zap.String("host", cfg.Postgres.Host))
	} else {
		log.Warn("POSTGRES_HOST not set, order history disabled")
	}

	cache := c.NewRedisCache(redisClient, cfg.CacheTTL)
	sessions := session.NewManager(s.NewCartStore(repo, cache, log), log)
	backendClient := backend.NewClient(cfg.Backend, log)
	service := s.NewStorefrontService(backendClient, sessions, receipts, log)

	pollCtx, stopPolling := context.WithCancel(ctx)
	defer stopPolling()
	go sessions.RunEviction(pollCtx, cfg.SessionEvictInterval, cfg.SessionIdleTimeout)
	if len(cfg.KafkaBrokers) > 0 {
		p := poller.NewPoller(poller.Config{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
			GroupID: cfg.KafkaGroupID,
		}, sessions, log)
		defer p.Close()
		go p.Run(pollCtx)
		log.Info("consuming order events", zap.String("topic", cfg.KafkaTopic))
	}

	srv := &http.Server{
		Addr: ":" + cfg.HTTPPort,
		Handler: h.NewRouter(service, h.RouterConfig{
			JWTSecret:          cfg.JWTSecret,
			RequestTimeout:     cfg.RequestTimeout,
			MaxRequestBodySize: cfg.MaxRequestBodySize,
		}, log),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("storefront starting", zap.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		log.Info("shutting down server", zap.String("signal", sig.String()))
	case err := <-serveErr:
		return fmt.Errorf("server error: %w", err)
	}

	stopPolling()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("server exited")
	return nil
}
