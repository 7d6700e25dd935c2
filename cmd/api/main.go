// @title                       FarmConnect Marketplace API
// @version                     1.0
// @description                 Marketplace connecting farmers selling produce with consumers placing orders.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
// @description                 Type "Bearer" followed by a space and the session token.
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	_ "github.com/farmconnect/marketplace-api/docs"
	"github.com/farmconnect/marketplace-api/internal/api"
	"github.com/farmconnect/marketplace-api/internal/api/handler"
	"github.com/farmconnect/marketplace-api/internal/core/ports"
	"github.com/farmconnect/marketplace-api/internal/core/service"
	mongostore "github.com/farmconnect/marketplace-api/internal/infrastructure/db/mongo"
	redisstore "github.com/farmconnect/marketplace-api/internal/infrastructure/db/redis"
	"github.com/farmconnect/marketplace-api/internal/infrastructure/queue"
	"github.com/farmconnect/marketplace-api/internal/infrastructure/storage"
	"github.com/farmconnect/marketplace-api/internal/pkg/config"
	"github.com/farmconnect/marketplace-api/pkg/logger"
)

func main() {
	cfg := config.Load()
	log := logger.Init(logger.OptionsForEnv(cfg.Env, cfg.LogLevel, "farmconnect-api"))

	if !cfg.IsDevelopment() && !cfg.Auth.CookieSecure {
		log.Warn().Msg("COOKIE_SECURE is off outside development")
	}

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped with error")
	}
	log.Info().Msg("server stopped")
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Infrastructure ---
	client, db, err := mongostore.Connect(ctx, mongostore.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Disconnect(context.WithoutCancel(ctx)); err != nil {
			log.Error().Err(err).Msg("mongo disconnect")
		}
	}()
	if err := mongostore.EnsureIndexes(ctx, db); err != nil {
		return err
	}

	rdb, err := redisstore.Connect(ctx, redisstore.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Error().Err(err).Msg("redis close")
		}
	}()

	var images ports.ImageStore
	if cfg.StorageEnabled() {
		store, err := storage.NewS3ImageStore(ctx, storage.Config{
			Bucket:    cfg.Storage.Bucket,
			Region:    cfg.Storage.Region,
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			PublicURL: cfg.Storage.PublicURL,
		})
		if err != nil {
			return err
		}
		images = store
	} else {
		log.Warn().Msg("S3_BUCKET not set, product image uploads disabled")
	}

	// --- Repositories ---
	users := mongostore.NewUserRepository(db)
	products := mongostore.NewProductRepository(db)
	orders := mongostore.NewOrderRepository(db)
	events := mongostore.NewEventRepository(db)

	// --- Audit trail ---
	dispatcher := queue.NewDispatcher(cfg.Events.Workers,
		service.NewEventService(events, logger.Component("audit")),
		logger.Component("dispatcher"))
	dispatcher.Start(ctx)

	// --- Services ---
	authService := service.NewAuthService(users, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	productService := service.NewProductService(products, users, logger.Component("catalog"))
	orderService := service.NewOrderService(
		orders,
		products,
		users,
		mongostore.NewTransactor(client),
		redisstore.NewIdempotencyStore(rdb, cfg.Redis.IdempotencyTTL),
		dispatcher,
		logger.Component("orders"),
	)

	e := api.NewRouter(api.Deps{
		Auth:     authService,
		Products: productService,
		Orders:   orderService,
		Images:   images,
		HealthChecks: map[string]handler.HealthCheck{
			"mongodb": mongostore.HealthCheck(db),
			"redis":   redisstore.HealthCheck(rdb),
		},
	}, api.Options{
		FrontendURL:  cfg.HTTP.FrontendURL,
		CookieSecure: cfg.Auth.CookieSecure,
		TokenTTL:     cfg.Auth.TokenTTL,
		AuthRate:     cfg.Auth.RateLimit,
		AuthBurst:    cfg.Auth.RateBurst,
	}, logger.Component("http"))

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("server listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return err
		}
	}

	// --- Graceful shutdown ---
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	if err := dispatcher.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("audit dispatcher did not drain")
	}
	return nil
}
