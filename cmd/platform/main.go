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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	_ "github.com/lib/pq"

	"github.com/novatrust/bio-gateway/internal/api"
	"github.com/novatrust/bio-gateway/internal/cache"
	"github.com/novatrust/bio-gateway/internal/config"
	"github.com/novatrust/bio-gateway/internal/core/services"
	"github.com/novatrust/bio-gateway/internal/db"
	"github.com/novatrust/bio-gateway/internal/gateways"
	"github.com/novatrust/bio-gateway/internal/health"
	"github.com/novatrust/bio-gateway/internal/log"
	"github.com/novatrust/bio-gateway/internal/pubsub"
	"github.com/novatrust/bio-gateway/internal/redis"
	"github.com/novatrust/bio-gateway/internal/repositories"
	httpclient "github.com/novatrust/bio-gateway/pkg/http"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Error(context.Background(), "cannot load config", "err", err)
		return
	}

	ctx, cancel := context.WithCancel(log.NewContext(context.Background(), cfg.Log.Level, cfg.Log.Mode, os.Stdout))
	defer cancel()

	if err := cfg.Sanitize(); err != nil {
		log.Error(ctx, "there are errors in the configuration that prevent server to start", "err", err)
		return
	}

	storage, err := db.NewStorage(cfg.Database.URL)
	if err != nil {
		log.Error(ctx, "cannot connect to database", "err", err)
		return
	}
	defer func() {
		if err := storage.Close(); err != nil {
			log.Error(ctx, "error closing database connection", "err", err)
		}
	}()

	rdb, err := redis.Open(ctx, cfg.Cache.RedisUrl)
	if err != nil {
		log.Error(ctx, "cannot connect to redis", "err", err, "host", cfg.Cache.RedisUrl)
		return
	}

	ps := pubsub.NewRedis(rdb)
	cachex := cache.NewRedisCache(rdb)

	operationsRepo := repositories.NewOperations(*storage)
	enrollmentsRepo := repositories.NewEnrollments(*storage)

	providerClient := gateways.NewVerificationClient(httpclient.NewClientWithRetry(cfg.Provider.ResponseTimeout), cfg.Provider.URL, cfg.Provider.APIKey)
	validator := services.NewValidator(cfg.Verification.MatchThreshold, cfg.Verification.ConfidenceThreshold)
	issuer := services.NewCredentialIssuer(
		[]byte(cfg.Credentials.SigningKey),
		cfg.Credentials.Issuer,
		cfg.Credentials.AccessTokenTTL,
		cfg.Credentials.RefreshTokenTTL,
		cachex,
	)

	operationsService := services.NewOperations(
		operationsRepo,
		enrollmentsRepo,
		providerClient,
		validator,
		issuer,
		ps,
		cachex,
		cfg.Verification.OperationTTL,
		cfg.Credentials.AccessTokenTTL,
	)
	detector := services.NewDetector(
		ctx,
		providerClient,
		operationsService,
		operationsRepo,
		ps,
		cfg.Verification.PollInterval,
		cfg.Verification.PollMaxAttempts,
		cfg.Verification.OperationTTL,
	)
	operationsService.SetDetector(detector)
	detector.Start(ctx)
	if err := detector.Resume(ctx); err != nil {
		log.Error(ctx, "cannot resume pending operation watchers", "err", err)
	}

	healthStatus := health.New(storage.Pgx, redis.NewWrapper(rdb))

	mux := chi.NewRouter()
	mux.Use(middleware.RequestID)
	mux.Use(log.ChiMiddleware(ctx))
	api.NewServer(cfg, operationsService, issuer, healthStatus).Routes(mux)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info(ctx, "server started", "port", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "starting http server", "err", err)
		}
	}()

	<-quit
	log.Info(ctx, "shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "shutting down http server", "err", err)
	}
}
