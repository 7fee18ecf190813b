package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/novatrust/bio-gateway/internal/cache"
	"github.com/novatrust/bio-gateway/internal/config"
	"github.com/novatrust/bio-gateway/internal/core/services"
	"github.com/novatrust/bio-gateway/internal/db"
	"github.com/novatrust/bio-gateway/internal/gateways"
	"github.com/novatrust/bio-gateway/internal/log"
	"github.com/novatrust/bio-gateway/internal/pubsub"
	"github.com/novatrust/bio-gateway/internal/redis"
	"github.com/novatrust/bio-gateway/internal/repositories"
	httpclient "github.com/novatrust/bio-gateway/pkg/http"
)

// The status checker re-examines persisted pending operations on a fixed
// frequency. Watchers live in process memory, so after a crash or deploy
// this daemon is what picks the orphaned operations back up.
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

	ticker := time.NewTicker(cfg.Verification.CheckStatusFrequency)
	defer ticker.Stop()

	go func() {
		if err := detector.Resume(ctx); err != nil {
			log.Error(ctx, "resuming pending operations", "err", err)
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := detector.Resume(ctx); err != nil {
					log.Error(ctx, "resuming pending operations", "err", err)
				}
			}
		}
	}()

	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)
	<-gracefulShutdown
	log.Info(ctx, "shutting down")
}
