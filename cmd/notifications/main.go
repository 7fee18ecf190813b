package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/novatrust/bio-gateway/internal/config"
	"github.com/novatrust/bio-gateway/internal/core/event"
	"github.com/novatrust/bio-gateway/internal/core/services"
	"github.com/novatrust/bio-gateway/internal/gateways"
	"github.com/novatrust/bio-gateway/internal/log"
	"github.com/novatrust/bio-gateway/internal/pubsub"
	"github.com/novatrust/bio-gateway/internal/redis"
	httpclient "github.com/novatrust/bio-gateway/pkg/http"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Error(context.Background(), "cannot load config", "err", err)
		return
	}

	ctx := log.NewContext(context.Background(), cfg.Log.Level, cfg.Log.Mode, os.Stdout)

	if cfg.Notifications.WebhookURL == "" {
		log.Error(ctx, "a webhook url must be configured for the notifications daemon")
		return
	}

	rdb, err := redis.Open(ctx, cfg.Cache.RedisUrl)
	if err != nil {
		log.Error(ctx, "cannot connect to redis", "err", err, "host", cfg.Cache.RedisUrl)
		return
	}

	ps := pubsub.NewRedis(rdb)

	notificationGateway := gateways.NewWebhookClient(httpclient.NewClientWithRetry(cfg.Provider.ResponseTimeout), cfg.Notifications.WebhookURL)
	notificationService := services.NewNotification(notificationGateway)

	ps.Subscribe(ctx, event.OperationCompletedEvent, notificationService.SendOperationCompletedNotification)
	ps.Subscribe(ctx, event.OperationFailedEvent, notificationService.SendOperationFailedNotification)

	log.Info(ctx, "notifications daemon started")

	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)
	<-gracefulShutdown
	log.Info(ctx, "shutting down")
}
