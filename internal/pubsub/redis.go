package pubsub

import (
	"context"

	"github.com/go-redis/redis/v8"

	"github.com/novatrust/bio-gateway/internal/log"
)

// RedisClient struct
type RedisClient struct {
	conn *redis.Client
}

// NewRedis returns a redis pubsub client
func NewRedis(rdb *redis.Client) Client {
	return &RedisClient{rdb}
}

// Publish publishes a new topic payload
func (rdb *RedisClient) Publish(ctx context.Context, topic string, payload Event) error {
	msg, err := payload.Marshal()
	if err != nil {
		return err
	}
	return rdb.conn.Publish(ctx, topic, []byte(msg)).Err()
}

// Subscribe adds a callback for a topic. The callback runs in a dedicated
// goroutine until ctx is cancelled. A panic in the callback is logged and
// the subscription keeps consuming.
func (rdb *RedisClient) Subscribe(ctx context.Context, topic string, callback EventHandler) {
	sub := rdb.conn.Subscribe(ctx, topic)
	go func() {
		for {
			select {
			case msg := <-sub.Channel():
				if msg.Channel != topic {
					log.Error(ctx, "msg channel != topic", "channel", msg.Channel, "topic", topic)
					continue
				}
				deliver(ctx, topic, callback, Message(msg.Payload))

			case <-ctx.Done():
				_ = sub.Close()
				return
			}
		}
	}()
}

func deliver(ctx context.Context, topic string, callback EventHandler, msg Message) {
	defer func() {
		if r := recover(); r != nil {
			log.Error(ctx, "recovered from panic in pubsub callback", "topic", topic, "recovered", r)
		}
	}()
	if err := callback(ctx, msg); err != nil {
		log.Error(ctx, "executing pubsub callback", "err", err, "topic", topic)
	}
}
