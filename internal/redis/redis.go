package redis

import (
	"context"

	"github.com/go-redis/redis/v8"
)

// Wrapper exists so health checks can type-switch on our client without
// importing go-redis everywhere.
type Wrapper interface {
	Ping(ctx context.Context) error
}

type wrapper struct {
	rdb *redis.Client
}

// Open opens a connection to redis and returns it
func Open(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := Status(ctx, rdb); err != nil {
		return nil, err
	}
	return rdb, nil
}

// Status returns nil if the redis status is ok. Otherwise a redis status err
func Status(ctx context.Context, rdb *redis.Client) error {
	if pingCmd := rdb.Ping(ctx); pingCmd.Err() != nil {
		return pingCmd.Err()
	}
	return nil
}

// NewWrapper wraps a redis client into a pingable health target
func NewWrapper(rdb *redis.Client) Wrapper {
	return &wrapper{rdb: rdb}
}

func (w *wrapper) Ping(ctx context.Context) error {
	return Status(ctx, w.rdb)
}
