package storage

import (
	"context"

	"github.com/redis/go-redis/v9"
)

type Config struct {
	Addr     string
	Password string
	DB       int
}

var (
	rdb *redis.Client
	ctx = context.Background()
)

// InitRedis wires the optional redis client. An empty addr leaves it nil
// and every mirror call becomes a no-op.
func InitRedis(c Config) error {
	if c.Addr == "" {
		return nil
	}
	rdb = redis.NewClient(&redis.Options{Addr: c.Addr, Password: c.Password, DB: c.DB})
	return rdb.Ping(ctx).Err()
}

func Enabled() bool { return rdb != nil }

func Close() error {
	if rdb == nil {
		return nil
	}
	return rdb.Close()
}
