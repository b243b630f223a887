package mgo

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

type Config struct {
	URI      string
	Database string
	Timeout  time.Duration
}

var (
	mu     sync.RWMutex
	client *mongo.Client
	db     *mongo.Database
)

// Init connects and pings synchronously; the binary refuses to start on a
// dead mongo rather than limping along.
func Init(ctx context.Context, cfg Config) error {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	cli, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return errors.Wrap(err, "mongo connect")
	}
	if err := cli.Ping(ctx, readpref.Primary()); err != nil {
		_ = cli.Disconnect(context.Background())
		return errors.Wrap(err, "mongo ping")
	}

	mu.Lock()
	client = cli
	db = cli.Database(cfg.Database)
	mu.Unlock()
	return nil
}

func GetDB() *mongo.Database {
	mu.RLock()
	defer mu.RUnlock()
	if db == nil {
		panic("mongo not initialized: call mgo.Init first")
	}
	return db
}

func Close(ctx context.Context) error {
	mu.Lock()
	defer mu.Unlock()
	if client == nil {
		return nil
	}
	err := client.Disconnect(ctx)
	client, db = nil, nil
	return err
}
