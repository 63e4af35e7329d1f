package basket

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoConfig carries the connection settings the basket store needs.
// Pool sizes and timeouts come from the application config so they can
// be tuned per deployment.
type MongoConfig struct {
	URI            string
	Database       string
	MaxPoolSize    uint64
	MinPoolSize    uint64
	ConnectTimeout time.Duration
	SelectTimeout  time.Duration
}

// ConnectMongo opens the basket database and verifies it is reachable
// before returning.
func ConnectMongo(ctx context.Context, cfg MongoConfig) (*mongo.Database, error) {
	opts := options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetServerSelectionTimeout(cfg.SelectTimeout).
		SetMaxPoolSize(cfg.MaxPoolSize).
		SetMinPoolSize(cfg.MinPoolSize)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if e2 := client.Ping(ctx, nil); e2 != nil {
		return nil, fmt.Errorf("mongo ping: %w", e2)
	}
	return client.Database(cfg.Database), nil
}
