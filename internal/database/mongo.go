package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"robotics-catalog/internal/logger"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"
)

type Mongo struct {
	Client   *mongo.Client
	Database *mongo.Database
}

var (
	instance *Mongo
	initErr  error
	once     sync.Once
)

// Connect opens a traced client and verifies it with a ping.
func Connect(ctx context.Context, uri, dbName string) (*Mongo, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetMonitor(otelmongo.NewMonitor())

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		logger.Error(ctx, "Failed to connect to MongoDB", logger.Err(err))
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		logger.Error(ctx, "MongoDB ping failed", logger.Err(err))
		_ = client.Disconnect(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	logger.Info(ctx, "Connected to MongoDB successfully")
	return &Mongo{
		Client:   client,
		Database: client.Database(dbName),
	}, nil
}

// Instance returns the shared connection, dialing it on first use.
func Instance(ctx context.Context, uri, dbName string) (*Mongo, error) {
	once.Do(func() {
		instance, initErr = Connect(ctx, uri, dbName)
	})
	return instance, initErr
}

func (m *Mongo) Close(ctx context.Context) error {
	return m.Client.Disconnect(ctx)
}
