package db

import (
	"context"
	"fmt"
	"time"

	"github.com/syncstream/syncstream/internal/infrastructure/env"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	RoomSnapshotsCollection = "room_snapshots"

	connectionTimeout = 20 * time.Second
)

// Connect dials MongoDB, verifies the connection with a ping and returns
// the snapshot database plus a disconnect func for shutdown.
func Connect(ctx context.Context) (*mongo.Database, func(context.Context) error, error) {
	uri := env.GetString("MONGODB_URI", "mongodb://localhost:27017")
	database := env.GetString("MONGODB_DATABASE", "syncstream")

	connectCtx, cancel := context.WithTimeout(ctx, connectionTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(connectionTimeout).
		SetConnectTimeout(connectionTimeout))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, connectionTimeout)
	defer pingCancel()

	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	disconnect := func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		return client.Disconnect(ctx)
	}

	return client.Database(database), disconnect, nil
}
