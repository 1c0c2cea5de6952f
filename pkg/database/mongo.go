package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ConnectMongo opens a client, pings it, and returns the named database.
// The handle is created once at process start and injected into the
// handlers; there is no package-level connection state.
func ConnectMongo(ctx context.Context, uri string, dbName string) (*mongo.Client, *mongo.Database, error) {
	cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(cctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(cctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	log.Printf("[OK] Connected to MongoDB (db=%s)", dbName)
	return client, client.Database(dbName), nil
}
