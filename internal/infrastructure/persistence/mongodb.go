package persistence

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const defaultMongoTimeout = 10 * time.Second

// MongoOptions describes the settings database connection
type MongoOptions struct {
	URI      string
	Database string
	Username string
	Password string
	AppName  string
	// Timeout bounds both the initial connect and server selection
	Timeout time.Duration
}

func (o MongoOptions) timeout() time.Duration {
	if o.Timeout <= 0 {
		return defaultMongoTimeout
	}
	return o.Timeout
}

// mongoClientOptions builds the driver options. Credentials are applied only
// when both halves are present; otherwise whatever the URI carries is used.
func mongoClientOptions(o MongoOptions) *options.ClientOptions {
	clientOptions := options.Client().
		ApplyURI(o.URI).
		SetConnectTimeout(o.timeout()).
		SetServerSelectionTimeout(o.timeout())
	if o.AppName != "" {
		clientOptions.SetAppName(o.AppName)
	}
	if o.Username != "" && o.Password != "" {
		clientOptions.SetAuth(options.Credential{
			Username: o.Username,
			Password: o.Password,
		})
	}
	return clientOptions
}

// OpenMongoDatabase connects, verifies the primary answers and returns the
// named database. The caller owns the client.
func OpenMongoDatabase(ctx context.Context, o MongoOptions) (*mongo.Client, *mongo.Database, error) {
	if o.Database == "" {
		return nil, nil, fmt.Errorf("mongo database name is required")
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout())
	defer cancel()

	client, err := mongo.Connect(ctx, mongoClientOptions(o))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return client, client.Database(o.Database), nil
}
