// Package repository provides the MongoDB data access layer.
package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoConfig holds MongoDB connection pool configuration.
type MongoConfig struct {
	// MaxPoolSize is the maximum number of connections in the pool.
	MaxPoolSize uint64
	// MinPoolSize is the minimum number of connections to keep in the pool.
	MinPoolSize uint64
	// MaxConnIdleTime is how long a connection can remain idle before being closed.
	MaxConnIdleTime time.Duration
	// ConnectTimeout is the timeout for establishing a connection.
	ConnectTimeout time.Duration
	// ServerSelectionTimeout is how long to wait for server selection.
	ServerSelectionTimeout time.Duration
	// SocketTimeout is the timeout for socket read/write operations.
	SocketTimeout time.Duration
	// EnableCompression enables wire protocol compression.
	EnableCompression bool
}

// DefaultMongoConfig returns production-optimized MongoDB configuration.
func DefaultMongoConfig() MongoConfig {
	return MongoConfig{
		MaxPoolSize:            50,
		MinPoolSize:            10,
		MaxConnIdleTime:        10 * time.Minute,
		ConnectTimeout:         10 * time.Second,
		ServerSelectionTimeout: 5 * time.Second,
		SocketTimeout:          30 * time.Second,
		EnableCompression:      true,
	}
}

// MongoDB provides MongoDB client and database access.
type MongoDB struct {
	Client      *mongo.Client
	Database    *mongo.Database
	Assets      *mongo.Collection
	Generations *mongo.Collection
	AssetCache  *mongo.Collection
}

// NewMongoDB creates a new MongoDB connection with default configuration.
func NewMongoDB(uri, databaseName string) (*MongoDB, error) {
	return NewMongoDBWithConfig(uri, databaseName, DefaultMongoConfig())
}

// NewMongoDBWithConfig creates a new MongoDB connection with custom configuration.
func NewMongoDBWithConfig(uri, databaseName string, cfg MongoConfig) (*MongoDB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(cfg.MaxPoolSize).
		SetMinPoolSize(cfg.MinPoolSize).
		SetMaxConnIdleTime(cfg.MaxConnIdleTime).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetServerSelectionTimeout(cfg.ServerSelectionTimeout).
		SetSocketTimeout(cfg.SocketTimeout)

	if cfg.EnableCompression {
		clientOptions.SetCompressors([]string{"zstd", "snappy", "zlib"})
	}

	clientOptions.SetRetryWrites(true)
	clientOptions.SetRetryReads(true)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, err
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}

	db := client.Database(databaseName)
	mongoDB := &MongoDB{
		Client:      client,
		Database:    db,
		Assets:      db.Collection("assets"),
		Generations: db.Collection("generations"),
		AssetCache:  db.Collection("asset_cache"),
	}

	if err := mongoDB.createIndexes(ctx); err != nil {
		return nil, err
	}

	return mongoDB, nil
}

// createIndexes creates necessary indexes for collections.
func (m *MongoDB) createIndexes(ctx context.Context) error {
	// Assets: category lookups for listing.
	categoryIndex := mongo.IndexModel{
		Keys:    map[string]interface{}{"metadata.category": 1},
		Options: options.Index().SetUnique(false),
	}
	if _, err := m.Assets.Indexes().CreateOne(ctx, categoryIndex); err != nil {
		return err
	}

	// Generations: the poller's due-job query filters on state and orders by
	// next poll time.
	dueIndex := mongo.IndexModel{
		Keys:    map[string]interface{}{"state": 1, "next_poll_at": 1},
		Options: options.Index().SetUnique(false),
	}
	if _, err := m.Generations.Indexes().CreateOne(ctx, dueIndex); err != nil {
		return err
	}

	// Generations: lookup by the external task ID.
	taskIDIndex := mongo.IndexModel{
		Keys:    map[string]interface{}{"task_id": 1},
		Options: options.Index().SetUnique(false),
	}
	_, _ = m.Generations.Indexes().CreateOne(ctx, taskIDIndex)

	// Asset cache: a TTL index backstops the store's own expiry so records
	// the service never reads again still get reclaimed. Expiry correctness
	// does not depend on it; reads check expires_at themselves.
	cacheTTLIndex := mongo.IndexModel{
		Keys:    map[string]interface{}{"expires_at": 1},
		Options: options.Index().SetExpireAfterSeconds(0),
	}
	_, _ = m.AssetCache.Indexes().CreateOne(ctx, cacheTTLIndex)

	return nil
}

// Close closes the MongoDB connection.
func (m *MongoDB) Close(ctx context.Context) error {
	return m.Client.Disconnect(ctx)
}

// HealthCheck verifies the MongoDB connection is healthy.
func (m *MongoDB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return m.Client.Ping(ctx, nil)
}
