// Package database manages the MongoDB connection used by the mongo store
// backend.
package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

const (
	ChatsCollection = "chats"
	UsersCollection = "users"
)

// MongoClient wraps mongo.Client and exposes the collections of one database.
type MongoClient struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongoClient connects to uri, pings the primary and selects database.
func NewMongoClient(ctx context.Context, uri, database string) (*MongoClient, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second)

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return &MongoClient{
		client: client,
		db:     client.Database(database),
	}, nil
}

func (c *MongoClient) Chats() *mongo.Collection {
	return c.db.Collection(ChatsCollection)
}

func (c *MongoClient) Users() *mongo.Collection {
	return c.db.Collection(UsersCollection)
}

// Drop removes the whole database. Integration tests only.
func (c *MongoClient) Drop(ctx context.Context) error {
	return c.db.Drop(ctx)
}

func (c *MongoClient) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// EnsureIndexes creates the indexes the chat store relies on. The unique
// pairKey index is what makes chat creation idempotent under concurrency.
func (c *MongoClient) EnsureIndexes(ctx context.Context) error {
	chatIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "pairKey", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "participants", Value: 1}, {Key: "lastMessage", Value: -1}},
		},
	}

	if _, err := c.Chats().Indexes().CreateMany(ctx, chatIndexes); err != nil {
		return fmt.Errorf("failed to create chat indexes: %w", err)
	}

	return nil
}
