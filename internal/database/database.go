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

const databaseName = "graig"

// Collection names used by the activity store.
const (
	collUsers         = "users"
	collVoiceSessions = "voice_sessions"
	collMessages      = "messages"
	collReactions     = "reactions"
)

// Client wraps the MongoDB connection and exposes the bot's database.
type Client struct {
	client *mongo.Client
	db     *mongo.Database
}

// New connects to MongoDB and verifies the connection with a ping.
func New(ctx context.Context, uri string) (*Client, error) {
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
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return &Client{
		client: client,
		db:     client.Database(databaseName),
	}, nil
}

// Database returns the underlying database handle.
func (c *Client) Database() *mongo.Database {
	return c.db
}

// Close disconnects from MongoDB.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// EnsureIndexes creates the indexes backing the stats and leaderboard
// queries. Safe to call on every startup.
func (c *Client) EnsureIndexes(ctx context.Context) error {
	sessionIndexes := []mongo.IndexModel{
		{Keys: bson.D{
			{Key: "user_id", Value: 1},
			{Key: "guild_id", Value: 1},
			{Key: "left_at", Value: 1},
		}},
		{Keys: bson.D{
			{Key: "user_id", Value: 1},
			{Key: "guild_id", Value: 1},
			{Key: "joined_at", Value: -1},
		}},
	}
	if _, err := c.db.Collection(collVoiceSessions).Indexes().CreateMany(ctx, sessionIndexes); err != nil {
		return fmt.Errorf("failed to create voice session indexes: %w", err)
	}

	messageIndexes := []mongo.IndexModel{
		{Keys: bson.D{
			{Key: "user_id", Value: 1},
			{Key: "guild_id", Value: 1},
			{Key: "created_at", Value: -1},
		}},
	}
	if _, err := c.db.Collection(collMessages).Indexes().CreateMany(ctx, messageIndexes); err != nil {
		return fmt.Errorf("failed to create message indexes: %w", err)
	}

	reactionIndexes := []mongo.IndexModel{
		{Keys: bson.D{
			{Key: "user_id", Value: 1},
			{Key: "guild_id", Value: 1},
			{Key: "created_at", Value: -1},
		}},
		{Keys: bson.D{
			{Key: "user_id", Value: 1},
			{Key: "guild_id", Value: 1},
			{Key: "emoji", Value: 1},
			{Key: "action", Value: 1},
		}},
	}
	if _, err := c.db.Collection(collReactions).Indexes().CreateMany(ctx, reactionIndexes); err != nil {
		return fmt.Errorf("failed to create reaction indexes: %w", err)
	}

	return nil
}
