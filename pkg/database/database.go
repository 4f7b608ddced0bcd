package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Client holds the database connection and the selected database.
type Client struct {
	client *mongo.Client
	DB     *mongo.Database
}

// NewClient connects to MongoDB and verifies the connection.
func NewClient(ctx context.Context, uri, dbName string) (*Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed opening connection to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return &Client{client: client, DB: client.Database(dbName)}, nil
}

// EnsureIndexes creates the indexes the hot queries depend on. Safe to
// call on every startup.
func (c *Client) EnsureIndexes(ctx context.Context) error {
	leadIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "vendedor_atribuido", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "telefone", Value: 1}}},
		{Keys: bson.D{{Key: "data_finalizacao", Value: 1}}},
	}
	if _, err := c.DB.Collection("clientes").Indexes().CreateMany(ctx, leadIndexes); err != nil {
		return fmt.Errorf("failed creating lead indexes: %w", err)
	}

	unique := mongo.IndexModel{
		Keys:    bson.D{{Key: "usuario_login", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := c.DB.Collection("vendedores").Indexes().CreateOne(ctx, unique); err != nil {
		return fmt.Errorf("failed creating agent index: %w", err)
	}
	return nil
}

// Close disconnects from the database.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// Ping checks if the database is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx, nil)
}
