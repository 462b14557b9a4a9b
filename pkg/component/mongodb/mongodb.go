// Package mongodb creates MongoDB clients and GridFS buckets from options.
package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	mongoopts "go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	options "github.com/kart-io/tutor-x/pkg/options/mongodb"
)

// Client bundles the connection with the configured database.
type Client struct {
	client   *mongo.Client
	database *mongo.Database
	opts     *options.Options
}

// New connects to MongoDB and pings the primary.
func New(ctx context.Context, opts *options.Options) (*Client, error) {
	if opts == nil {
		return nil, fmt.Errorf("mongodb options cannot be nil")
	}

	clientOpts := mongoopts.Client().
		ApplyURI(opts.BuildURI()).
		SetMaxPoolSize(opts.MaxPoolSize).
		SetMinPoolSize(opts.MinPoolSize).
		SetMaxConnIdleTime(opts.MaxConnIdleTime).
		SetConnectTimeout(opts.ConnectTimeout).
		SetServerSelectionTimeout(opts.ServerSelectionTimeout)

	connectCtx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return &Client{
		client:   client,
		database: client.Database(opts.Database),
		opts:     opts,
	}, nil
}

// Database returns the configured database handle.
func (c *Client) Database() *mongo.Database { return c.database }

// Bucket opens the configured GridFS bucket.
func (c *Client) Bucket() (*gridfs.Bucket, error) {
	bucket, err := gridfs.NewBucket(c.database, mongoopts.GridFSBucket().SetName(c.opts.Bucket))
	if err != nil {
		return nil, fmt.Errorf("failed to open gridfs bucket %s: %w", c.opts.Bucket, err)
	}
	return bucket, nil
}

// Ping verifies the primary is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}
