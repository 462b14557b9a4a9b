// Package milvus wraps the Milvus SDK client for the chunk vector collection.
package milvus

import (
	"context"
	"fmt"

	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/index"
	"github.com/milvus-io/milvus/client/v2/milvusclient"

	milvusopts "github.com/kart-io/tutor-x/pkg/options/milvus"
)

// 集合字段名
const (
	FieldID         = "id"
	FieldDocumentID = "document_id"
	FieldWeekID     = "week_id"
	FieldEmbedding  = "embedding"

	idMaxLength = 64
)

// Client wraps the Milvus SDK client.
type Client struct {
	client *milvusclient.Client
	opts   *milvusopts.Options
}

// New creates a new Milvus client.
func New(ctx context.Context, opts *milvusopts.Options) (*Client, error) {
	if opts == nil {
		return nil, fmt.Errorf("milvus options is nil")
	}

	connectCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	c, err := milvusclient.New(connectCtx, &milvusclient.ClientConfig{
		Address:  opts.Address,
		Username: opts.Username,
		Password: opts.Password,
		DBName:   opts.Database,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to milvus: %w", err)
	}

	return &Client{client: c, opts: opts}, nil
}

// Close closes the Milvus client connection.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Close(ctx)
}

// RawClient returns the underlying Milvus client.
func (c *Client) RawClient() *milvusclient.Client {
	return c.client
}

// Collection returns the configured collection name.
func (c *Client) Collection() string { return c.opts.Collection }

// Dimension returns the configured vector dimension.
func (c *Client) Dimension() int { return c.opts.Dimension }

// Ping reports whether the configured collection is reachable.
func (c *Client) Ping(ctx context.Context) error {
	exists, err := c.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(c.opts.Collection))
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("collection %s not found", c.opts.Collection)
	}
	return nil
}

// EnsureCollection creates the chunk collection with a COSINE HNSW index if it
// does not exist, then loads it.
func (c *Client) EnsureCollection(ctx context.Context) error {
	name := c.opts.Collection
	exists, err := c.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(name))
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}

	if !exists {
		schema := entity.NewSchema().
			WithName(name).
			WithDescription("course material chunks").
			WithAutoID(false).
			WithField(entity.NewField().
				WithName(FieldID).
				WithDataType(entity.FieldTypeVarChar).
				WithMaxLength(idMaxLength).
				WithIsPrimaryKey(true)).
			WithField(entity.NewField().
				WithName(FieldDocumentID).
				WithDataType(entity.FieldTypeVarChar).
				WithMaxLength(idMaxLength)).
			WithField(entity.NewField().
				WithName(FieldWeekID).
				WithDataType(entity.FieldTypeVarChar).
				WithMaxLength(idMaxLength)).
			WithField(entity.NewField().
				WithName(FieldEmbedding).
				WithDataType(entity.FieldTypeFloatVector).
				WithDim(int64(c.opts.Dimension)))

		if err := c.client.CreateCollection(ctx, milvusclient.NewCreateCollectionOption(name, schema)); err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}

		idx := index.NewHNSWIndex(entity.COSINE, 16, 200)
		task, err := c.client.CreateIndex(ctx, milvusclient.NewCreateIndexOption(name, FieldEmbedding, idx))
		if err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
		if err := task.Await(ctx); err != nil {
			return fmt.Errorf("failed to wait for index creation: %w", err)
		}
	}

	loadTask, err := c.client.LoadCollection(ctx, milvusclient.NewLoadCollectionOption(name))
	if err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}
	if err := loadTask.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for collection loading: %w", err)
	}
	return nil
}
