package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	mongoopts "go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kart-io/tutor-x/pkg/component/mongodb"
)

const defaultGridFSDeadline = 2 * time.Minute

// GridFSBlobStore stores uploads in a MongoDB GridFS bucket, one file per
// storage path.
type GridFSBlobStore struct {
	client *mongodb.Client
}

var _ BlobStore = (*GridFSBlobStore)(nil)

// NewGridFSBlobStore creates a GridFS-backed blob store.
func NewGridFSBlobStore(client *mongodb.Client) *GridFSBlobStore {
	return &GridFSBlobStore{client: client}
}

func deadline(ctx context.Context) time.Time {
	if d, ok := ctx.Deadline(); ok {
		return d
	}
	return time.Now().Add(defaultGridFSDeadline)
}

// Put replaces any existing file stored under path.
func (s *GridFSBlobStore) Put(ctx context.Context, path string, data []byte, contentType string) error {
	bucket, err := s.client.Bucket()
	if err != nil {
		return err
	}
	if err := s.deleteAll(ctx, bucket, path); err != nil {
		return err
	}

	if err := bucket.SetWriteDeadline(deadline(ctx)); err != nil {
		return err
	}
	opts := mongoopts.GridFSUpload().SetMetadata(bson.D{{Key: "contentType", Value: contentType}})
	if _, err := bucket.UploadFromStream(path, bytes.NewReader(data), opts); err != nil {
		return fmt.Errorf("gridfs upload %s: %w", path, err)
	}
	return nil
}

// Get reads the newest revision stored under path.
func (s *GridFSBlobStore) Get(ctx context.Context, path string) ([]byte, error) {
	bucket, err := s.client.Bucket()
	if err != nil {
		return nil, err
	}
	if err := bucket.SetReadDeadline(deadline(ctx)); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if _, err := bucket.DownloadToStreamByName(path, &buf); err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("gridfs download %s: %w", path, err)
	}
	return buf.Bytes(), nil
}

func (s *GridFSBlobStore) deleteAll(ctx context.Context, bucket *gridfs.Bucket, path string) error {
	cursor, err := bucket.Find(bson.M{"filename": path})
	if err != nil {
		return fmt.Errorf("gridfs find %s: %w", path, err)
	}
	var files []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := cursor.All(ctx, &files); err != nil {
		return fmt.Errorf("gridfs decode %s: %w", path, err)
	}
	for _, f := range files {
		if err := bucket.Delete(f.ID); err != nil && !errors.Is(err, gridfs.ErrFileNotFound) {
			return fmt.Errorf("gridfs delete %s: %w", path, err)
		}
	}
	return nil
}
