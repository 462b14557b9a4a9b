package store

import (
	"context"
	"errors"
	"time"

	"github.com/kart-io/tutor-x/internal/model"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// Factory defines the factory interface for relational stores.
type Factory interface {
	Papers() PaperStore
	Weeks() WeekStore
	Documents() DocumentStore
	Chunks() ChunkStore
	Notation() NotationStore
	AutoMigrate() error
	Close() error
}

// PaperStore defines the paper storage interface.
type PaperStore interface {
	Create(ctx context.Context, paper *model.Paper) error
	// Get returns the paper with its weeks ordered by week number.
	Get(ctx context.Context, id string) (*model.Paper, error)
	List(ctx context.Context) ([]*model.Paper, error)
}

// WeekStore defines the week storage interface.
type WeekStore interface {
	// Get returns the week with its documents, newest first.
	Get(ctx context.Context, id string) (*model.Week, error)
	GetOrCreate(ctx context.Context, paperID, term string, weekNumber int) (*model.Week, error)
}

// DocumentStore defines the document storage interface.
type DocumentStore interface {
	Create(ctx context.Context, doc *model.Document) error
	Get(ctx context.Context, id string) (*model.Document, error)
	GetByStoragePath(ctx context.Context, storagePath string) (*model.Document, error)
	// SetStatus 更新状态；status 为 processed 时同时写入 chunkCount。
	SetStatus(ctx context.Context, id string, status model.DocumentStatus, chunkCount int, errMsg string) error
	// TransitionStatus 仅当当前状态为 from 时更新为 to，返回是否发生了变更。
	TransitionStatus(ctx context.Context, id string, from, to model.DocumentStatus, chunkCount int, errMsg string) (bool, error)
	// Touch 刷新 uploading 文档的 updated_at。
	Touch(ctx context.Context, id string) error
	// ListStale 列出 status 状态下最后更新早于 before 的文档。
	ListStale(ctx context.Context, status model.DocumentStatus, before time.Time, limit int) ([]*model.Document, error)
}

// ChunkStore defines the document chunk storage interface.
type ChunkStore interface {
	// Upsert writes chunks keyed by (document_id, content_hash); last write wins.
	Upsert(ctx context.Context, chunks []*model.DocumentChunk) error
	GetByIDs(ctx context.Context, ids []string) ([]*model.DocumentChunk, error)
	ListByWeek(ctx context.Context, weekID string, limit int) ([]*model.DocumentChunk, error)
	// SearchLexical returns chunks of the week matching any of terms.
	SearchLexical(ctx context.Context, weekID string, terms []string, limit int) ([]*model.DocumentChunk, error)
	CountByDocument(ctx context.Context, documentID string) (int64, error)
	// Prune deletes the document's chunks whose id is not in keep.
	Prune(ctx context.Context, documentID string, keep []string) error
}

// NotationStore defines the notation storage interface.
type NotationStore interface {
	// ListByWeek returns the week's notation ordered by symbol.
	ListByWeek(ctx context.Context, weekID string) ([]*model.NotationConfig, error)
	Exists(ctx context.Context, weekID string) (bool, error)
	// Replace 以 (week, symbol) 为键写入符号表，已存在的条目被覆盖。
	Replace(ctx context.Context, weekID string, entries []*model.NotationConfig) error
}

// VectorRecord is one embedding keyed by chunk id.
type VectorRecord struct {
	ID         string
	DocumentID string
	WeekID     string
	Embedding  []float32
}

// VectorHit is one ANN search result.
type VectorHit struct {
	ID    string
	Score float32
}

// VectorStore 定义向量存储接口。
type VectorStore interface {
	// Upsert 按 chunk id 写入向量，重复写入收敛。
	Upsert(ctx context.Context, records []*VectorRecord) error
	// Search 在指定教学周内执行余弦相似度检索。
	Search(ctx context.Context, weekID string, embedding []float32, topK int) ([]*VectorHit, error)
	// Prune deletes the document's vectors whose id is not in keep.
	Prune(ctx context.Context, documentID string, keep []string) error
}

// BlobStore stores uploaded source files by storage path.
type BlobStore interface {
	// Put overwrites any existing object at path.
	Put(ctx context.Context, path string, data []byte, contentType string) error
	Get(ctx context.Context, path string) ([]byte, error)
}

// StepStore memoises pipeline step outputs per document.
type StepStore interface {
	Load(ctx context.Context, documentID, step string) ([]byte, bool, error)
	Save(ctx context.Context, documentID, step string, data []byte) error
	Clear(ctx context.Context, documentID string) error
}

// EventBroker fans out document status changes to week subscribers.
type EventBroker interface {
	Publish(ctx context.Context, event *model.StatusChangeEvent) error
	// Subscribe returns a channel closed when ctx is cancelled.
	Subscribe(ctx context.Context, weekID string) (<-chan *model.StatusChangeEvent, error)
}
