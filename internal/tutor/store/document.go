package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/kart-io/tutor-x/internal/model"
)

type documents struct {
	db *gorm.DB
}

func newDocuments(db *gorm.DB) *documents {
	return &documents{db}
}

// Create creates a new document.
func (d *documents) Create(ctx context.Context, doc *model.Document) error {
	return d.db.WithContext(ctx).Create(doc).Error
}

// Get retrieves a document by id.
func (d *documents) Get(ctx context.Context, id string) (*model.Document, error) {
	var doc model.Document
	if err := d.db.WithContext(ctx).Where("id = ?", id).First(&doc).Error; err != nil {
		return nil, notFound(err)
	}
	return &doc, nil
}

// GetByStoragePath retrieves the newest document stored at path.
func (d *documents) GetByStoragePath(ctx context.Context, storagePath string) (*model.Document, error) {
	var doc model.Document
	err := d.db.WithContext(ctx).
		Where("storage_path = ?", storagePath).
		Order("created_at DESC").
		First(&doc).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &doc, nil
}

// SetStatus updates the document status.
func (d *documents) SetStatus(ctx context.Context, id string, status model.DocumentStatus, chunkCount int, errMsg string) error {
	updates := map[string]any{
		"status": status,
		"error":  errMsg,
	}
	if status == model.StatusProcessed {
		updates["chunk_count"] = chunkCount
	}
	res := d.db.WithContext(ctx).Model(&model.Document{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	return nil
}

// TransitionStatus moves the document from status from to to. It reports
// false when the document was no longer in from, e.g. a concurrent run
// finished it first.
func (d *documents) TransitionStatus(ctx context.Context, id string, from, to model.DocumentStatus, chunkCount int, errMsg string) (bool, error) {
	updates := map[string]any{
		"status": to,
		"error":  errMsg,
	}
	if to == model.StatusProcessed {
		updates["chunk_count"] = chunkCount
	}
	res := d.db.WithContext(ctx).Model(&model.Document{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Touch 刷新处理中文档的 updated_at，避免长时间运行的流水线被判定为卡住。
func (d *documents) Touch(ctx context.Context, id string) error {
	return d.db.WithContext(ctx).Model(&model.Document{}).
		Where("id = ? AND status = ?", id, model.StatusUploading).
		Update("updated_at", time.Now().UTC()).Error
}

// ListStale lists documents whose status has not changed since before.
func (d *documents) ListStale(ctx context.Context, status model.DocumentStatus, before time.Time, limit int) ([]*model.Document, error) {
	var out []*model.Document
	err := d.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", status, before.UTC()).
		Order("updated_at ASC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
