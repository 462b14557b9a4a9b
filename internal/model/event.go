package model

import "time"

// IngestEvent 触发一次文档摄取。
type IngestEvent struct {
	DocumentID  string `json:"documentId" validate:"required"`
	StoragePath string `json:"storagePath" validate:"required"`
}

// StatusChangeEvent is emitted when a document reaches processed or failed.
type StatusChangeEvent struct {
	DocumentID string         `json:"document_id"`
	WeekID     string         `json:"week_id"`
	Status     DocumentStatus `json:"status"`
	ChunkCount int            `json:"chunk_count,omitempty"`
	Error      string         `json:"error,omitempty"`
	At         time.Time      `json:"at"`
}
