// Package model defines the persisted entities of the tutoring service.
package model

import (
	"time"

	"gorm.io/gorm"

	"github.com/kart-io/tutor-x/internal/pkg/textutil"
	"github.com/kart-io/tutor-x/pkg/utils/id"
)

// Paper 一门课程。
type Paper struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(64)"`
	Title     string    `json:"title" gorm:"type:varchar(255);not null"`
	Year      int       `json:"year" gorm:"not null"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`

	Weeks []*Week `json:"weeks,omitempty" gorm:"foreignKey:PaperID"`
}

// TableName returns the table name for GORM.
func (*Paper) TableName() string { return "papers" }

// BeforeCreate assigns a ULID when the id is empty.
func (p *Paper) BeforeCreate(*gorm.DB) error {
	if p.ID == "" {
		p.ID = id.NewULID()
	}
	return nil
}

// Week is the retrieval scope: (paper, term, week number).
type Week struct {
	ID         string    `json:"id" gorm:"primaryKey;type:varchar(64)"`
	PaperID    string    `json:"paper_id" gorm:"type:varchar(64);not null;uniqueIndex:uk_week_scope,priority:1"`
	Term       string    `json:"term" gorm:"type:varchar(64);not null;uniqueIndex:uk_week_scope,priority:2"`
	WeekNumber int       `json:"week_number" gorm:"not null;uniqueIndex:uk_week_scope,priority:3"`
	Topic      string    `json:"topic" gorm:"type:varchar(255)"`
	CreatedAt  time.Time `json:"created_at" gorm:"autoCreateTime"`

	Documents []*Document `json:"documents,omitempty" gorm:"foreignKey:WeekID"`
}

// TableName returns the table name for GORM.
func (*Week) TableName() string { return "weeks" }

// BeforeCreate assigns a ULID when the id is empty.
func (w *Week) BeforeCreate(*gorm.DB) error {
	if w.ID == "" {
		w.ID = id.NewULID()
	}
	return nil
}

// MaterialType 上传课件类型。
type MaterialType string

const (
	MaterialLecture     MaterialType = "lecture"
	MaterialTextbook    MaterialType = "textbook"
	MaterialSupervision MaterialType = "supervision"
)

// Valid reports whether t is a known material type.
func (t MaterialType) Valid() bool {
	switch t {
	case MaterialLecture, MaterialTextbook, MaterialSupervision:
		return true
	}
	return false
}

// SourceType is the chunk-level label derived from MaterialType.
type SourceType string

const (
	SourceLecture     SourceType = "Lecture"
	SourceTextbook    SourceType = "Textbook"
	SourceSupervision SourceType = "Supervision"
)

// SourceType maps a material type to the chunk source label. Unknown types
// map to the empty string.
func (t MaterialType) SourceType() SourceType {
	switch t {
	case MaterialLecture:
		return SourceLecture
	case MaterialTextbook:
		return SourceTextbook
	case MaterialSupervision:
		return SourceSupervision
	}
	return ""
}

// DocumentStatus 文档处理状态。
type DocumentStatus string

const (
	StatusUploading DocumentStatus = "uploading"
	StatusProcessed DocumentStatus = "processed"
	StatusFailed    DocumentStatus = "failed"
)

// Document is one uploaded source file.
type Document struct {
	ID          string         `json:"id" gorm:"primaryKey;type:varchar(64)"`
	WeekID      string         `json:"week_id" gorm:"type:varchar(64);not null;index"`
	StoragePath string         `json:"storage_path" gorm:"type:varchar(1024);not null"`
	FileName    string         `json:"file_name" gorm:"type:varchar(255)"`
	ContentType string         `json:"content_type" gorm:"type:varchar(128)"`
	Type        MaterialType   `json:"type" gorm:"type:varchar(32);not null"`
	Status      DocumentStatus `json:"status" gorm:"type:varchar(32);not null;default:'uploading';index"`
	Error       string         `json:"error,omitempty" gorm:"type:text"`
	ChunkCount  int            `json:"chunk_count" gorm:"default:0"`
	CreatedAt   time.Time      `json:"created_at" gorm:"autoCreateTime;index"`
	UpdatedAt   time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName returns the table name for GORM.
func (*Document) TableName() string { return "documents" }

// BeforeCreate assigns a ULID when the id is empty.
func (d *Document) BeforeCreate(*gorm.DB) error {
	if d.ID == "" {
		d.ID = id.NewULID()
	}
	return nil
}

// DocumentChunk is an immutable slice of a document's parsed text. The
// embedding lives in the vector index under the same ID, and ID is derived
// from (DocumentID, ContentHash) by ChunkID.
type DocumentChunk struct {
	ID                  string     `json:"id" gorm:"primaryKey;type:varchar(64)"`
	DocumentID          string     `json:"document_id" gorm:"type:varchar(64);not null;index:idx_chunk_content,priority:1"`
	WeekID              string     `json:"week_id" gorm:"type:varchar(64);not null;index"`
	ContentHash         string     `json:"content_hash" gorm:"type:varchar(64);not null;index:idx_chunk_content,priority:2"`
	Position            int        `json:"position" gorm:"not null;default:0"`
	Content             string     `json:"content" gorm:"type:text;not null"`
	SourceType          SourceType `json:"source_type" gorm:"type:varchar(32)"`
	MathematicalDensity float64    `json:"mathematical_density" gorm:"not null;default:0"`
	CreatedAt           time.Time  `json:"created_at" gorm:"autoCreateTime"`
}

// TableName returns the table name for GORM.
func (*DocumentChunk) TableName() string { return "document_chunks" }

// NotationConfig is one controlled-vocabulary entry for a week.
type NotationConfig struct {
	ID         string    `json:"id" gorm:"primaryKey;type:varchar(64)"`
	WeekID     string    `json:"week_id" gorm:"type:varchar(64);not null;index"`
	Term       string    `json:"term" gorm:"type:varchar(255);not null"`
	Symbol     string    `json:"symbol" gorm:"type:varchar(255);not null"`
	Definition string    `json:"definition" gorm:"type:text"`
	CreatedAt  time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName returns the table name for GORM.
func (*NotationConfig) TableName() string { return "notation_configs" }

// BeforeCreate assigns a ULID when the id is empty.
func (n *NotationConfig) BeforeCreate(*gorm.DB) error {
	if n.ID == "" {
		n.ID = id.NewULID()
	}
	return nil
}

// All lists every model for auto-migration.
func All() []any {
	return []any{&Paper{}, &Week{}, &Document{}, &DocumentChunk{}, &NotationConfig{}}
}

// ChunkID derives the chunk id from its natural key.
func ChunkID(documentID, contentHash string) string {
	return textutil.HashString(documentID + ":" + contentHash)[:32]
}
