package biz

import (
	"context"

	"github.com/kart-io/tutor-x/internal/model"
)

// Parser converts an uploaded file into markdown, keeping headings and LaTeX.
type Parser interface {
	Parse(ctx context.Context, fileName string, data []byte) (string, error)
}

// IngestPublisher emits ingestion trigger events.
type IngestPublisher interface {
	Publish(ctx context.Context, event *model.IngestEvent) error
}
