package biz

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/tutor-x/internal/model"
	"github.com/kart-io/tutor-x/internal/tutor/store"
	"github.com/kart-io/tutor-x/pkg/utils/errors"
)

// CatalogService 课程、教学周与符号表的读写。
type CatalogService struct {
	factory   store.Factory
	steps     store.StepStore
	publisher IngestPublisher
}

// NewCatalogService creates a CatalogService.
func NewCatalogService(factory store.Factory, steps store.StepStore, publisher IngestPublisher) *CatalogService {
	return &CatalogService{factory: factory, steps: steps, publisher: publisher}
}

// CreatePaper registers a new paper.
func (s *CatalogService) CreatePaper(ctx context.Context, title string, year int) (*model.Paper, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, errors.ErrInvalidParam.WithMessage("title is required")
	}
	paper := &model.Paper{Title: title, Year: year}
	if err := s.factory.Papers().Create(ctx, paper); err != nil {
		return nil, errors.ErrDatabase.WithCause(err)
	}
	return paper, nil
}

// ListPapers lists all papers.
func (s *CatalogService) ListPapers(ctx context.Context) ([]*model.Paper, error) {
	papers, err := s.factory.Papers().List(ctx)
	if err != nil {
		return nil, errors.ErrDatabase.WithCause(err)
	}
	return papers, nil
}

// GetPaper returns a paper with its weeks.
func (s *CatalogService) GetPaper(ctx context.Context, id string) (*model.Paper, error) {
	paper, err := s.factory.Papers().Get(ctx, id)
	if err != nil {
		return nil, mapNotFound(err, errors.ErrTutorPaperNotFound)
	}
	return paper, nil
}

// GetWeek returns a week with its documents.
func (s *CatalogService) GetWeek(ctx context.Context, id string) (*model.Week, error) {
	week, err := s.factory.Weeks().Get(ctx, id)
	if err != nil {
		return nil, mapNotFound(err, errors.ErrTutorWeekNotFound)
	}
	return week, nil
}

// ListNotation returns the week's notation dictionary ordered by symbol.
func (s *CatalogService) ListNotation(ctx context.Context, weekID string) ([]*model.NotationConfig, error) {
	if _, err := s.factory.Weeks().Get(ctx, weekID); err != nil {
		return nil, mapNotFound(err, errors.ErrTutorWeekNotFound)
	}
	entries, err := s.factory.Notation().ListByWeek(ctx, weekID)
	if err != nil {
		return nil, errors.ErrDatabase.WithCause(err)
	}
	return entries, nil
}

// Reingest resets a document to uploading, drops its checkpoints and
// publishes a fresh ingestion event.
func (s *CatalogService) Reingest(ctx context.Context, documentID string) (*model.Document, error) {
	doc, err := s.factory.Documents().Get(ctx, documentID)
	if err != nil {
		return nil, mapNotFound(err, errors.ErrTutorDocumentNotFound)
	}
	if err := s.factory.Documents().SetStatus(ctx, doc.ID, model.StatusUploading, 0, ""); err != nil {
		return nil, errors.ErrDatabase.WithCause(err)
	}
	if err := s.steps.Clear(ctx, doc.ID); err != nil {
		return nil, errors.ErrTutorUploadFailed.WithCause(err)
	}
	if err := s.publisher.Publish(ctx, &model.IngestEvent{DocumentID: doc.ID, StoragePath: doc.StoragePath}); err != nil {
		return nil, errors.ErrTutorUploadFailed.WithCause(err)
	}

	doc.Status = model.StatusUploading
	doc.Error = ""
	doc.UpdatedAt = time.Now().UTC()
	logger.Infow("document re-ingestion requested", "document_id", doc.ID)
	return doc, nil
}

func mapNotFound(err error, notFound *errors.Errno) error {
	if stderrors.Is(err, store.ErrNotFound) {
		return notFound
	}
	return errors.ErrDatabase.WithCause(err)
}
