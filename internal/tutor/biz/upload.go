package biz

import (
	"context"
	stderrors "errors"
	"fmt"
	"path"

	"github.com/kart-io/logger"

	"github.com/kart-io/tutor-x/internal/model"
	"github.com/kart-io/tutor-x/internal/tutor/store"
	"github.com/kart-io/tutor-x/pkg/utils/errors"
)

// 单个文件的上传结果状态
const (
	UploadSuccess = "success"
	UploadFailed  = "failed"
)

// UploadFile 一个待上传的文件。
type UploadFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// UploadRequest 一次上传请求，所有文件属于同一教学周和资料类型。
type UploadRequest struct {
	PaperID    string
	Term       string
	WeekNumber int
	Type       model.MaterialType
	Files      []*UploadFile
}

// FileResult 单个文件的处理结果。
type FileResult struct {
	File       string `json:"file"`
	Status     string `json:"status"`
	DocumentID string `json:"documentId,omitempty"`
	Error      string `json:"error,omitempty"`
}

// UploadResult 整个请求的结果。
type UploadResult struct {
	WeekID  string        `json:"weekId"`
	Results []*FileResult `json:"results"`
}

// UploadService 保存上传的资料并触发摄取。
type UploadService struct {
	factory   store.Factory
	blobs     store.BlobStore
	steps     store.StepStore
	publisher IngestPublisher
}

// NewUploadService creates an UploadService.
func NewUploadService(factory store.Factory, blobs store.BlobStore, steps store.StepStore, publisher IngestPublisher) *UploadService {
	return &UploadService{factory: factory, blobs: blobs, steps: steps, publisher: publisher}
}

// StoragePath returns the blob key of an uploaded file.
func StoragePath(paperID, term string, weekNumber int, typ model.MaterialType, fileName string) string {
	return fmt.Sprintf("paper-%s/%s/week-%d/%s/%s", paperID, term, weekNumber, typ, path.Base(fileName))
}

// Upload stores every file, records it as uploading and publishes an
// ingestion event. A failing file is reported in its result and does not
// stop the remaining files.
func (s *UploadService) Upload(ctx context.Context, req *UploadRequest) (*UploadResult, error) {
	if req == nil || req.PaperID == "" || req.Term == "" || req.WeekNumber < 1 || req.Type == "" || len(req.Files) == 0 {
		return nil, errors.ErrTutorInvalidUpload.WithMessage("Missing required fields")
	}
	if !req.Type.Valid() {
		return nil, errors.ErrTutorInvalidMaterial.WithMessagef("Unknown material type %q", req.Type)
	}

	if _, err := s.factory.Papers().Get(ctx, req.PaperID); err != nil {
		if stderrors.Is(err, store.ErrNotFound) {
			return nil, errors.ErrTutorPaperNotFound
		}
		return nil, errors.ErrTutorUploadFailed.WithCause(err)
	}

	week, err := s.factory.Weeks().GetOrCreate(ctx, req.PaperID, req.Term, req.WeekNumber)
	if err != nil {
		return nil, errors.ErrTutorUploadFailed.WithMessagef("Failed to create week: %v", err)
	}

	result := &UploadResult{WeekID: week.ID, Results: make([]*FileResult, 0, len(req.Files))}
	for _, f := range req.Files {
		result.Results = append(result.Results, s.uploadOne(ctx, req, week, f))
	}
	return result, nil
}

func (s *UploadService) uploadOne(ctx context.Context, req *UploadRequest, week *model.Week, f *UploadFile) *FileResult {
	res := &FileResult{File: f.Name}
	fail := func(err error) *FileResult {
		logger.Warnw("upload failed", "file", f.Name, "week_id", week.ID, "error", err.Error())
		res.Status = UploadFailed
		res.Error = err.Error()
		return res
	}

	storagePath := StoragePath(req.PaperID, req.Term, req.WeekNumber, req.Type, f.Name)
	if err := s.blobs.Put(ctx, storagePath, f.Data, f.ContentType); err != nil {
		return fail(err)
	}

	// 同一路径重复上传时复用文档记录，重新摄取会覆盖旧分块
	doc, err := s.factory.Documents().GetByStoragePath(ctx, storagePath)
	switch {
	case err == nil:
		if err := s.factory.Documents().SetStatus(ctx, doc.ID, model.StatusUploading, 0, ""); err != nil {
			return fail(err)
		}
		// 旧检查点对应旧文件内容
		if err := s.steps.Clear(ctx, doc.ID); err != nil {
			return fail(err)
		}
	case stderrors.Is(err, store.ErrNotFound):
		doc = &model.Document{
			WeekID:      week.ID,
			StoragePath: storagePath,
			FileName:    path.Base(f.Name),
			ContentType: f.ContentType,
			Type:        req.Type,
			Status:      model.StatusUploading,
		}
		if err := s.factory.Documents().Create(ctx, doc); err != nil {
			return fail(err)
		}
	default:
		return fail(err)
	}

	if err := s.publisher.Publish(ctx, &model.IngestEvent{DocumentID: doc.ID, StoragePath: storagePath}); err != nil {
		return fail(fmt.Errorf("trigger ingestion: %w", err))
	}

	logger.Infow("material uploaded", "file", f.Name, "document_id", doc.ID, "week_id", week.ID, "type", string(req.Type))
	res.Status = UploadSuccess
	res.DocumentID = doc.ID
	return res
}
