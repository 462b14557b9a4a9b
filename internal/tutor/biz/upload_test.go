package biz

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/tutor-x/internal/model"
	"github.com/kart-io/tutor-x/internal/tutor/store"
	errno "github.com/kart-io/tutor-x/pkg/utils/errors"
)

type failingBlobs struct {
	store.BlobStore
	failOn string
}

func (f *failingBlobs) Put(ctx context.Context, path string, data []byte, contentType string) error {
	if path == f.failOn {
		return errors.New("storage quota exceeded")
	}
	return f.BlobStore.Put(ctx, path, data, contentType)
}

func newUploadEnv(t *testing.T) (*UploadService, store.Factory, *model.Paper, store.BlobStore, *store.MemoryStepStore, *mockPublisher) {
	t.Helper()
	f := setupFactory(t)
	paper := &model.Paper{Title: "Macroeconomics", Year: 2025}
	require.NoError(t, f.Papers().Create(context.Background(), paper))
	blobs, err := store.NewLocalBlobStore(t.TempDir())
	require.NoError(t, err)
	steps := store.NewMemoryStepStore()
	pub := &mockPublisher{}
	return NewUploadService(f, blobs, steps, pub), f, paper, blobs, steps, pub
}

func TestStoragePath(t *testing.T) {
	assert.Equal(t, "paper-p1/Lent/week-4/supervision/sheet.pdf",
		StoragePath("p1", "Lent", 4, model.MaterialSupervision, "sheet.pdf"))
	assert.Equal(t, "paper-p1/Lent/week-4/lecture/passwd",
		StoragePath("p1", "Lent", 4, model.MaterialLecture, "../../etc/passwd"))
}

func TestUploadService_Upload(t *testing.T) {
	svc, f, paper, blobs, _, pub := newUploadEnv(t)
	ctx := context.Background()

	res, err := svc.Upload(ctx, &UploadRequest{
		PaperID:    paper.ID,
		Term:       "Michaelmas",
		WeekNumber: 1,
		Type:       model.MaterialLecture,
		Files: []*UploadFile{
			{Name: "l1.pdf", ContentType: "application/pdf", Data: []byte("one")},
			{Name: "l2.pdf", ContentType: "application/pdf", Data: []byte("two")},
		},
	})
	require.NoError(t, err)
	require.Len(t, res.Results, 2)
	for _, r := range res.Results {
		assert.Equal(t, UploadSuccess, r.Status)
		assert.NotEmpty(t, r.DocumentID)
	}

	week, err := f.Weeks().Get(ctx, res.WeekID)
	require.NoError(t, err)
	assert.Equal(t, "Week 1 - Michaelmas", week.Topic)
	require.Len(t, week.Documents, 2)
	assert.Equal(t, model.StatusUploading, week.Documents[0].Status)

	require.Len(t, pub.events, 2)
	assert.Equal(t, res.Results[0].DocumentID, pub.events[0].DocumentID)
	assert.Equal(t, "paper-"+paper.ID+"/Michaelmas/week-1/lecture/l1.pdf", pub.events[0].StoragePath)

	data, err := blobs.Get(ctx, pub.events[1].StoragePath)
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))
}

func TestUploadService_PartialFailure(t *testing.T) {
	svc, _, paper, blobs, _, pub := newUploadEnv(t)
	svc.blobs = &failingBlobs{BlobStore: blobs, failOn: StoragePath(paper.ID, "Lent", 2, model.MaterialTextbook, "bad.pdf")}

	res, err := svc.Upload(context.Background(), &UploadRequest{
		PaperID:    paper.ID,
		Term:       "Lent",
		WeekNumber: 2,
		Type:       model.MaterialTextbook,
		Files:      []*UploadFile{{Name: "bad.pdf"}, {Name: "good.pdf"}},
	})
	require.NoError(t, err)
	require.Len(t, res.Results, 2)
	assert.Equal(t, UploadFailed, res.Results[0].Status)
	assert.Contains(t, res.Results[0].Error, "quota")
	assert.Empty(t, res.Results[0].DocumentID)
	assert.Equal(t, UploadSuccess, res.Results[1].Status)
	assert.Len(t, pub.events, 1)
}

func TestUploadService_ReuploadReusesDocument(t *testing.T) {
	svc, f, paper, _, steps, pub := newUploadEnv(t)
	ctx := context.Background()
	req := &UploadRequest{
		PaperID: paper.ID, Term: "Easter", WeekNumber: 3, Type: model.MaterialLecture,
		Files: []*UploadFile{{Name: "notes.md", Data: []byte("v1")}},
	}

	first, err := svc.Upload(ctx, req)
	require.NoError(t, err)
	docID := first.Results[0].DocumentID
	require.NoError(t, f.Documents().SetStatus(ctx, docID, model.StatusFailed, 0, "boom"))
	require.NoError(t, steps.Save(ctx, docID, StepParse, []byte(`"stale"`)))

	req.Files[0].Data = []byte("v2")
	second, err := svc.Upload(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, docID, second.Results[0].DocumentID)

	doc, err := f.Documents().Get(ctx, docID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusUploading, doc.Status)
	assert.Empty(t, doc.Error)
	_, ok, err := steps.Load(ctx, docID, StepParse)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Len(t, pub.events, 2)
}

func TestUploadService_Validation(t *testing.T) {
	svc, _, paper, _, _, pub := newUploadEnv(t)
	ctx := context.Background()
	files := []*UploadFile{{Name: "a.pdf"}}

	_, err := svc.Upload(ctx, &UploadRequest{PaperID: paper.ID, Term: "Lent", Type: model.MaterialLecture, Files: files})
	assert.ErrorIs(t, err, errno.ErrTutorInvalidUpload)

	_, err = svc.Upload(ctx, &UploadRequest{PaperID: paper.ID, Term: "Lent", WeekNumber: 1, Type: model.MaterialLecture})
	assert.ErrorIs(t, err, errno.ErrTutorInvalidUpload)

	_, err = svc.Upload(ctx, &UploadRequest{PaperID: paper.ID, Term: "Lent", WeekNumber: 1, Type: "video", Files: files})
	assert.ErrorIs(t, err, errno.ErrTutorInvalidMaterial)

	_, err = svc.Upload(ctx, &UploadRequest{PaperID: "missing", Term: "Lent", WeekNumber: 1, Type: model.MaterialLecture, Files: files})
	assert.ErrorIs(t, err, errno.ErrTutorPaperNotFound)

	assert.Empty(t, pub.events)
}

func TestUploadService_PublishFailure(t *testing.T) {
	svc, _, paper, _, _, pub := newUploadEnv(t)
	pub.err = errors.New("nats unavailable")

	res, err := svc.Upload(context.Background(), &UploadRequest{
		PaperID: paper.ID, Term: "Lent", WeekNumber: 1, Type: model.MaterialLecture,
		Files: []*UploadFile{{Name: "a.pdf"}},
	})
	require.NoError(t, err)
	assert.Equal(t, UploadFailed, res.Results[0].Status)
	assert.Contains(t, res.Results[0].Error, "trigger ingestion")
}
