package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/tutor-x/internal/model"
	"github.com/kart-io/tutor-x/pkg/component/database"
	dbopts "github.com/kart-io/tutor-x/pkg/options/database"
)

func setupFactory(t *testing.T) Factory {
	t.Helper()
	opts := dbopts.NewOptions()
	opts.Driver = dbopts.DriverSQLite
	opts.SQLitePath = ":memory:"

	db, err := database.New(context.Background(), opts)
	require.NoError(t, err)

	f := NewFactory(db)
	require.NoError(t, f.AutoMigrate())
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func seedWeek(t *testing.T, f Factory) (*model.Paper, *model.Week) {
	t.Helper()
	ctx := context.Background()
	paper := &model.Paper{Title: "Microeconomics", Year: 2024}
	require.NoError(t, f.Papers().Create(ctx, paper))
	week, err := f.Weeks().GetOrCreate(ctx, paper.ID, "Michaelmas", 3)
	require.NoError(t, err)
	return paper, week
}

func TestPapersAndWeeks(t *testing.T) {
	f := setupFactory(t)
	ctx := context.Background()
	paper, week := seedWeek(t, f)

	assert.NotEmpty(t, paper.ID)
	assert.Equal(t, "Week 3 - Michaelmas", week.Topic)

	again, err := f.Weeks().GetOrCreate(ctx, paper.ID, "Michaelmas", 3)
	require.NoError(t, err)
	assert.Equal(t, week.ID, again.ID)

	_, err = f.Weeks().GetOrCreate(ctx, paper.ID, "Michaelmas", 1)
	require.NoError(t, err)

	got, err := f.Papers().Get(ctx, paper.ID)
	require.NoError(t, err)
	require.Len(t, got.Weeks, 2)
	assert.Equal(t, 1, got.Weeks[0].WeekNumber)
	assert.Equal(t, 3, got.Weeks[1].WeekNumber)

	list, err := f.Papers().List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = f.Papers().Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.Weeks().Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWeeks_GetOrCreateConcurrent(t *testing.T) {
	f := setupFactory(t)
	paper, _ := seedWeek(t, f)

	var wg sync.WaitGroup
	ids := make([]string, 4)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			w, err := f.Weeks().GetOrCreate(context.Background(), paper.ID, "Lent", 5)
			if assert.NoError(t, err) {
				ids[i] = w.ID
			}
		}(i)
	}
	wg.Wait()
	for _, id := range ids[1:] {
		assert.Equal(t, ids[0], id)
	}
}

func TestDocuments(t *testing.T) {
	f := setupFactory(t)
	ctx := context.Background()
	_, week := seedWeek(t, f)

	doc := &model.Document{WeekID: week.ID, StoragePath: "p/notes.pdf", FileName: "notes.pdf", Type: model.MaterialLecture, Status: model.StatusUploading}
	require.NoError(t, f.Documents().Create(ctx, doc))

	require.NoError(t, f.Documents().SetStatus(ctx, doc.ID, model.StatusProcessed, 7, ""))
	got, err := f.Documents().Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusProcessed, got.Status)
	assert.Equal(t, 7, got.ChunkCount)

	byPath, err := f.Documents().GetByStoragePath(ctx, "p/notes.pdf")
	require.NoError(t, err)
	assert.Equal(t, doc.ID, byPath.ID)

	stuck := &model.Document{WeekID: week.ID, StoragePath: "p/old.pdf", Type: model.MaterialTextbook, Status: model.StatusUploading}
	require.NoError(t, f.Documents().Create(ctx, stuck))
	stale, err := f.Documents().ListStale(ctx, model.StatusUploading, time.Now().Add(time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, stuck.ID, stale[0].ID)

	stale, err = f.Documents().ListStale(ctx, model.StatusUploading, time.Now().Add(-time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, stale)

	w, err := f.Weeks().Get(ctx, week.ID)
	require.NoError(t, err)
	assert.Len(t, w.Documents, 2)
}

func TestDocuments_TransitionStatus(t *testing.T) {
	f := setupFactory(t)
	ctx := context.Background()
	_, week := seedWeek(t, f)

	doc := &model.Document{WeekID: week.ID, StoragePath: "p/cas.pdf", Type: model.MaterialLecture, Status: model.StatusUploading}
	require.NoError(t, f.Documents().Create(ctx, doc))

	changed, err := f.Documents().TransitionStatus(ctx, doc.ID, model.StatusUploading, model.StatusProcessed, 4, "")
	require.NoError(t, err)
	assert.True(t, changed)

	// 已离开 uploading，不再覆盖
	changed, err = f.Documents().TransitionStatus(ctx, doc.ID, model.StatusUploading, model.StatusFailed, 0, "late")
	require.NoError(t, err)
	assert.False(t, changed)

	got, err := f.Documents().Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusProcessed, got.Status)
	assert.Equal(t, 4, got.ChunkCount)
	assert.Empty(t, got.Error)

	changed, err = f.Documents().TransitionStatus(ctx, "missing", model.StatusUploading, model.StatusFailed, 0, "x")
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestDocuments_TouchKeepsFresh(t *testing.T) {
	f := setupFactory(t)
	ctx := context.Background()
	_, week := seedWeek(t, f)
	db := f.(*datastore).db

	doc := &model.Document{WeekID: week.ID, StoragePath: "p/slow.pdf", Type: model.MaterialLecture, Status: model.StatusUploading}
	require.NoError(t, f.Documents().Create(ctx, doc))
	require.NoError(t, db.Model(&model.Document{}).Where("id = ?", doc.ID).
		UpdateColumn("updated_at", time.Now().UTC().Add(-2*time.Hour)).Error)

	cutoff := time.Now().Add(-time.Hour)
	stale, err := f.Documents().ListStale(ctx, model.StatusUploading, cutoff, 10)
	require.NoError(t, err)
	require.Len(t, stale, 1)

	require.NoError(t, f.Documents().Touch(ctx, doc.ID))
	stale, err = f.Documents().ListStale(ctx, model.StatusUploading, cutoff, 10)
	require.NoError(t, err)
	assert.Empty(t, stale)
}

func chunkRow(docID, weekID, content string, pos int) *model.DocumentChunk {
	hash := "h-" + content
	return &model.DocumentChunk{
		ID:          model.ChunkID(docID, hash),
		DocumentID:  docID,
		WeekID:      weekID,
		ContentHash: hash,
		Position:    pos,
		Content:     content,
		SourceType:  model.SourceLecture,
	}
}

func TestChunks_UpsertConverges(t *testing.T) {
	f := setupFactory(t)
	ctx := context.Background()
	_, week := seedWeek(t, f)

	rows := []*model.DocumentChunk{
		chunkRow("d1", week.ID, "Consumer surplus is the area under demand", 0),
		chunkRow("d1", week.ID, "Elasticity measures responsiveness", 1),
	}
	require.NoError(t, f.Chunks().Upsert(ctx, rows))

	again := chunkRow("d1", week.ID, "Elasticity measures responsiveness", 1)
	again.MathematicalDensity = 0.5
	require.NoError(t, f.Chunks().Upsert(ctx, []*model.DocumentChunk{again}))

	n, err := f.Chunks().CountByDocument(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	got, err := f.Chunks().GetByIDs(ctx, []string{again.ID})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.InDelta(t, 0.5, got[0].MathematicalDensity, 1e-9)

	all, err := f.Chunks().ListByWeek(ctx, week.ID, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, 0, all[0].Position)

	require.NoError(t, f.Chunks().Prune(ctx, "d1", []string{again.ID}))
	n, err = f.Chunks().CountByDocument(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, f.Chunks().Prune(ctx, "d1", nil))
	n, err = f.Chunks().CountByDocument(ctx, "d1")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestChunks_SearchLexical(t *testing.T) {
	f := setupFactory(t)
	ctx := context.Background()
	_, week := seedWeek(t, f)

	require.NoError(t, f.Chunks().Upsert(ctx, []*model.DocumentChunk{
		chunkRow("d1", week.ID, "Price Elasticity of demand", 0),
		chunkRow("d1", week.ID, "Game theory and Nash equilibrium", 1),
		chunkRow("d2", "other-week", "Elasticity in another week", 0),
	}))

	got, err := f.Chunks().SearchLexical(ctx, week.ID, []string{"elasticity", "monopoly"}, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Contains(t, got[0].Content, "Price Elasticity")

	got, err = f.Chunks().SearchLexical(ctx, week.ID, nil, 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestNotation(t *testing.T) {
	f := setupFactory(t)
	ctx := context.Background()
	_, week := seedWeek(t, f)

	ok, err := f.Notation().Exists(ctx, week.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, f.Notation().Replace(ctx, week.ID, []*model.NotationConfig{
		{Term: "utility", Symbol: "U", Definition: "utility function"},
		{Term: "elasticity", Symbol: "\\epsilon", Definition: "price elasticity"},
	}))
	require.NoError(t, f.Notation().Replace(ctx, week.ID, []*model.NotationConfig{
		{Term: "utility", Symbol: "U", Definition: "ordinal utility"},
	}))

	ok, err = f.Notation().Exists(ctx, week.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	list, err := f.Notation().ListByWeek(ctx, week.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "U", list[0].Symbol)
	assert.Equal(t, "ordinal utility", list[0].Definition)
	assert.Equal(t, "\\epsilon", list[1].Symbol)
}
