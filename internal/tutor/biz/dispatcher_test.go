package biz

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/tutor-x/internal/model"
	"github.com/kart-io/tutor-x/internal/tutor/store"
)

func TestIngestHandler_Success(t *testing.T) {
	env := newPipelineEnv(t, twoSectionNotes)
	h := NewIngestHandler(env.pipeline, env.factory.Documents(), env.events, nil)

	require.NoError(t, h.Handle(context.Background(), env.event(), false))
	assert.Equal(t, model.StatusProcessed, env.status(t).Status)
}

func TestIngestHandler_DegenerateMarksFailed(t *testing.T) {
	env := newPipelineEnv(t, "")
	h := NewIngestHandler(env.pipeline, env.factory.Documents(), env.events, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub, err := env.events.Subscribe(ctx, env.week.ID)
	require.NoError(t, err)

	require.NoError(t, h.Handle(ctx, env.event(), false))
	doc := env.status(t)
	assert.Equal(t, model.StatusFailed, doc.Status)
	assert.Contains(t, doc.Error, "produced no chunks")

	select {
	case ev := <-sub:
		assert.Equal(t, model.StatusFailed, ev.Status)
		assert.NotEmpty(t, ev.Error)
	case <-time.After(time.Second):
		t.Fatal("no failed event")
	}
}

func TestIngestHandler_RetryableAwaitsRedelivery(t *testing.T) {
	env := newPipelineEnv(t, twoSectionNotes)
	env.embed.err = errors.New("embedding service down")
	h := NewIngestHandler(env.pipeline, env.factory.Documents(), env.events, nil)

	err := h.Handle(context.Background(), env.event(), false)
	require.Error(t, err)
	assert.Equal(t, model.StatusUploading, env.status(t).Status)

	require.NoError(t, h.Handle(context.Background(), env.event(), true))
	assert.Equal(t, model.StatusFailed, env.status(t).Status)
}

func TestIngestHandler_UnknownDocumentDropped(t *testing.T) {
	env := newPipelineEnv(t, twoSectionNotes)
	h := NewIngestHandler(env.pipeline, env.factory.Documents(), env.events, nil)

	assert.NoError(t, h.Handle(context.Background(), &model.IngestEvent{DocumentID: "ghost", StoragePath: "x"}, false))
}

func TestMarkFailed_KeepsProcessed(t *testing.T) {
	env := newPipelineEnv(t, twoSectionNotes)
	ctx := context.Background()
	_, err := env.pipeline.Run(ctx, env.event())
	require.NoError(t, err)

	require.NoError(t, MarkFailed(ctx, env.factory.Documents(), env.events, nil, env.doc.ID, "late failure"))
	assert.Equal(t, model.StatusProcessed, env.status(t).Status)
}

// finishingDocuments 在读取文档后模拟另一条流水线把它置为 processed。
type finishingDocuments struct {
	store.DocumentStore
}

func (d *finishingDocuments) Get(ctx context.Context, id string) (*model.Document, error) {
	doc, err := d.DocumentStore.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := d.DocumentStore.SetStatus(ctx, id, model.StatusProcessed, 3, ""); err != nil {
		return nil, err
	}
	return doc, nil
}

func TestMarkFailed_ConcurrentFinalizeWins(t *testing.T) {
	env := newPipelineEnv(t, twoSectionNotes)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := env.events.Subscribe(ctx, env.week.ID)
	require.NoError(t, err)

	docs := &finishingDocuments{DocumentStore: env.factory.Documents()}
	require.NoError(t, MarkFailed(ctx, docs, env.events, nil, env.doc.ID, "stuck"))

	doc := env.status(t)
	assert.Equal(t, model.StatusProcessed, doc.Status)
	assert.Equal(t, 3, doc.ChunkCount)
	assert.Empty(t, doc.Error)

	select {
	case ev := <-sub:
		t.Fatalf("unexpected %s event", ev.Status)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestWatchdog_Sweep(t *testing.T) {
	env := newPipelineEnv(t, twoSectionNotes)
	ctx := context.Background()

	done := &model.Document{WeekID: env.week.ID, StoragePath: "done.pdf", Type: model.MaterialTextbook, Status: model.StatusProcessed}
	require.NoError(t, env.factory.Documents().Create(ctx, done))

	w := NewWatchdog(env.factory.Documents(), env.events, &WatchdogConfig{StuckAfter: time.Hour}, nil)

	n, err := w.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, model.StatusUploading, env.status(t).Status)

	w.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	n, err = w.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	doc := env.status(t)
	assert.Equal(t, model.StatusFailed, doc.Status)
	assert.Contains(t, doc.Error, "did not finish within 1h0m0s")

	got, err := env.factory.Documents().Get(ctx, done.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusProcessed, got.Status)
}

func TestWatchdog_StartStop(t *testing.T) {
	env := newPipelineEnv(t, twoSectionNotes)
	w := NewWatchdog(env.factory.Documents(), env.events, &WatchdogConfig{Interval: 10 * time.Millisecond, StuckAfter: time.Hour}, nil)
	assert.Equal(t, "ingest-watchdog", w.Name())

	require.NoError(t, w.Start(context.Background()))
	time.Sleep(30 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, w.Stop(ctx))
}

func TestMemoryBroker(t *testing.T) {
	b := NewMemoryBroker(1)
	ctx, cancel := context.WithCancel(context.Background())

	sub, err := b.Subscribe(ctx, "w1")
	require.NoError(t, err)

	require.NoError(t, b.Publish(ctx, &model.StatusChangeEvent{DocumentID: "d1", WeekID: "w1", Status: model.StatusProcessed}))
	require.NoError(t, b.Publish(ctx, &model.StatusChangeEvent{DocumentID: "other", WeekID: "w2"}))
	// 缓冲区已满，丢弃
	require.NoError(t, b.Publish(ctx, &model.StatusChangeEvent{DocumentID: "d2", WeekID: "w1"}))

	ev := <-sub
	assert.Equal(t, "d1", ev.DocumentID)

	cancel()
	select {
	case _, ok := <-sub:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("subscription not closed")
	}
}
