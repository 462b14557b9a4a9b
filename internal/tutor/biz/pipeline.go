package biz

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/kart-io/tutor-x/internal/model"
	"github.com/kart-io/tutor-x/internal/pkg/textutil"
	"github.com/kart-io/tutor-x/internal/tutor/metrics"
	"github.com/kart-io/tutor-x/internal/tutor/store"
	logctx "github.com/kart-io/tutor-x/pkg/infra/logger"
	"github.com/kart-io/tutor-x/pkg/infra/tracing"
	"github.com/kart-io/tutor-x/pkg/llm/resilience"
	"github.com/kart-io/tutor-x/pkg/utils/json"
)

// 流水线步骤名
const (
	StepDownload        = "download"
	StepParse           = "parse"
	StepExtractNotation = "extract-notation"
	StepSaveNotation    = "save-notation"
	StepChunk           = "chunk"
	StepEmbed           = "embed"
	StepFinalize        = "upsert-and-finalize"
)

// ErrDocumentNotFound is returned when the event names an unknown document.
var ErrDocumentNotFound = errors.New("document not found")

// IngestResult 一次摄取的结果。
type IngestResult struct {
	DocumentID string
	ChunkCount int
	// Resumed 从检查点恢复、未重新执行的步骤
	Resumed []string
	// Skipped 文档已处于 processed 状态
	Skipped bool
}

// Pipeline 文档摄取流水线。步骤顺序执行，每步带重试与检查点。
type Pipeline struct {
	factory  store.Factory
	blobs    store.BlobStore
	vectors  store.VectorStore
	steps    store.StepStore
	events   store.EventBroker
	parser   Parser
	notation *NotationExtractor
	embedder *Embedder
	chunker  *Chunker
	retry    *resilience.RetryConfig
	metrics  *metrics.Metrics
}

// PipelineDeps 流水线依赖。
type PipelineDeps struct {
	Factory  store.Factory
	Blobs    store.BlobStore
	Vectors  store.VectorStore
	Steps    store.StepStore
	Events   store.EventBroker
	Parser   Parser
	Notation *NotationExtractor
	Embedder *Embedder
	Chunker  *Chunker
	Retry    *resilience.RetryConfig
	Metrics  *metrics.Metrics
}

// NewPipeline creates a pipeline. Nil Chunker and Retry use defaults.
func NewPipeline(deps PipelineDeps) *Pipeline {
	if deps.Chunker == nil {
		deps.Chunker = NewChunker()
	}
	if deps.Retry == nil {
		deps.Retry = resilience.DefaultRetryConfig()
	}
	return &Pipeline{
		factory:  deps.Factory,
		blobs:    deps.Blobs,
		vectors:  deps.Vectors,
		steps:    deps.Steps,
		events:   deps.Events,
		parser:   deps.Parser,
		notation: deps.Notation,
		embedder: deps.Embedder,
		chunker:  deps.Chunker,
		retry:    deps.Retry,
		metrics:  deps.Metrics,
	}
}

// Run ingests one document. On any error before finalization the document
// status is left unchanged.
func (p *Pipeline) Run(ctx context.Context, ev *model.IngestEvent) (*IngestResult, error) {
	ctx, span := tracing.StartSpan(ctx, "tutor.ingest", attribute.String(tracing.AttrDocumentID, ev.DocumentID))
	defer span.End()
	defer p.metrics.IngestStarted()()

	res, err := p.run(ctx, ev)
	tracing.RecordError(ctx, err)
	return res, err
}

func (p *Pipeline) run(ctx context.Context, ev *model.IngestEvent) (*IngestResult, error) {
	ctx = logctx.WithDocumentID(ctx, ev.DocumentID)
	log := logctx.FromContext(ctx).With("storage_path", ev.StoragePath)
	res := &IngestResult{DocumentID: ev.DocumentID}

	doc, err := p.factory.Documents().Get(ctx, ev.DocumentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, &PersistenceError{Op: "load document", Err: err}
	}
	if doc.Status == model.StatusProcessed {
		log.Infow("document already processed, skipping")
		res.Skipped = true
		res.ChunkCount = doc.ChunkCount
		return res, nil
	}
	week, err := p.factory.Weeks().Get(ctx, doc.WeekID)
	if err != nil {
		return nil, &PersistenceError{Op: "load week", Err: err}
	}
	storagePath := ev.StoragePath
	if storagePath == "" {
		storagePath = doc.StoragePath
	}

	// 1-2. 下载并解析；解析结果已有检查点时跳过下载
	markdown, resumed, err := runStep(ctx, p, res, doc.ID, StepParse, func(ctx context.Context) (string, error) {
		data, err := p.download(ctx, storagePath)
		if err != nil {
			return "", err
		}
		md, err := p.parser.Parse(ctx, path.Base(storagePath), data)
		if err != nil {
			return "", &ParseError{Path: storagePath, Err: err}
		}
		return md, nil
	})
	if err != nil {
		return nil, err
	}
	if resumed {
		log.Debugw("download skipped, parse output restored")
	}

	// 3-4. 本周首个文档提取符号表；失败只降级
	p.ingestNotation(ctx, res, doc, week, markdown)

	// 5. 分块
	chunks, _, err := runStep(ctx, p, res, doc.ID, StepChunk, func(context.Context) ([]string, error) {
		out := p.chunker.Chunk(markdown)
		if len(out) == 0 {
			return nil, resilience.Permanent(&DegenerateDocumentError{DocumentID: doc.ID})
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}

	// 6. 批量嵌入
	vectors, _, err := runStep(ctx, p, res, doc.ID, StepEmbed, func(ctx context.Context) ([][]float32, error) {
		return p.embedder.Embed(ctx, chunks)
	})
	if err != nil {
		return nil, err
	}

	// 7. 写入并完成
	count, _, err := runStep(ctx, p, res, doc.ID, StepFinalize, func(ctx context.Context) (int, error) {
		return p.finalize(ctx, doc, chunks, vectors)
	})
	if err != nil {
		return nil, err
	}
	res.ChunkCount = count

	if err := p.steps.Clear(ctx, doc.ID); err != nil {
		log.Warnw("failed to clear ingestion checkpoints", "error", err.Error())
	}
	p.publish(ctx, &model.StatusChangeEvent{
		DocumentID: doc.ID,
		WeekID:     doc.WeekID,
		Status:     model.StatusProcessed,
		ChunkCount: count,
		At:         time.Now().UTC(),
	})
	p.metrics.RecordDocumentStatus(string(model.StatusProcessed))
	log.Infow("document ingested", "chunks", count, "resumed", res.Resumed)
	return res, nil
}

func (p *Pipeline) download(ctx context.Context, storagePath string) ([]byte, error) {
	start := time.Now()
	data, err := p.blobs.Get(ctx, storagePath)
	p.metrics.RecordStep(StepDownload, time.Since(start), err)
	if err != nil {
		return nil, &RetrievalError{Path: storagePath, Err: err}
	}
	return data, nil
}

func (p *Pipeline) ingestNotation(ctx context.Context, res *IngestResult, doc *model.Document, week *model.Week, markdown string) {
	log := logctx.FromContext(logctx.WithWeekID(ctx, week.ID))

	exists, err := p.factory.Notation().Exists(ctx, week.ID)
	if err != nil {
		log.Warnw("notation lookup failed, skipping extraction", "error", err.Error())
		return
	}
	if exists {
		return
	}

	entries, _, _ := runStep(ctx, p, res, doc.ID, StepExtractNotation, func(ctx context.Context) ([]NotationEntry, error) {
		return p.notation.Extract(ctx, week.Term, markdown), nil
	})
	if len(entries) == 0 {
		log.Infow("no notation extracted")
		return
	}

	_, _, err = runStep(ctx, p, res, doc.ID, StepSaveNotation, func(ctx context.Context) (int, error) {
		if err := p.factory.Notation().Replace(ctx, week.ID, toNotationConfigs(week.ID, entries)); err != nil {
			return 0, &PersistenceError{Op: "save notation", Err: err}
		}
		return len(entries), nil
	})
	if err != nil {
		log.Warnw("failed to save notation", "error", err.Error())
	}
}

// finalize 写入分块与向量，清理旧解析遗留的数据，最后把状态置为 processed。
func (p *Pipeline) finalize(ctx context.Context, doc *model.Document, chunks []string, vectors [][]float32) (int, error) {
	if len(vectors) != len(chunks) {
		return 0, resilience.Permanent(&EmbeddingError{Err: fmt.Errorf("%d vectors for %d chunks", len(vectors), len(chunks))})
	}

	sourceType := doc.Type.SourceType()
	rows := make([]*model.DocumentChunk, 0, len(chunks))
	records := make([]*store.VectorRecord, 0, len(chunks))
	keep := make([]string, 0, len(chunks))
	seen := make(map[string]struct{}, len(chunks))
	for i, content := range chunks {
		hash := textutil.HashString(content)
		id := model.ChunkID(doc.ID, hash)
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		keep = append(keep, id)
		rows = append(rows, &model.DocumentChunk{
			ID:                  id,
			DocumentID:          doc.ID,
			WeekID:              doc.WeekID,
			ContentHash:         hash,
			Position:            i,
			Content:             content,
			SourceType:          sourceType,
			MathematicalDensity: Density(content),
		})
		records = append(records, &store.VectorRecord{
			ID:         id,
			DocumentID: doc.ID,
			WeekID:     doc.WeekID,
			Embedding:  vectors[i],
		})
	}

	if err := p.factory.Chunks().Upsert(ctx, rows); err != nil {
		return 0, &PersistenceError{Op: "upsert chunks", Err: err}
	}
	if err := p.vectors.Upsert(ctx, records); err != nil {
		return 0, &PersistenceError{Op: "upsert vectors", Err: err}
	}
	if err := p.factory.Chunks().Prune(ctx, doc.ID, keep); err != nil {
		return 0, &PersistenceError{Op: "prune chunks", Err: err}
	}
	if err := p.vectors.Prune(ctx, doc.ID, keep); err != nil {
		return 0, &PersistenceError{Op: "prune vectors", Err: err}
	}
	if err := p.factory.Documents().SetStatus(ctx, doc.ID, model.StatusProcessed, len(rows), ""); err != nil {
		return 0, &PersistenceError{Op: "finalize status", Err: err}
	}
	p.metrics.RecordChunks(len(rows))
	return len(rows), nil
}

func (p *Pipeline) publish(ctx context.Context, ev *model.StatusChangeEvent) {
	if p.events == nil {
		return
	}
	if err := p.events.Publish(ctx, ev); err != nil {
		logctx.FromContext(ctx).Warnw("failed to publish status event", "error", err.Error())
	}
}

// runStep 执行一个带检查点与重试的步骤。resumed 表示输出来自检查点。
func runStep[T any](ctx context.Context, p *Pipeline, res *IngestResult, documentID, step string, fn func(context.Context) (T, error)) (out T, resumed bool, err error) {
	if data, ok, lerr := p.steps.Load(ctx, documentID, step); lerr != nil {
		logctx.FromContext(ctx).Warnw("checkpoint load failed, re-running step", "step", step, "error", lerr.Error())
	} else if ok {
		if uerr := json.Unmarshal(data, &out); uerr == nil {
			res.Resumed = append(res.Resumed, step)
			return out, true, nil
		}
		logctx.FromContext(ctx).Warnw("corrupt checkpoint, re-running step", "step", step)
	}

	ctx, span := tracing.StartSpan(ctx, "tutor.ingest."+step,
		attribute.String(tracing.AttrDocumentID, documentID),
		attribute.String(tracing.AttrStep, step))
	defer span.End()

	err = resilience.RetryWithBackoff(ctx, p.retry, func(ctx context.Context) error {
		start := time.Now()
		v, ferr := fn(ctx)
		p.metrics.RecordStep(step, time.Since(start), ferr)
		if ferr != nil {
			return ferr
		}
		out = v
		return nil
	})
	if err != nil {
		tracing.RecordError(ctx, err)
		var zero T
		return zero, false, fmt.Errorf("step %s: %w", step, err)
	}

	if data, merr := json.Marshal(out); merr == nil {
		if serr := p.steps.Save(ctx, documentID, step, data); serr != nil {
			logctx.FromContext(ctx).Warnw("checkpoint save failed", "step", step, "error", serr.Error())
		}
	}
	// 进度心跳，watchdog 以 updated_at 判断是否卡住
	if terr := p.factory.Documents().Touch(ctx, documentID); terr != nil {
		logctx.FromContext(ctx).Warnw("failed to record step progress", "step", step, "error", terr.Error())
	}
	return out, false, nil
}
