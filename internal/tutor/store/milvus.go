package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/milvusclient"

	"github.com/kart-io/tutor-x/pkg/component/milvus"
)

// MilvusStore 基于 Milvus 的向量存储实现。
type MilvusStore struct {
	client     *milvus.Client
	collection string
	dimension  int
}

var _ VectorStore = (*MilvusStore)(nil)

// NewMilvusStore creates a vector store on the client's configured collection.
func NewMilvusStore(client *milvus.Client) *MilvusStore {
	return &MilvusStore{
		client:     client,
		collection: client.Collection(),
		dimension:  client.Dimension(),
	}
}

// Upsert writes embeddings keyed by chunk id.
func (s *MilvusStore) Upsert(ctx context.Context, records []*VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	ids := make([]string, len(records))
	docIDs := make([]string, len(records))
	weekIDs := make([]string, len(records))
	vectors := make([][]float32, len(records))
	for i, r := range records {
		if len(r.Embedding) != s.dimension {
			return fmt.Errorf("vector %s has dimension %d, want %d", r.ID, len(r.Embedding), s.dimension)
		}
		ids[i] = r.ID
		docIDs[i] = r.DocumentID
		weekIDs[i] = r.WeekID
		vectors[i] = r.Embedding
	}

	opt := milvusclient.NewColumnBasedInsertOption(s.collection,
		column.NewColumnVarChar(milvus.FieldID, ids),
		column.NewColumnVarChar(milvus.FieldDocumentID, docIDs),
		column.NewColumnVarChar(milvus.FieldWeekID, weekIDs),
		column.NewColumnFloatVector(milvus.FieldEmbedding, s.dimension, vectors),
	)
	if _, err := s.client.RawClient().Upsert(ctx, opt); err != nil {
		return fmt.Errorf("failed to upsert into milvus: %w", err)
	}
	return nil
}

// Search runs a COSINE ANN search restricted to one week.
func (s *MilvusStore) Search(ctx context.Context, weekID string, embedding []float32, topK int) ([]*VectorHit, error) {
	if topK <= 0 {
		return nil, nil
	}

	results, err := s.client.RawClient().Search(ctx, milvusclient.NewSearchOption(
		s.collection,
		topK,
		[]entity.Vector{entity.FloatVector(embedding)},
	).WithANNSField(milvus.FieldEmbedding).
		WithSearchParam("ef", "64").
		WithFilter(milvus.FieldWeekID+" == "+strconv.Quote(weekID)).
		WithOutputFields(milvus.FieldDocumentID))
	if err != nil {
		return nil, fmt.Errorf("failed to search milvus: %w", err)
	}
	if len(results) == 0 {
		return []*VectorHit{}, nil
	}

	rs := results[0]
	idCol, ok := rs.IDs.(*column.ColumnVarChar)
	if !ok {
		return nil, fmt.Errorf("unexpected milvus id column type %T", rs.IDs)
	}

	ids := idCol.Data()
	hits := make([]*VectorHit, 0, rs.ResultCount)
	for i := 0; i < rs.ResultCount && i < len(ids); i++ {
		hits = append(hits, &VectorHit{ID: ids[i], Score: rs.Scores[i]})
	}
	return hits, nil
}

// Prune deletes vectors of the document whose id is not in keep.
func (s *MilvusStore) Prune(ctx context.Context, documentID string, keep []string) error {
	expr := milvus.FieldDocumentID + " == " + strconv.Quote(documentID)
	if len(keep) > 0 {
		quoted := make([]string, len(keep))
		for i, id := range keep {
			quoted[i] = strconv.Quote(id)
		}
		expr += " && " + milvus.FieldID + " not in [" + strings.Join(quoted, ",") + "]"
	}
	if _, err := s.client.RawClient().Delete(ctx, milvusclient.NewDeleteOption(s.collection).WithExpr(expr)); err != nil {
		return fmt.Errorf("failed to prune milvus vectors: %w", err)
	}
	return nil
}
