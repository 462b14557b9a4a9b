package store

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kart-io/tutor-x/internal/model"
)

const upsertBatchSize = 100

type chunks struct {
	db *gorm.DB
}

func newChunks(db *gorm.DB) *chunks {
	return &chunks{db}
}

// Upsert inserts chunks, overwriting rows with the same id. Callers derive ids
// with model.ChunkID so the conflict key is (document_id, content_hash).
func (c *chunks) Upsert(ctx context.Context, rows []*model.DocumentChunk) error {
	if len(rows) == 0 {
		return nil
	}
	return c.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"week_id", "position", "content", "source_type", "mathematical_density",
			}),
		}).
		CreateInBatches(rows, upsertBatchSize).Error
}

// GetByIDs retrieves chunks by id. Missing ids are skipped.
func (c *chunks) GetByIDs(ctx context.Context, ids []string) ([]*model.DocumentChunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var out []*model.DocumentChunk
	if err := c.db.WithContext(ctx).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ListByWeek lists the chunks of a week in document order. limit <= 0 means no limit.
func (c *chunks) ListByWeek(ctx context.Context, weekID string, limit int) ([]*model.DocumentChunk, error) {
	q := c.db.WithContext(ctx).
		Where("week_id = ?", weekID).
		Order("document_id ASC").
		Order("position ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []*model.DocumentChunk
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// SearchLexical 词项检索。Postgres 使用全文索引排序，其它方言退化为 LIKE 匹配。
// terms 应为已分词的字母数字词项。
func (c *chunks) SearchLexical(ctx context.Context, weekID string, terms []string, limit int) ([]*model.DocumentChunk, error) {
	if len(terms) == 0 || limit <= 0 {
		return nil, nil
	}

	q := c.db.WithContext(ctx).Where("week_id = ?", weekID)
	if c.db.Dialector.Name() == "postgres" {
		tsq := strings.Join(terms, " | ")
		q = q.Where("to_tsvector('english', content) @@ to_tsquery('english', ?)", tsq).
			Order(clause.Expr{
				SQL:  "ts_rank(to_tsvector('english', content), to_tsquery('english', ?)) DESC",
				Vars: []any{tsq},
			})
	} else {
		cond := c.db.Where("LOWER(content) LIKE ?", "%"+terms[0]+"%")
		for _, t := range terms[1:] {
			cond = cond.Or("LOWER(content) LIKE ?", "%"+t+"%")
		}
		q = q.Where(cond).Order("id ASC")
	}

	var out []*model.DocumentChunk
	if err := q.Limit(limit).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// CountByDocument counts the chunks of a document.
func (c *chunks) CountByDocument(ctx context.Context, documentID string) (int64, error) {
	var n int64
	err := c.db.WithContext(ctx).Model(&model.DocumentChunk{}).Where("document_id = ?", documentID).Count(&n).Error
	return n, err
}

// Prune deletes chunks of the document left over from an earlier parse.
func (c *chunks) Prune(ctx context.Context, documentID string, keep []string) error {
	q := c.db.WithContext(ctx).Where("document_id = ?", documentID)
	if len(keep) > 0 {
		q = q.Where("id NOT IN ?", keep)
	}
	return q.Delete(&model.DocumentChunk{}).Error
}
