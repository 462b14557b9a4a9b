package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/kart-io/tutor-x/internal/model"
)

type notation struct {
	db *gorm.DB
}

func newNotation(db *gorm.DB) *notation {
	return &notation{db}
}

// ListByWeek lists a week's notation ordered by symbol.
func (n *notation) ListByWeek(ctx context.Context, weekID string) ([]*model.NotationConfig, error) {
	var out []*model.NotationConfig
	if err := n.db.WithContext(ctx).Where("week_id = ?", weekID).Order("symbol ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Exists reports whether the week has any notation.
func (n *notation) Exists(ctx context.Context, weekID string) (bool, error) {
	var count int64
	if err := n.db.WithContext(ctx).Model(&model.NotationConfig{}).Where("week_id = ?", weekID).Limit(1).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Replace upserts entries by (week, symbol) in one transaction.
func (n *notation) Replace(ctx context.Context, weekID string, entries []*model.NotationConfig) error {
	if len(entries) == 0 {
		return nil
	}
	symbols := make([]string, 0, len(entries))
	for _, e := range entries {
		e.WeekID = weekID
		symbols = append(symbols, e.Symbol)
	}
	return n.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("week_id = ? AND symbol IN ?", weekID, symbols).Delete(&model.NotationConfig{}).Error; err != nil {
			return err
		}
		return tx.Create(&entries).Error
	})
}
