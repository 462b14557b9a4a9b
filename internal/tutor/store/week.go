package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/kart-io/tutor-x/internal/model"
)

type weeks struct {
	db *gorm.DB
}

func newWeeks(db *gorm.DB) *weeks {
	return &weeks{db}
}

// Get retrieves a week with its documents.
func (w *weeks) Get(ctx context.Context, id string) (*model.Week, error) {
	var week model.Week
	err := w.db.WithContext(ctx).
		Preload("Documents", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at DESC").Order("id DESC")
		}).
		Where("id = ?", id).
		First(&week).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &week, nil
}

// GetOrCreate 按 (paper, term, week_number) 查找教学周，不存在则创建。
func (w *weeks) GetOrCreate(ctx context.Context, paperID, term string, weekNumber int) (*model.Week, error) {
	scope := model.Week{PaperID: paperID, Term: term, WeekNumber: weekNumber}

	var week model.Week
	err := w.db.WithContext(ctx).
		Where(&scope).
		Attrs(model.Week{Topic: fmt.Sprintf("Week %d - %s", weekNumber, term)}).
		FirstOrCreate(&week).Error
	if err == nil {
		return &week, nil
	}

	// 并发上传同一周时唯一索引冲突，重新读取
	var existing model.Week
	if ferr := w.db.WithContext(ctx).Where(&scope).First(&existing).Error; ferr != nil {
		if errors.Is(ferr, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, ferr
	}
	return &existing, nil
}
