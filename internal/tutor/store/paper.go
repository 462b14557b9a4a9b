package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/kart-io/tutor-x/internal/model"
)

type papers struct {
	db *gorm.DB
}

func newPapers(db *gorm.DB) *papers {
	return &papers{db}
}

// Create creates a new paper.
func (p *papers) Create(ctx context.Context, paper *model.Paper) error {
	return p.db.WithContext(ctx).Create(paper).Error
}

// Get retrieves a paper with its weeks.
func (p *papers) Get(ctx context.Context, id string) (*model.Paper, error) {
	var paper model.Paper
	err := p.db.WithContext(ctx).
		Preload("Weeks", func(db *gorm.DB) *gorm.DB {
			return db.Order("week_number ASC").Order("term ASC")
		}).
		Where("id = ?", id).
		First(&paper).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &paper, nil
}

// List lists all papers, newest year first.
func (p *papers) List(ctx context.Context) ([]*model.Paper, error) {
	var out []*model.Paper
	if err := p.db.WithContext(ctx).Order("year DESC").Order("title ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
