package store

import (
	"errors"

	"gorm.io/gorm"

	"github.com/kart-io/tutor-x/internal/model"
	"github.com/kart-io/tutor-x/pkg/component/database"
)

// datastore implements the Factory interface.
type datastore struct {
	db *gorm.DB
}

var _ Factory = (*datastore)(nil)

// NewFactory returns a Factory backed by db.
func NewFactory(db *gorm.DB) Factory {
	return &datastore{db: db}
}

// Papers returns the paper store.
func (ds *datastore) Papers() PaperStore { return newPapers(ds.db) }

// Weeks returns the week store.
func (ds *datastore) Weeks() WeekStore { return newWeeks(ds.db) }

// Documents returns the document store.
func (ds *datastore) Documents() DocumentStore { return newDocuments(ds.db) }

// Chunks returns the chunk store.
func (ds *datastore) Chunks() ChunkStore { return newChunks(ds.db) }

// Notation returns the notation store.
func (ds *datastore) Notation() NotationStore { return newNotation(ds.db) }

// AutoMigrate migrates the database schema.
func (ds *datastore) AutoMigrate() error {
	return ds.db.AutoMigrate(model.All()...)
}

// Close closes the underlying connection pool.
func (ds *datastore) Close() error {
	return database.Close(ds.db)
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
