package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormlogger "gorm.io/gorm/logger"

	options "github.com/kart-io/tutor-x/pkg/options/database"
)

func TestNew_SQLite(t *testing.T) {
	opts := options.NewOptions()
	opts.Driver = options.DriverSQLite
	opts.SQLitePath = ":memory:"

	db, err := New(context.Background(), opts)
	require.NoError(t, err)
	defer func() { _ = Close(db) }()

	assert.NoError(t, Ping(context.Background(), db))
	assert.Equal(t, "sqlite", db.Dialector.Name())

	var one int
	require.NoError(t, db.Raw("SELECT 1").Scan(&one).Error)
	assert.Equal(t, 1, one)
}

func TestNew_UnknownDriver(t *testing.T) {
	opts := options.NewOptions()
	opts.Driver = "oracle"
	_, err := New(context.Background(), opts)
	assert.ErrorContains(t, err, "unsupported database driver")

	_, err = New(context.Background(), nil)
	assert.Error(t, err)
}

func TestNewGormLogger_ClampsLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Silent, NewGormLogger(0, 0, true).LogLevel)
	assert.Equal(t, gormlogger.Warn, NewGormLogger(gormlogger.Warn, 0, true).LogLevel)
}
