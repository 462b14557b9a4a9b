// Package database opens a gorm connection for the configured dialect.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	options "github.com/kart-io/tutor-x/pkg/options/database"
)

// New opens the database selected by opts.Driver, configures the pool and
// verifies connectivity.
func New(ctx context.Context, opts *options.Options) (*gorm.DB, error) {
	if opts == nil {
		return nil, fmt.Errorf("database options cannot be nil")
	}

	dialector, err := dialectorFor(opts)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: NewGormLogger(gormlogger.LogLevel(opts.LogLevel), 200*time.Millisecond, true),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", opts.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	switch opts.Driver {
	case options.DriverPostgres:
		sqlDB.SetMaxIdleConns(opts.Postgres.MaxIdleConnections)
		sqlDB.SetMaxOpenConns(opts.Postgres.MaxOpenConnections)
		sqlDB.SetConnMaxLifetime(opts.Postgres.MaxConnectionLifeTime)
	case options.DriverMySQL:
		sqlDB.SetMaxIdleConns(opts.MySQL.MaxIdleConnections)
		sqlDB.SetMaxOpenConns(opts.MySQL.MaxOpenConnections)
		sqlDB.SetConnMaxLifetime(opts.MySQL.MaxConnectionLifeTime)
	case options.DriverSQLite:
		// sqlite 只允许单写连接
		sqlDB.SetMaxOpenConns(1)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("%s ping failed: %w", opts.Driver, err)
	}

	return db, nil
}

func dialectorFor(opts *options.Options) (gorm.Dialector, error) {
	switch opts.Driver {
	case options.DriverPostgres:
		return postgres.Open(opts.Postgres.DSN()), nil
	case options.DriverMySQL:
		return mysql.Open(opts.MySQL.DSN()), nil
	case options.DriverSQLite:
		return sqlite.Open(opts.SQLitePath), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}
}

// Close closes the underlying connection pool.
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping verifies the database is reachable.
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
