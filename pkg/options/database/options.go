// Package database provides dialect-aware relational database options.
package database

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/kart-io/tutor-x/pkg/options"
	"github.com/kart-io/tutor-x/pkg/options/mysql"
	"github.com/kart-io/tutor-x/pkg/options/postgres"
)

var _ options.IOptions = (*Options)(nil)

const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"
)

// Options 选择关系型数据库方言并持有各方言的连接配置。
type Options struct {
	// Driver postgres | mysql | sqlite
	Driver string `json:"driver" mapstructure:"driver"`
	// SQLitePath sqlite 文件路径，":memory:" 表示内存库。
	SQLitePath string `json:"sqlite-path" mapstructure:"sqlite-path"`
	// LogLevel gorm 日志级别: 1 silent, 2 error, 3 warn, 4 info
	LogLevel int  `json:"log-level" mapstructure:"log-level"`
	Migrate  bool `json:"migrate" mapstructure:"migrate"`

	Postgres *postgres.Options `json:"postgres" mapstructure:"postgres"`
	MySQL    *mysql.Options    `json:"mysql" mapstructure:"mysql"`
}

// NewOptions creates a new Options object with default values.
func NewOptions() *Options {
	return &Options{
		Driver:     DriverPostgres,
		SQLitePath: "tutor.db",
		LogLevel:   1,
		Migrate:    true,
		Postgres:   postgres.NewOptions(),
		MySQL:      mysql.NewOptions(),
	}
}

// AddFlags adds flags to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "database."
	fs.StringVar(&o.Driver, p+"driver", o.Driver, "Relational database driver (postgres|mysql|sqlite).")
	fs.StringVar(&o.SQLitePath, p+"sqlite-path", o.SQLitePath, "SQLite database file, used when driver is sqlite.")
	fs.IntVar(&o.LogLevel, p+"log-level", o.LogLevel, "GORM log level (1 silent, 2 error, 3 warn, 4 info).")
	fs.BoolVar(&o.Migrate, p+"migrate", o.Migrate, "Run schema auto-migration at startup.")
	o.Postgres.AddFlags(fs, append(prefixes, "database")...)
	o.MySQL.AddFlags(fs, append(prefixes, "database")...)
}

// Validate validates the options of the selected driver only.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}
	switch o.Driver {
	case DriverPostgres:
		return o.Postgres.Validate()
	case DriverMySQL:
		return o.MySQL.Validate()
	case DriverSQLite:
		if o.SQLitePath == "" {
			return []error{fmt.Errorf("database sqlite-path is required")}
		}
		return nil
	default:
		return []error{fmt.Errorf("unsupported database driver %q", o.Driver)}
	}
}
