package database

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(o *Options)
		wantErr bool
	}{
		{"postgres defaults", func(*Options) {}, false},
		{"postgres missing database", func(o *Options) { o.Postgres.Database = "" }, true},
		{"mysql ignores postgres", func(o *Options) { o.Driver = DriverMySQL; o.Postgres.Host = "" }, false},
		{"sqlite path", func(o *Options) { o.Driver = DriverSQLite }, false},
		{"sqlite without path", func(o *Options) { o.Driver = DriverSQLite; o.SQLitePath = "" }, true},
		{"unknown driver", func(o *Options) { o.Driver = "oracle" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := NewOptions()
			tt.mutate(o)
			if tt.wantErr {
				assert.NotEmpty(t, o.Validate())
			} else {
				assert.Empty(t, o.Validate())
			}
		})
	}
}

func TestAddFlags(t *testing.T) {
	o := NewOptions()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	o.AddFlags(fs)

	require.NoError(t, fs.Parse([]string{
		"--database.driver=mysql",
		"--database.mysql.host=db.internal",
		"--database.postgres.port=6543",
	}))
	assert.Equal(t, DriverMySQL, o.Driver)
	assert.Equal(t, "db.internal", o.MySQL.Host)
	assert.Equal(t, 6543, o.Postgres.Port)
}

func TestDSN(t *testing.T) {
	o := NewOptions()
	o.Postgres.Password = "p w'd"
	assert.Equal(t, `host=127.0.0.1 port=5432 user=postgres password='p w\'d' dbname=tutor sslmode=disable`, o.Postgres.DSN())

	o.MySQL.Password = "a@b"
	assert.Equal(t, "root:a%40b@tcp(127.0.0.1:3306)/tutor?charset=utf8mb4&parseTime=True&loc=UTC", o.MySQL.DSN())
}
