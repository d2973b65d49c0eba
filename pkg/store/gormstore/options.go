package gormstore

import (
	"fmt"

	"github.com/benbjohnson/clock"
	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
	DialectMySQL    = "mysql"
)

type Config struct {
	Dialect      gorm.Dialector
	Logger       logger.Interface
	MaxOpenConns int
	MaxIdlConns  int
	Clock        clock.Clock
}

func NewDefaultConfig() *Config {
	return &Config{
		Dialect:      sqlite.Open(":memory:"),
		Logger:       NewLogger(),
		MaxOpenConns: 1,
		MaxIdlConns:  1,
		Clock:        clock.New(),
	}
}

type ConfigOpt func(*Config)

func WithDialect(dialect gorm.Dialector) ConfigOpt {
	return func(c *Config) {
		c.Dialect = dialect
	}
}

func WithLogger(l logger.Interface) ConfigOpt {
	return func(c *Config) {
		c.Logger = l
	}
}

func WithMaxOpenConns(n int) ConfigOpt {
	return func(c *Config) {
		c.MaxOpenConns = n
	}
}

func WithMaxIdleConns(n int) ConfigOpt {
	return func(c *Config) {
		c.MaxIdlConns = n
	}
}

func WithClock(clk clock.Clock) ConfigOpt {
	return func(c *Config) {
		c.Clock = clk
	}
}

// OpenDialector returns the gorm dialector for a dialect name and DSN.
func OpenDialector(dialect, dsn string) (gorm.Dialector, error) {
	switch dialect {
	case DialectSQLite, "":
		if dsn == "" {
			dsn = ":memory:"
		}
		return sqlite.Open(dsn), nil
	case DialectPostgres:
		return postgres.Open(dsn), nil
	case DialectMySQL:
		return mysql.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported store dialect %q", dialect)
	}
}
