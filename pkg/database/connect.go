package database

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/go-sql-driver/mysql"
	"github.com/huandu/go-sqlbuilder"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

const (
	DriverPostgres = "postgres"
	DriverPgx      = "pgx"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Driver   string
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
	// DSN overrides the connection string assembled from the fields above.
	DSN string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

func init() {
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// FlavorFor maps a driver name to its SQL dialect.
func FlavorFor(driver string) sqlbuilder.Flavor {
	switch driver {
	case DriverMySQL:
		return sqlbuilder.MySQL
	case DriverSQLite:
		return sqlbuilder.SQLite
	default:
		return sqlbuilder.PostgreSQL
	}
}

// DataSourceName builds the driver specific connection string.
func (c Config) DataSourceName() (string, error) {
	if c.DSN != "" {
		return c.DSN, nil
	}
	switch c.Driver {
	case DriverPostgres, DriverPgx:
		sslMode := c.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.Name, sslMode), nil
	case DriverMySQL:
		cfg := mysql.NewConfig()
		cfg.User = c.User
		cfg.Passwd = c.Password
		cfg.Net = "tcp"
		cfg.Addr = net.JoinHostPort(c.Host, c.Port)
		cfg.DBName = c.Name
		cfg.ParseTime = true
		cfg.MultiStatements = true
		return cfg.FormatDSN(), nil
	case DriverSQLite:
		if c.Name == "" {
			return "", errors.New("sqlite database path is required")
		}
		return c.Name + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", nil
	default:
		return "", errors.Errorf("unsupported database driver %q", c.Driver)
	}
}

// Open connects to the configured database and verifies it answers a ping.
func Open(ctx context.Context, cfg Config, logger ectologger.Logger) (DB, error) {
	dsn, err := cfg.DataSourceName()
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s database", cfg.Driver)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrapf(err, "failed to ping %s database", cfg.Driver)
	}

	logger.WithContext(ctx).WithFields(map[string]any{
		"driver": cfg.Driver,
		"name":   cfg.Name,
	}).Info("database connected")

	return NewDatabaseInstance(db, logger), nil
}
