package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Supported database/sql driver names.
const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite"
)

//go:embed migrations
var migrations embed.FS

// DB wraps sql.DB together with the driver it was opened with, so
// repositories can adapt placeholders to the dialect.
type DB struct {
	Client *sql.DB
	Driver string
}

// NewDB opens a connection with sane defaults and pings it.
// For sqlite the connString is a file path (or ":memory:").
func NewDB(driver, connString string) (*DB, error) {
	switch driver {
	case DriverPostgres:
		db, err := sql.Open(DriverPostgres, connString)
		if err != nil {
			return nil, err
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(time.Hour)
		return &DB{Client: db, Driver: driver}, db.PingContext(context.Background())
	case DriverSQLite:
		if dir := filepath.Dir(connString); dir != "." && connString != ":memory:" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create db dir: %w", err)
			}
		}
		db, err := sql.Open(DriverSQLite, connString+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
		if err != nil {
			return nil, fmt.Errorf("open db: %w", err)
		}
		// One writer at a time avoids "database is locked" under concurrent requests.
		db.SetMaxOpenConns(1)
		return &DB{Client: db, Driver: driver}, db.PingContext(context.Background())
	default:
		return nil, fmt.Errorf("unsupported db driver %q", driver)
	}
}

// Migrate applies every pending embedded migration for the driver's dialect.
func (d *DB) Migrate() error {
	src, err := iofs.New(migrations, "migrations/"+d.dialectDir())
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	var m *migrate.Migrate
	switch d.Driver {
	case DriverPostgres:
		drv, err := migratepgx.WithInstance(d.Client, &migratepgx.Config{})
		if err != nil {
			return fmt.Errorf("migrate driver: %w", err)
		}
		m, err = migrate.NewWithInstance("iofs", src, "pgx5", drv)
		if err != nil {
			return fmt.Errorf("migrate init: %w", err)
		}
	case DriverSQLite:
		drv, err := migratesqlite.WithInstance(d.Client, &migratesqlite.Config{})
		if err != nil {
			return fmt.Errorf("migrate driver: %w", err)
		}
		m, err = migrate.NewWithInstance("iofs", src, "sqlite", drv)
		if err != nil {
			return fmt.Errorf("migrate init: %w", err)
		}
	default:
		return fmt.Errorf("unsupported db driver %q", d.Driver)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

func (d *DB) dialectDir() string {
	if d.Driver == DriverSQLite {
		return "sqlite"
	}
	return "postgres"
}

// Rebind rewrites '?' placeholders into the driver's native form.
// Queries are written with '?' and must not contain literal question marks.
func (d *DB) Rebind(query string) string {
	if d.Driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// Healthy verifies database connectivity.
func (d *DB) Healthy(ctx context.Context) bool {
	if d == nil || d.Client == nil {
		return false
	}
	return d.Client.PingContext(ctx) == nil
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	if d == nil || d.Client == nil {
		return nil
	}
	return d.Client.Close()
}
