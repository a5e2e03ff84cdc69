// Package sqlite provides the SQLite-backed composition energy store. It uses
// the pure-Go modernc.org/sqlite driver so the CLI stays cgo-free.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/turtacn/defectkit/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/defectkit/pkg/errors"
)

//go:embed schema.sql
var schemaSQL string

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Config holds the store parameters.
type Config struct {
	Path        string        `yaml:"path"`
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// Connection manages the SQLite database handle.
type Connection struct {
	db     *sql.DB
	cfg    Config
	logger logging.Logger
	once   sync.Once
}

// Open opens or creates the database at cfg.Path, applies pragmas and the
// schema. The pool is limited to one connection so that per-connection
// pragmas and in-memory databases behave consistently.
func Open(ctx context.Context, cfg Config, log logging.Logger) (*Connection, error) {
	if cfg.Path == "" {
		return nil, errors.InvalidParam("store path is required")
	}
	if log == nil {
		log = logging.NewNopLogger()
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeStoreUnavailable, "failed to open sqlite store").WithDetail("path=" + cfg.Path)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range pragmas(cfg) {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, errors.Wrap(err, errors.CodeStoreUnavailable, "failed to apply pragma").WithDetail(pragma)
		}
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		db.Close()
		return nil, errors.Wrap(err, errors.CodeStoreUnavailable, "failed to apply schema").WithDetail("path=" + cfg.Path)
	}

	log.Debug("opened composition store", logging.String("path", cfg.Path))
	return &Connection{db: db, cfg: cfg, logger: log}, nil
}

func pragmas(cfg Config) []string {
	out := []string{"PRAGMA foreign_keys = ON"}
	if cfg.BusyTimeout > 0 {
		out = append(out, fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	if cfg.Path != MemoryPath {
		out = append(out, "PRAGMA journal_mode = WAL")
	}
	return out
}

// DB returns the underlying sql.DB instance.
func (c *Connection) DB() *sql.DB {
	return c.db
}

// Path returns the database path.
func (c *Connection) Path() string {
	return c.cfg.Path
}

// Logger returns the connection logger.
func (c *Connection) Logger() logging.Logger {
	return c.logger
}

// SchemaVersion returns the applied schema version.
func (c *Connection) SchemaVersion(ctx context.Context) (string, error) {
	var v string
	err := c.db.QueryRowContext(ctx, `SELECT value FROM schema_meta WHERE key = 'version'`).Scan(&v)
	if err != nil {
		return "", errors.Wrap(err, errors.CodeStoreCorrupt, "failed to read schema version")
	}
	return v, nil
}

// HealthCheck verifies the database connection status.
func (c *Connection) HealthCheck(ctx context.Context) error {
	if err := c.db.PingContext(ctx); err != nil {
		return errors.Wrap(err, errors.CodeStoreUnavailable, "store health check failed")
	}
	return nil
}

// Close closes the database connection.
func (c *Connection) Close() error {
	var err error
	c.once.Do(func() {
		err = c.db.Close()
		if err != nil {
			c.logger.Error("failed to close composition store", logging.Err(err))
		}
	})
	return err
}
