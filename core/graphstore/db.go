package graphstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// Supported database/sql driver names.
const (
	// DriverCGO is github.com/mattn/go-sqlite3.
	DriverCGO = "sqlite3"
	// DriverPureGo is modernc.org/sqlite.
	DriverPureGo = "sqlite"
)

type GraphDB struct {
	db     *sql.DB
	path   string
	driver string
	mu     sync.RWMutex
}

// DBConfig configures the database connection pool.
//
// Writers hold one exclusive transaction at a time; extra connections only
// serve concurrent walks. BusyTimeout bounds how long a writer waits on a
// competing lock before the store reports a QueryError.
type DBConfig struct {
	Path            string
	Driver          string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	BusyTimeout     time.Duration
}

// Connection pool configuration bounds.
const (
	// MinOpenConns is the minimum allowed value for MaxOpenConns.
	MinOpenConns = 1
	// MaxOpenConnsLimit is the maximum allowed value for MaxOpenConns.
	MaxOpenConnsLimit = 200
	// MinIdleConns is the minimum allowed value for MaxIdleConns.
	MinIdleConns = 0
	// DefaultMaxOpenConns leaves room for a writer plus parallel walks.
	DefaultMaxOpenConns = 8
	// DefaultMaxIdleConns keeps half the pool warm.
	DefaultMaxIdleConns = 4
	// DefaultConnMaxLifetime prevents stale connections.
	DefaultConnMaxLifetime = time.Hour
	// DefaultConnMaxIdleTime releases idle connections after inactivity.
	DefaultConnMaxIdleTime = 30 * time.Minute
	// DefaultBusyTimeout is how long SQLite retries a locked database.
	DefaultBusyTimeout = 5 * time.Second
)

// DefaultDBConfig returns a configuration backed by the cgo driver.
func DefaultDBConfig(path string) DBConfig {
	return DBConfig{
		Path:            path,
		Driver:          DriverCGO,
		MaxOpenConns:    DefaultMaxOpenConns,
		MaxIdleConns:    DefaultMaxIdleConns,
		ConnMaxLifetime: DefaultConnMaxLifetime,
		ConnMaxIdleTime: DefaultConnMaxIdleTime,
		BusyTimeout:     DefaultBusyTimeout,
	}
}

// Validate checks the configuration values and returns an error if invalid.
func (c DBConfig) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("db config: path is required")
	}
	if c.Driver != DriverCGO && c.Driver != DriverPureGo {
		return fmt.Errorf("db config: unknown driver %q (want %q or %q)", c.Driver, DriverCGO, DriverPureGo)
	}
	if c.MaxOpenConns < MinOpenConns || c.MaxOpenConns > MaxOpenConnsLimit {
		return fmt.Errorf("db config: MaxOpenConns must be between %d and %d, got %d",
			MinOpenConns, MaxOpenConnsLimit, c.MaxOpenConns)
	}
	if c.MaxIdleConns < MinIdleConns {
		return fmt.Errorf("db config: MaxIdleConns must be at least %d, got %d",
			MinIdleConns, c.MaxIdleConns)
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		return fmt.Errorf("db config: MaxIdleConns (%d) cannot exceed MaxOpenConns (%d)",
			c.MaxIdleConns, c.MaxOpenConns)
	}
	if c.BusyTimeout < 0 {
		return fmt.Errorf("db config: BusyTimeout must not be negative, got %s", c.BusyTimeout)
	}
	return nil
}

// dsn builds a connection string enabling WAL journaling for the configured
// driver. The two drivers spell pragmas differently.
func (c DBConfig) dsn() string {
	busy := c.BusyTimeout.Milliseconds()
	if c.Driver == DriverPureGo {
		return fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(%d)",
			c.Path, busy)
	}
	return fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=%d", c.Path, busy)
}

// DBOption is a functional option for configuring DBConfig.
type DBOption func(*DBConfig)

// WithDriver selects the database/sql driver.
func WithDriver(name string) DBOption {
	return func(c *DBConfig) { c.Driver = name }
}

// WithMaxOpenConns sets the maximum number of open connections.
func WithMaxOpenConns(n int) DBOption {
	return func(c *DBConfig) { c.MaxOpenConns = n }
}

// WithMaxIdleConns sets the maximum number of idle connections.
func WithMaxIdleConns(n int) DBOption {
	return func(c *DBConfig) { c.MaxIdleConns = n }
}

// WithConnMaxLifetime sets the maximum connection lifetime.
func WithConnMaxLifetime(d time.Duration) DBOption {
	return func(c *DBConfig) { c.ConnMaxLifetime = d }
}

// WithBusyTimeout sets the SQLite busy timeout.
func WithBusyTimeout(d time.Duration) DBOption {
	return func(c *DBConfig) { c.BusyTimeout = d }
}

// Open opens a database with default configuration.
func Open(path string) (*GraphDB, error) {
	return OpenWithConfig(DefaultDBConfig(path))
}

// OpenWithOptions opens a database with functional options applied to defaults.
func OpenWithOptions(path string, opts ...DBOption) (*GraphDB, error) {
	config := DefaultDBConfig(path)
	for _, opt := range opts {
		opt(&config)
	}
	return OpenWithConfig(config)
}

// OpenWithConfig opens a database with the given configuration. The schema
// is not created; call NodeStore.CreateSchema for a fresh file.
func OpenWithConfig(config DBConfig) (*GraphDB, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	db, err := sql.Open(config.Driver, config.dsn())
	if err != nil {
		return nil, fmt.Errorf("failed to open database at %s: %w", config.Path, err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database at %s: %w", config.Path, err)
	}

	return &GraphDB{
		db:     db,
		path:   config.Path,
		driver: config.Driver,
	}, nil
}

func (g *GraphDB) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.db == nil {
		return nil
	}

	err := g.db.Close()
	g.db = nil
	return err
}

func (g *GraphDB) DB() *sql.DB {
	return g.db
}

func (g *GraphDB) Path() string {
	return g.path
}

func (g *GraphDB) Driver() string {
	return g.driver
}

func (g *GraphDB) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return g.db.BeginTx(ctx, nil)
}

func (g *GraphDB) Vacuum(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, err := g.db.ExecContext(ctx, "VACUUM"); err != nil {
		return queryErr("vacuum", err)
	}
	return nil
}

// SizeBytes includes the write-ahead log, which holds recent commits until
// the next checkpoint.
func (g *GraphDB) SizeBytes() int64 {
	var total int64
	for _, p := range []string{g.path, g.path + "-wal"} {
		if info, err := os.Stat(p); err == nil {
			total += info.Size()
		}
	}
	return total
}

// queryer is satisfied by both *sql.DB and *sql.Tx so reads can run inside
// or outside a write transaction.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
