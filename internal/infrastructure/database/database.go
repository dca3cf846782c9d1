package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // Postgres driver ("pgx")
	_ "github.com/mattn/go-sqlite3"    // SQLite driver ("sqlite3")
)

const (
	dirPermissions  = 0750
	filePermissions = 0600

	pingTimeout     = 5 * time.Second
	connMaxLifetime = time.Hour
	connMaxIdleTime = 30 * time.Minute

	// defaultPostgresMaxOpen sizes the pgx pool when MaxOpenConns is unset.
	defaultPostgresMaxOpen = 10
)

// DB wraps a sql.DB connection with SenseGrid-specific functionality.
//
// Queries are written once with ? placeholders and rebound for the active
// dialect by ExecContext, QueryContext and QueryRowContext.
type DB struct {
	*sql.DB
	path    string
	dialect Dialect
}

// Config selects and tunes the store. It mirrors config.DatabaseConfig.
type Config struct {
	// Driver selects the dialect: "sqlite3" (default) or "pgx".
	Driver string

	// Path locates the SQLite file; missing parent directories are created.
	Path string

	// DSN is the Postgres connection string, used when Driver is "pgx".
	DSN string

	// WALMode enables Write-Ahead Logging for SQLite.
	WALMode bool

	// BusyTimeout is the maximum time to wait for a SQLite lock (seconds).
	BusyTimeout int

	// MaxOpenConns caps the Postgres pool. SQLite always uses one writer.
	MaxOpenConns int
}

// Open connects to the configured dialect and pings it.
//
// SQLite runs as a single writer with foreign keys enforced, and the file
// is restricted to the owner. Postgres gets a pooled pgx connection.
func Open(cfg Config) (*DB, error) {
	dialect, err := ParseDialect(cfg.Driver)
	if err != nil {
		return nil, err
	}

	var sqlDB *sql.DB
	switch dialect {
	case DialectPostgres:
		sqlDB, err = openPostgres(cfg)
	default:
		sqlDB, err = openSQLite(cfg)
	}
	if err != nil {
		return nil, err
	}

	db := &DB{
		DB:      sqlDB,
		path:    cfg.Path,
		dialect: dialect,
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = sqlDB.Close() //nolint:errcheck // the ping error is what matters
		return nil, fmt.Errorf("pinging %s database: %w", dialect, err)
	}

	if dialect == DialectSQLite {
		_ = os.Chmod(cfg.Path, filePermissions) //nolint:errcheck // first run creates file later
	}

	return db, nil
}

func openSQLite(cfg Config) (*sql.DB, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("opening database: sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), dirPermissions); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	params := url.Values{}
	params.Set("_foreign_keys", "on")
	params.Set("_busy_timeout", strconv.Itoa(int((time.Duration(cfg.BusyTimeout) * time.Second).Milliseconds())))
	if cfg.WALMode {
		params.Set("_journal_mode", "WAL")
		params.Set("_synchronous", "NORMAL")
	}

	sqlDB, err := sql.Open("sqlite3", "file:"+cfg.Path+"?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	// One connection: SQLite serialises writers anyway, and readings are
	// small single-row inserts.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)
	return sqlDB, nil
}

func openPostgres(cfg Config) (*sql.DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("opening database: postgres dsn is required")
	}

	sqlDB, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening postgres database: %w", err)
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = defaultPostgresMaxOpen
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxOpen / 2) //nolint:mnd // keep half the pool warm
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)
	return sqlDB, nil
}

// Close releases the pool. A zero DB closes cleanly.
func (db *DB) Close() error {
	if db.DB == nil {
		return nil
	}
	if err := db.DB.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}

// Path is the SQLite file, or "" for Postgres.
func (db *DB) Path() string {
	return db.path
}

// Dialect returns the SQL dialect of the underlying connection.
func (db *DB) Dialect() Dialect {
	return db.dialect
}

// HealthCheck runs a trivial query through the pool.
func (db *DB) HealthCheck(ctx context.Context) error {
	var one int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("%s health check: %w", db.dialect, err)
	}
	return nil
}

// Stats exposes the pool counters for /metrics.
func (db *DB) Stats() sql.DBStats {
	return db.DB.Stats()
}

// ExecContext rebinds query for the dialect and executes it.
func (db *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	result, err := db.DB.ExecContext(ctx, db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("executing query: %w", err)
	}
	return result, nil
}

// QueryContext rebinds and runs query. The caller closes the rows.
func (db *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	rows, err := db.DB.QueryContext(ctx, db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("executing query: %w", err)
	}
	return rows, nil
}

// QueryRowContext rebinds and runs a single-row query; errors surface at
// Scan.
func (db *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return db.DB.QueryRowContext(ctx, db.Rebind(query), args...)
}

// BeginTx starts a transaction. Unlike the DB helpers, statements run on
// the Tx are not rebound; pass them through Rebind yourself.
func (db *DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	tx, err := db.DB.BeginTx(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	return tx, nil
}
