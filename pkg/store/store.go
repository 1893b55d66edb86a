// Package store executes structured queries against the fixed relational dataset.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

const (
	DriverSQLite     = "sqlite"
	DriverDuckDB     = "duckdb"
	DriverPostgres   = "postgres"
	DriverClickHouse = "clickhouse"

	defaultSchemaCacheTTL = 10 * time.Minute
)

// CanonicalTables are the tables the question-answering schema is built around.
var CanonicalTables = []string{"Orders", "Order Details", "Products", "Customers", "Categories", "Suppliers"}

type Config struct {
	Logger         *slog.Logger
	DB             *sql.DB
	Driver         string
	Tables         []string
	SchemaCacheTTL time.Duration
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.DB == nil {
		return errors.New("database is required")
	}
	switch cfg.Driver {
	case DriverSQLite, DriverDuckDB, DriverPostgres, DriverClickHouse:
	default:
		return fmt.Errorf("unsupported driver: %q", cfg.Driver)
	}
	if len(cfg.Tables) == 0 {
		cfg.Tables = CanonicalTables
	}
	if cfg.SchemaCacheTTL == 0 {
		cfg.SchemaCacheTTL = defaultSchemaCacheTTL
	}
	return nil
}

// Result holds the outcome of a successful query.
type Result struct {
	Columns []string
	Rows    [][]any
}

// Store is safe for concurrent use; every call acquires its own connection.
type Store struct {
	log   *slog.Logger
	cfg   Config
	cache *ttlcache.Cache[string, string]
}

func New(cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate store config: %w", err)
	}
	return &Store{
		log: cfg.Logger,
		cfg: cfg,
		cache: ttlcache.New(
			ttlcache.WithTTL[string, string](cfg.SchemaCacheTTL),
			ttlcache.WithDisableTouchOnHit[string, string](),
		),
	}, nil
}

// Open opens a database handle for the given driver. The driver must be registered by the
// caller's imports.
func Open(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", driver, err)
	}
	return db, nil
}

// Tables returns the canonical table names this store describes by default.
func (s *Store) Tables() []string {
	return s.cfg.Tables
}

// Execute runs a query and reads every row. Any failure, including a malformed query, is
// returned as an error; nothing panics.
func (s *Store) Execute(ctx context.Context, query string) (Result, error) {
	conn, err := s.cfg.DB.Conn(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	rows, err := conn.QueryContext(ctx, query)
	if err != nil {
		return Result{}, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return Result{}, fmt.Errorf("failed to get columns: %w", err)
	}

	out := Result{Columns: columns, Rows: [][]any{}}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return Result{}, fmt.Errorf("failed to scan row: %w", err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		out.Rows = append(out.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return Result{}, fmt.Errorf("error iterating rows: %w", err)
	}
	return out, nil
}

// DescribeSchema renders "Table <name>: col (TYPE), ..." lines for the named tables, or the
// configured tables when none are given. Tables that do not exist are skipped.
func (s *Store) DescribeSchema(ctx context.Context, tables []string) (string, error) {
	if len(tables) == 0 {
		tables = s.cfg.Tables
	}
	key := strings.Join(tables, "\x00")
	if item := s.cache.Get(key); item != nil {
		return item.Value(), nil
	}

	conn, err := s.cfg.DB.Conn(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	var sb strings.Builder
	for _, table := range tables {
		cols, err := s.describeTable(ctx, conn, table)
		if err != nil {
			s.log.Debug("store: skipping table", "table", table, "error", err)
			continue
		}
		if len(cols) == 0 {
			continue
		}
		sb.WriteString(fmt.Sprintf("Table %s: %s\n", table, strings.Join(cols, ", ")))
	}

	schema := sb.String()
	s.cache.Set(key, schema, ttlcache.DefaultTTL)
	return schema, nil
}

func (s *Store) describeTable(ctx context.Context, conn *sql.Conn, table string) ([]string, error) {
	var (
		rows *sql.Rows
		err  error
	)
	switch s.cfg.Driver {
	case DriverSQLite:
		rows, err = conn.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", QuoteIdent(table)))
	default:
		rows, err = conn.QueryContext(ctx, `
			SELECT column_name, data_type
			FROM information_schema.columns
			WHERE table_name = $1
			ORDER BY ordinal_position
		`, table)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name, typ string
		if s.cfg.Driver == DriverSQLite {
			// cid, name, type, notnull, dflt_value, pk
			var cid, notNull, pk int
			var dflt any
			if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
				return nil, err
			}
		} else if err := rows.Scan(&name, &typ); err != nil {
			return nil, err
		}
		cols = append(cols, fmt.Sprintf("%s (%s)", name, typ))
	}
	return cols, rows.Err()
}

// QuoteIdent double-quotes identifiers that contain spaces, leaving simple names bare.
func QuoteIdent(name string) string {
	if !strings.ContainsAny(name, " \t") {
		return name
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
