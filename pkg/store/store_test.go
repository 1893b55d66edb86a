package store

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(context.Background(), DriverSQLite, filepath.Join(t.TempDir(), "northwind.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
		CREATE TABLE Orders (OrderID INTEGER PRIMARY KEY, CustomerID TEXT, OrderDate TEXT);
		CREATE TABLE "Order Details" (OrderID INTEGER, ProductID INTEGER, UnitPrice REAL, Quantity INTEGER, Discount REAL);
		INSERT INTO Orders VALUES (10248, 'VINET', '1996-07-04'), (10249, 'TOMSP', '1996-07-05');
		INSERT INTO "Order Details" VALUES (10248, 11, 14.0, 12, 0), (10249, 42, 9.8, 10, 0.1);
	`)
	require.NoError(t, err)
	return db
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(Config{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		DB:     newTestDB(t),
		Driver: DriverSQLite,
	})
	require.NoError(t, err)
	return s
}

func TestStore_Execute(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	res, err := s.Execute(context.Background(), `SELECT OrderID, CustomerID FROM Orders ORDER BY OrderID`)
	require.NoError(t, err)
	require.Equal(t, []string{"OrderID", "CustomerID"}, res.Columns)
	require.Len(t, res.Rows, 2)
	require.EqualValues(t, 10248, res.Rows[0][0])
	require.Equal(t, "VINET", res.Rows[0][1])
}

func TestStore_Execute_EmptyResultIsNotAnError(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	res, err := s.Execute(context.Background(), `SELECT * FROM Orders WHERE OrderID = -1`)
	require.NoError(t, err)
	require.NotNil(t, res.Rows)
	require.Empty(t, res.Rows)
}

func TestStore_Execute_MalformedQueryReturnsError(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	_, err := s.Execute(context.Background(), `SELECT * FROM OrderDetails`)
	require.Error(t, err)
	require.Contains(t, err.Error(), "OrderDetails")

	// The connection is released even on error, so the store stays usable.
	_, err = s.Execute(context.Background(), `SELECT COUNT(*) FROM "Order Details"`)
	require.NoError(t, err)
}

func TestStore_DescribeSchema(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	schema, err := s.DescribeSchema(context.Background(), nil)
	require.NoError(t, err)
	require.Contains(t, schema, "Table Orders: OrderID (INTEGER), CustomerID (TEXT), OrderDate (TEXT)\n")
	require.Contains(t, schema, "Table Order Details: OrderID (INTEGER), ProductID (INTEGER), UnitPrice (REAL)")
	// Missing canonical tables are skipped.
	require.NotContains(t, schema, "Table Products")
}

func TestStore_DescribeSchema_Cached(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.DescribeSchema(ctx, []string{"Orders"})
	require.NoError(t, err)

	_, err = s.cfg.DB.Exec(`ALTER TABLE Orders ADD COLUMN Freight REAL`)
	require.NoError(t, err)

	second, err := s.DescribeSchema(ctx, []string{"Orders"})
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestStore_QuoteIdent(t *testing.T) {
	t.Parallel()
	require.Equal(t, "Orders", QuoteIdent("Orders"))
	require.Equal(t, `"Order Details"`, QuoteIdent("Order Details"))
}

func TestStore_Config_Validate(t *testing.T) {
	t.Parallel()

	cfg := Config{Logger: slog.Default(), DB: &sql.DB{}, Driver: "mysql"}
	require.ErrorContains(t, cfg.Validate(), "unsupported driver")

	cfg.Driver = DriverDuckDB
	require.NoError(t, cfg.Validate())
	require.Equal(t, CanonicalTables, cfg.Tables)
	require.Equal(t, defaultSchemaCacheTTL, cfg.SchemaCacheTTL)
}
