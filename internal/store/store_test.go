package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path, testCatalog(t))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open("/nonexistent/dir/test.db", testCatalog(t))
	if err == nil {
		t.Fatal("expected error for invalid path, got nil")
	}
	var se *StoreError
	assert.ErrorAs(t, err, &se)
}

func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)

	for name, want := range map[string]string{
		"journal_mode": "wal",
		"foreign_keys": "1",
		"busy_timeout": "5000",
	} {
		if err := s.verifyPragma(name, want); err != nil {
			t.Error(err)
		}
	}
	assert.True(t, s.ForeignKeysEnforced())
	assert.Equal(t, DriverSQLite, s.Driver())
}

func TestOpen_ForeignKeysOff(t *testing.T) {
	s := createTestStore(t, WithForeignKeys(false))

	require.NoError(t, s.verifyPragma("foreign_keys", "0"))
	assert.False(t, s.ForeignKeysEnforced())
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{db: nil}
	if err := s.Close(); err != nil {
		t.Errorf("Close() on nil db should not error: %v", err)
	}
}

func TestEnsureSchema_Idempotent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, testCatalog(t))
	require.NoError(t, err)
	defer s.Close()

	created, err := s.EnsureSchema(ctx, "products")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.EnsureSchema(ctx, "products")
	require.NoError(t, err)
	assert.False(t, created)

	var name string
	err = s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", "products").Scan(&name)
	require.NoError(t, err)
}

func TestEnsureSchema_UnknownEntity(t *testing.T) {
	s := createTestStore(t)

	_, err := s.EnsureSchema(context.Background(), "customers")
	require.Error(t, err)
	assert.True(t, IsSchemaError(err))
}

func TestEnsureSchema_ClosedConnection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, testCatalog(t))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = s.EnsureSchema(context.Background(), "products")
	require.Error(t, err)
	assert.True(t, IsSchemaError(err))
}

func TestEnsureAll_SeedsNewTablesOnce(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path, testCatalog(t))
	require.NoError(t, err)
	require.NoError(t, s.EnsureAll(ctx))
	s.Close()

	// Reopening must not seed again.
	s, err = Open(path, testCatalog(t))
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.EnsureAll(ctx))

	products := mustFetch(t, s, "products")
	require.Equal(t, 3, products.Len())
	assert.Equal(t, "Product 1", products.Records[0].Values["name"])
	assert.Equal(t, "The First Products", products.Records[0].Values["description"])

	warehouses := mustFetch(t, s, "warehouses")
	require.Equal(t, 1, warehouses.Len())
	assert.Equal(t, "Les Roquetes", warehouses.Records[0].Values["name"])

	assert.Equal(t, 0, mustFetch(t, s, "inventory").Len())
}

func TestEnsureAll_WithoutSeed(t *testing.T) {
	s := createTestStore(t)
	assert.Equal(t, 0, mustFetch(t, s, "products").Len())
}
