package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/invtrack/internal/entity"
)

// testCatalog loads the embedded catalog.
func testCatalog(t *testing.T) *entity.Catalog {
	t.Helper()
	c, err := entity.LoadCatalog()
	require.NoError(t, err)
	return c
}

// createTestStore opens a fresh database with every table created and no
// sample rows.
func createTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	opts = append([]Option{WithSeed(false)}, opts...)
	s, err := Open(path, testCatalog(t), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.EnsureAll(context.Background()))
	return s
}

// mustInsert inserts rows and returns their ids.
func mustInsert(t *testing.T, s *Store, name string, rows ...Row) []string {
	t.Helper()
	res, err := s.Insert(context.Background(), name, rows)
	require.NoError(t, err)
	require.Equal(t, len(rows), res.Inserted)
	return res.InsertedIDs
}

// mustFetch reads a snapshot.
func mustFetch(t *testing.T, s *Store, name string) Snapshot {
	t.Helper()
	snap, err := s.FetchAll(context.Background(), name)
	require.NoError(t, err)
	return snap
}

// seedInventory creates warehouse W1, product P1 and one inventory row.
func seedInventory(t *testing.T, s *Store) (warehouseID, productID string) {
	t.Helper()
	warehouseID = mustInsert(t, s, "warehouses", Row{"name": "W1", "address": "Dock 1"})[0]
	productID = mustInsert(t, s, "products", Row{"name": "P1"})[0]
	mustInsert(t, s, "inventory", Row{"warehouse_name": "W1", "product_name": "P1", "quantity": 5})
	return warehouseID, productID
}
