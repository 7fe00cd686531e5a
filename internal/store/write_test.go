package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsert_RoundTrip(t *testing.T) {
	s := createTestStore(t)

	ids := mustInsert(t, s, "products", Row{"name": "Widget"})
	require.Len(t, ids, 1)

	snap := mustFetch(t, s, "products")
	require.Equal(t, 1, snap.Len())
	rec := snap.Records[0]
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, ids[0], rec.ID)
	assert.Equal(t, "Widget", rec.Values["name"])
	assert.Nil(t, rec.Values["description"])
}

func TestInsert_DuplicateNameIsConstraintViolation(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	mustInsert(t, s, "products", Row{"name": "Widget"})

	_, err := s.Insert(ctx, "products", []Row{{"name": "Widget"}})
	require.Error(t, err)

	var cv *ConstraintViolation
	require.ErrorAs(t, err, &cv)
	assert.Equal(t, ConstraintUnique, cv.Kind)
	assert.Equal(t, "insert", cv.Op)
	assert.Equal(t, "products", cv.Entity)

	snap := mustFetch(t, s, "products")
	require.Equal(t, 1, snap.Len())
	assert.Equal(t, "Widget", snap.Records[0].Values["name"])
}

func TestInsert_IdentifiersAreUnique(t *testing.T) {
	s := createTestStore(t)
	existing := mustInsert(t, s, "products", Row{"name": "existing"})

	rows := make([]Row, 50)
	for i := range rows {
		rows[i] = Row{"name": fmt.Sprintf("product-%d", i)}
	}
	ids := mustInsert(t, s, "products", rows...)

	seen := map[string]bool{existing[0]: true}
	for _, id := range ids {
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	assert.Len(t, seen, 51)
}

func TestInsert_IdentifierCollisionRollsBack(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t, WithIDGenerator(NewFixedGenerator("same", "same")))

	_, err := s.Insert(ctx, "products", []Row{{"name": "A"}, {"name": "B"}})
	require.Error(t, err)

	var cv *ConstraintViolation
	require.ErrorAs(t, err, &cv)
	assert.Contains(t, []ConstraintKind{ConstraintPrimaryKey, ConstraintUnique}, cv.Kind)
	assert.Equal(t, 0, mustFetch(t, s, "products").Len())
}

func TestInsert_IgnoresClientIdentifier(t *testing.T) {
	s := createTestStore(t, WithIDGenerator(NewFixedGenerator("generated-1")))

	ids := mustInsert(t, s, "products", Row{"id": "client-chosen", "name": "Widget"})
	assert.Equal(t, []string{"generated-1"}, ids)
	assert.Equal(t, "generated-1", mustFetch(t, s, "products").Records[0].ID)
}

func TestInsert_UnknownFieldRejectedBeforeAnyWrite(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	_, err := s.Insert(ctx, "products", []Row{{"name": "ok"}, {"name": "bad", "colour": "red"}})
	require.Error(t, err)
	assert.True(t, IsFieldError(err))
	assert.Equal(t, 0, mustFetch(t, s, "products").Len())
}

func TestInsert_NormalizesText(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	mustInsert(t, s, "products", Row{"name": "Cafe\u0301"})

	_, err := s.Insert(ctx, "products", []Row{{"name": "Caf\u00e9"}})
	require.Error(t, err)
	assert.True(t, IsConstraintViolation(err))
}

func TestInsert_InventoryDefaultsAndCoercion(t *testing.T) {
	s := createTestStore(t)
	mustInsert(t, s, "warehouses", Row{"name": "W1"})
	mustInsert(t, s, "products", Row{"name": "P1"}, Row{"name": "P2"})
	mustInsert(t, s, "inventory",
		Row{"warehouse_name": "W1", "product_name": "P1"},
		Row{"warehouse_name": "W1", "product_name": "P2", "quantity": "7"},
	)

	snap := mustFetch(t, s, "inventory")
	require.Equal(t, 2, snap.Len())
	assert.Equal(t, int64(0), snap.Records[0].Values["quantity"])
	assert.Equal(t, int64(7), snap.Records[1].Values["quantity"])
	assert.NotEqual(t, snap.Records[0].ID, snap.Records[1].ID)
}

func TestInsert_InventoryForeignKey(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	mustInsert(t, s, "products", Row{"name": "P1"})

	_, err := s.Insert(ctx, "inventory", []Row{{"warehouse_name": "nowhere", "product_name": "P1", "quantity": 1}})
	require.Error(t, err)

	var cv *ConstraintViolation
	require.ErrorAs(t, err, &cv)
	assert.Equal(t, ConstraintForeignKey, cv.Kind)
	assert.Equal(t, 0, mustFetch(t, s, "inventory").Len())
}

func TestReferences_EnforcedWithAndWithoutForeignKeys(t *testing.T) {
	tests := []struct {
		name string
		run  func(ctx context.Context, s *Store, warehouseID, inventoryID string) (Result, error)
		op   string
	}{
		{
			name: "insert with unknown warehouse",
			run: func(ctx context.Context, s *Store, _, _ string) (Result, error) {
				return s.Insert(ctx, "inventory", []Row{{"warehouse_name": "nowhere", "product_name": "P1"}})
			},
			op: "insert",
		},
		{
			name: "update to unknown product",
			run: func(ctx context.Context, s *Store, _, inventoryID string) (Result, error) {
				return s.Update(ctx, "inventory", []Update{{ID: inventoryID, Values: Row{"product_name": "P404"}}})
			},
			op: "update",
		},
		{
			name: "rename referenced warehouse",
			run: func(ctx context.Context, s *Store, warehouseID, _ string) (Result, error) {
				return s.Update(ctx, "warehouses", []Update{{ID: warehouseID, Values: Row{"name": "W2"}}})
			},
			op: "update",
		},
	}

	for _, fk := range []bool{true, false} {
		for _, tt := range tests {
			t.Run(fmt.Sprintf("%s/foreign_keys=%v", tt.name, fk), func(t *testing.T) {
				ctx := context.Background()
				s := createTestStore(t, WithForeignKeys(fk))
				warehouseID, _ := seedInventory(t, s)
				inventoryID := mustFetch(t, s, "inventory").Records[0].ID
				before := map[string]Snapshot{}
				for _, name := range []string{"warehouses", "products", "inventory"} {
					before[name] = mustFetch(t, s, name)
				}

				_, err := tt.run(ctx, s, warehouseID, inventoryID)
				require.Error(t, err)

				var cv *ConstraintViolation
				require.ErrorAs(t, err, &cv)
				assert.Equal(t, ConstraintForeignKey, cv.Kind)
				assert.Equal(t, tt.op, cv.Op)

				for name, snap := range before {
					assert.Equal(t, snap, mustFetch(t, s, name), name)
				}
			})
		}
	}
}

func TestReferences_ValidWritesWithoutForeignKeys(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t, WithForeignKeys(false))
	warehouseID, _ := seedInventory(t, s)
	mustInsert(t, s, "warehouses", Row{"name": "W2"})
	mustInsert(t, s, "inventory", Row{"warehouse_name": "W2", "product_name": "P1", "quantity": 3})

	inv := mustFetch(t, s, "inventory")
	res, err := s.Update(ctx, "inventory", []Update{{ID: inv.Records[0].ID, Values: Row{"quantity": 8}}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)

	// Fields other than the referenced name stay editable on a parent.
	res, err = s.Update(ctx, "warehouses", []Update{{ID: warehouseID, Values: Row{"address": "Dock 2"}}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, 2, mustFetch(t, s, "inventory").Len())
}

func TestInsert_InventoryDuplicatePair(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	seedInventory(t, s)

	_, err := s.Insert(ctx, "inventory", []Row{{"warehouse_name": "W1", "product_name": "P1", "quantity": 1}})
	require.Error(t, err)
	assert.True(t, IsConstraintViolation(err))
}

func TestUpdate_PartialFields(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	ids := mustInsert(t, s, "products", Row{"name": "Widget", "description": "old", "comments": "keep"})

	res, err := s.Update(ctx, "products", []Update{{ID: ids[0], Values: Row{"description": "new"}}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)

	rec := mustFetch(t, s, "products").Records[0]
	assert.Equal(t, "new", rec.Values["description"])
	assert.Equal(t, "keep", rec.Values["comments"])
	assert.Equal(t, "Widget", rec.Values["name"])
}

func TestUpdate_MissingIdentifierIsNoop(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	mustInsert(t, s, "products", Row{"name": "Widget"})
	before := mustFetch(t, s, "products")

	res, err := s.Update(ctx, "products", []Update{{ID: "does-not-exist", Values: Row{"name": "Other"}}})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Updated)
	assert.Equal(t, 1, res.Missing)
	assert.Equal(t, before, mustFetch(t, s, "products"))
}

func TestUpdate_IdentifierInValuesIgnored(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	ids := mustInsert(t, s, "products", Row{"name": "Widget"})

	res, err := s.Update(ctx, "products", []Update{{ID: ids[0], Values: Row{"id": "hijack", "name": "Gadget"}}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)

	rec := mustFetch(t, s, "products").Records[0]
	assert.Equal(t, ids[0], rec.ID)
	assert.Equal(t, "Gadget", rec.Values["name"])
}

func TestUpdate_WithoutIdentifierRejected(t *testing.T) {
	s := createTestStore(t)

	_, err := s.Update(context.Background(), "products", []Update{{Values: Row{"name": "x"}}})
	require.Error(t, err)
	assert.True(t, IsFieldError(err))
}

func TestUpdate_RenamingReferencedWarehouseFails(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	warehouseID, _ := seedInventory(t, s)

	_, err := s.Update(ctx, "warehouses", []Update{{ID: warehouseID, Values: Row{"name": "W9"}}})
	require.Error(t, err)

	var cv *ConstraintViolation
	require.ErrorAs(t, err, &cv)
	assert.Equal(t, ConstraintForeignKey, cv.Kind)
}

func TestDelete_CascadesToInventory(t *testing.T) {
	for _, fk := range []bool{true, false} {
		t.Run(fmt.Sprintf("foreign_keys=%v", fk), func(t *testing.T) {
			ctx := context.Background()
			s := createTestStore(t, WithForeignKeys(fk))
			warehouseID, _ := seedInventory(t, s)
			require.Equal(t, 1, mustFetch(t, s, "inventory").Len())

			res, err := s.Delete(ctx, "warehouses", []string{warehouseID})
			require.NoError(t, err)
			assert.Equal(t, 1, res.Deleted)

			assert.Equal(t, 0, mustFetch(t, s, "warehouses").Len())
			assert.Equal(t, 0, mustFetch(t, s, "inventory").Len())
			assert.Equal(t, 1, mustFetch(t, s, "products").Len())
		})
	}
}

func TestDelete_ProductCascadesOnlyItsRows(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t, WithForeignKeys(false))
	_, productID := seedInventory(t, s)
	mustInsert(t, s, "products", Row{"name": "P2"})
	mustInsert(t, s, "inventory", Row{"warehouse_name": "W1", "product_name": "P2", "quantity": 2})

	_, err := s.Delete(ctx, "products", []string{productID})
	require.NoError(t, err)

	inv := mustFetch(t, s, "inventory")
	require.Equal(t, 1, inv.Len())
	assert.Equal(t, "P2", inv.Records[0].Values["product_name"])
}

func TestDelete_UnknownIdentifierIsNoop(t *testing.T) {
	s := createTestStore(t)
	mustInsert(t, s, "products", Row{"name": "Widget"})

	res, err := s.Delete(context.Background(), "products", []string{"nope"})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Deleted)
	assert.Equal(t, 1, mustFetch(t, s, "products").Len())
}

func TestApply_OrderUpdatesInsertsDeletes(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	warehouseID := mustInsert(t, s, "warehouses", Row{"name": "W1"}, Row{"name": "W2"})
	mustInsert(t, s, "products", Row{"name": "P1"})

	_, err := s.Insert(ctx, "inventory", []Row{{"warehouse_name": "W2", "product_name": "P1"}})
	require.NoError(t, err)
	_, err = s.Apply(ctx, "inventory", "", Batch{
		Inserts: []Row{{"warehouse_name": "W1", "product_name": "P1", "quantity": 3}},
	})
	require.NoError(t, err)

	// The W1 cascade must leave W2's inventory alone.
	res, err := s.Apply(ctx, "warehouses", "", Batch{
		Updates: []Update{{ID: warehouseID[1], Values: Row{"address": "Dock 2"}}},
		Inserts: []Row{{"name": "W3"}},
		Deletes: []string{warehouseID[0]},
	})
	require.NoError(t, err)
	assert.Equal(t, Result{Updated: 1, Inserted: 1, Deleted: 1, InsertedIDs: res.InsertedIDs}, res)

	inv := mustFetch(t, s, "inventory")
	require.Equal(t, 1, inv.Len())
	assert.Equal(t, "W2", inv.Records[0].Values["warehouse_name"])
}

func TestApply_AtomicOnFailure(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	ids := mustInsert(t, s, "products", Row{"name": "A"}, Row{"name": "B"})
	before := mustFetch(t, s, "products")

	_, err := s.Apply(ctx, "products", before.Token, Batch{
		Updates: []Update{{ID: ids[0], Values: Row{"description": "changed"}}},
		Inserts: []Row{{"name": "C"}, {"name": "B"}}, // second insert violates UNIQUE(name)
		Deletes: []string{ids[1]},
	})
	require.Error(t, err)
	assert.True(t, IsConstraintViolation(err))

	after := mustFetch(t, s, "products")
	assert.Equal(t, before, after)
}

func TestApply_EmptyBatchIsNoop(t *testing.T) {
	s := createTestStore(t)
	mustInsert(t, s, "products", Row{"name": "A"})
	before := mustFetch(t, s, "products")

	res, err := s.Apply(context.Background(), "products", "any-token", Batch{})
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
	assert.Equal(t, before, mustFetch(t, s, "products"))
}

func TestApply_StaleSnapshotRejected(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	ids := mustInsert(t, s, "products", Row{"name": "A"})
	stale := mustFetch(t, s, "products")

	mustInsert(t, s, "products", Row{"name": "B"})
	current := mustFetch(t, s, "products")

	_, err := s.Apply(ctx, "products", stale.Token, Batch{Deletes: []string{ids[0]}})
	require.Error(t, err)

	var se *StaleSnapshotError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, stale.Token, se.Expected)
	assert.Equal(t, current.Token, se.Actual)
	assert.Equal(t, current, mustFetch(t, s, "products"))
}

func TestApply_CurrentTokenAccepted(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	ids := mustInsert(t, s, "products", Row{"name": "A"})
	snap := mustFetch(t, s, "products")

	res, err := s.Apply(ctx, "products", snap.Token, Batch{Deletes: []string{ids[0]}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Deleted)
}

func TestApply_UnknownEntity(t *testing.T) {
	s := createTestStore(t)
	_, err := s.Apply(context.Background(), "customers", "", Batch{Inserts: []Row{{"name": "x"}}})
	require.Error(t, err)
}
