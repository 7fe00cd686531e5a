// Package harness runs inventory scenarios: YAML files that seed tables,
// commit a sequence of change-sets and assert on the outcome of each commit
// and on the final table contents.
//
// # Scenario Format
//
//	name: delete_wins
//	description: "A row both edited and deleted is deleted"
//	foreign_keys: true            # optional, default true
//	setup:
//	  - entity: warehouses
//	    rows:
//	      - {name: W1}
//	steps:
//	  - commit: inventory
//	    snapshot: current         # or "previous" to reuse a stale snapshot
//	    changes:
//	      edited: {1: {quantity: 10}}
//	      deleted: [1]
//	    expect:
//	      outcome: committed      # stale | constraint_violation | rejected | error
//	      kind: unique            # constraint kind, with constraint_violation
//	      counts: {edited: 0, added: 0, deleted: 1}
//	assertions:
//	  - type: row_count
//	    entity: inventory
//	    count: 2
//	  - type: row
//	    entity: inventory
//	    where: {product_name: P1}
//	    expect: {quantity: 1}
//	  - type: absent
//	    entity: inventory
//	    where: {product_name: P2}
//
// # Deterministic Testing
//
// Every scenario runs against a fresh in-memory SQLite database with
// sequential identifiers (row-0001, row-0002, ...), so the final state can be
// compared byte for byte against a golden file with RunWithGolden.
package harness
