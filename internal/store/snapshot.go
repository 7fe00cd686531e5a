package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Record is one stored row.
type Record struct {
	ID     string `json:"id"`
	Values Row    `json:"values"`
}

// Snapshot is a positional, point-in-time read of an entity's rows.
//
// The token digests the records, so a snapshot can later be checked against
// the stored table: any commit that changed the table changes the token.
type Snapshot struct {
	Entity  string   `json:"entity"`
	Token   string   `json:"token"`
	Records []Record `json:"records"`
}

// Len returns the number of records.
func (s Snapshot) Len() int {
	return len(s.Records)
}

// At returns the record at a position.
func (s Snapshot) At(pos int) (Record, bool) {
	if pos < 0 || pos >= len(s.Records) {
		return Record{}, false
	}
	return s.Records[pos], true
}

// IDs returns the identifiers in position order.
func (s Snapshot) IDs() []string {
	ids := make([]string, len(s.Records))
	for i, r := range s.Records {
		ids[i] = r.ID
	}
	return ids
}

// snapshotToken hashes the entity name and the JSON encoding of the records.
// encoding/json sorts map keys, so equal tables give equal tokens.
func snapshotToken(entityName string, records []Record) (string, error) {
	data, err := json.Marshal(records)
	if err != nil {
		return "", fmt.Errorf("snapshot token: %w", err)
	}
	h := sha256.New()
	h.Write([]byte(entityName))
	h.Write([]byte{0})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), nil
}
