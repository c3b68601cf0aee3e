// Package snapshot persists a replica's CRDT state to disk so a
// process restart doesn't lose it. It is a durability optimization
// only: the CausalContext a replica rebuilds from its own history (or
// re-syncs from a peer) is the actual source of truth, never this
// store — the core engine deliberately has no tombstone-compaction or
// durability layer of its own, and this package is exactly the kind
// of host-side add-on that gap leaves room for.
package snapshot

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/amaydixit11/jsoncrdt/internal/crdt"
)

// Store persists one crdt.State per replica.
type Store struct {
	db *sql.DB
}

// New opens (and if necessary creates) a snapshot store at path. Use
// ":memory:" for an ephemeral, test-only store.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("snapshot: open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("snapshot: init schema: %w", err)
	}
	return store, nil
}

func (s *Store) initSchema() error {
	const schema = `
		CREATE TABLE IF NOT EXISTS snapshots (
			replica_id TEXT PRIMARY KEY,
			kind       TEXT NOT NULL,
			state      BLOB NOT NULL,
			updated_at INTEGER NOT NULL
		);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Save persists state under its own ReplicaID, replacing any snapshot
// previously saved for that replica. updatedAt is a caller-supplied
// Unix timestamp (this package never calls time.Now() itself, so that
// callers needing deterministic tests can control it).
func (s *Store) Save(state crdt.State, updatedAt int64) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("snapshot: marshal state: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO snapshots (replica_id, kind, state, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(replica_id) DO UPDATE SET
			kind = excluded.kind,
			state = excluded.state,
			updated_at = excluded.updated_at
	`, state.ReplicaID, string(state.Kind), data, updatedAt)
	if err != nil {
		return fmt.Errorf("snapshot: save: %w", err)
	}
	return nil
}

// ErrNotFound is returned by Load when no snapshot exists for the
// requested replica.
type ErrNotFound struct {
	ReplicaID string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("snapshot: no snapshot for replica %q", e.ReplicaID)
}

// Load returns the most recently saved state for replicaID.
func (s *Store) Load(replicaID string) (crdt.State, error) {
	var data []byte
	err := s.db.QueryRow(
		`SELECT state FROM snapshots WHERE replica_id = ?`, replicaID,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return crdt.State{}, &ErrNotFound{ReplicaID: replicaID}
	}
	if err != nil {
		return crdt.State{}, fmt.Errorf("snapshot: load: %w", err)
	}

	var state crdt.State
	if err := json.Unmarshal(data, &state); err != nil {
		return crdt.State{}, fmt.Errorf("snapshot: unmarshal state: %w", err)
	}
	return state, nil
}

// List returns every replica ID with a persisted snapshot.
func (s *Store) List() ([]string, error) {
	rows, err := s.db.Query(`SELECT replica_id FROM snapshots ORDER BY replica_id`)
	if err != nil {
		return nil, fmt.Errorf("snapshot: list: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("snapshot: scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Delete removes replicaID's snapshot, if any.
func (s *Store) Delete(replicaID string) error {
	_, err := s.db.Exec(`DELETE FROM snapshots WHERE replica_id = ?`, replicaID)
	if err != nil {
		return fmt.Errorf("snapshot: delete: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
