package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang/snappy"
	_ "modernc.org/sqlite"

	"github.com/cognicore/beliefnet/pkg/beliefnet/internalerr"
	"github.com/cognicore/beliefnet/pkg/beliefnet/network"
	"github.com/cognicore/beliefnet/pkg/beliefnet/store"
)

// timeLayout is fixed-width so that created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// sqliteStore implements the Store interface using SQLite
type sqliteStore struct {
	db *sql.DB
}

// OpenSQLite opens a SQLite database with WAL mode enabled.
func OpenSQLite(ctx context.Context, path string) (store.Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %v: %w", path, err, internalerr.ErrStoreUnavailable)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}

	// Initialize schema
	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &sqliteStore{db: db}, nil
}

// Close closes the database connection
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

// initSchema creates tables if they don't exist
func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS snapshots (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	created_at TEXT NOT NULL,
	variables INTEGER NOT NULL,
	payload BLOB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_snapshots_name ON snapshots(name, created_at);
`

	_, err := db.ExecContext(ctx, schema)
	return err
}

// encodeDefinition serializes a definition as snappy-compressed JSON.
func encodeDefinition(def network.Definition) ([]byte, error) {
	raw, err := json.Marshal(def)
	if err != nil {
		return nil, err
	}
	return snappy.Encode(nil, raw), nil
}

func decodeDefinition(payload []byte) (network.Definition, error) {
	raw, err := snappy.Decode(nil, payload)
	if err != nil {
		return network.Definition{}, fmt.Errorf("decompress snapshot: %w", err)
	}
	var def network.Definition
	if err := json.Unmarshal(raw, &def); err != nil {
		return network.Definition{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return def, nil
}

// SaveSnapshot inserts a snapshot
func (s *sqliteStore) SaveSnapshot(ctx context.Context, snap store.Snapshot) error {
	if snap.ID == "" {
		return fmt.Errorf("snapshot without id: %w", internalerr.ErrInvalidInput)
	}
	payload, err := encodeDefinition(snap.Definition)
	if err != nil {
		return err
	}

	const stmt = `
INSERT INTO snapshots (id, name, created_at, variables, payload)
VALUES (?, ?, ?, ?, ?);
`
	_, err = s.db.ExecContext(
		ctx,
		stmt,
		snap.ID,
		snap.Name,
		snap.CreatedAt.UTC().Format(timeLayout),
		len(snap.Definition.Variables),
		payload,
	)
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("snapshot %s: %w", snap.ID, internalerr.ErrDuplicate)
	}
	return err
}

// GetSnapshot retrieves a snapshot by ID
func (s *sqliteStore) GetSnapshot(ctx context.Context, id string) (store.Snapshot, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, name, created_at, payload FROM snapshots WHERE id = ?;
`, id)
	snap, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Snapshot{}, fmt.Errorf("snapshot %s: %w", id, internalerr.ErrNotFound)
	}
	return snap, err
}

// LatestSnapshot retrieves the newest snapshot of a named network
func (s *sqliteStore) LatestSnapshot(ctx context.Context, name string) (store.Snapshot, bool, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, name, created_at, payload
FROM snapshots
WHERE name = ?
ORDER BY created_at DESC, id DESC
LIMIT 1;
`, name)
	snap, err := scanSnapshot(row)
	if err == sql.ErrNoRows {
		return store.Snapshot{}, false, nil
	}
	if err != nil {
		return store.Snapshot{}, false, err
	}
	return snap, true, nil
}

// ListSnapshots lists snapshots newest first
func (s *sqliteStore) ListSnapshots(ctx context.Context, name string) ([]store.SnapshotInfo, error) {
	query := `SELECT id, name, created_at, variables FROM snapshots`
	var args []any
	if name != "" {
		query += ` WHERE name = ?`
		args = append(args, name)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var infos []store.SnapshotInfo
	for rows.Next() {
		var info store.SnapshotInfo
		var created string
		if err := rows.Scan(&info.ID, &info.Name, &created, &info.Variables); err != nil {
			return nil, err
		}
		if info.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	store.SortNewestFirst(infos)
	return infos, nil
}

// DeleteSnapshot removes a snapshot by ID
func (s *sqliteStore) DeleteSnapshot(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("snapshot %s: %w", id, internalerr.ErrNotFound)
	}
	return nil
}

func scanSnapshot(row *sql.Row) (store.Snapshot, error) {
	var snap store.Snapshot
	var created string
	var payload []byte
	if err := row.Scan(&snap.ID, &snap.Name, &created, &payload); err != nil {
		return store.Snapshot{}, err
	}

	var err error
	if snap.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
		return store.Snapshot{}, err
	}
	if snap.Definition, err = decodeDefinition(payload); err != nil {
		return store.Snapshot{}, err
	}
	return snap, nil
}
