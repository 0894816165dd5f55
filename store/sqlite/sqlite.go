// Package sqlite implements store.Store on a single SQLite database file.
//
// Records use the same binary encoding as the blob store; SQLite only adds
// transactional writes and a single-file layout that is convenient to ship
// next to a reconstruction database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hupe1980/kpagg/core"
	"github.com/hupe1980/kpagg/internal/compress"
	"github.com/hupe1980/kpagg/persistence"
	"github.com/hupe1980/kpagg/store"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS correspondences (
	pair TEXT PRIMARY KEY,
	data BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS matches (
	pair TEXT PRIMARY KEY,
	data BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS keypoints (
	name TEXT PRIMARY KEY,
	data BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS checkpoints (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	data BLOB NOT NULL
);
`

var _ store.Store = (*Store)(nil)

// Store is a SQLite-backed record store.
type Store struct {
	db          *sql.DB
	compression compress.Type
}

// Open opens or creates the database at path.
func Open(path string, compression compress.Type) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Writers run concurrently; SQLite serializes them anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &Store{db: db, compression: compression}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) upsert(ctx context.Context, table, keyCol, key string, data []byte) error {
	q := fmt.Sprintf(`INSERT INTO %s (%s, data) VALUES (?, ?)
		ON CONFLICT(%s) DO UPDATE SET data = excluded.data`, table, keyCol, keyCol)
	_, err := s.db.ExecContext(ctx, q, key, data)
	return err
}

func (s *Store) get(ctx context.Context, table, keyCol, key string) ([]byte, error) {
	var data []byte
	q := fmt.Sprintf(`SELECT data FROM %s WHERE %s = ?`, table, keyCol)
	err := s.db.QueryRowContext(ctx, q, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s %s", store.ErrNotFound, table, key)
	}
	return data, err
}

func (s *Store) has(ctx context.Context, table, keyCol, key string) (bool, error) {
	var n int
	q := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s = ?`, table, keyCol)
	if err := s.db.QueryRowContext(ctx, q, key).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// PutCorrespondences implements store.CorrespondenceWriter.
func (s *Store) PutCorrespondences(ctx context.Context, name0, name1 string, c *core.Correspondences) error {
	data, err := persistence.EncodeCorrespondences(c, s.compression)
	if err != nil {
		return err
	}
	return s.upsert(ctx, "correspondences", "pair", core.PairKey(name0, name1), data)
}

// Correspondences implements store.CorrespondenceReader.
func (s *Store) Correspondences(ctx context.Context, name0, name1 string) (*core.Correspondences, error) {
	data, err := s.get(ctx, "correspondences", "pair", core.PairKey(name0, name1))
	if err != nil {
		return nil, err
	}
	return persistence.DecodeCorrespondences(data)
}

// HasCorrespondences implements store.CorrespondenceReader.
func (s *Store) HasCorrespondences(ctx context.Context, name0, name1 string) (bool, error) {
	return s.has(ctx, "correspondences", "pair", core.PairKey(name0, name1))
}

// PutMatches implements store.MatchStore.
func (s *Store) PutMatches(ctx context.Context, name0, name1 string, m *core.MatchArray) error {
	data, err := persistence.EncodeMatchArray(m, s.compression)
	if err != nil {
		return err
	}
	return s.upsert(ctx, "matches", "pair", core.PairKey(name0, name1), data)
}

// Matches implements store.MatchStore.
func (s *Store) Matches(ctx context.Context, name0, name1 string) (*core.MatchArray, error) {
	data, err := s.get(ctx, "matches", "pair", core.PairKey(name0, name1))
	if err != nil {
		return nil, err
	}
	return persistence.DecodeMatchArray(data)
}

// HasMatches implements store.MatchStore.
func (s *Store) HasMatches(ctx context.Context, name0, name1 string) (bool, error) {
	return s.has(ctx, "matches", "pair", core.PairKey(name0, name1))
}

// PutKeypoints implements store.KeypointStore.
func (s *Store) PutKeypoints(ctx context.Context, name string, set *core.KeypointSet) error {
	data, err := persistence.EncodeKeypointSet(set, s.compression)
	if err != nil {
		return err
	}
	return s.upsert(ctx, "keypoints", "name", name, data)
}

// Keypoints implements store.KeypointStore.
func (s *Store) Keypoints(ctx context.Context, name string) (*core.KeypointSet, error) {
	data, err := s.get(ctx, "keypoints", "name", name)
	if err != nil {
		return nil, err
	}
	return persistence.DecodeKeypointSet(data)
}

// HasKeypoints implements store.KeypointStore.
func (s *Store) HasKeypoints(ctx context.Context, name string) (bool, error) {
	return s.has(ctx, "keypoints", "name", name)
}

// KeypointNames implements store.KeypointStore.
func (s *Store) KeypointNames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM keypoints ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// SaveCheckpoint implements store.CheckpointStore. Older checkpoints are
// removed in the same transaction.
func (s *Store) SaveCheckpoint(ctx context.Context, data []byte) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `INSERT INTO checkpoints (data) VALUES (?)`, data)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM checkpoints WHERE id < ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}

// LoadCheckpoint implements store.CheckpointStore.
func (s *Store) LoadCheckpoint(ctx context.Context) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM checkpoints ORDER BY id DESC LIMIT 1`).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: checkpoint", store.ErrNotFound)
	}
	return data, err
}
