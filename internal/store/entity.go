package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/rfsync/internal/ir"
)

// Entity is a domain object stored as one row. Kind must match the domain
// type name the object is registered under.
type Entity interface {
	Kind() string

	// Key returns the stored id and version; 0 means not yet stored.
	Key() (id, version int64)
	SetKey(id, version int64)

	Encode() (ir.IRObject, error)
	Decode(payload ir.IRObject) error
}

// Record is one stored row.
type Record struct {
	Kind    string
	ID      int64
	Version int64
	Payload ir.IRObject
}

// Save writes e, allocating an id on first save. The version increments
// only when the stored payload changes. The new id and version are set on e.
func (s *Store) Save(ctx context.Context, e Entity) error {
	kind := e.Kind()
	payload, err := e.Encode()
	if err != nil {
		return fmt.Errorf("save %s: %w", kind, err)
	}
	data, err := marshalPayload(payload)
	if err != nil {
		return fmt.Errorf("save %s: %w", kind, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save %s: begin tx: %w", kind, err)
	}
	defer tx.Rollback() // No-op if committed

	id, _ := e.Key()
	if id == 0 {
		err = tx.QueryRowContext(ctx, `
			INSERT INTO sequences (kind, last) VALUES (?, 1)
			ON CONFLICT(kind) DO UPDATE SET last = last + 1
			RETURNING last
		`, kind).Scan(&id)
	} else {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO sequences (kind, last) VALUES (?, ?)
			ON CONFLICT(kind) DO UPDATE SET last = max(last, excluded.last)
		`, kind, id)
	}
	if err != nil {
		return fmt.Errorf("save %s: allocate id: %w", kind, err)
	}

	var version int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO entities (kind, id, version, payload) VALUES (?, ?, 1, ?)
		ON CONFLICT(kind, id) DO UPDATE SET
			version = version + 1,
			payload = excluded.payload
		WHERE payload != excluded.payload
		RETURNING version
	`, kind, id, data).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		// Unchanged payload: the update was skipped.
		err = tx.QueryRowContext(ctx, `
			SELECT version FROM entities WHERE kind = ? AND id = ?
		`, kind, id).Scan(&version)
	}
	if err != nil {
		return fmt.Errorf("save %s %d: %w", kind, id, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save %s %d: commit: %w", kind, id, err)
	}
	e.SetKey(id, version)
	return nil
}

// Delete removes e. Deleting an entity that is not stored is a no-op.
func (s *Store) Delete(ctx context.Context, e Entity) error {
	id, _ := e.Key()
	if id == 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM entities WHERE kind = ? AND id = ?
	`, e.Kind(), id)
	if err != nil {
		return fmt.Errorf("delete %s %d: %w", e.Kind(), id, err)
	}
	return nil
}

// Load returns the stored row for (kind, id). The boolean is false when no
// such row exists.
func (s *Store) Load(ctx context.Context, kind string, id int64) (Record, bool, error) {
	s.reads.Add(1)
	row := s.db.QueryRowContext(ctx, `
		SELECT kind, id, version, payload FROM entities
		WHERE kind = ? AND id = ?
	`, kind, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("load %s %d: %w", kind, id, err)
	}
	return rec, true, nil
}

// LoadMany returns the stored rows of kind among ids, keyed by id, with
// one query. Missing ids are absent from the map.
func (s *Store) LoadMany(ctx context.Context, kind string, ids []int64) (map[int64]Record, error) {
	out := make(map[int64]Record, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	args := make([]any, 0, len(ids)+1)
	args = append(args, kind)
	for _, id := range ids {
		args = append(args, id)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")

	s.reads.Add(1)
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, id, version, payload FROM entities
		WHERE kind = ? AND id IN (`+placeholders+`)
		ORDER BY id ASC
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("load %s batch: %w", kind, err)
	}
	defer rows.Close()

	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("load %s batch: %w", kind, err)
		}
		out[rec.ID] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s batch: %w", kind, err)
	}
	return out, nil
}

// List returns every stored row of kind, ordered by id.
// Returns an empty slice (not nil) when none exist.
func (s *Store) List(ctx context.Context, kind string) ([]Record, error) {
	s.reads.Add(1)
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, id, version, payload FROM entities
		WHERE kind = ?
		ORDER BY id ASC
	`, kind)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", kind, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", kind, err)
	}
	return records, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var (
		rec  Record
		data string
	)
	if err := row.Scan(&rec.Kind, &rec.ID, &rec.Version, &data); err != nil {
		return Record{}, err
	}
	payload, err := unmarshalPayload(data)
	if err != nil {
		return Record{}, err
	}
	rec.Payload = payload
	return rec, nil
}
