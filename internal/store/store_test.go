package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/roach88/rfsync/internal/ir"
)

// note is a minimal stored entity.
type note struct {
	id, version int64
	text        string
}

func (n *note) Kind() string                 { return "Note" }
func (n *note) Key() (int64, int64)          { return n.id, n.version }
func (n *note) SetKey(id, version int64)     { n.id, n.version = id, version }
func (n *note) Encode() (ir.IRObject, error) { return ir.IRObject{"text": ir.IRString(n.text)}, nil }
func (n *note) Decode(payload ir.IRObject) error {
	s, _ := payload["text"].(ir.IRString)
	n.text = string(s)
	return nil
}

// createTestStore creates a new store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	for _, table := range []string{"entities", "sequences"} {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found after idempotent opens: %v", table, err)
		}
	}
}

func TestOpen_KeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	s1, err := Open(path)
	if err != nil {
		t.Fatalf("first Open() failed: %v", err)
	}
	n := &note{text: "kept"}
	if err := s1.Save(ctx, n); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	s1.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("second Open() failed: %v", err)
	}
	defer s2.Close()

	rec, found, err := s2.Load(ctx, "Note", n.id)
	if err != nil || !found {
		t.Fatalf("Load() = %v, %v", found, err)
	}
	if got := rec.Payload["text"]; got != ir.IRString("kept") {
		t.Errorf("payload text = %v, want kept", got)
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open("/nonexistent/dir/test.db")
	if err == nil {
		t.Error("expected error for invalid path, got nil")
	}
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{db: nil}
	if err := s.Close(); err != nil {
		t.Errorf("Close() on nil db should not error: %v", err)
	}
}

func TestMigrations_SetUserVersion(t *testing.T) {
	s := createTestStore(t)

	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		t.Fatalf("user_version: %v", err)
	}
	if version != currentSchemaVersion {
		t.Errorf("user_version = %d, want %d", version, currentSchemaVersion)
	}

	indexes := getTableIndexes(t, s.db, "entities")
	if !contains(indexes, "idx_entities_kind_version") {
		t.Errorf("entities table missing index idx_entities_kind_version, have %v", indexes)
	}
}

// Pragma tests

func TestPragmas(t *testing.T) {
	s := createTestStore(t)

	tests := []struct {
		name, want string
	}{
		{"journal_mode", "wal"},
		{"synchronous", "1"}, // NORMAL
		{"busy_timeout", "5000"},
		{"foreign_keys", "1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.verifyPragma(tt.name, tt.want); err != nil {
				t.Error(err)
			}
		})
	}
}

// Entity tests

func TestSave_AllocatesIDsPerKind(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	a, b := &note{text: "a"}, &note{text: "b"}
	for _, n := range []*note{a, b} {
		if err := s.Save(ctx, n); err != nil {
			t.Fatalf("Save() failed: %v", err)
		}
	}
	if a.id != 1 || b.id != 2 {
		t.Errorf("ids = %d, %d; want 1, 2", a.id, b.id)
	}
	if a.version != 1 || b.version != 1 {
		t.Errorf("versions = %d, %d; want 1, 1", a.version, b.version)
	}
}

func TestSave_VersionChangesOnlyWithPayload(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	n := &note{text: "first"}
	if err := s.Save(ctx, n); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	if err := s.Save(ctx, n); err != nil {
		t.Fatalf("second Save() failed: %v", err)
	}
	if n.version != 1 {
		t.Errorf("unchanged save bumped version to %d", n.version)
	}

	n.text = "second"
	if err := s.Save(ctx, n); err != nil {
		t.Fatalf("third Save() failed: %v", err)
	}
	if n.version != 2 {
		t.Errorf("version = %d, want 2", n.version)
	}
}

func TestSave_ExplicitIDAdvancesSequence(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	fixed := &note{id: 10, text: "fixed"}
	if err := s.Save(ctx, fixed); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	next := &note{text: "next"}
	if err := s.Save(ctx, next); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	if next.id != 11 {
		t.Errorf("next id = %d, want 11", next.id)
	}
}

func TestLoadMany_OneQuery(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for _, text := range []string{"a", "b", "c"} {
		if err := s.Save(ctx, &note{text: text}); err != nil {
			t.Fatalf("Save() failed: %v", err)
		}
	}

	before := s.reads.Load()
	recs, err := s.LoadMany(ctx, "Note", []int64{3, 1, 99})
	if err != nil {
		t.Fatalf("LoadMany() failed: %v", err)
	}
	if got := s.reads.Load() - before; got != 1 {
		t.Errorf("LoadMany() ran %d queries, want 1", got)
	}
	if len(recs) != 2 {
		t.Fatalf("LoadMany() returned %d records, want 2", len(recs))
	}
	if recs[3].Payload["text"] != ir.IRString("c") {
		t.Errorf("record 3 = %v", recs[3])
	}
	if _, ok := recs[99]; ok {
		t.Error("missing id should be absent")
	}

	empty, err := s.LoadMany(ctx, "Note", nil)
	if err != nil || len(empty) != 0 {
		t.Errorf("LoadMany(nil) = %v, %v", empty, err)
	}
}

func TestDeleteAndList(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	a, b := &note{text: "a"}, &note{text: "b"}
	for _, n := range []*note{a, b} {
		if err := s.Save(ctx, n); err != nil {
			t.Fatalf("Save() failed: %v", err)
		}
	}
	if err := s.Delete(ctx, a); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if err := s.Delete(ctx, &note{}); err != nil {
		t.Errorf("Delete() of unsaved entity: %v", err)
	}

	if _, found, _ := s.Load(ctx, "Note", a.id); found {
		t.Error("deleted entity still loads")
	}

	recs, err := s.List(ctx, "Note")
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(recs) != 1 || recs[0].ID != b.id {
		t.Errorf("List() = %v, want only %d", recs, b.id)
	}

	none, err := s.List(ctx, "Other")
	if err != nil || none == nil || len(none) != 0 {
		t.Errorf("List(Other) = %#v, %v; want empty non-nil", none, err)
	}
}

func TestMarshalPayload_Canonical(t *testing.T) {
	data, err := marshalPayload(ir.IRObject{"b": ir.IRInt(1), "a": ir.IRString("x")})
	if err != nil {
		t.Fatalf("marshalPayload() failed: %v", err)
	}
	if data != `{"a":"x","b":1}` {
		t.Errorf("marshalPayload() = %s", data)
	}

	empty, err := marshalPayload(nil)
	if err != nil || empty != "{}" {
		t.Errorf("marshalPayload(nil) = %q, %v", empty, err)
	}

	if _, err := unmarshalPayload("[1]"); err == nil {
		t.Error("expected error for non-object payload")
	}
}

func getTableIndexes(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()
	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type='index' AND tbl_name=?", table)
	if err != nil {
		t.Fatalf("query indexes: %v", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("scan index: %v", err)
		}
		names = append(names, name)
	}
	return names
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
