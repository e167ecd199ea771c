package snapshot

import (
	"os"
	"testing"
	"time"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "vaultd-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestUpsertAndChecksums(t *testing.T) {
	db := testDB(t)
	row := NoteRow{
		Path:      "hello.md",
		Title:     "hello",
		Checksum:  "abc123",
		Tags:      []string{"go"},
		Links:     []string{"world"},
		UpdatedAt: time.Now(),
	}
	if err := db.UpsertNote(row); err != nil {
		t.Fatalf("UpsertNote: %v", err)
	}
	cs, err := db.AllChecksums()
	if err != nil {
		t.Fatalf("AllChecksums: %v", err)
	}
	if cs["hello.md"] != "abc123" {
		t.Errorf("checksum = %q, want %q", cs["hello.md"], "abc123")
	}
}

func TestUpsertReplacesExisting(t *testing.T) {
	db := testDB(t)
	now := time.Now()
	_ = db.UpsertNote(NoteRow{Path: "up.md", Checksum: "1", UpdatedAt: now})
	_ = db.UpsertNote(NoteRow{Path: "up.md", Checksum: "2", Content: "body", Tags: []string{"t"}, UpdatedAt: now})

	rows, err := db.AllNotes()
	if err != nil {
		t.Fatalf("AllNotes: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %+v, want one", rows)
	}
	rec := rows[0]
	if rec.Checksum != "2" || rec.Content != "body" {
		t.Fatalf("rec = %+v, want checksum 2 with body", rec)
	}
	if len(rec.Tags) != 1 || rec.Tags[0] != "t" {
		t.Errorf("tags = %v", rec.Tags)
	}
}

func TestAllNotesOrderedByPath(t *testing.T) {
	db := testDB(t)
	now := time.Now()
	_ = db.UpsertNote(NoteRow{Path: "z.md", Checksum: "z", UpdatedAt: now})
	_ = db.UpsertNote(NoteRow{Path: "a.md", Checksum: "a", UpdatedAt: now})

	rows, err := db.AllNotes()
	if err != nil {
		t.Fatalf("AllNotes: %v", err)
	}
	if len(rows) != 2 || rows[0].Path != "a.md" || rows[1].Path != "z.md" {
		t.Errorf("rows = %+v, want a.md then z.md", rows)
	}
}

func TestDeleteNote(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertNote(NoteRow{Path: "del.md", Checksum: "x", UpdatedAt: time.Now()})
	if err := db.DeleteNote("del.md"); err != nil {
		t.Fatalf("DeleteNote: %v", err)
	}
	rows, _ := db.AllNotes()
	if len(rows) != 0 {
		t.Errorf("deleted note still present: %+v", rows)
	}
}
