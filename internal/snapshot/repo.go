package snapshot

import (
	"encoding/json"
	"fmt"
	"time"
)

// NoteRow is one persisted note entry. Content is stored so a warm start can
// rebuild the index without touching unchanged vault files.
type NoteRow struct {
	Path      string
	Title     string
	Checksum  string
	Content   string
	Tags      []string
	Links     []string
	UpdatedAt time.Time
}

// UpsertNote inserts or replaces a note row.
func (db *DB) UpsertNote(rec NoteRow) error {
	tagsJSON, _ := json.Marshal(rec.Tags)
	linksJSON, _ := json.Marshal(rec.Links)
	_, err := db.conn.Exec(`
		INSERT INTO notes (path, title, checksum, content, tags, links, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			title      = excluded.title,
			checksum   = excluded.checksum,
			content    = excluded.content,
			tags       = excluded.tags,
			links      = excluded.links,
			updated_at = excluded.updated_at
	`, rec.Path, rec.Title, rec.Checksum, rec.Content, string(tagsJSON), string(linksJSON), rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("snapshot: upsert note: %w", err)
	}
	return nil
}

// DeleteNote removes a note row.
func (db *DB) DeleteNote(path string) error {
	if _, err := db.conn.Exec(`DELETE FROM notes WHERE path = ?`, path); err != nil {
		return fmt.Errorf("snapshot: delete note: %w", err)
	}
	return nil
}

// AllChecksums returns path → checksum for every persisted note.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM notes`)
	if err != nil {
		return nil, fmt.Errorf("snapshot: all checksums: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// AllNotes returns every persisted note row, ordered by path.
func (db *DB) AllNotes() ([]NoteRow, error) {
	rows, err := db.conn.Query(`
		SELECT path, title, checksum, content, tags, links, updated_at
		FROM notes ORDER BY path
	`)
	if err != nil {
		return nil, fmt.Errorf("snapshot: all notes: %w", err)
	}
	defer rows.Close()

	var out []NoteRow
	for rows.Next() {
		var (
			rec       NoteRow
			tagsJSON  string
			linksJSON string
		)
		if err := rows.Scan(&rec.Path, &rec.Title, &rec.Checksum, &rec.Content, &tagsJSON, &linksJSON, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(tagsJSON), &rec.Tags)
		_ = json.Unmarshal([]byte(linksJSON), &rec.Links)
		out = append(out, rec)
	}
	return out, rows.Err()
}
