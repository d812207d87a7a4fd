package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Artifact is one manifest row: the pair of cache files named after Base was
// produced from the library file at Path.
type Artifact struct {
	Base        string
	Path        string
	ContentHash string
	ExportedAt  time.Time
}

// PutArtifact inserts or replaces the row for a.Base.
func (s *Store) PutArtifact(a *Artifact) error {
	_, err := s.db.Exec(
		`INSERT INTO artifacts (base, path, content_hash, exported_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(base) DO UPDATE SET path = excluded.path,
		   content_hash = excluded.content_hash, exported_at = excluded.exported_at`,
		a.Base, a.Path, a.ContentHash, a.ExportedAt,
	)
	if err != nil {
		return fmt.Errorf("put artifact: %w", err)
	}
	return nil
}

// ArtifactByBase returns the row for base, or nil if there is none.
func (s *Store) ArtifactByBase(base string) (*Artifact, error) {
	a := &Artifact{}
	var hash sql.NullString
	var exported sql.NullTime
	err := s.db.QueryRow(
		"SELECT base, path, content_hash, exported_at FROM artifacts WHERE base = ?", base,
	).Scan(&a.Base, &a.Path, &hash, &exported)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("artifact by base: %w", err)
	}
	a.ContentHash = hash.String
	a.ExportedAt = exported.Time
	return a, nil
}

// Artifacts returns every row ordered by base name.
func (s *Store) Artifacts() ([]*Artifact, error) {
	rows, err := s.db.Query("SELECT base, path, content_hash, exported_at FROM artifacts ORDER BY base")
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer rows.Close()

	var out []*Artifact
	for rows.Next() {
		a := &Artifact{}
		var hash sql.NullString
		var exported sql.NullTime
		if err := rows.Scan(&a.Base, &a.Path, &hash, &exported); err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		a.ContentHash = hash.String
		a.ExportedAt = exported.Time
		out = append(out, a)
	}
	return out, rows.Err()
}

// DeleteArtifact removes the row for base.
func (s *Store) DeleteArtifact(base string) error {
	if _, err := s.db.Exec("DELETE FROM artifacts WHERE base = ?", base); err != nil {
		return fmt.Errorf("delete artifact: %w", err)
	}
	return nil
}
