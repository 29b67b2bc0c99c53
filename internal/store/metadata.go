package store

import (
	"database/sql"
)

const importedFilePrefix = "imported_file:"

// SetMetadata upserts a key-value pair in the metadata table.
func (s *Store) SetMetadata(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO metadata (key, value) VALUES ($1, $2)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	return err
}

// GetMetadata returns the value for a metadata key.
// Returns empty string and nil error if the key is missing.
func (s *Store) GetMetadata(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM metadata WHERE key = $1`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// GetImportedFileHash returns the content hash recorded for an imported bank file, or "".
func (s *Store) GetImportedFileHash(path string) (string, error) {
	return s.GetMetadata(importedFilePrefix + path)
}

// SetImportedFileHash records the content hash of an imported bank file.
func (s *Store) SetImportedFileHash(path, hash string) error {
	return s.SetMetadata(importedFilePrefix+path, hash)
}
