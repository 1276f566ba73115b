package store

import (
	"fmt"
)

const classpathFingerprintKey = "classpath_fingerprint"

// SaveClasspath replaces the cached classpath with primary and buildScript,
// tagged with fingerprint, in one transaction.
func (s *Store) SaveClasspath(fingerprint string, primary, buildScript []ClasspathEntry) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("save classpath: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM classpath_entries"); err != nil {
		return fmt.Errorf("save classpath: clear: %w", err)
	}
	for kind, entries := range map[string][]ClasspathEntry{
		ClasspathPrimary:     primary,
		ClasspathBuildScript: buildScript,
	} {
		for _, e := range entries {
			if _, err := tx.Exec(
				"INSERT INTO classpath_entries (kind, compiled_path, source_path) VALUES (?, ?, ?)",
				kind, e.CompiledPath, e.SourcePath,
			); err != nil {
				return fmt.Errorf("save classpath: insert %s: %w", e.CompiledPath, err)
			}
		}
	}
	if _, err := tx.Exec(
		"INSERT INTO metadata (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		classpathFingerprintKey, fingerprint,
	); err != nil {
		return fmt.Errorf("save classpath: fingerprint: %w", err)
	}
	return tx.Commit()
}

// LoadClasspath returns the cached classpath if it was saved under
// fingerprint. ok is false on a cache miss.
func (s *Store) LoadClasspath(fingerprint string) (primary, buildScript []ClasspathEntry, ok bool, err error) {
	stored, err := s.GetMetadata(classpathFingerprintKey)
	if err != nil {
		return nil, nil, false, err
	}
	if stored == "" || stored != fingerprint {
		return nil, nil, false, nil
	}

	rows, err := s.db.Query("SELECT kind, compiled_path, source_path FROM classpath_entries ORDER BY id")
	if err != nil {
		return nil, nil, false, fmt.Errorf("load classpath: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var kind string
		var e ClasspathEntry
		if err := rows.Scan(&kind, &e.CompiledPath, &e.SourcePath); err != nil {
			return nil, nil, false, fmt.Errorf("load classpath: scan: %w", err)
		}
		if kind == ClasspathBuildScript {
			buildScript = append(buildScript, e)
		} else {
			primary = append(primary, e)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, false, err
	}
	return primary, buildScript, true, nil
}
