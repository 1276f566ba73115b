package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the SQLite data access layer behind the symbol index and the
// classpath cache.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database at dbPath with WAL mode enabled.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use in transactions.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Migrate creates all tables and indexes. Idempotent.
func (s *Store) Migrate() error {
	_, err := s.db.Exec(schemaDDL)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// receiver_type is stored as '' when a symbol has no extension receiver so
// that equality filters treat "no receiver" as a comparable value.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS symbols (
  id              INTEGER PRIMARY KEY,
  fq_name         TEXT NOT NULL,
  short_name      TEXT NOT NULL,
  kind            TEXT NOT NULL,
  visibility      TEXT NOT NULL,
  receiver_type   TEXT NOT NULL DEFAULT '',
  owner           TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS owners (
  owner           TEXT PRIMARY KEY,
  decl_hash       TEXT NOT NULL,
  indexed_at      TIMESTAMP
);

CREATE TABLE IF NOT EXISTS classpath_entries (
  id              INTEGER PRIMARY KEY,
  kind            TEXT NOT NULL,
  compiled_path   TEXT NOT NULL,
  source_path     TEXT
);

CREATE TABLE IF NOT EXISTS metadata (
  key             TEXT PRIMARY KEY,
  value           TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_symbols_short_name ON symbols(short_name);
CREATE INDEX IF NOT EXISTS idx_symbols_fq_name ON symbols(fq_name, receiver_type);
CREATE INDEX IF NOT EXISTS idx_symbols_owner ON symbols(owner);
CREATE INDEX IF NOT EXISTS idx_classpath_kind ON classpath_entries(kind);
`

// GetMetadata returns the value stored under key, or "" when absent.
func (s *Store) GetMetadata(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get metadata %s: %w", key, err)
	}
	return value, nil
}

// SetMetadata upserts a metadata value.
func (s *Store) SetMetadata(key, value string) error {
	_, err := s.db.Exec(
		"INSERT INTO metadata (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set metadata %s: %w", key, err)
	}
	return nil
}
