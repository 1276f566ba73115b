package store

import (
	"database/sql"
	"fmt"
	"unicode/utf8"
)

// SymbolCols is the column list for symbol queries.
const SymbolCols = `id, fq_name, short_name, kind, visibility, receiver_type, owner`

func (s *Store) scanSymbol(scanner interface{ Scan(...any) error }) (*Symbol, error) {
	sym := &Symbol{}
	var kind, vis, receiver string
	if err := scanner.Scan(&sym.ID, &sym.FQName, &sym.ShortName, &kind, &vis, &receiver, &sym.Owner); err != nil {
		return nil, err
	}
	sym.Kind = SymbolKind(kind)
	sym.Visibility = Visibility(vis)
	sym.ReceiverType = receiverFromKey(receiver)
	return sym, nil
}

func (s *Store) querySymbols(query string, args ...any) ([]*Symbol, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var symbols []*Symbol
	for rows.Next() {
		sym, err := s.scanSymbol(rows)
		if err != nil {
			return nil, fmt.Errorf("scan symbol: %w", err)
		}
		symbols = append(symbols, sym)
	}
	return symbols, rows.Err()
}

// InsertSymbol writes a single symbol outside of any batch. Index writers
// should go through CommitBatch instead; this exists for seeding tests and
// tooling.
func (s *Store) InsertSymbol(sym *Symbol) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO symbols (fq_name, short_name, kind, visibility, receiver_type, owner)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sym.FQName, sym.ShortName, string(sym.Kind), string(sym.Visibility),
		receiverKey(sym.ReceiverType), sym.Owner,
	)
	if err != nil {
		return 0, fmt.Errorf("insert symbol: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	sym.ID = id
	return id, nil
}

// QuerySymbols returns up to limit symbols whose short name starts with
// name (or equals it when exact is set) and whose receiver type equals
// receiver, where nil only matches symbols without a receiver. Symbols
// declared by several owners under the same (fq_name, receiver) key are
// reported once. A limit <= 0 means no limit. Results are ordered by
// (short_name, fq_name, receiver_type).
func (s *Store) QuerySymbols(name string, receiver *string, limit int, exact bool) ([]*Symbol, error) {
	var filter string
	var args []any
	if exact {
		filter = "short_name = ?"
		args = append(args, name)
	} else {
		filter = "substr(short_name, 1, ?) = ?"
		args = append(args, utf8.RuneCountInString(name), name)
	}
	filter += " AND receiver_type = ?"
	args = append(args, receiverKey(receiver))

	if limit <= 0 {
		limit = -1
	}
	args = append(args, limit)

	query := "SELECT " + SymbolCols + ` FROM symbols
		WHERE id IN (SELECT MIN(id) FROM symbols WHERE ` + filter + ` GROUP BY fq_name, receiver_type)
		ORDER BY short_name, fq_name, receiver_type
		LIMIT ?`
	syms, err := s.querySymbols(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query symbols: %w", err)
	}
	return syms, nil
}

// SymbolsByOwner returns every symbol declared by owner, in insertion order.
func (s *Store) SymbolsByOwner(owner string) ([]*Symbol, error) {
	syms, err := s.querySymbols("SELECT "+SymbolCols+" FROM symbols WHERE owner = ? ORDER BY id", owner)
	if err != nil {
		return nil, fmt.Errorf("symbols by owner: %w", err)
	}
	return syms, nil
}

// SymbolsByFQName returns every row stored for fqName regardless of owner.
func (s *Store) SymbolsByFQName(fqName string) ([]*Symbol, error) {
	syms, err := s.querySymbols("SELECT "+SymbolCols+" FROM symbols WHERE fq_name = ? ORDER BY id", fqName)
	if err != nil {
		return nil, fmt.Errorf("symbols by fq name: %w", err)
	}
	return syms, nil
}

// OwnerHash returns the declaration hash recorded for owner, or "" when the
// owner has never been indexed.
func (s *Store) OwnerHash(owner string) (string, error) {
	var hash string
	err := s.db.QueryRow("SELECT decl_hash FROM owners WHERE owner = ?", owner).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("owner hash: %w", err)
	}
	return hash, nil
}

// Owners lists every owner that currently has a recorded declaration hash.
func (s *Store) Owners() ([]string, error) {
	rows, err := s.db.Query("SELECT owner FROM owners ORDER BY owner")
	if err != nil {
		return nil, fmt.Errorf("owners: %w", err)
	}
	defer rows.Close()
	var owners []string
	for rows.Next() {
		var o string
		if err := rows.Scan(&o); err != nil {
			return nil, fmt.Errorf("scan owner: %w", err)
		}
		owners = append(owners, o)
	}
	return owners, rows.Err()
}

// RemoveOwnersExcept retracts every owner not listed in keep. It is used to
// drop index entries for files that disappeared between sessions.
func (s *Store) RemoveOwnersExcept(keep []string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("remove owners: begin: %w", err)
	}
	defer tx.Rollback()

	if len(keep) == 0 {
		for _, q := range []string{"DELETE FROM symbols", "DELETE FROM owners"} {
			if _, err := tx.Exec(q); err != nil {
				return fmt.Errorf("remove owners: %w", err)
			}
		}
		return tx.Commit()
	}

	placeholders := placeholderList(len(keep))
	args := stringsToArgs(keep)
	for _, q := range []string{
		"DELETE FROM symbols WHERE owner NOT IN (" + placeholders + ")",
		"DELETE FROM owners WHERE owner NOT IN (" + placeholders + ")",
	} {
		if _, err := tx.Exec(q, args...); err != nil {
			return fmt.Errorf("remove owners: %w", err)
		}
	}
	return tx.Commit()
}

// CountSymbols returns the number of stored symbol rows.
func (s *Store) CountSymbols() (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM symbols").Scan(&n); err != nil {
		return 0, fmt.Errorf("count symbols: %w", err)
	}
	return n, nil
}
