package store

import (
	"database/sql"
	"fmt"
	"time"
)

// CommitBatch applies every buffered operation of batch inside a single
// transaction. Either all operations become visible or none do.
func (s *Store) CommitBatch(batch *Batch) error {
	ops := batch.snapshot()
	if len(ops) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("commit batch: begin: %w", err)
	}
	defer tx.Rollback()

	for _, op := range ops {
		switch op.kind {
		case opRemoveOwner:
			if err := removeOwnerTx(tx, op.owner); err != nil {
				return fmt.Errorf("commit batch: remove %s: %w", op.owner, err)
			}
		case opAddSymbol:
			if _, err := insertSymbolTx(tx, &op.symbol); err != nil {
				return fmt.Errorf("commit batch: symbol %q: %w", op.symbol.FQName, err)
			}
		case opSetOwnerHash:
			if err := setOwnerHashTx(tx, op.owner, op.hash); err != nil {
				return fmt.Errorf("commit batch: owner hash %s: %w", op.owner, err)
			}
		}
	}

	return tx.Commit()
}

// --- Transaction-scoped helpers ---

func insertSymbolTx(tx *sql.Tx, sym *Symbol) (int64, error) {
	res, err := tx.Exec(
		`INSERT INTO symbols (fq_name, short_name, kind, visibility, receiver_type, owner)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sym.FQName, sym.ShortName, string(sym.Kind), string(sym.Visibility),
		receiverKey(sym.ReceiverType), sym.Owner,
	)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	sym.ID = id
	return id, nil
}

func removeOwnerTx(tx *sql.Tx, owner string) error {
	if _, err := tx.Exec("DELETE FROM symbols WHERE owner = ?", owner); err != nil {
		return err
	}
	_, err := tx.Exec("DELETE FROM owners WHERE owner = ?", owner)
	return err
}

func setOwnerHashTx(tx *sql.Tx, owner, hash string) error {
	_, err := tx.Exec(
		`INSERT INTO owners (owner, decl_hash, indexed_at) VALUES (?, ?, ?)
		 ON CONFLICT(owner) DO UPDATE SET decl_hash = excluded.decl_hash, indexed_at = excluded.indexed_at`,
		owner, hash, time.Now(),
	)
	return err
}
