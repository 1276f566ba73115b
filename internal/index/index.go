// Package index is the cross-file symbol table used for unimported-symbol
// completion and "add import" fixes. Writes are transactional: a file's old
// declarations disappear and its new ones appear in the same commit.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jward/sapwood/internal/store"
)

// DefaultLimit is the query limit used when callers pass 0.
const DefaultLimit = 20

// Index owns the symbol tables of one session. It is created when the
// session starts and closed with it; components receive it by reference.
type Index struct {
	store *store.Store
	log   *slog.Logger

	// writeMu serializes writers so the hash check in Refresh and the
	// commit that follows it are not interleaved with another writer.
	writeMu sync.Mutex
}

// Option configures an Index.
type Option func(*Index)

// WithLogger sets the logger used for update failures.
func WithLogger(l *slog.Logger) Option {
	return func(ix *Index) {
		ix.log = l
	}
}

// New wraps an already-migrated Store.
func New(s *store.Store, opts ...Option) *Index {
	ix := &Index{store: s, log: slog.Default()}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// Open creates the Store at dbPath, migrates it and returns an Index that
// owns it. Close releases the database.
func Open(dbPath string, opts ...Option) (*Index, error) {
	s, err := store.NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("index: open: %w", err)
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("index: migrate: %w", err)
	}
	return New(s, opts...), nil
}

// Store returns the underlying Store.
func (ix *Index) Store() *store.Store {
	return ix.store
}

// Close releases the database.
func (ix *Index) Close() error {
	return ix.store.Close()
}

// Update applies batch as one atomically visible unit.
func (ix *Index) Update(ctx context.Context, batch *store.Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ix.writeMu.Lock()
	defer ix.writeMu.Unlock()
	if err := ix.store.CommitBatch(batch); err != nil {
		return fmt.Errorf("index: update: %w", err)
	}
	return nil
}

// Refresh replaces owner's declarations with symbols. The retraction of the
// previous entries and the insertion of the new ones share one transaction.
// When the declaration set is unchanged the index is left as is.
//
// Failures are logged and swallowed: the owner's contribution is missing
// until the next successful refresh, and the caller's compile is unaffected.
func (ix *Index) Refresh(owner string, symbols []store.Symbol) {
	ix.writeMu.Lock()
	defer ix.writeMu.Unlock()

	hash := store.ComputeDeclarationHash(symbols)
	if prev, err := ix.store.OwnerHash(owner); err == nil && prev == hash && prev != "" {
		return
	}

	batch := store.NewBatch().RemoveOwner(owner)
	for _, sym := range symbols {
		sym.Owner = owner
		batch.Add(sym)
	}
	batch.SetOwnerHash(owner, hash)

	if err := ix.store.CommitBatch(batch); err != nil {
		ix.log.Error("index.update.failed", "owner", owner, "symbols", len(symbols), "err", err)
	}
}

// Remove retracts every declaration of owner. Failures are logged and
// swallowed.
func (ix *Index) Remove(owner string) {
	ix.writeMu.Lock()
	defer ix.writeMu.Unlock()
	if err := ix.store.CommitBatch(store.NewBatch().RemoveOwner(owner)); err != nil {
		ix.log.Error("index.remove.failed", "owner", owner, "err", err)
	}
}

const versionKey = "extractor_version"

// CheckVersion compares version with the extractor version the index was
// built by. On a mismatch, including a fresh database, every symbol is
// dropped, the new version is recorded and CheckVersion reports true.
func (ix *Index) CheckVersion(version string) (bool, error) {
	ix.writeMu.Lock()
	defer ix.writeMu.Unlock()
	stored, err := ix.store.GetMetadata(versionKey)
	if err != nil {
		return false, fmt.Errorf("index: version: %w", err)
	}
	if stored == version {
		return false, nil
	}
	if err := ix.store.RemoveOwnersExcept(nil); err != nil {
		return false, fmt.Errorf("index: reset: %w", err)
	}
	if err := ix.store.SetMetadata(versionKey, version); err != nil {
		return false, fmt.Errorf("index: version: %w", err)
	}
	if stored != "" {
		ix.log.Info("index.reset", "from", stored, "to", version)
	}
	return true, nil
}

// Prune drops every owner not in keep, for files deleted between sessions.
func (ix *Index) Prune(keep []string) error {
	ix.writeMu.Lock()
	defer ix.writeMu.Unlock()
	if err := ix.store.RemoveOwnersExcept(keep); err != nil {
		return fmt.Errorf("index: prune: %w", err)
	}
	return nil
}

// Query returns up to limit symbols whose short name has the given prefix,
// or equals it when exact is set, and whose receiver type equals receiver
// (nil matches only non-extension symbols).
func (ix *Index) Query(prefix string, receiver *string, limit int, exact bool) ([]store.Symbol, error) {
	if limit == 0 {
		limit = DefaultLimit
	}
	rows, err := ix.store.QuerySymbols(prefix, receiver, limit, exact)
	if err != nil {
		return nil, fmt.Errorf("index: query: %w", err)
	}
	out := make([]store.Symbol, len(rows))
	for i, r := range rows {
		out[i] = *r
	}
	return out, nil
}
