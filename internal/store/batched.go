package store

import "sync"

type opKind int

const (
	opAddSymbol opKind = iota
	opRemoveOwner
	opSetOwnerHash
)

type batchOp struct {
	kind   opKind
	symbol Symbol
	owner  string
	hash   string
}

// Batch buffers index writes in memory so they can be applied by
// CommitBatch as one transaction. Operations are replayed in the order they
// were recorded, which is what lets a caller retract a file's old symbols and
// add its new ones without readers ever observing the gap.
//
// Thread safety: the mutex protects the operation slice; a Batch may be
// filled from several goroutines but is committed once.
type Batch struct {
	mu  sync.Mutex
	ops []batchOp
}

// NewBatch creates an empty Batch.
func NewBatch() *Batch {
	return &Batch{}
}

// Add records the insertion of sym. The symbol's ID is assigned on commit.
func (b *Batch) Add(sym Symbol) *Batch {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ops = append(b.ops, batchOp{kind: opAddSymbol, symbol: sym})
	return b
}

// RemoveOwner records the retraction of every symbol declared by owner,
// along with its stored declaration hash.
func (b *Batch) RemoveOwner(owner string) *Batch {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ops = append(b.ops, batchOp{kind: opRemoveOwner, owner: owner})
	return b
}

// SetOwnerHash records the declaration hash for owner.
func (b *Batch) SetOwnerHash(owner, hash string) *Batch {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ops = append(b.ops, batchOp{kind: opSetOwnerHash, owner: owner, hash: hash})
	return b
}

// Len reports the number of buffered operations.
func (b *Batch) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.ops)
}

// Symbols returns the symbols buffered for owner that have not been
// committed yet.
func (b *Batch) Symbols(owner string) []Symbol {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Symbol
	for _, op := range b.ops {
		switch op.kind {
		case opRemoveOwner:
			if op.owner == owner {
				out = nil
			}
		case opAddSymbol:
			if op.symbol.Owner == owner {
				out = append(out, op.symbol)
			}
		}
	}
	return out
}

func (b *Batch) snapshot() []batchOp {
	b.mu.Lock()
	defer b.mu.Unlock()
	ops := make([]batchOp, len(b.ops))
	copy(ops, b.ops)
	return ops
}
