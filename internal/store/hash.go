package store

import (
	"crypto/sha256"
	"fmt"
	"sort"
)

// ComputeDeclarationHash computes a deterministic hash over a file's symbol
// set. Covers: fq_name, short_name, kind, visibility, receiver_type.
// Ordering of the input does not affect the hash, and neither do IDs or the
// owner.
func ComputeDeclarationHash(symbols []Symbol) string {
	type declKey struct{ fq, short, kind, vis, receiver string }
	keys := make([]declKey, len(symbols))
	for i, s := range symbols {
		keys[i] = declKey{s.FQName, s.ShortName, string(s.Kind), string(s.Visibility), receiverKey(s.ReceiverType)}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].fq != keys[j].fq {
			return keys[i].fq < keys[j].fq
		}
		if keys[i].receiver != keys[j].receiver {
			return keys[i].receiver < keys[j].receiver
		}
		if keys[i].kind != keys[j].kind {
			return keys[i].kind < keys[j].kind
		}
		return keys[i].vis < keys[j].vis
	})

	h := sha256.New()
	for _, k := range keys {
		fmt.Fprintf(h, "decl:%s:%s:%s:%s:%s\n", k.fq, k.short, k.kind, k.vis, k.receiver)
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}
