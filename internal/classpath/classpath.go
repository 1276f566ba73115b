// Package classpath discovers the external libraries of a Kotlin workspace.
//
// Resolvers are leaf strategies (Gradle, Maven, override scripts, local
// cache scanning) combined with Union and Fallback. A leaf never fails: a
// missing tool or a failed build is logged and yields an empty set, and
// Fallback moves on to the next strategy.
package classpath

import (
	"context"
	"errors"
	"sort"
)

var (
	// ErrBuildFailed is reported when a build tool exits non-zero or prints
	// a failure banner.
	ErrBuildFailed = errors.New("classpath: build failed")

	// ErrNoExecutable is reported when neither a wrapper nor a global
	// command for a build tool can be found.
	ErrNoExecutable = errors.New("classpath: build tool not found")
)

// Entry is one classpath artifact with its optional source artifact.
type Entry struct {
	Compiled string `json:"compiled"`
	Source   string `json:"source,omitempty"`
}

// Set is a classpath: entries unique by compiled path, sorted.
type Set []Entry

// NewSet builds a Set. For duplicate compiled paths the first entry that
// carries a source path wins.
func NewSet(entries ...Entry) Set {
	byPath := make(map[string]int, len(entries))
	var out Set
	for _, e := range entries {
		if e.Compiled == "" {
			continue
		}
		if i, ok := byPath[e.Compiled]; ok {
			if out[i].Source == "" {
				out[i].Source = e.Source
			}
			continue
		}
		byPath[e.Compiled] = len(out)
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Compiled < out[j].Compiled })
	return out
}

// PathSet builds a Set of entries without sources.
func PathSet(paths ...string) Set {
	entries := make([]Entry, len(paths))
	for i, p := range paths {
		entries[i] = Entry{Compiled: p}
	}
	return NewSet(entries...)
}

// Union returns the set union of s and o.
func (s Set) Union(o Set) Set {
	all := make([]Entry, 0, len(s)+len(o))
	all = append(all, s...)
	all = append(all, o...)
	return NewSet(all...)
}

// Paths returns the compiled paths.
func (s Set) Paths() []string {
	out := make([]string, len(s))
	for i, e := range s {
		out[i] = e.Compiled
	}
	return out
}

// Resolver discovers a primary classpath and the classpath of the build
// scripts themselves.
type Resolver interface {
	Name() string
	Classpath(ctx context.Context) Set
	BuildScriptClasspath(ctx context.Context) Set
}
