// Package source is the incremental source cache. It keeps one lifecycle
// record per file URI and advances records through Raw, Parsed and Compiled
// on demand, releasing superseded compile results as it goes.
package source

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"sync"

	"github.com/zeebo/xxh3"

	"github.com/jward/sapwood/internal/analysis"
	"github.com/jward/sapwood/internal/store"
)

var (
	// ErrNotTracked is returned for a URI with no record that the content
	// provider cannot supply either.
	ErrNotTracked = errors.New("source: not tracked")

	// ErrStaleEdit is returned when an edit's version is not greater than the
	// stored version. The edit is dropped.
	ErrStaleEdit = errors.New("source: stale edit")
)

// DiskVersion is the version of a record read from the content provider
// with no editor edits applied.
const DiskVersion = -1

// Stage is a record's analysis readiness.
type Stage int

const (
	StageRaw Stage = iota
	StageParsed
	StageCompiled
)

func (s Stage) String() string {
	switch s {
	case StageRaw:
		return "raw"
	case StageParsed:
		return "parsed"
	case StageCompiled:
		return "compiled"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// SymbolIndex is the part of the symbol index the repository writes to.
type SymbolIndex interface {
	Refresh(owner string, symbols []store.Symbol)
	Remove(owner string)
}

type record struct {
	uri       string
	version   int
	content   string
	transient bool
	stage     Stage

	// gen changes whenever content changes or the record is invalidated.
	// Background work tagged with an older gen is discarded.
	gen uint64

	ast      *analysis.AST
	compiled *Compiled
	failure  error

	// Parse memo: the last AST, the content hash it came from and the
	// engine epoch that produced it.
	memoAST   *analysis.AST
	memoHash  uint64
	memoEpoch uint64
}

// Repository is the authoritative map from URI to lifecycle record. All
// methods are safe for concurrent use; mutations are serialized by one
// mutex and parsing and compiling run outside it.
type Repository struct {
	mu      sync.Mutex
	records map[string]*record
	nextGen uint64
	epoch   uint64

	provider    ContentProvider
	engine      analysis.Engine
	index       SymbolIndex
	logger      *slog.Logger
	parallelism int
}

// Option configures a Repository.
type Option func(*Repository)

// WithIndex sets the symbol index compiled files are published to.
func WithIndex(ix SymbolIndex) Option {
	return func(r *Repository) {
		r.index = ix
	}
}

// WithLogger sets the repository logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Repository) {
		r.logger = l
	}
}

// WithParallelism bounds concurrent parses. Values below 1 use GOMAXPROCS.
func WithParallelism(n int) Option {
	return func(r *Repository) {
		r.parallelism = n
	}
}

// New creates an empty repository.
func New(provider ContentProvider, engine analysis.Engine, opts ...Option) *Repository {
	r := &Repository{
		records:  make(map[string]*record),
		provider: provider,
		engine:   engine,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.parallelism < 1 {
		r.parallelism = runtime.GOMAXPROCS(0)
	}
	return r
}

// gen must be called with mu held.
func (r *Repository) gen() uint64 {
	r.nextGen++
	return r.nextGen
}

// Read tracks uri from the content provider if it is not tracked yet.
func (r *Repository) Read(uri string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[uri]; ok {
		return nil
	}
	text, ok := r.provider.Read(uri)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotTracked, uri)
	}
	r.records[uri] = &record{
		uri:     uri,
		version: DiskVersion,
		content: text,
		gen:     r.gen(),
	}
	return nil
}

// Open tracks an editor buffer. A buffer the content provider cannot supply
// is transient and is dropped on Close.
func (r *Repository) Open(uri string, version int, text string) {
	_, onDisk := r.provider.Read(uri)

	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[uri]
	if !ok {
		rec = &record{uri: uri}
		r.records[uri] = rec
	}
	r.demote(rec)
	rec.version = version
	rec.content = text
	rec.transient = !onDisk
}

// Edit applies changes in order if version is newer than the stored one.
// Any compiled result is released and the record returns to Raw.
func (r *Repository) Edit(uri string, version int, changes ...Change) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[uri]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotTracked, uri)
	}
	if version <= rec.version {
		r.logger.Info("source.edit.stale", "uri", uri, "version", version, "stored", rec.version)
		return fmt.Errorf("%w: %s version %d <= %d", ErrStaleEdit, uri, version, rec.version)
	}
	text, err := applyChanges(rec.content, changes)
	if err != nil {
		return fmt.Errorf("source: edit %s: %w", uri, err)
	}
	r.demote(rec)
	rec.version = version
	rec.content = text
	return nil
}

// Save marks uri as written to disk, so closing it keeps the record.
func (r *Repository) Save(uri string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.records[uri]; ok {
		rec.transient = false
	}
}

// Close handles the editor closing uri. Transient records are removed.
// Durable records go back to Raw with their on-disk content so other files
// keep a consistent dependency set.
func (r *Repository) Close(uri string) {
	text, onDisk := r.provider.Read(uri)

	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[uri]
	if !ok {
		return
	}
	if rec.transient || !onDisk {
		r.drop(rec)
		return
	}
	r.demote(rec)
	rec.version = DiskVersion
	rec.content = text
}

// Remove drops uri unconditionally, for files deleted from the workspace.
func (r *Repository) Remove(uri string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.records[uri]; ok {
		r.drop(rec)
	}
}

// demote returns rec to Raw, releasing its compiled result first. Must be
// called with mu held.
func (r *Repository) demote(rec *record) {
	if rec.compiled != nil {
		rec.compiled.Release()
		rec.compiled = nil
	}
	rec.ast = nil
	rec.failure = nil
	rec.stage = StageRaw
	rec.gen = r.gen()
}

// drop releases rec and deletes it. Must be called with mu held.
func (r *Repository) drop(rec *record) {
	if rec.compiled != nil {
		rec.compiled.Release()
		rec.compiled = nil
	}
	delete(r.records, rec.uri)
}

// Shutdown deletes every record. Generated output is deleted; symbol index
// entries are kept so a persistent index survives the session.
func (r *Repository) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for uri, rec := range r.records {
		if rec.compiled != nil {
			rec.compiled.ReleaseOutput()
			rec.compiled = nil
		}
		delete(r.records, uri)
	}
}

// Content returns the current text of uri.
func (r *Repository) Content(uri string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[uri]
	if !ok {
		return "", false
	}
	return rec.content, true
}

// Stage returns the lifecycle stage of uri.
func (r *Repository) Stage(uri string) (Stage, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[uri]
	if !ok {
		return StageRaw, false
	}
	return rec.stage, true
}

// Version returns the stored version of uri.
func (r *Repository) Version(uri string) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[uri]
	if !ok {
		return 0, false
	}
	return rec.version, true
}

// Transient reports whether uri is an unsaved editor-only buffer.
func (r *Repository) Transient(uri string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[uri]
	return ok && rec.transient
}

// Compiled returns the current compiled result of uri, if any.
func (r *Repository) Compiled(uri string) (*Compiled, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[uri]
	if !ok || rec.compiled == nil {
		return nil, false
	}
	return rec.compiled, true
}

// Failure returns the analysis error from the last attempt to advance uri
// at its current content, if that attempt failed.
func (r *Repository) Failure(uri string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.records[uri]; ok {
		return rec.failure
	}
	return nil
}

// URIs returns every tracked URI in sorted order.
func (r *Repository) URIs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.records))
	for uri := range r.records {
		out = append(out, uri)
	}
	sort.Strings(out)
	return out
}

func hashText(s string) uint64 {
	return xxh3.HashString(s)
}
