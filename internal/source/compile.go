package source

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/jward/sapwood/internal/analysis"
)

// parseItem is a Raw record snapshotted for parsing outside the lock.
type parseItem struct {
	uri     string
	gen     uint64
	content string
	hash    uint64

	ast *analysis.AST
	err error
}

// compileItem is a Parsed record snapshotted for compiling outside the lock.
type compileItem struct {
	uri     string
	gen     uint64
	version int
	ast     *analysis.AST

	compiled *Compiled
	err      error
}

// EnsureCompiled advances every tracked record to at least Parsed, then
// compiles the requested URIs against the full set of parsed files. It
// returns the compiled result of each requested URI that succeeded; a URI
// that failed to parse or compile is absent and keeps its previous state.
//
// The work runs in three phases:
//
//	Phase A (locked):   snapshot Raw records and reuse memoized parses.
//	Phase B (unlocked): parse in parallel, then compile the requested files.
//	Phase C (locked):   install results whose record has not changed since
//	                    the snapshot; release the rest.
func (r *Repository) EnsureCompiled(ctx context.Context, uris []string) (map[string]*Compiled, error) {
	for _, uri := range uris {
		if err := r.Read(uri); err != nil {
			r.logger.Warn("source.compile.untracked", "uri", uri, "err", err)
		}
	}

	if err := r.parseAll(ctx); err != nil {
		return nil, err
	}

	// ---- Phase A: snapshot the dependency set and compile targets ----
	r.mu.Lock()
	engine := r.engine
	out := make(map[string]*Compiled, len(uris))
	var deps []*analysis.AST
	for _, rec := range r.records {
		if rec.ast != nil {
			deps = append(deps, rec.ast)
		}
	}
	var items []*compileItem
	seen := make(map[string]bool, len(uris))
	for _, uri := range uris {
		rec, ok := r.records[uri]
		if !ok || seen[uri] {
			continue
		}
		seen[uri] = true
		switch rec.stage {
		case StageCompiled:
			out[uri] = rec.compiled
		case StageParsed:
			if rec.failure != nil {
				// Failed at this content; retried after the next change.
				continue
			}
			items = append(items, &compileItem{uri: uri, gen: rec.gen, version: rec.version, ast: rec.ast})
		}
	}
	r.mu.Unlock()

	// ---- Phase B: compile outside the lock ----
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.parallelism)
	for _, item := range items {
		g.Go(func() error {
			item.compiled, item.err = r.compile(gctx, engine, item, deps)
			return nil
		})
	}
	_ = g.Wait()

	// ---- Phase C: install ----
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, item := range items {
		rec, ok := r.records[item.uri]
		if item.err != nil {
			if ctx.Err() != nil {
				continue
			}
			r.logger.Error("source.compile.failed", "uri", item.uri, "err", item.err)
			if ok && rec.gen == item.gen {
				rec.failure = item.err
			}
			continue
		}
		if !ok || rec.gen != item.gen || rec.stage == StageCompiled {
			// Superseded while compiling.
			item.compiled.ReleaseOutput()
			if ok && rec.compiled != nil && rec.gen == item.gen {
				out[item.uri] = rec.compiled
			}
			continue
		}
		if rec.stage != StageParsed {
			panic(fmt.Sprintf("source: %s: compile result for a %s record at the same generation", item.uri, rec.stage))
		}
		item.compiled.index = r.index
		rec.compiled = item.compiled
		rec.stage = StageCompiled
		rec.failure = nil
		if r.index != nil {
			r.index.Refresh(item.uri, item.compiled.Symbols)
		}
		out[item.uri] = item.compiled
	}
	return out, ctx.Err()
}

func (r *Repository) compile(ctx context.Context, engine analysis.Engine, item *compileItem, deps []*analysis.AST) (c *Compiled, err error) {
	defer func() {
		if p := recover(); p != nil {
			c, err = nil, fmt.Errorf("compile %s: engine panic: %v", item.uri, p)
		}
	}()
	model, module, err := engine.Compile(ctx, item.ast, deps)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", item.uri, err)
	}
	c = &Compiled{
		URI:     item.uri,
		Version: item.version,
		Model:   model,
		Module:  module,
		logger:  r.logger,
	}
	for _, decl := range item.ast.Declarations {
		sym := engine.Classify(decl)
		sym.Owner = item.uri
		c.Symbols = append(c.Symbols, sym)
	}
	return c, nil
}

// parseAll brings every Raw record to Parsed where the engine accepts it.
func (r *Repository) parseAll(ctx context.Context) error {
	r.mu.Lock()
	engine := r.engine
	epoch := r.epoch
	var items []*parseItem
	for _, rec := range r.records {
		if rec.stage != StageRaw {
			continue
		}
		h := hashText(rec.content)
		if rec.memoAST != nil && rec.memoHash == h && rec.memoEpoch == epoch {
			rec.ast = rec.memoAST
			rec.stage = StageParsed
			continue
		}
		if rec.failure != nil {
			// Already failed at this content; retried after the next change.
			continue
		}
		items = append(items, &parseItem{uri: rec.uri, gen: rec.gen, content: rec.content, hash: h})
	}
	r.mu.Unlock()

	if len(items) == 0 {
		return ctx.Err()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.parallelism)
	for _, item := range items {
		g.Go(func() error {
			item.ast, item.err = r.parse(gctx, engine, item)
			return nil
		})
	}
	_ = g.Wait()

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, item := range items {
		rec, ok := r.records[item.uri]
		if !ok || rec.gen != item.gen {
			continue
		}
		if item.err != nil {
			if ctx.Err() == nil {
				r.logger.Error("source.parse.failed", "uri", item.uri, "err", item.err)
				rec.failure = item.err
			}
			continue
		}
		if rec.stage != StageRaw {
			continue
		}
		rec.ast = item.ast
		rec.stage = StageParsed
		rec.memoAST = item.ast
		rec.memoHash = item.hash
		rec.memoEpoch = epoch
	}
	return ctx.Err()
}

func (r *Repository) parse(ctx context.Context, engine analysis.Engine, item *parseItem) (ast *analysis.AST, err error) {
	defer func() {
		if p := recover(); p != nil {
			ast, err = nil, fmt.Errorf("parse %s: engine panic: %v", item.uri, p)
		}
	}()
	return engine.Parse(ctx, item.uri, item.content)
}

// Refresh returns every record to Raw and recompiles the whole workspace.
func (r *Repository) Refresh(ctx context.Context) (map[string]*Compiled, error) {
	r.mu.Lock()
	uris := make([]string, 0, len(r.records))
	for uri, rec := range r.records {
		r.demote(rec)
		uris = append(uris, uri)
	}
	r.mu.Unlock()
	return r.EnsureCompiled(ctx, uris)
}

// SetEngine replaces the analysis engine, typically after a classpath
// change, and refreshes every record against it.
func (r *Repository) SetEngine(ctx context.Context, engine analysis.Engine) (map[string]*Compiled, error) {
	r.mu.Lock()
	r.engine = engine
	r.epoch++
	r.mu.Unlock()
	return r.Refresh(ctx)
}
