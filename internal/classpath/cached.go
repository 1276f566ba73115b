package classpath

import (
	"context"
	"log/slog"
	"sync"

	"github.com/jward/sapwood/internal/store"
)

// cached persists the results of a resolver in the store, keyed by a
// fingerprint of the build files. Empty results are not saved so a failed
// build is retried next time.
type cached struct {
	r           Resolver
	store       *store.Store
	fingerprint string
	logger      *slog.Logger

	mu   sync.Mutex
	done bool
	res  result
}

// Cached wraps r with the classpath cache in s. A nil store disables
// caching.
func Cached(r Resolver, s *store.Store, fingerprint string, opts ...Option) Resolver {
	if s == nil || fingerprint == "" {
		return r
	}
	o := newOptions(opts)
	return &cached{r: r, store: s, fingerprint: fingerprint, logger: o.logger}
}

func (c *cached) Name() string { return "cached(" + c.r.Name() + ")" }

func (c *cached) Classpath(ctx context.Context) Set {
	return c.get(ctx).primary
}

func (c *cached) BuildScriptClasspath(ctx context.Context) Set {
	return c.get(ctx).buildScript
}

func (c *cached) get(ctx context.Context) result {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done {
		return c.res
	}

	primary, script, ok, err := c.store.LoadClasspath(c.fingerprint)
	if err != nil {
		c.logger.Warn("classpath.cache.load_failed", "err", err)
	}
	if ok {
		c.logger.Debug("classpath.cache.hit", "fingerprint", c.fingerprint, "entries", len(primary))
		c.done = true
		c.res = result{primary: fromStore(primary), buildScript: fromStore(script)}
		return c.res
	}

	res := result{
		primary:     c.r.Classpath(ctx),
		buildScript: c.r.BuildScriptClasspath(ctx),
	}
	if ctx.Err() != nil {
		return res
	}
	if len(res.primary) > 0 || len(res.buildScript) > 0 {
		if err := c.store.SaveClasspath(c.fingerprint, toStore(res.primary), toStore(res.buildScript)); err != nil {
			c.logger.Warn("classpath.cache.save_failed", "err", err)
		}
	}
	c.done = true
	c.res = res
	return res
}

func toStore(s Set) []store.ClasspathEntry {
	out := make([]store.ClasspathEntry, len(s))
	for i, e := range s {
		out[i] = store.ClasspathEntry{CompiledPath: e.Compiled}
		if e.Source != "" {
			src := e.Source
			out[i].SourcePath = &src
		}
	}
	return out
}

func fromStore(entries []store.ClasspathEntry) Set {
	out := make([]Entry, len(entries))
	for i, e := range entries {
		out[i] = Entry{Compiled: e.CompiledPath}
		if e.SourcePath != nil {
			out[i].Source = *e.SourcePath
		}
	}
	return NewSet(out...)
}
