package classpath

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"
)

type empty struct{}

// Empty yields nothing. It is the innermost fallback, so resolution always
// ends in a (possibly empty) classpath rather than an error.
func Empty() Resolver { return empty{} }

func (empty) Name() string                             { return "empty" }
func (empty) Classpath(context.Context) Set            { return nil }
func (empty) BuildScriptClasspath(context.Context) Set { return nil }

type union struct {
	a, b Resolver
}

// Union merges the results of a and b. Both are evaluated concurrently.
func Union(a, b Resolver) Resolver {
	return &union{a: a, b: b}
}

func (u *union) Name() string {
	return "(" + u.a.Name() + " + " + u.b.Name() + ")"
}

func (u *union) Classpath(ctx context.Context) Set {
	return both(ctx, u.a.Classpath, u.b.Classpath)
}

func (u *union) BuildScriptClasspath(ctx context.Context) Set {
	return both(ctx, u.a.BuildScriptClasspath, u.b.BuildScriptClasspath)
}

func both(ctx context.Context, fa, fb func(context.Context) Set) Set {
	var sa, sb Set
	g := new(errgroup.Group)
	g.Go(func() error {
		sa = fa(ctx)
		return nil
	})
	g.Go(func() error {
		sb = fb(ctx)
		return nil
	})
	_ = g.Wait()
	return sa.Union(sb)
}

type fallback struct {
	primary, secondary Resolver
}

// Fallback returns primary's result unless it is empty, else secondary's.
// The two classpaths fall back independently.
func Fallback(primary, secondary Resolver) Resolver {
	return &fallback{primary: primary, secondary: secondary}
}

func (f *fallback) Name() string {
	return f.primary.Name() + " | " + f.secondary.Name()
}

func (f *fallback) Classpath(ctx context.Context) Set {
	if s := f.primary.Classpath(ctx); len(s) > 0 {
		return s
	}
	return f.secondary.Classpath(ctx)
}

func (f *fallback) BuildScriptClasspath(ctx context.Context) Set {
	if s := f.primary.BuildScriptClasspath(ctx); len(s) > 0 {
		return s
	}
	return f.secondary.BuildScriptClasspath(ctx)
}

// Joined is the union of rs, Empty when rs is empty.
func Joined(rs ...Resolver) Resolver {
	if len(rs) == 0 {
		return Empty()
	}
	if len(rs) == 1 {
		return rs[0]
	}
	return &joined{rs: rs}
}

type joined struct {
	rs []Resolver
}

func (j *joined) Name() string {
	names := make([]string, len(j.rs))
	for i, r := range j.rs {
		names[i] = r.Name()
	}
	return "(" + strings.Join(names, " + ") + ")"
}

func (j *joined) Classpath(ctx context.Context) Set {
	return j.all(ctx, Resolver.Classpath)
}

func (j *joined) BuildScriptClasspath(ctx context.Context) Set {
	return j.all(ctx, Resolver.BuildScriptClasspath)
}

// all evaluates every resolver concurrently, bounded like a worker pool.
func (j *joined) all(ctx context.Context, get func(Resolver, context.Context) Set) Set {
	results := make([]Set, len(j.rs))
	g := new(errgroup.Group)
	g.SetLimit(4)
	for i, r := range j.rs {
		g.Go(func() error {
			results[i] = get(r, ctx)
			return nil
		})
	}
	_ = g.Wait()

	var out Set
	for _, s := range results {
		out = out.Union(s)
	}
	return out
}

// FirstNonEmpty chains rs with Fallback, Empty when rs is empty.
func FirstNonEmpty(rs ...Resolver) Resolver {
	if len(rs) == 0 {
		return Empty()
	}
	r := rs[len(rs)-1]
	for i := len(rs) - 2; i >= 0; i-- {
		r = Fallback(rs[i], r)
	}
	return r
}
