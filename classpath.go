package sapwood

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/zeebo/xxh3"

	"github.com/jward/sapwood/internal/classpath"
	"github.com/jward/sapwood/internal/watch"
)

// ErrClosed is returned by operations on a closed session.
var ErrClosed = errors.New("sapwood: session closed")

// ResolveClasspath runs classpath resolution and blocks until it finishes.
// When the result differs from the current classpath, the analysis engine
// is rebuilt and every tracked file is recompiled against it.
func (s *Session) ResolveClasspath(ctx context.Context) (classpath.Set, error) {
	s.resolveMu.Lock()
	defer s.resolveMu.Unlock()

	r, err := s.resolver()
	if err != nil {
		return nil, fmt.Errorf("sapwood: classpath: %w", err)
	}
	primary := r.Classpath(ctx)
	script := r.BuildScriptClasspath(ctx)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := classpathKey(primary)
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	changed := key != s.classpathKey
	s.classpath = primary
	s.buildScript = script
	s.mu.Unlock()

	s.logger.Info("classpath.resolved", "strategy", r.Name(), "entries", len(primary), "changed", changed)
	if !changed {
		return primary, nil
	}
	// The key is only committed once the refresh completes, so an
	// interrupted refresh is redone by the next resolution.
	if _, err := s.repo.SetEngine(ctx, s.newEngine(primary.Paths())); err != nil {
		return primary, err
	}
	s.mu.Lock()
	s.classpathKey = key
	s.mu.Unlock()
	return primary, nil
}

// StartClasspathResolution resolves the classpath in the background,
// cancelling any resolution still in flight. The returned channel yields
// the outcome once.
func (s *Session) StartClasspathResolution(ctx context.Context) <-chan error {
	done := make(chan error, 1)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		done <- ErrClosed
		return done
	}
	if s.cancelResolve != nil {
		s.cancelResolve()
	}
	rctx, cancel := context.WithCancel(ctx)
	s.cancelResolve = cancel
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer cancel()
		_, err := s.ResolveClasspath(rctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warn("classpath.resolution.failed", "err", err)
		}
		done <- err
	}()
	return done
}

// Classpath returns the last resolved classpath.
func (s *Session) Classpath() classpath.Set {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.classpath
}

// BuildScriptClasspath returns the last resolved classpath of the build
// scripts.
func (s *Session) BuildScriptClasspath() classpath.Set {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buildScript
}

// WatchBuildFiles restarts classpath resolution whenever a build file or
// override script changes, until ctx is cancelled or the session closes.
func (s *Session) WatchBuildFiles(ctx context.Context, opts ...watch.Option) error {
	extra := []string{}
	if s.home != "" {
		extra = append(extra, filepath.Join(s.home, ".config", "sapwood"))
	}
	opts = append([]watch.Option{
		watch.WithLogger(s.logger),
		watch.WithExclude(s.cfg.Exclude...),
		watch.WithExtraDirs(extra...),
	}, opts...)

	w, err := watch.New(s.root, func(paths []string) {
		s.logger.Info("classpath.buildfiles.changed", "files", paths)
		s.StartClasspathResolution(ctx)
	}, opts...)
	if err != nil {
		return fmt.Errorf("sapwood: %w", err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		w.Stop()
		return ErrClosed
	}
	if s.watcher != nil {
		s.watcher.Stop()
	}
	s.watcher = w
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warn("watch.failed", "err", err)
		}
	}()
	return nil
}

// classpathKey identifies a classpath by its compiled paths.
func classpathKey(set classpath.Set) string {
	h := xxh3.New()
	for _, p := range set.Paths() {
		io.WriteString(h, p)
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
