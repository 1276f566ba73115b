package sapwood

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/jward/sapwood/internal/analysis"
	"github.com/jward/sapwood/internal/classpath"
	"github.com/jward/sapwood/internal/config"
	"github.com/jward/sapwood/internal/index"
	"github.com/jward/sapwood/internal/source"
	"github.com/jward/sapwood/internal/watch"
)

// Session is the editor-backend state of one workspace: the source
// repository, the symbol index and the resolved classpath.
type Session struct {
	id     string
	root   string
	cfg    *config.Config
	logger *slog.Logger

	index     *index.Index
	repo      *source.Repository
	outputDir string
	ownsOut   bool
	resolver  func() (classpath.Resolver, error)
	home      string

	// resolveMu serializes classpath resolutions so engines are installed
	// in order.
	resolveMu sync.Mutex

	mu            sync.Mutex
	classpath     classpath.Set
	buildScript   classpath.Set
	classpathKey  string
	cancelResolve context.CancelFunc
	watcher       *watch.Watcher
	closed        bool

	wg sync.WaitGroup
}

// Option configures a Session.
type Option func(*sessionOptions)

type sessionOptions struct {
	logger   *slog.Logger
	cfg      *config.Config
	provider source.ContentProvider
	resolver classpath.Resolver
	home     string
}

// WithLogger sets the session logger, passed to every component.
func WithLogger(l *slog.Logger) Option {
	return func(o *sessionOptions) { o.logger = l }
}

// WithConfig uses cfg instead of loading .sapwood/config.jsonc.
func WithConfig(cfg *config.Config) Option {
	return func(o *sessionOptions) { o.cfg = cfg }
}

// WithProvider replaces the disk content provider.
func WithProvider(p source.ContentProvider) Option {
	return func(o *sessionOptions) { o.provider = p }
}

// WithResolver replaces the default classpath resolution chain.
func WithResolver(r classpath.Resolver) Option {
	return func(o *sessionOptions) { o.resolver = r }
}

// WithHome sets the home directory searched for tool caches and user-level
// overrides.
func WithHome(dir string) Option {
	return func(o *sessionOptions) { o.home = dir }
}

// Open starts a session for the workspace at root. The engine starts with
// an empty classpath; call ResolveClasspath or StartClasspathResolution to
// resolve the real one.
func Open(ctx context.Context, root string, opts ...Option) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	o := &sessionOptions{logger: slog.Default(), provider: source.DiskProvider{}}
	for _, opt := range opts {
		opt(o)
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("sapwood: resolve root: %w", err)
	}
	cfg := o.cfg
	if cfg == nil {
		if cfg, err = config.Load(abs); err != nil {
			return nil, fmt.Errorf("sapwood: %w", err)
		}
	}

	s := &Session{
		id:     uuid.NewString(),
		root:   abs,
		cfg:    cfg,
		logger: o.logger,
		home:   o.home,

		classpathKey: classpathKey(nil),
	}
	s.logger = s.logger.With("session", s.id)

	if cfg.Index.Enabled {
		dbPath := cfg.DBPath(abs)
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("sapwood: index dir: %w", err)
		}
		ix, err := index.Open(dbPath, index.WithLogger(s.logger))
		if err != nil {
			return nil, fmt.Errorf("sapwood: %w", err)
		}
		if _, err := ix.CheckVersion(analysis.ExtractorVersion); err != nil {
			ix.Close()
			return nil, fmt.Errorf("sapwood: %w", err)
		}
		s.index = ix
	}

	if err := s.createOutputDir(); err != nil {
		s.closeIndex()
		return nil, err
	}

	if o.resolver != nil {
		s.resolver = func() (classpath.Resolver, error) { return o.resolver, nil }
	} else {
		s.resolver = func() (classpath.Resolver, error) {
			return classpath.Default(s.root, s.classpathOptions()...)
		}
	}

	repoOpts := []source.Option{source.WithLogger(s.logger)}
	if s.index != nil {
		repoOpts = append(repoOpts, source.WithIndex(s.index))
	}
	s.repo = source.New(o.provider, s.newEngine(nil), repoOpts...)

	s.logger.Info("session.open", "root", abs, "index", cfg.Index.Enabled)
	return s, nil
}

func (s *Session) createOutputDir() error {
	base := s.cfg.OutputDir(s.root)
	if base == "" {
		base = os.TempDir()
	}
	dir := filepath.Join(base, "sapwood-"+s.id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("sapwood: output dir: %w", err)
	}
	s.outputDir = dir
	s.ownsOut = true
	return nil
}

func (s *Session) newEngine(paths []string) *analysis.KotlinEngine {
	return analysis.NewKotlinEngine(
		analysis.WithClasspath(paths),
		analysis.WithOutputDir(s.outputDir),
		analysis.WithLogger(s.logger),
	)
}

func (s *Session) classpathOptions() []classpath.Option {
	opts := []classpath.Option{
		classpath.WithLogger(s.logger),
		classpath.WithTimeout(s.cfg.Timeout()),
		classpath.WithGradle(s.cfg.Classpath.Gradle),
		classpath.WithMaven(s.cfg.Classpath.Maven),
		classpath.WithExclude(s.cfg.Exclude...),
		classpath.WithStdlibFamilies(s.cfg.Classpath.StdlibFamilies...),
	}
	if p := s.cfg.OverrideScript(s.root); p != "" {
		opts = append(opts, classpath.WithOverrideScript(p))
	}
	if r := s.cfg.Classpath.MavenRepository; r != "" {
		opts = append(opts, classpath.WithMavenRepository(r))
	}
	if s.home != "" {
		opts = append(opts, classpath.WithHome(s.home))
	}
	if s.cfg.Classpath.Cache && s.index != nil {
		opts = append(opts, classpath.WithStore(s.index.Store()))
	}
	return opts
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// Root returns the absolute workspace root.
func (s *Session) Root() string { return s.root }

// Config returns the effective configuration.
func (s *Session) Config() *config.Config { return s.cfg }

// OutputDir returns the directory receiving generated output.
func (s *Session) OutputDir() string { return s.outputDir }

// Repository returns the source repository.
func (s *Session) Repository() *source.Repository { return s.repo }

// Close stops background work, releases every compiled artifact and closes
// the index. Index contents persist for the next session.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	if s.cancelResolve != nil {
		s.cancelResolve()
	}
	w := s.watcher
	s.watcher = nil
	s.mu.Unlock()

	if w != nil {
		w.Stop()
	}
	s.wg.Wait()

	s.repo.Shutdown()
	var errs []error
	if s.ownsOut {
		if err := os.RemoveAll(s.outputDir); err != nil {
			errs = append(errs, fmt.Errorf("sapwood: remove output: %w", err))
		}
	}
	if err := s.closeIndex(); err != nil {
		errs = append(errs, err)
	}
	s.logger.Info("session.close")
	return errors.Join(errs...)
}

func (s *Session) closeIndex() error {
	if s.index == nil {
		return nil
	}
	if err := s.index.Close(); err != nil {
		return fmt.Errorf("sapwood: close index: %w", err)
	}
	return nil
}
