package classpath

import (
	"log/slog"
	"os"
	"time"

	"github.com/jward/sapwood/internal/store"
)

// DefaultTimeout bounds a single build tool invocation.
const DefaultTimeout = 5 * time.Minute

// Option configures resolvers built by this package.
type Option func(*options)

type options struct {
	logger          *slog.Logger
	timeout         time.Duration
	families        []string
	mavenRepository string
	home            string
	store           *store.Store
	exclude         []string
	gradle          bool
	maven           bool
	overrideScript  string
}

func newOptions(opts []Option) *options {
	home, _ := os.UserHomeDir()
	o := &options{
		logger:  slog.Default(),
		timeout: DefaultTimeout,
		home:    home,
		gradle:  true,
		maven:   true,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *options) runner() runner {
	return runner{timeout: o.timeout}
}

// WithLogger sets the logger for strategy failures and timings.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithTimeout bounds each build tool invocation. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithStdlibFamilies sets the runtime library families deduplicated by
// Default.
func WithStdlibFamilies(families ...string) Option {
	return func(o *options) { o.families = families }
}

// WithMavenRepository overrides the local Maven repository location.
func WithMavenRepository(dir string) Option {
	return func(o *options) { o.mavenRepository = dir }
}

// WithHome sets the user home directory searched for tool caches and
// user-level overrides.
func WithHome(dir string) Option {
	return func(o *options) { o.home = dir }
}

// WithStore enables the persistent classpath cache in Default.
func WithStore(s *store.Store) Option {
	return func(o *options) { o.store = s }
}

// WithExclude sets doublestar patterns skipped while looking for build
// files.
func WithExclude(patterns ...string) Option {
	return func(o *options) { o.exclude = patterns }
}

// WithGradle enables or disables the Gradle strategy in Default.
func WithGradle(enabled bool) Option {
	return func(o *options) { o.gradle = enabled }
}

// WithMaven enables or disables the Maven strategy in Default.
func WithMaven(enabled bool) Option {
	return func(o *options) { o.maven = enabled }
}

// WithOverrideScript sets an explicit override script. Files ending in
// ".risor" run in-process; anything else is executed.
func WithOverrideScript(path string) Option {
	return func(o *options) { o.overrideScript = path }
}
