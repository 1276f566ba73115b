// Package watch reports changes to the build files of a workspace, batched
// with a debounce so a burst of writes (a branch switch, a Gradle sync)
// produces one callback.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jward/sapwood/internal/workspace"
)

// DefaultDebounce is the quiet period before pending changes are delivered.
const DefaultDebounce = 500 * time.Millisecond

// OnChangeFunc receives the absolute paths of changed build files.
type OnChangeFunc func(paths []string)

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period before changes are delivered.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// WithLogger sets the logger for watch errors.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// WithExclude sets doublestar patterns skipped when choosing directories.
func WithExclude(patterns ...string) Option {
	return func(w *Watcher) { w.exclude = patterns }
}

// WithExtraDirs adds directories to watch besides the root and the build
// file directories, such as the user-level override location. Every file
// change in them is reported.
func WithExtraDirs(dirs ...string) Option {
	return func(w *Watcher) { w.extra = append(w.extra, dirs...) }
}

// Watcher watches the workspace root and every directory holding a build
// file. Files created in directories that held no build file at start are
// not seen.
type Watcher struct {
	root     string
	debounce time.Duration
	logger   *slog.Logger
	exclude  []string
	extra    []string
	onChange OnChangeFunc
	fs       *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]struct{}
	timer   *time.Timer

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a watcher for the workspace at root.
func New(root string, onChange OnChangeFunc, opts ...Option) (*Watcher, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("watch: resolve root: %w", err)
	}
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create watcher: %w", err)
	}
	w := &Watcher{
		root:     abs,
		debounce: DefaultDebounce,
		logger:   slog.Default(),
		onChange: onChange,
		fs:       fs,
		pending:  make(map[string]struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Dirs returns the directories being watched.
func (w *Watcher) Dirs() []string {
	dirs := w.fs.WatchList()
	sort.Strings(dirs)
	return dirs
}

// Run watches until ctx is cancelled or Stop is called.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.addDirs(); err != nil {
		w.Stop()
		return err
	}

	w.wg.Add(1)
	go w.processEvents(ctx)

	select {
	case <-ctx.Done():
		w.Stop()
		return ctx.Err()
	case <-w.done:
		return nil
	}
}

// Stop ends watching and drops undelivered changes. It is safe to call more
// than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.wg.Wait()
		w.fs.Close()

		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.pending = make(map[string]struct{})
		w.mu.Unlock()
	})
}

func (w *Watcher) addDirs() error {
	files, err := workspace.BuildFiles(w.root, workspace.Options{Exclude: w.exclude})
	if err != nil {
		return fmt.Errorf("watch: list build files: %w", err)
	}
	// The walk skips the hidden .sapwood directory holding override scripts.
	// gradle is watched for version catalogs created later.
	dirs := make(map[string]struct{})
	for _, d := range []string{w.root, filepath.Join(w.root, ".sapwood"), filepath.Join(w.root, "gradle")} {
		dirs[d] = struct{}{}
	}
	for _, f := range files {
		dirs[filepath.Dir(f)] = struct{}{}
	}
	for _, d := range w.extra {
		dirs[d] = struct{}{}
	}
	for d := range dirs {
		if err := w.fs.Add(d); err != nil && d == w.root {
			return fmt.Errorf("watch: add %s: %w", d, err)
		}
	}
	return nil
}

func (w *Watcher) processEvents(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch.error", "err", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op == fsnotify.Chmod {
		return
	}
	if !workspace.IsBuildFile(event.Name) && !slices.Contains(w.extra, filepath.Dir(event.Name)) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending[event.Name] = struct{}{}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flush)
}

func (w *Watcher) flush() {
	w.mu.Lock()
	if len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	w.pending = make(map[string]struct{})
	w.mu.Unlock()

	select {
	case <-w.done:
		return
	default:
	}
	sort.Strings(paths)
	w.logger.Debug("watch.changed", "files", len(paths))
	if w.onChange != nil {
		w.onChange(paths)
	}
}
