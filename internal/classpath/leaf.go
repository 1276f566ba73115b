package classpath

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

// result is what a leaf strategy discovers in one run.
type result struct {
	primary     Set
	buildScript Set
}

// leaf adapts a discovery function to Resolver. The function runs at most
// once per leaf; a failure is logged at Warn and yields empty sets. Runs
// cut short by cancellation are not memoized.
type leaf struct {
	name    string
	resolve func(ctx context.Context) (result, error)
	logger  *slog.Logger

	mu   sync.Mutex
	done bool
	res  result
}

func newLeaf(name string, logger *slog.Logger, resolve func(ctx context.Context) (result, error)) *leaf {
	if logger == nil {
		logger = slog.Default()
	}
	return &leaf{name: name, resolve: resolve, logger: logger}
}

func (l *leaf) Name() string { return l.name }

func (l *leaf) Classpath(ctx context.Context) Set {
	return l.get(ctx).primary
}

func (l *leaf) BuildScriptClasspath(ctx context.Context) Set {
	return l.get(ctx).buildScript
}

func (l *leaf) get(ctx context.Context) result {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.done {
		return l.res
	}
	start := time.Now()
	res, err := l.resolve(ctx)
	if ctx.Err() != nil {
		return result{}
	}
	if err != nil {
		l.logger.Warn("classpath.strategy.failed", "strategy", l.name, "err", err)
		res = result{}
	} else {
		l.logger.Info("classpath.strategy.resolved",
			"strategy", l.name,
			"classpath", len(res.primary),
			"build_script", len(res.buildScript),
			"elapsed", time.Since(start).Round(time.Millisecond))
	}
	l.done = true
	l.res = res
	return res
}

// runner executes build tools under an optional timeout.
type runner struct {
	timeout time.Duration
}

// run executes name with args in dir and returns stdout. A non-zero exit is
// reported as ErrBuildFailed with the tail of stderr.
func (r runner) run(ctx context.Context, dir, name string, args ...string) (string, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	// Daemons forked by the build tool may hold the output pipes open.
	cmd.WaitDelay = 2 * time.Second
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return stdout.String(), fmt.Errorf("%w: %s %s: %v: %s",
			ErrBuildFailed, filepath.Base(name), strings.Join(args, " "), err, tail(stderr.String(), 20))
	}
	return stdout.String(), nil
}

// tail returns the last n lines of s.
func tail(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

// findExecutable looks for a project wrapper in dir and its ancestors, then
// for the global command on PATH.
func findExecutable(dir, wrapper, global string) (string, error) {
	for d := dir; ; {
		candidate := filepath.Join(d, wrapper)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
		parent := filepath.Dir(d)
		if parent == d {
			break
		}
		d = parent
	}
	if p, err := exec.LookPath(global); err == nil {
		return p, nil
	}
	return "", fmt.Errorf("%w: no %s in %s or its parents and no %s on PATH", ErrNoExecutable, wrapper, dir, global)
}

// platformName picks the Windows variant of a wrapper script name.
func platformName(unix, windows string) string {
	if runtime.GOOS == "windows" {
		return windows
	}
	return unix
}

// isArtifact reports whether p looks like a classpath entry: a jar-like
// archive or an existing directory.
func isArtifact(p string) bool {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".jar", ".aar", ".klib", ".zip":
		return true
	}
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}

// withSources pairs a jar with a "-sources.jar" next to it when one exists.
func withSources(compiled string) Entry {
	e := Entry{Compiled: compiled}
	if ext := filepath.Ext(compiled); ext == ".jar" {
		src := strings.TrimSuffix(compiled, ext) + "-sources.jar"
		if _, err := os.Stat(src); err == nil {
			e.Source = src
		}
	}
	return e
}
