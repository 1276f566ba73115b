// Package script runs Risor classpath override scripts. A script's final
// expression is its result: a string of path-list-separated paths or a list
// of path strings.
package script

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/risor-io/risor"
	"github.com/risor-io/risor/importer"
	"github.com/risor-io/risor/object"
)

// Runtime evaluates override scripts with workspace host functions.
type Runtime struct {
	root   string
	logger *slog.Logger
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger sets the logger behind the script's log global.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runtime) {
		r.logger = l
	}
}

// NewRuntime creates a Runtime for the workspace at root.
func NewRuntime(root string, opts ...Option) *Runtime {
	r := &Runtime{root: root, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunScript loads and evaluates the script at path with the standard globals
// plus extra, returning the script's result.
func (r *Runtime) RunScript(ctx context.Context, path string, extra map[string]any) (object.Object, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("script: loading %s: %w", path, err)
	}
	return r.eval(ctx, string(data), path, filepath.Dir(path), extra)
}

// RunSource evaluates Risor source directly. Imports resolve against the
// workspace root.
func (r *Runtime) RunSource(ctx context.Context, source string, extra map[string]any) (object.Object, error) {
	return r.eval(ctx, source, "<inline>", r.root, extra)
}

func (r *Runtime) eval(ctx context.Context, source, label, dir string, extra map[string]any) (object.Object, error) {
	globals := r.buildGlobals(extra)

	var opts []risor.Option
	names := make([]string, 0, len(globals))
	for name, val := range globals {
		opts = append(opts, risor.WithGlobal(name, val))
		names = append(names, name)
	}
	if dir != "" {
		opts = append(opts, risor.WithImporter(importer.NewLocalImporter(importer.LocalImporterOptions{
			GlobalNames: names,
			SourceDir:   dir,
			Extensions:  []string{".risor"},
		})))
	}

	result, err := risor.Eval(ctx, source, opts...)
	if err != nil {
		return nil, fmt.Errorf("script: %s: %w", label, err)
	}
	if errObj, ok := result.(*object.Error); ok {
		return nil, fmt.Errorf("script: %s: %s", label, errObj.Inspect())
	}
	return result, nil
}

func (r *Runtime) buildGlobals(extra map[string]any) map[string]any {
	home, _ := os.UserHomeDir()
	globals := map[string]any{
		"workspace_root": object.NewString(r.root),
		"home_dir":       object.NewString(home),
		"path_separator": object.NewString(string(os.PathListSeparator)),
		"env":            makeEnvFn(),
		"exists":         makeExistsFn(r.root),
		"glob":           makeGlobFn(r.root),
		"log":            mustProxy(&logObject{logger: r.logger}),
	}
	for k, v := range extra {
		globals[k] = v
	}
	return globals
}

// Paths converts a script result into a list of paths. Strings are split on
// the path list separator and newlines; lists must hold strings.
func Paths(obj object.Object) ([]string, error) {
	switch v := obj.(type) {
	case *object.String:
		return SplitPaths(v.Value()), nil
	case *object.List:
		var out []string
		for i, item := range v.Value() {
			s, ok := item.(*object.String)
			if !ok {
				return nil, fmt.Errorf("script: result item %d is %s, not a string", i, item.Type())
			}
			out = append(out, SplitPaths(s.Value())...)
		}
		return out, nil
	case *object.NilType:
		return nil, nil
	default:
		return nil, fmt.Errorf("script: result is %s, want a string or list", obj.Type())
	}
}

// SplitPaths splits s on newlines and the path list separator, dropping
// blank entries.
func SplitPaths(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		for _, p := range strings.Split(line, string(os.PathListSeparator)) {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func mustProxy(v any) object.Object {
	p, err := object.NewProxy(v)
	if err != nil {
		panic(fmt.Sprintf("script: proxy error: %v", err))
	}
	return p
}
