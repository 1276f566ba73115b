package script

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/risor-io/risor/object"
)

// makeEnvFn creates the "env" host function.
//
// env(name) → string, empty when unset
func makeEnvFn() *object.Builtin {
	return object.NewBuiltin("env", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("env", 1, len(args))
		}
		name, ok := args[0].(*object.String)
		if !ok {
			return object.Errorf("env: name must be a string, got %s", args[0].Type())
		}
		return object.NewString(os.Getenv(name.Value()))
	})
}

// makeExistsFn creates the "exists" host function. Relative paths are
// resolved against the workspace root.
//
// exists(path) → bool
func makeExistsFn(root string) *object.Builtin {
	return object.NewBuiltin("exists", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("exists", 1, len(args))
		}
		p, ok := args[0].(*object.String)
		if !ok {
			return object.Errorf("exists: path must be a string, got %s", args[0].Type())
		}
		_, err := os.Stat(resolve(root, p.Value()))
		return object.NewBool(err == nil)
	})
}

// makeGlobFn creates the "glob" host function. Patterns use doublestar
// syntax; relative patterns are matched under the workspace root.
//
// glob(pattern) → list of absolute paths
func makeGlobFn(root string) *object.Builtin {
	return object.NewBuiltin("glob", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("glob", 1, len(args))
		}
		pattern, ok := args[0].(*object.String)
		if !ok {
			return object.Errorf("glob: pattern must be a string, got %s", args[0].Type())
		}
		matches, err := doublestar.FilepathGlob(resolve(root, pattern.Value()))
		if err != nil {
			return object.Errorf("glob: %v", err)
		}
		items := make([]object.Object, len(matches))
		for i, m := range matches {
			items[i] = object.NewString(m)
		}
		return object.NewList(items)
	})
}

func resolve(root, p string) string {
	if filepath.IsAbs(p) || root == "" {
		return p
	}
	return filepath.Join(root, p)
}

// logObject provides log.info/warn/error methods for scripts.
type logObject struct {
	logger *slog.Logger
}

func (l *logObject) Info(msg string) {
	l.logger.Info("script.log", "msg", msg)
}

func (l *logObject) Warn(msg string) {
	l.logger.Warn("script.log", "msg", msg)
}

func (l *logObject) Error(msg string) {
	l.logger.Error("script.log", "msg", msg)
}
