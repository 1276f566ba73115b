package classpath

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/risor-io/risor/object"

	"github.com/jward/sapwood/internal/script"
)

// Shell runs an executable override script in the workspace root and reads
// a path-list-separated classpath from its stdout.
func Shell(path, root string, opts ...Option) Resolver {
	o := newOptions(opts)
	return newLeaf("shell:"+path, o.logger, func(ctx context.Context) (result, error) {
		out, err := o.runner().run(ctx, root, path)
		if err != nil {
			return result{}, err
		}
		return result{primary: PathSet(script.SplitPaths(out)...)}, nil
	})
}

// Script evaluates a Risor override script. Its result is a string of
// path-list-separated paths or a list of path strings.
func Script(path, root string, opts ...Option) Resolver {
	o := newOptions(opts)
	rt := script.NewRuntime(root, script.WithLogger(o.logger))
	return newLeaf("script:"+path, o.logger, func(ctx context.Context) (result, error) {
		obj, err := rt.RunScript(ctx, path, map[string]any{
			"script_dir": object.NewString(filepath.Dir(path)),
		})
		if err != nil {
			return result{}, err
		}
		paths, err := script.Paths(obj)
		if err != nil {
			return result{}, err
		}
		return result{primary: PathSet(paths...)}, nil
	})
}

// Override picks the strategy for an override script by its extension.
func Override(path, root string, opts ...Option) Resolver {
	if strings.HasSuffix(path, ".risor") {
		return Script(path, root, opts...)
	}
	return Shell(path, root, opts...)
}
