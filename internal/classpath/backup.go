package classpath

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// backupPatterns locate Kotlin runtime jars in local tool caches, relative
// to the user home directory.
var backupPatterns = []string{
	".m2/repository/org/jetbrains/kotlin/kotlin-stdlib/*/kotlin-stdlib-*.jar",
	".gradle/caches/modules-2/files-2.1/org.jetbrains.kotlin/kotlin-stdlib/*/*/kotlin-stdlib-*.jar",
}

// Backup finds the Kotlin standard library in the local Maven and Gradle
// caches under home. It runs no build tool and is meant as a fallback.
func Backup(home string, opts ...Option) Resolver {
	o := newOptions(opts)
	return newLeaf("backup", o.logger, func(ctx context.Context) (result, error) {
		if home == "" {
			return result{}, nil
		}
		fsys := os.DirFS(home)
		var entries []Entry
		for _, pattern := range backupPatterns {
			matches, err := doublestar.Glob(fsys, pattern)
			if err != nil {
				return result{}, err
			}
			for _, m := range matches {
				base := filepath.Base(m)
				if strings.HasSuffix(base, "-sources.jar") || strings.HasSuffix(base, "-javadoc.jar") {
					continue
				}
				entries = append(entries, withGradleSources(filepath.Join(home, filepath.FromSlash(m))))
			}
		}
		return result{primary: NewSet(entries...)}, nil
	})
}

// withGradleSources pairs a jar with its sources jar, looking next to it and
// in sibling hash directories of the Gradle module cache.
func withGradleSources(compiled string) Entry {
	e := withSources(compiled)
	if e.Source != "" {
		return e
	}
	name := strings.TrimSuffix(filepath.Base(compiled), ".jar") + "-sources.jar"
	versionDir := filepath.Dir(filepath.Dir(compiled))
	matches, _ := filepath.Glob(filepath.Join(versionDir, "*", name))
	if len(matches) > 0 {
		e.Source = matches[0]
	}
	return e
}
