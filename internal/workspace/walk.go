// Package workspace finds the files of a Kotlin workspace: sources, build
// files and classpath override scripts.
package workspace

import (
	"encoding/hex"
	"io"
	"os"
	pathpkg "path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	ignore "github.com/sabhiram/go-gitignore"
	"github.com/zeebo/xxh3"
)

var skipDirs = map[string]struct{}{
	"node_modules": {},
	".git":         {},
	".hg":          {},
	".svn":         {},
	".gradle":      {},
	".idea":        {},
	"build":        {},
	"out":          {},
	"target":       {},
	"bin":          {},
}

// Build and override file names recognized while walking.
const (
	GradleBuild       = "build.gradle"
	GradleBuildKts    = "build.gradle.kts"
	GradleSettings    = "settings.gradle"
	GradleSettingsKts = "settings.gradle.kts"
	MavenPom          = "pom.xml"
	OverrideShell     = "sapwood-classpath"
	OverrideScript    = "classpath.risor"
)

// Options controls which paths Walk visits.
type Options struct {
	// Exclude holds doublestar patterns matched against slash-separated
	// paths relative to the root.
	Exclude []string
}

// Walk calls fn for every regular file under root that is not hidden,
// inside a skipped directory, gitignored or excluded. rel is slash-separated
// and relative to root. A .gitignore in any directory applies to the paths
// below it, as in git.
func Walk(root string, opts Options, fn func(path, rel string) error) error {
	ignores := ignoreSet{"": loadGitignore(
		filepath.Join(root, ".gitignore"),
		filepath.Join(root, ".git", "info", "exclude"),
	)}
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // skip errors
		}
		name := d.Name()
		if path == root {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if _, skip := skipDirs[name]; skip || strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			if ignores.matches(rel, true) || excluded(opts.Exclude, rel, true) {
				return filepath.SkipDir
			}
			if gi := loadGitignore(filepath.Join(path, ".gitignore")); gi != nil {
				ignores[rel] = gi
			}
			return nil
		}
		if strings.HasPrefix(name, ".") || d.Type()&os.ModeSymlink != 0 {
			return nil
		}
		if ignores.matches(rel, false) || excluded(opts.Exclude, rel, false) {
			return nil
		}
		return fn(path, rel)
	})
}

// ignoreSet maps a slash-separated directory, relative to the root, to the
// compiled .gitignore found in it. The root is "".
type ignoreSet map[string]*ignore.GitIgnore

// matches reports whether rel is ignored by the .gitignore of any of its
// ancestor directories. Patterns match relative to their own directory.
func (s ignoreSet) matches(rel string, dir bool) bool {
	for parent := pathpkg.Dir(rel); ; parent = pathpkg.Dir(parent) {
		key, sub := "", rel
		if parent != "." {
			key, sub = parent, strings.TrimPrefix(rel, parent+"/")
		}
		if dir {
			sub += "/"
		}
		if gi := s[key]; gi != nil && gi.MatchesPath(sub) {
			return true
		}
		if key == "" {
			return false
		}
	}
}

func excluded(patterns []string, rel string, dir bool) bool {
	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
		if dir {
			if ok, _ := doublestar.Match(pattern, rel+"/**"); ok {
				return true
			}
		}
	}
	return false
}

// loadGitignore compiles the given ignore files into one matcher, or
// returns nil when none exists.
func loadGitignore(files ...string) *ignore.GitIgnore {
	var lines []string
	for _, p := range files {
		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		lines = append(lines, strings.Split(string(data), "\n")...)
	}
	if len(lines) == 0 {
		return nil
	}
	return ignore.CompileIgnoreLines(lines...)
}

// SourceFiles returns the absolute paths of Kotlin sources under root.
func SourceFiles(root string, opts Options) ([]string, error) {
	var out []string
	err := Walk(root, opts, func(path, rel string) error {
		if ext := filepath.Ext(path); ext == ".kt" || ext == ".kts" {
			out = append(out, path)
		}
		return nil
	})
	sort.Strings(out)
	return out, err
}

// BuildFiles returns the absolute paths of Gradle and Maven build files and
// override scripts under root.
func BuildFiles(root string, opts Options) ([]string, error) {
	var out []string
	err := Walk(root, opts, func(path, rel string) error {
		if IsBuildFile(path) {
			out = append(out, path)
		}
		return nil
	})
	sort.Strings(out)
	return out, err
}

// IsBuildFile reports whether path names a file that affects the classpath.
func IsBuildFile(path string) bool {
	switch filepath.Base(path) {
	case GradleBuild, GradleBuildKts, GradleSettings, GradleSettingsKts,
		MavenPom, OverrideShell, OverrideScript, "gradle.properties", "libs.versions.toml":
		return true
	}
	return false
}

// Fingerprint hashes the given paths and their contents. Missing files
// contribute their path only, so creating one changes the fingerprint.
func Fingerprint(paths []string) string {
	sorted := append([]string(nil), paths...)
	sort.Strings(sorted)

	h := xxh3.New()
	for _, p := range sorted {
		io.WriteString(h, p)
		h.Write([]byte{0})
		if f, err := os.Open(p); err == nil {
			io.Copy(h, f)
			f.Close()
		}
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
