package classpath

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jward/sapwood/internal/workspace"
)

// Project is a build tool root found in a workspace.
type Project struct {
	Tool string // "gradle" or "maven"
	Dir  string
}

// Discover finds the Gradle and Maven roots under root. A Gradle root is a
// directory with a settings file, or with a build file outside every such
// directory. Maven modules nested under another pom.xml are covered by the
// outer build and are skipped.
func Discover(root string, opts ...Option) ([]Project, error) {
	o := newOptions(opts)
	files, err := workspace.BuildFiles(root, workspace.Options{Exclude: o.exclude})
	if err != nil {
		return nil, err
	}

	var settings, builds, poms []string
	for _, f := range files {
		dir := filepath.Dir(f)
		switch filepath.Base(f) {
		case workspace.GradleSettings, workspace.GradleSettingsKts:
			settings = append(settings, dir)
		case workspace.GradleBuild, workspace.GradleBuildKts:
			builds = append(builds, dir)
		case workspace.MavenPom:
			poms = append(poms, dir)
		}
	}

	var out []Project
	if o.gradle {
		roots := outermost(settings)
		for _, dir := range roots {
			out = append(out, Project{Tool: "gradle", Dir: dir})
		}
		for _, dir := range outermost(builds) {
			if !under(dir, roots) {
				out = append(out, Project{Tool: "gradle", Dir: dir})
			}
		}
	}
	if o.maven {
		for _, dir := range outermost(poms) {
			out = append(out, Project{Tool: "maven", Dir: dir})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Dir != out[j].Dir {
			return out[i].Dir < out[j].Dir
		}
		return out[i].Tool < out[j].Tool
	})
	return out, nil
}

// outermost drops directories nested under another directory of dirs.
func outermost(dirs []string) []string {
	dirs = append([]string(nil), dirs...)
	sort.Strings(dirs)
	var out []string
	for _, d := range dirs {
		if !under(d, out) {
			out = append(out, d)
		}
	}
	return out
}

// under reports whether dir equals or is inside one of roots.
func under(dir string, roots []string) bool {
	for _, r := range roots {
		if dir == r || strings.HasPrefix(dir, r+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// OverrideCandidates lists the override script locations in priority order:
// the configured script, then the workspace and user-level defaults.
func OverrideCandidates(root string, opts ...Option) []string {
	o := newOptions(opts)
	var out []string
	if o.overrideScript != "" {
		p := o.overrideScript
		if !filepath.IsAbs(p) {
			p = filepath.Join(root, p)
		}
		out = append(out, p)
	}
	out = append(out,
		filepath.Join(root, workspace.OverrideShell),
		filepath.Join(root, ".sapwood", workspace.OverrideScript),
	)
	if o.home != "" {
		out = append(out, filepath.Join(o.home, ".config", "sapwood", "classpath"))
	}
	return out
}

// FindOverride returns the first existing override script, or "".
func FindOverride(root string, opts ...Option) string {
	for _, p := range OverrideCandidates(root, opts...) {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return ""
}

// Fingerprint identifies the inputs of Default: every build file in the
// workspace and every override candidate.
func Fingerprint(root string, opts ...Option) (string, error) {
	o := newOptions(opts)
	files, err := workspace.BuildFiles(root, workspace.Options{Exclude: o.exclude})
	if err != nil {
		return "", err
	}
	files = append(files, OverrideCandidates(root, opts...)...)
	return workspace.Fingerprint(files), nil
}

// Default builds the standard resolver for the workspace at root:
//
//	Fallback(Cached(Dedup(Fallback(override, Joined(projects)))), Dedup(Backup), Empty)
//
// The override, when present, replaces build tool resolution. Caching needs
// WithStore.
func Default(root string, opts ...Option) (Resolver, error) {
	o := newOptions(opts)

	projects, err := Discover(root, opts...)
	if err != nil {
		return nil, err
	}
	leaves := make([]Resolver, 0, len(projects))
	for _, p := range projects {
		switch p.Tool {
		case "gradle":
			leaves = append(leaves, Gradle(p.Dir, opts...))
		case "maven":
			leaves = append(leaves, Maven(p.Dir, opts...))
		}
	}

	primary := Joined(leaves...)
	if script := FindOverride(root, opts...); script != "" {
		primary = Fallback(Override(script, root, opts...), primary)
	}

	fingerprint := ""
	if o.store != nil {
		if fingerprint, err = Fingerprint(root, opts...); err != nil {
			return nil, err
		}
	}

	return FirstNonEmpty(
		Cached(DedupStdlib(primary, o.families...), o.store, fingerprint, opts...),
		DedupStdlib(Backup(o.home, opts...), o.families...),
		Empty(),
	), nil
}
