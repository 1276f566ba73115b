package classpath

import (
	"context"
	"path/filepath"
	"regexp"
	"strconv"
)

// DefaultStdlibFamilies are the Kotlin runtime libraries of which at most
// one version may be on the classpath.
var DefaultStdlibFamilies = []string{
	"kotlin-stdlib",
	"kotlin-stdlib-common",
	"kotlin-stdlib-jdk7",
	"kotlin-stdlib-jdk8",
	"kotlin-reflect",
	"kotlin-script-runtime",
}

// versioned matches "family-major.minor.patch.ext".
var versioned = regexp.MustCompile(`^(.+?)-(\d+)\.(\d+)\.(\d+)\.([A-Za-z0-9]+)$`)

type version [3]int

func (v version) less(o version) bool {
	for i := range v {
		if v[i] != o[i] {
			return v[i] < o[i]
		}
	}
	return false
}

type dedup struct {
	r        Resolver
	families map[string]bool
}

// DedupStdlib keeps only the highest version of each family among r's
// artifacts. Versions compare numerically by (major, minor, patch); files
// that do not belong to a family pass through unchanged. With no families
// given, DefaultStdlibFamilies is used.
func DedupStdlib(r Resolver, families ...string) Resolver {
	if len(families) == 0 {
		families = DefaultStdlibFamilies
	}
	d := &dedup{r: r, families: make(map[string]bool, len(families))}
	for _, f := range families {
		d.families[f] = true
	}
	return d
}

func (d *dedup) Name() string { return "dedup(" + d.r.Name() + ")" }

func (d *dedup) Classpath(ctx context.Context) Set {
	return d.apply(d.r.Classpath(ctx))
}

func (d *dedup) BuildScriptClasspath(ctx context.Context) Set {
	return d.apply(d.r.BuildScriptClasspath(ctx))
}

func (d *dedup) apply(s Set) Set {
	type best struct {
		idx int
		v   version
	}
	winners := make(map[string]best)
	family := make([]string, len(s))
	for i, e := range s {
		f, v, ok := d.parse(e.Compiled)
		if !ok {
			continue
		}
		family[i] = f
		if b, seen := winners[f]; !seen || b.v.less(v) {
			winners[f] = best{idx: i, v: v}
		}
	}

	out := make(Set, 0, len(s))
	for i, e := range s {
		if f := family[i]; f != "" && winners[f].idx != i {
			continue
		}
		out = append(out, e)
	}
	return out
}

func (d *dedup) parse(path string) (string, version, bool) {
	m := versioned.FindStringSubmatch(filepath.Base(path))
	if m == nil || !d.families[m[1]] {
		return "", version{}, false
	}
	var v version
	for i := range v {
		n, err := strconv.Atoi(m[2+i])
		if err != nil {
			return "", version{}, false
		}
		v[i] = n
	}
	return m[1], v, true
}
