package classpath

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupStdlib_KeepsHighestVersion(t *testing.T) {
	t.Parallel()
	r := &fixed{name: "r", primary: Set{
		{Compiled: "/repo/core-1.2.3.jar"},
		{Compiled: "/repo/core-1.5.0.jar"},
		{Compiled: "/repo/other-9.9.9.jar"},
	}}
	got := DedupStdlib(r, "core").Classpath(context.Background()).Paths()
	assert.Equal(t, []string{"/repo/core-1.5.0.jar", "/repo/other-9.9.9.jar"}, got)
}

func TestDedupStdlib_ComparesNumerically(t *testing.T) {
	t.Parallel()
	r := newFixed("r", "/a/kotlin-stdlib-1.10.0.jar", "/b/kotlin-stdlib-1.9.22.jar")
	got := DedupStdlib(r).Classpath(context.Background()).Paths()
	assert.Equal(t, []string{"/a/kotlin-stdlib-1.10.0.jar"}, got)
}

func TestDedupStdlib_FamiliesAreSeparate(t *testing.T) {
	t.Parallel()
	r := newFixed("r",
		"/x/kotlin-stdlib-1.9.0.jar",
		"/x/kotlin-stdlib-jdk8-1.8.0.jar",
		"/x/kotlin-stdlib-jdk8-1.9.0.jar",
		"/x/kotlin-stdlib-1.9.0-sources.jar",
	)
	got := DedupStdlib(r).Classpath(context.Background()).Paths()
	assert.Equal(t, []string{
		"/x/kotlin-stdlib-1.9.0-sources.jar",
		"/x/kotlin-stdlib-1.9.0.jar",
		"/x/kotlin-stdlib-jdk8-1.9.0.jar",
	}, got)
}

func TestDedupStdlib_TieKeepsFirst(t *testing.T) {
	t.Parallel()
	r := &fixed{name: "r", primary: Set{
		{Compiled: "/a/kotlin-reflect-2.0.0.jar", Source: "/a/src.jar"},
		{Compiled: "/b/kotlin-reflect-2.0.0.jar"},
	}}
	got := DedupStdlib(r).Classpath(context.Background())
	assert.Equal(t, Set{{Compiled: "/a/kotlin-reflect-2.0.0.jar", Source: "/a/src.jar"}}, got)
}

func TestDedupStdlib_AppliesToBuildScript(t *testing.T) {
	t.Parallel()
	r := &fixed{name: "r", script: PathSet("/p/kotlin-stdlib-1.0.0.jar", "/p/kotlin-stdlib-1.1.0.jar")}
	got := DedupStdlib(r).BuildScriptClasspath(context.Background()).Paths()
	assert.Equal(t, []string{"/p/kotlin-stdlib-1.1.0.jar"}, got)
}
