package classpath

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGradleOutput(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	lib := touch(t, filepath.Join(dir, "lib-1.0.jar"))
	src := touch(t, filepath.Join(dir, "lib-1.0-sources.jar"))
	classes := filepath.Join(dir, "build", "classes")
	require.NoError(t, os.MkdirAll(classes, 0o755))

	out := strings.Join([]string{
		"> Task :app:sapwoodClasspath",
		"sapwood-gradle :app classpath " + lib,
		"sapwood-gradle :app classpath " + classes,
		"sapwood-gradle :lib classpath " + lib,
		"sapwood-gradle :app classpath " + filepath.Join(dir, "missing-dir"),
		"sapwood-gradle : buildscript /plugins/kotlin-gradle-plugin-2.0.0.jar",
		"sapwood-gradle : unknown /x.jar",
		"sapwood-gradle broken",
	}, "\n")

	res := parseGradleOutput(out)
	assert.Equal(t, Set{
		{Compiled: classes},
		{Compiled: lib, Source: src},
	}, res.primary)
	assert.Equal(t, []string{"/plugins/kotlin-gradle-plugin-2.0.0.jar"}, res.buildScript.Paths())
}

func TestGradle_RunsWrapperWithInitScript(t *testing.T) {
	dir := t.TempDir()
	lib := touch(t, filepath.Join(t.TempDir(), "dep-1.0.jar"))
	argsFile := filepath.Join(dir, "args.txt")
	writeExecutable(t, filepath.Join(dir, "gradlew"), fmt.Sprintf(`
echo "$@" > %q
echo "sapwood-gradle : classpath %s"
echo "sapwood-gradle : buildscript /plugins/p.jar"
`, argsFile, lib))

	r := Gradle(dir, WithLogger(quiet()))
	ctx := context.Background()
	assert.Equal(t, []string{lib}, r.Classpath(ctx).Paths())
	assert.Equal(t, []string{"/plugins/p.jar"}, r.BuildScriptClasspath(ctx).Paths())
	assert.Equal(t, "gradle:"+dir, r.Name())

	args, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	assert.Contains(t, string(args), "-I ")
	assert.Contains(t, string(args), gradleTask)
}

func TestGradle_WrapperInParentDirectory(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "app")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	writeExecutable(t, filepath.Join(root, "gradlew"), `echo "sapwood-gradle :app classpath /deps/a.jar"`+"\n")

	got := Gradle(sub, WithLogger(quiet())).Classpath(context.Background())
	assert.Equal(t, []string{"/deps/a.jar"}, got.Paths())
}

func TestGradle_FailureBannerIsEmpty(t *testing.T) {
	dir := t.TempDir()
	writeExecutable(t, filepath.Join(dir, "gradlew"), `
echo "sapwood-gradle : classpath /deps/a.jar"
echo "FAILURE: Build failed with an exception."
`)
	logger, buf := capture()
	assert.Empty(t, Gradle(dir, WithLogger(logger)).Classpath(context.Background()))
	assert.Contains(t, buf.String(), "classpath.strategy.failed")
}

func TestGradle_NonZeroExitIsEmpty(t *testing.T) {
	dir := t.TempDir()
	writeExecutable(t, filepath.Join(dir, "gradlew"), `
echo "sapwood-gradle : classpath /deps/a.jar"
echo "could not resolve" >&2
exit 1
`)
	_, err := resolveGradle(context.Background(), dir, newOptions([]Option{WithLogger(quiet())}))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBuildFailed))
	assert.Contains(t, err.Error(), "could not resolve")
}

func TestGradle_Timeout(t *testing.T) {
	dir := t.TempDir()
	writeExecutable(t, filepath.Join(dir, "gradlew"), "exec sleep 10\n")

	start := time.Now()
	got := Gradle(dir, WithLogger(quiet()), WithTimeout(200*time.Millisecond)).Classpath(context.Background())
	assert.Empty(t, got)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestFindExecutable_Missing(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	_, err := findExecutable(t.TempDir(), "sapwood-no-such-wrapper", "sapwood-no-such-tool")
	assert.ErrorIs(t, err, ErrNoExecutable)
}
