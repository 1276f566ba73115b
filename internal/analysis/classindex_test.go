package analysis

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassIndex_JarEntries(t *testing.T) {
	jar := filepath.Join(t.TempDir(), "lib.jar")
	writeJar(t, jar,
		"com/example/Outer.class",
		"com/example/Outer$Inner.class",
		"module-info.class",
		"com/example/package-info.class",
		"META-INF/versions/9/com/example/Outer.class",
		"com/example/readme.txt",
	)

	ci := NewClassIndex([]string{jar}, nil)
	assert.True(t, ci.HasClass("com.example.Outer"))
	assert.True(t, ci.HasClass("com.example.Outer.Inner"))
	assert.True(t, ci.HasPackage("com.example"))
	assert.False(t, ci.HasPackage("META-INF.versions.9.com.example"))
	assert.Equal(t, 2, ci.Len())
}

func TestClassIndex_ClassDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "org", "acme"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "org", "acme", "Tool.class"), nil, 0o644))

	ci := NewClassIndex([]string{dir}, nil)
	assert.True(t, ci.HasClass("org.acme.Tool"))
}

func TestClassIndex_SkipsMissingAndForeignEntries(t *testing.T) {
	dir := t.TempDir()
	bogus := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(bogus, []byte("x"), 0o644))
	corrupt := filepath.Join(dir, "broken.jar")
	require.NoError(t, os.WriteFile(corrupt, []byte("not a zip"), 0o644))

	ci := NewClassIndex([]string{filepath.Join(dir, "missing.jar"), bogus, corrupt}, nil)
	assert.Zero(t, ci.Len())
}

func TestModule_ReleaseIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gen")
	require.NoError(t, os.MkdirAll(path, 0o755))

	m := NewModule(path)
	require.NoError(t, m.Release())
	require.NoError(t, m.Release())
	assert.NoDirExists(t, path)

	require.NoError(t, NewModule("").Release())
}
