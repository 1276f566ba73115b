package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, root, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(root, Dir), 0o755))
	require.NoError(t, os.WriteFile(Path(root), []byte(content), 0o644))
}

func TestLoad_MissingFileIsDefault(t *testing.T) {
	t.Parallel()
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_JSONCOverridesDefaults(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeConfig(t, root, `{
  // comments are allowed
  "logLevel": "debug",
  "exclude": ["generated/**"],
  "classpath": {
    "maven": false,
    "timeoutSeconds": 60,
    "overrideScript": "tools/classpath.risor"
  },
  "output": { "dir": "/tmp/sapwood-out" } /* absolute */
}`)

	cfg, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, cfg.Level())
	assert.Equal(t, []string{"generated/**"}, cfg.Exclude)
	assert.True(t, cfg.Classpath.Gradle, "unset fields keep defaults")
	assert.False(t, cfg.Classpath.Maven)
	assert.True(t, cfg.Index.Enabled)
	assert.Equal(t, time.Minute, cfg.Timeout())
	assert.Equal(t, filepath.Join(root, "tools", "classpath.risor"), cfg.OverrideScript(root))
	assert.Equal(t, "/tmp/sapwood-out", cfg.OutputDir(root))
	assert.Equal(t, filepath.Join(root, ".sapwood", "index.db"), cfg.DBPath(root))
}

func TestLoad_RejectsUnknownField(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeConfig(t, root, `{"classpath": {"gradel": true}}`)
	_, err := Load(root)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid")
}

func TestLoad_RejectsWrongType(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeConfig(t, root, `{"classpath": {"timeoutSeconds": "soon"}}`)
	_, err := Load(root)
	require.Error(t, err)
}

func TestLoad_RejectsUnknownLogLevel(t *testing.T) {
	t.Parallel()
	_, err := Parse([]byte(`{"logLevel": "verbose"}`))
	require.Error(t, err)
}

func TestLoad_MalformedJSON(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeConfig(t, root, `{"logLevel": `)
	_, err := Load(root)
	require.Error(t, err)
}

func TestParse_EmptyIsDefault(t *testing.T) {
	t.Parallel()
	cfg, err := Parse([]byte("// nothing configured\n"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestDefaults(t *testing.T) {
	t.Parallel()
	cfg := Default()
	assert.Equal(t, slog.LevelInfo, cfg.Level())
	assert.Equal(t, 5*time.Minute, cfg.Timeout())
	assert.Empty(t, cfg.OverrideScript("/w"))
	assert.Empty(t, cfg.OutputDir("/w"))
}

func TestParseLevel(t *testing.T) {
	t.Parallel()
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARN"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
}
