package sapwood

import (
	"archive/zip"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/sapwood/internal/classpath"
	"github.com/jward/sapwood/internal/config"
	"github.com/jward/sapwood/internal/source"
	"github.com/jward/sapwood/internal/watch"
)

// staticResolver returns a fixed classpath. When block is set, the first
// evaluation waits for its context to end.
type staticResolver struct {
	set   classpath.Set
	block bool
	calls atomic.Int32
}

func (r *staticResolver) Name() string { return "static" }

func (r *staticResolver) Classpath(ctx context.Context) classpath.Set {
	if r.calls.Add(1) == 1 && r.block {
		<-ctx.Done()
		return nil
	}
	return r.set
}

func (r *staticResolver) BuildScriptClasspath(context.Context) classpath.Set { return nil }

// cancelOnMessage is a slog handler that cancels a context when a record
// with the given message is logged.
type cancelOnMessage struct {
	msg    string
	cancel context.CancelFunc
}

func (h *cancelOnMessage) Enabled(context.Context, slog.Level) bool { return true }
func (h *cancelOnMessage) WithAttrs([]slog.Attr) slog.Handler      { return h }
func (h *cancelOnMessage) WithGroup(string) slog.Handler           { return h }

func (h *cancelOnMessage) Handle(_ context.Context, r slog.Record) error {
	if r.Message == h.msg {
		h.cancel()
	}
	return nil
}

func newTestSession(t *testing.T, root string, opts ...Option) *Session {
	t.Helper()
	cfg := config.Default()
	cfg.Output.Dir = t.TempDir()
	opts = append([]Option{
		WithConfig(cfg),
		WithHome(t.TempDir()),
		WithResolver(&staticResolver{}),
	}, opts...)
	s, err := Open(context.Background(), root, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func writeSource(t *testing.T, path, src string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

// writeJar writes a jar containing empty entries for the given class names.
func writeJar(t *testing.T, path string, classes ...string) string {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for _, c := range classes {
		_, err := zw.Create(c)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

func ptr[T any](v T) *T { return &v }

const utilSrc = `package com.example.util

fun greet(name: String): String = "hello " + name

fun String.shout(): String = uppercase()

class Formatter {
    fun format(x: Int): String = x.toString()
}
`

const mainSrc = `package com.example.app

import com.example.util.greet

fun main() {
    println(greet("world"))
}
`

// =============================================================================
// Lifecycle
// =============================================================================

func TestOpen_CreatesIndexAndOutputDir(t *testing.T) {
	root := t.TempDir()
	s := newTestSession(t, root)

	assert.NotEmpty(t, s.ID())
	assert.Equal(t, root, s.Root())
	assert.DirExists(t, s.OutputDir())
	assert.FileExists(t, filepath.Join(root, ".sapwood", "index.db"))
}

func TestOpen_InvalidConfig(t *testing.T) {
	root := t.TempDir()
	writeSource(t, filepath.Join(root, ".sapwood", "config.jsonc"), `{"logLevel": 3}`)
	_, err := Open(context.Background(), root, WithHome(t.TempDir()))
	require.Error(t, err)
}

func TestClose_RemovesOutputAndIsIdempotent(t *testing.T) {
	root := t.TempDir()
	writeSource(t, filepath.Join(root, "src", "Util.kt"), utilSrc)
	s := newTestSession(t, root)
	_, err := s.IndexWorkspace(context.Background())
	require.NoError(t, err)

	out := s.OutputDir()
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.NoDirExists(t, out)

	err = <-s.StartClasspathResolution(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

// =============================================================================
// Index
// =============================================================================

func TestIndexWorkspace_PublishesDeclarations(t *testing.T) {
	root := t.TempDir()
	writeSource(t, filepath.Join(root, "src", "util", "Util.kt"), utilSrc)
	writeSource(t, filepath.Join(root, "src", "app", "Main.kt"), mainSrc)
	writeSource(t, filepath.Join(root, "build", "Generated.kt"), "package gen\nfun generated() {}\n")
	s := newTestSession(t, root)

	res, err := s.IndexWorkspace(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Files)
	assert.Equal(t, 2, res.Compiled)
	assert.Zero(t, res.Failed)

	greet, err := s.Symbols("greet", nil, 0, true)
	require.NoError(t, err)
	require.Len(t, greet, 1)
	assert.Equal(t, "com.example.util.greet", greet[0].FQName)

	shout, err := s.Symbols("sho", ptr("kotlin.String"), 0, false)
	require.NoError(t, err)
	require.Len(t, shout, 1)
	assert.Equal(t, "com.example.util.shout", shout[0].FQName)

	none, err := s.Symbols("generated", nil, 0, true)
	require.NoError(t, err)
	assert.Empty(t, none, "build output is not part of the workspace")
}

func TestIndexWorkspace_PersistsAndPrunes(t *testing.T) {
	root := t.TempDir()
	util := writeSource(t, filepath.Join(root, "Util.kt"), utilSrc)
	writeSource(t, filepath.Join(root, "Main.kt"), mainSrc)

	first := newTestSession(t, root)
	_, err := first.IndexWorkspace(context.Background())
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second := newTestSession(t, root)
	greet, err := second.Symbols("greet", nil, 0, true)
	require.NoError(t, err)
	assert.Len(t, greet, 1, "the index outlives the session")

	require.NoError(t, os.Remove(util))
	_, err = second.IndexWorkspace(context.Background())
	require.NoError(t, err)
	greet, err = second.Symbols("greet", nil, 0, true)
	require.NoError(t, err)
	assert.Empty(t, greet)
	main, err := second.Symbols("main", nil, 0, true)
	require.NoError(t, err)
	assert.Len(t, main, 1)
}

func TestIndexWorkspace_RetractsFileThatNoLongerParses(t *testing.T) {
	root := t.TempDir()
	util := writeSource(t, filepath.Join(root, "Util.kt"), utilSrc)

	first := newTestSession(t, root)
	_, err := first.IndexWorkspace(context.Background())
	require.NoError(t, err)
	require.NoError(t, first.Close())

	writeSource(t, util, "package com.example.util\n\nfun greet( {\n")
	second := newTestSession(t, root)
	res, err := second.IndexWorkspace(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)

	greet, err := second.Symbols("greet", nil, 0, true)
	require.NoError(t, err)
	assert.Empty(t, greet, "a broken file keeps no declarations from an earlier session")
}

func TestSymbols_IndexDisabled(t *testing.T) {
	root := t.TempDir()
	cfg := config.Default()
	cfg.Index.Enabled = false
	cfg.Output.Dir = t.TempDir()
	s, err := Open(context.Background(), root, WithConfig(cfg), WithHome(t.TempDir()), WithResolver(&staticResolver{}))
	require.NoError(t, err)
	defer s.Close()

	writeSource(t, filepath.Join(root, "Util.kt"), utilSrc)
	_, err = s.IndexWorkspace(context.Background())
	require.NoError(t, err)

	syms, err := s.Symbols("greet", nil, 0, true)
	require.NoError(t, err)
	assert.Empty(t, syms)
	assert.NoFileExists(t, filepath.Join(root, ".sapwood", "index.db"))
}

// =============================================================================
// Documents
// =============================================================================

func TestEditDocument_RepublishesDeclarations(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	path := writeSource(t, filepath.Join(root, "Util.kt"), utilSrc)
	uri := source.FileURI(path)
	s := newTestSession(t, root)

	s.OpenDocument(uri, 1, utilSrc)
	_, err := s.Compile(ctx, uri)
	require.NoError(t, err)

	// "greet" is on line 2 (0-based), columns 4..9.
	require.NoError(t, s.EditDocument(uri, 2, source.Patch(
		source.Position{Line: 2, Character: 4},
		source.Position{Line: 2, Character: 9},
		"welcome",
	)))
	greet, err := s.Symbols("greet", nil, 0, true)
	require.NoError(t, err)
	assert.Empty(t, greet, "an edit retracts the file's declarations")

	compiled, err := s.Compile(ctx, uri)
	require.NoError(t, err)
	require.Contains(t, compiled, uri)
	assert.Equal(t, 2, compiled[uri].Version)

	welcome, err := s.Symbols("welcome", nil, 0, true)
	require.NoError(t, err)
	assert.Len(t, welcome, 1)
}

func TestEditDocument_StaleAndUntracked(t *testing.T) {
	root := t.TempDir()
	s := newTestSession(t, root)
	uri := source.FileURI(filepath.Join(root, "Scratch.kt"))

	s.OpenDocument(uri, 5, "fun a() {}")
	require.NoError(t, s.EditDocument(uri, 5, source.Full("fun b() {}")), "stale edits are ignored")
	text, ok := s.Repository().Content(uri)
	require.True(t, ok)
	assert.Equal(t, "fun a() {}", text)

	err := s.EditDocument(source.FileURI(filepath.Join(root, "Other.kt")), 1, source.Full("x"))
	assert.ErrorIs(t, err, source.ErrNotTracked)
}

func TestCloseDocument_TransientBufferIsDropped(t *testing.T) {
	root := t.TempDir()
	s := newTestSession(t, root)
	uri := source.FileURI(filepath.Join(root, "Scratch.kt"))

	s.OpenDocument(uri, 1, "fun scratch() {}")
	_, err := s.Compile(context.Background(), uri)
	require.NoError(t, err)
	syms, err := s.Symbols("scratch", nil, 0, true)
	require.NoError(t, err)
	require.Len(t, syms, 1)

	s.CloseDocument(uri)
	assert.NotContains(t, s.Repository().URIs(), uri)
	syms, err = s.Symbols("scratch", nil, 0, true)
	require.NoError(t, err)
	assert.Empty(t, syms)
}

func TestRemoveDocument(t *testing.T) {
	root := t.TempDir()
	path := writeSource(t, filepath.Join(root, "Util.kt"), utilSrc)
	uri := source.FileURI(path)
	s := newTestSession(t, root)

	_, err := s.Compile(context.Background(), uri)
	require.NoError(t, err)
	s.RemoveDocument(uri)

	syms, err := s.Symbols("greet", nil, 0, true)
	require.NoError(t, err)
	assert.Empty(t, syms)
}

func TestSaveDocument_KeepsBufferOnClose(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "New.kt")
	uri := source.FileURI(path)
	s := newTestSession(t, root)

	s.OpenDocument(uri, 1, "fun fresh() {}")
	writeSource(t, path, "fun fresh() {}")
	s.SaveDocument(uri)
	s.CloseDocument(uri)

	assert.Contains(t, s.Repository().URIs(), uri)
	v, ok := s.Repository().Version(uri)
	require.True(t, ok)
	assert.Equal(t, source.DiskVersion, v)
}

// =============================================================================
// Diagnostics and classpath
// =============================================================================

func TestDiagnostics_SyntaxError(t *testing.T) {
	root := t.TempDir()
	s := newTestSession(t, root)
	uri := source.FileURI(filepath.Join(root, "Broken.kt"))
	s.OpenDocument(uri, 1, "package p\n\nfun broken( {\n")

	diags, err := s.Diagnostics(context.Background(), uri)
	require.NoError(t, err)
	require.Len(t, diags, 1)
	assert.Equal(t, "SYNTAX_ERROR", diags[0].Code)
	assert.Positive(t, diags[0].Line)
}

func TestDiagnostics_Untracked(t *testing.T) {
	root := t.TempDir()
	s := newTestSession(t, root)
	_, err := s.Diagnostics(context.Background(), source.FileURI(filepath.Join(root, "Missing.kt")))
	assert.ErrorIs(t, err, source.ErrNotTracked)
}

func TestResolveClasspath_RecompilesAgainstNewClasspath(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	jar := writeJar(t, filepath.Join(t.TempDir(), "acme-1.0.jar"), "com/acme/Lib.class")
	path := writeSource(t, filepath.Join(root, "App.kt"), "package app\n\nimport com.acme.Lib\n\nfun run() {}\n")
	uri := source.FileURI(path)

	resolver := &staticResolver{set: classpath.PathSet(jar)}
	s := newTestSession(t, root, WithResolver(resolver))

	diags, err := s.Diagnostics(ctx, uri)
	require.NoError(t, err)
	require.Len(t, diags, 1)
	assert.Equal(t, "UNRESOLVED_IMPORT", diags[0].Code)

	got, err := s.ResolveClasspath(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{jar}, got.Paths())
	assert.Equal(t, got, s.Classpath())

	stage, ok := s.Repository().Stage(uri)
	require.True(t, ok)
	assert.Equal(t, source.StageCompiled, stage, "a classpath change recompiles tracked files")

	diags, err = s.Diagnostics(ctx, uri)
	require.NoError(t, err)
	assert.Empty(t, diags)
}

func TestResolveClasspath_UnchangedKeepsCompiledState(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	path := writeSource(t, filepath.Join(root, "Util.kt"), utilSrc)
	uri := source.FileURI(path)
	s := newTestSession(t, root, WithResolver(&staticResolver{}))

	compiled, err := s.Compile(ctx, uri)
	require.NoError(t, err)
	before := compiled[uri]

	_, err = s.ResolveClasspath(ctx)
	require.NoError(t, err)
	after, ok := s.Repository().Compiled(uri)
	require.True(t, ok)
	assert.Same(t, before, after)
}

func TestStartClasspathResolution_CancelsPrevious(t *testing.T) {
	root := t.TempDir()
	resolver := &staticResolver{set: classpath.PathSet("/libs/a.jar"), block: true}
	s := newTestSession(t, root, WithResolver(resolver))

	first := s.StartClasspathResolution(context.Background())
	require.Eventually(t, func() bool { return resolver.calls.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
	second := s.StartClasspathResolution(context.Background())

	select {
	case err := <-first:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(5 * time.Second):
		t.Fatal("first resolution was not cancelled")
	}
	select {
	case err := <-second:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("second resolution did not finish")
	}
	assert.Equal(t, []string{"/libs/a.jar"}, s.Classpath().Paths())
}

func TestResolveClasspath_InterruptedRefreshIsRedone(t *testing.T) {
	root := t.TempDir()
	path := writeSource(t, filepath.Join(root, "Util.kt"), utilSrc)
	uri := source.FileURI(path)
	jar := writeJar(t, filepath.Join(t.TempDir(), "acme-1.0.jar"), "com/acme/Lib.class")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	logger := slog.New(&cancelOnMessage{msg: "classpath.resolved", cancel: cancel})
	s := newTestSession(t, root,
		WithLogger(logger),
		WithResolver(&staticResolver{set: classpath.PathSet(jar)}),
	)
	_, err := s.IndexWorkspace(context.Background())
	require.NoError(t, err)

	// The context ends just before the engine refresh starts.
	_, err = s.ResolveClasspath(ctx)
	require.ErrorIs(t, err, context.Canceled)

	_, err = s.ResolveClasspath(context.Background())
	require.NoError(t, err)
	stage, ok := s.Repository().Stage(uri)
	require.True(t, ok)
	assert.Equal(t, source.StageCompiled, stage)
	greet, err := s.Symbols("greet", nil, 0, true)
	require.NoError(t, err)
	assert.Len(t, greet, 1)
}

func TestWatchBuildFiles_TriggersResolution(t *testing.T) {
	root := t.TempDir()
	build := writeSource(t, filepath.Join(root, "build.gradle.kts"), "plugins {}")
	resolver := &staticResolver{set: classpath.PathSet("/libs/a.jar")}
	s := newTestSession(t, root, WithResolver(resolver))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.WatchBuildFiles(ctx, watch.WithDebounce(50*time.Millisecond)))
	// Give the watcher time to register its directories.
	time.Sleep(200 * time.Millisecond)

	writeSource(t, build, "plugins { kotlin(\"jvm\") }")
	require.Eventually(t, func() bool { return resolver.calls.Load() > 0 }, 5*time.Second, 20*time.Millisecond)
	require.Eventually(t, func() bool { return len(s.Classpath()) == 1 }, 5*time.Second, 20*time.Millisecond)
}
