package classpath

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

// fixed is a Resolver with canned results that counts its evaluations.
type fixed struct {
	name    string
	primary Set
	script  Set
	calls   atomic.Int32
}

func (f *fixed) Name() string { return f.name }

func (f *fixed) Classpath(context.Context) Set {
	f.calls.Add(1)
	return f.primary
}

func (f *fixed) BuildScriptClasspath(context.Context) Set {
	return f.script
}

func newFixed(name string, paths ...string) *fixed {
	return &fixed{name: name, primary: PathSet(paths...)}
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// syncBuffer collects log output from concurrent writers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func capture() (*slog.Logger, *syncBuffer) {
	buf := &syncBuffer{}
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})), buf
}

// touch creates path and its parent directories.
func touch(t *testing.T, path string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	return path
}

// writeExecutable writes a shell script. Tests using it do not run in
// parallel, since forking while another test holds a freshly written
// executable open can fail with ETXTBSY.
func writeExecutable(t *testing.T, path, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script build tools need a POSIX shell")
	}
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}
