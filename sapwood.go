// Package sapwood is the state core of a Kotlin editor backend. It keeps
// every workspace file in one of three stages, maintains a transactional
// index of declarations for completion and import fixes, and discovers the
// external classpath from the build.
//
// # Pipeline
//
// A tracked file moves through three stages:
//
//  1. Raw: text only, read from disk or received from the editor.
//  2. Parsed: a syntax tree, produced by tree-sitter.
//  3. Compiled: a semantic model bound against the whole workspace and the
//     classpath. Compiling a file publishes its declarations to the index.
//
// Any edit returns a file to Raw and retracts what it had published.
// Compilation always binds against the current parse of every tracked
// file, so a file never compiles against a stale dependency.
//
// # Usage
//
//	s, err := sapwood.Open(ctx, "path/to/project")
//	if err != nil { ... }
//	defer s.Close()
//
//	s.StartClasspathResolution(ctx)
//	_, err = s.IndexWorkspace(ctx)
//
//	syms, err := s.Symbols("parse", nil, 20, false)
//
// # Classpath
//
// Resolution tries, in order: an override script, the Gradle and Maven
// builds of the workspace, and the Kotlin runtime found in local tool
// caches. Results are cached by a fingerprint of the build files. See the
// internal/classpath package for the composition rules.
package sapwood

import (
	"github.com/jward/sapwood/internal/analysis"
	"github.com/jward/sapwood/internal/classpath"
	"github.com/jward/sapwood/internal/source"
	"github.com/jward/sapwood/internal/store"
)

// Public aliases for the internal types used by the Session API.

type Symbol = store.Symbol
type Diagnostic = analysis.Diagnostic
type Change = source.Change
type Position = source.Position
type Range = source.Range
type Compiled = source.Compiled
type ClasspathEntry = classpath.Entry
type ClasspathSet = classpath.Set
