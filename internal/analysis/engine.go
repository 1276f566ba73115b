// Package analysis is the language-analysis collaborator of the source
// repository. The repository and the symbol index depend only on the Engine
// interface; KotlinEngine is the tree-sitter backed implementation.
package analysis

import (
	"context"
	"errors"
	"fmt"

	"github.com/jward/sapwood/internal/store"
)

// ExtractorVersion changes whenever declaration extraction or
// classification changes, invalidating persisted index contents.
const ExtractorVersion = "kotlin-1"

// ErrParse is returned by Parse when the text has syntax errors.
var ErrParse = errors.New("analysis: parse failed")

// SyntaxError locates the first syntax error of a file. It matches ErrParse
// with errors.Is.
type SyntaxError struct {
	URI  string
	Line int
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s: %s: syntax error near line %d", ErrParse, e.URI, e.Line)
}

func (e *SyntaxError) Unwrap() error { return ErrParse }

// Diagnostic reports the error as an error-severity diagnostic.
func (e *SyntaxError) Diagnostic() Diagnostic {
	return Diagnostic{
		Line:     e.Line,
		Severity: SeverityError,
		Code:     "SYNTAX_ERROR",
		Message:  fmt.Sprintf("Syntax error near line %d", e.Line),
	}
}

// Engine turns text into syntax trees and syntax trees into semantic models.
// It is purely functional from the repository's point of view: the same
// inputs produce equivalent outputs and nothing is retained between calls.
type Engine interface {
	// Parse produces the AST of one file.
	Parse(ctx context.Context, uri, text string) (*AST, error)

	// Compile binds ast against deps, the ASTs of every parsed file in the
	// workspace. The returned Module owns any generated output and may be
	// nil when nothing was written.
	Compile(ctx context.Context, ast *AST, deps []*AST) (*Model, *Module, error)

	// Classify maps a declaration to its index symbol.
	Classify(decl Declaration) store.Symbol
}

// DeclKind is the syntactic kind of a declaration.
type DeclKind string

const (
	DeclClass       DeclKind = "class"
	DeclInterface   DeclKind = "interface"
	DeclObject      DeclKind = "object"
	DeclEnum        DeclKind = "enum"
	DeclEnumEntry   DeclKind = "enum_entry"
	DeclFunction    DeclKind = "function"
	DeclProperty    DeclKind = "property"
	DeclConstructor DeclKind = "constructor"
	DeclTypeAlias   DeclKind = "typealias"
)

// AST is the syntax-level summary of one file. It holds plain data only; the
// underlying parse tree is released before Parse returns.
type AST struct {
	URI          string
	Package      string
	Imports      []Import
	Declarations []Declaration
}

// Import is one import directive.
type Import struct {
	Path     string
	Alias    string
	Wildcard bool
	Line     int
}

// Declaration is a named declaration at file or class-member level.
type Declaration struct {
	Name       string
	FQName     string
	Kind       DeclKind
	Visibility store.Visibility
	// Receiver is the extension receiver type, empty for ordinary members.
	Receiver string
	// Container is the fully qualified name of the enclosing class, empty at
	// top level.
	Container string
	Line      int
}

// Severity of a diagnostic.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Diagnostic is one problem found while compiling a file.
type Diagnostic struct {
	Line     int      `json:"line"`
	Severity Severity `json:"severity"`
	Code     string   `json:"code"`
	Message  string   `json:"message"`
}

// Model is the semantic model of one compiled file.
type Model struct {
	URI         string
	AST         *AST
	Diagnostics []Diagnostic
	// Resolved maps each resolved import path to where it was found.
	Resolved map[string]Origin
}

// Origin records where an import resolved.
type Origin string

const (
	OriginSource    Origin = "source"
	OriginClasspath Origin = "classpath"
	OriginDefault   Origin = "default"
)
