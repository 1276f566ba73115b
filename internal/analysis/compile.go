package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zeebo/xxh3"
)

// platformPrefixes are packages provided by the runtime. Imports under them
// are only checked once the classpath knows the package.
var platformPrefixes = []string{"kotlin.", "kotlinx.", "java.", "javax."}

// Compile resolves ast's imports against deps and the classpath and writes a
// summary to the output directory when one is configured.
func (e *KotlinEngine) Compile(ctx context.Context, ast *AST, deps []*AST) (*Model, *Module, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if ast == nil {
		return nil, nil, fmt.Errorf("compile: nil ast")
	}

	decls := make(map[string]struct{})
	pkgs := make(map[string]struct{})
	for _, d := range deps {
		if d == nil {
			continue
		}
		pkgs[d.Package] = struct{}{}
		for _, decl := range d.Declarations {
			decls[decl.FQName] = struct{}{}
		}
	}
	for _, decl := range ast.Declarations {
		decls[decl.FQName] = struct{}{}
	}
	pkgs[ast.Package] = struct{}{}

	model := &Model{URI: ast.URI, AST: ast, Resolved: make(map[string]Origin)}
	for _, imp := range ast.Imports {
		origin, ok := e.resolveImport(imp, decls, pkgs)
		if ok {
			model.Resolved[imp.Path] = origin
			continue
		}
		if origin == OriginDefault {
			// Platform package not on the classpath; nothing to check against.
			continue
		}
		model.Diagnostics = append(model.Diagnostics, Diagnostic{
			Line:     imp.Line,
			Severity: SeverityError,
			Code:     "UNRESOLVED_IMPORT",
			Message:  fmt.Sprintf("Unresolved reference: %s", imp.Path),
		})
	}

	module, err := e.writeSummary(ast, model)
	if err != nil {
		e.logger.Warn("analysis.output.failed", "uri", ast.URI, "err", err)
		module = nil
	}
	return model, module, nil
}

func (e *KotlinEngine) resolveImport(imp Import, decls, pkgs map[string]struct{}) (Origin, bool) {
	if imp.Wildcard {
		if _, ok := pkgs[imp.Path]; ok {
			return OriginSource, true
		}
		if _, ok := decls[imp.Path]; ok {
			return OriginSource, true
		}
		if e.classes.HasPackage(imp.Path) || e.classes.HasClass(imp.Path) {
			return OriginClasspath, true
		}
		return e.platform(imp.Path, imp.Path)
	}

	if _, ok := decls[imp.Path]; ok {
		return OriginSource, true
	}
	if e.classes.HasClass(imp.Path) {
		return OriginClasspath, true
	}
	// Top-level functions compile into a synthetic FooKt class, so a member
	// of a known package is accepted as a classpath function import.
	pkg := parentName(imp.Path)
	if e.classes.HasPackage(pkg) && startsLower(lastSegment(imp.Path)) {
		return OriginClasspath, true
	}
	// A member of a known class, for example an enum entry or object member.
	if e.classes.HasClass(pkg) {
		return OriginClasspath, true
	}
	return e.platform(imp.Path, pkg)
}

// platform reports OriginDefault for platform imports that cannot be checked
// because the classpath does not contain their package.
func (e *KotlinEngine) platform(path, pkg string) (Origin, bool) {
	for _, prefix := range platformPrefixes {
		if strings.HasPrefix(path, prefix) && !e.classes.HasPackage(pkg) {
			return OriginDefault, false
		}
	}
	return "", false
}

func parentName(fq string) string {
	if i := strings.LastIndex(fq, "."); i >= 0 {
		return fq[:i]
	}
	return ""
}

func startsLower(s string) bool {
	return s != "" && s[0] >= 'a' && s[0] <= 'z'
}

type summary struct {
	URI          string       `json:"uri"`
	Package      string       `json:"package"`
	Declarations []string     `json:"declarations"`
	Diagnostics  []Diagnostic `json:"diagnostics"`
}

// writeSummary writes the generated output for one compile. Each compile
// gets its own file so releasing an old module never touches a new one.
func (e *KotlinEngine) writeSummary(ast *AST, model *Model) (*Module, error) {
	if e.outputDir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(e.outputDir, 0o755); err != nil {
		return nil, err
	}
	s := summary{URI: ast.URI, Package: ast.Package, Diagnostics: model.Diagnostics}
	for _, d := range ast.Declarations {
		s.Declarations = append(s.Declarations, d.FQName)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, err
	}

	prefix := fmt.Sprintf("%016x-", xxh3.HashString(ast.URI))
	f, err := os.CreateTemp(e.outputDir, prefix+"*.json")
	if err != nil {
		return nil, err
	}
	path := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return nil, err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return nil, err
	}
	return NewModule(filepath.Clean(path)), nil
}
