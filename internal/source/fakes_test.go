package source

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/jward/sapwood/internal/analysis"
	"github.com/jward/sapwood/internal/store"
)

// fakeEngine declares one function per whitespace-separated word. Text
// containing "!" fails to parse.
type fakeEngine struct {
	outDir string

	mu        sync.Mutex
	parses    map[string]int
	compiles  map[string]int
	depCounts []int

	// compileHook, when set, runs inside Compile before the result is built.
	compileHook func(uri string)
	failCompile map[string]bool
}

func newFakeEngine(outDir string) *fakeEngine {
	return &fakeEngine{
		outDir:      outDir,
		parses:      make(map[string]int),
		compiles:    make(map[string]int),
		failCompile: make(map[string]bool),
	}
}

func (e *fakeEngine) Parse(_ context.Context, uri, text string) (*analysis.AST, error) {
	e.mu.Lock()
	e.parses[uri]++
	e.mu.Unlock()
	if strings.Contains(text, "!") {
		return nil, fmt.Errorf("%w: %s", analysis.ErrParse, uri)
	}
	ast := &analysis.AST{URI: uri, Package: "p"}
	for _, w := range strings.Fields(text) {
		ast.Declarations = append(ast.Declarations, analysis.Declaration{
			Name:       w,
			FQName:     "p." + w,
			Kind:       analysis.DeclFunction,
			Visibility: store.VisibilityPublic,
		})
	}
	return ast, nil
}

func (e *fakeEngine) Compile(ctx context.Context, ast *analysis.AST, deps []*analysis.AST) (*analysis.Model, *analysis.Module, error) {
	e.mu.Lock()
	e.compiles[ast.URI]++
	e.depCounts = append(e.depCounts, len(deps))
	hook := e.compileHook
	fail := e.failCompile[ast.URI]
	e.mu.Unlock()

	if hook != nil {
		hook(ast.URI)
	}
	if fail {
		return nil, nil, fmt.Errorf("compile rejected %s", ast.URI)
	}
	var module *analysis.Module
	if e.outDir != "" {
		f, err := os.CreateTemp(e.outDir, "module-*")
		if err != nil {
			return nil, nil, err
		}
		f.Close()
		module = analysis.NewModule(f.Name())
	}
	return &analysis.Model{URI: ast.URI, AST: ast}, module, nil
}

func (e *fakeEngine) Classify(d analysis.Declaration) store.Symbol {
	return analysis.Classify(d)
}

func (e *fakeEngine) parseCount(uri string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.parses[uri]
}

func (e *fakeEngine) compileCount(uri string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.compiles[uri]
}

// fakeIndex records index writes per owner.
type fakeIndex struct {
	mu       sync.Mutex
	current  map[string][]string
	removes  map[string]int
	refreshs map[string]int
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{
		current:  make(map[string][]string),
		removes:  make(map[string]int),
		refreshs: make(map[string]int),
	}
}

func (ix *fakeIndex) Refresh(owner string, symbols []store.Symbol) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	var names []string
	for _, s := range symbols {
		names = append(names, s.FQName)
	}
	ix.current[owner] = names
	ix.refreshs[owner]++
}

func (ix *fakeIndex) Remove(owner string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	delete(ix.current, owner)
	ix.removes[owner]++
}

func (ix *fakeIndex) removeCount(owner string) int {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.removes[owner]
}

func (ix *fakeIndex) names(owner string) []string {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.current[owner]
}

// mapProvider serves file contents from memory.
type mapProvider struct {
	mu    sync.Mutex
	files map[string]string
}

func newMapProvider(files map[string]string) *mapProvider {
	if files == nil {
		files = make(map[string]string)
	}
	return &mapProvider{files: files}
}

func (p *mapProvider) Read(uri string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	text, ok := p.files[uri]
	return text, ok
}

func (p *mapProvider) set(uri, text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.files[uri] = text
}
