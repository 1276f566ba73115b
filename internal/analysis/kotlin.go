package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/kotlin"

	"github.com/jward/sapwood/internal/store"
)

// KotlinEngine implements Engine for Kotlin sources using tree-sitter.
type KotlinEngine struct {
	classes   *ClassIndex
	outputDir string
	logger    *slog.Logger
}

// Option configures a KotlinEngine.
type Option func(*options)

type options struct {
	classpath []string
	outputDir string
	logger    *slog.Logger
}

// WithClasspath sets the jars and class directories imports resolve against.
func WithClasspath(paths []string) Option {
	return func(o *options) {
		o.classpath = paths
	}
}

// WithOutputDir enables generated per-file summaries under dir.
func WithOutputDir(dir string) Option {
	return func(o *options) {
		o.outputDir = dir
	}
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// NewKotlinEngine builds an engine. The class index is read eagerly, so a
// new engine is the unit of classpath change.
func NewKotlinEngine(opts ...Option) *KotlinEngine {
	o := &options{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}
	return &KotlinEngine{
		classes:   NewClassIndex(o.classpath, o.logger),
		outputDir: o.outputDir,
		logger:    o.logger,
	}
}

// Classes returns the engine's class index.
func (e *KotlinEngine) Classes() *ClassIndex {
	return e.classes
}

// Parse parses text and extracts package, imports and declarations.
func (e *KotlinEngine) Parse(ctx context.Context, uri, text string) (*AST, error) {
	src := []byte(text)
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(kotlin.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", uri, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, &SyntaxError{URI: uri, Line: firstErrorLine(root)}
	}

	x := &extractor{src: src, ast: &AST{URI: uri}}
	x.file(root)
	return x.ast, nil
}

func firstErrorLine(n *sitter.Node) int {
	if n.Type() == "ERROR" || n.IsMissing() {
		return int(n.StartPoint().Row) + 1
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c.HasError() {
			return firstErrorLine(c)
		}
	}
	return int(n.StartPoint().Row) + 1
}

type extractor struct {
	src []byte
	ast *AST
}

func (x *extractor) text(n *sitter.Node) string {
	return n.Content(x.src)
}

func (x *extractor) file(root *sitter.Node) {
	// Package and imports come first so declarations can qualify names.
	for i := 0; i < int(root.NamedChildCount()); i++ {
		c := root.NamedChild(i)
		switch c.Type() {
		case "package_header":
			x.ast.Package = strings.TrimSpace(strings.TrimPrefix(x.text(c), "package"))
			x.ast.Package = strings.TrimSuffix(x.ast.Package, ";")
		case "import_list":
			for j := 0; j < int(c.NamedChildCount()); j++ {
				if h := c.NamedChild(j); h.Type() == "import_header" {
					x.importHeader(h)
				}
			}
		case "import_header":
			x.importHeader(c)
		}
	}
	for i := 0; i < int(root.NamedChildCount()); i++ {
		x.declaration(root.NamedChild(i), "")
	}
}

func (x *extractor) importHeader(n *sitter.Node) {
	body := strings.TrimSpace(strings.TrimPrefix(x.text(n), "import"))
	body = strings.TrimSpace(strings.TrimSuffix(body, ";"))
	imp := Import{Line: int(n.StartPoint().Row) + 1}
	if path, alias, ok := strings.Cut(body, " as "); ok {
		body = strings.TrimSpace(path)
		imp.Alias = strings.TrimSpace(alias)
	}
	if strings.HasSuffix(body, ".*") {
		imp.Wildcard = true
		body = strings.TrimSuffix(body, ".*")
	}
	imp.Path = strings.ReplaceAll(body, " ", "")
	x.ast.Imports = append(x.ast.Imports, imp)
}

// qualify returns the fully qualified name of name declared in container.
func (x *extractor) qualify(container, name string) string {
	switch {
	case container != "":
		return container + "." + name
	case x.ast.Package != "":
		return x.ast.Package + "." + name
	default:
		return name
	}
}

func (x *extractor) add(n *sitter.Node, container, name string, kind DeclKind, vis store.Visibility, receiver string) string {
	fq := x.qualify(container, name)
	if kind == DeclConstructor {
		// A constructor is imported by its class name.
		fq = container
	}
	x.ast.Declarations = append(x.ast.Declarations, Declaration{
		Name:       name,
		FQName:     fq,
		Kind:       kind,
		Visibility: vis,
		Receiver:   receiver,
		Container:  container,
		Line:       int(n.StartPoint().Row) + 1,
	})
	return fq
}

func (x *extractor) declaration(n *sitter.Node, container string) {
	switch n.Type() {
	case "class_declaration":
		x.classDeclaration(n, container)
	case "object_declaration":
		name := x.childText(n, "type_identifier")
		if name == "" {
			return
		}
		fq := x.add(n, container, name, DeclObject, x.visibility(n), "")
		x.body(n, fq)
	case "companion_object":
		// Companion members are reachable through the outer class name.
		x.body(n, container)
	case "function_declaration":
		name, receiver := x.callable(n, "simple_identifier")
		if name == "" {
			return
		}
		x.add(n, container, name, DeclFunction, x.visibility(n), receiver)
	case "property_declaration":
		name, receiver := x.callable(n, "variable_declaration")
		if name == "" {
			return
		}
		x.add(n, container, name, DeclProperty, x.visibility(n), receiver)
	case "secondary_constructor":
		if container != "" {
			x.add(n, container, lastSegment(container), DeclConstructor, x.visibility(n), "")
		}
	case "type_alias":
		if name := x.childText(n, "type_identifier"); name != "" {
			x.add(n, container, name, DeclTypeAlias, x.visibility(n), "")
		}
	}
}

func (x *extractor) classDeclaration(n *sitter.Node, container string) {
	name := x.childText(n, "type_identifier")
	if name == "" {
		return
	}
	kind := DeclClass
	for i := 0; i < int(n.ChildCount()); i++ {
		if n.Child(i).Type() == "interface" {
			kind = DeclInterface
		}
	}
	if kind == DeclClass && x.hasModifier(n, "class_modifier", "enum") {
		kind = DeclEnum
	}
	fq := x.add(n, container, name, kind, x.visibility(n), "")

	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch c.Type() {
		case "primary_constructor":
			x.add(c, fq, name, DeclConstructor, x.visibility(c), "")
			x.constructorProperties(c, fq)
		case "class_body":
			x.members(c, fq)
		case "enum_class_body":
			for j := 0; j < int(c.NamedChildCount()); j++ {
				m := c.NamedChild(j)
				if m.Type() == "enum_entry" {
					if entry := x.childText(m, "simple_identifier"); entry != "" {
						x.add(m, fq, entry, DeclEnumEntry, store.VisibilityPublic, "")
					}
					continue
				}
				x.declaration(m, fq)
			}
		}
	}
}

// constructorProperties records "val"/"var" primary constructor parameters.
func (x *extractor) constructorProperties(n *sitter.Node, container string) {
	var walk func(*sitter.Node)
	walk = func(p *sitter.Node) {
		for i := 0; i < int(p.NamedChildCount()); i++ {
			c := p.NamedChild(i)
			if c.Type() != "class_parameter" {
				walk(c)
				continue
			}
			binding := false
			for j := 0; j < int(c.ChildCount()); j++ {
				if t := c.Child(j).Type(); t == "val" || t == "var" {
					binding = true
				}
			}
			if !binding {
				continue
			}
			if name := x.childText(c, "simple_identifier"); name != "" {
				x.add(c, container, name, DeclProperty, x.visibility(c), "")
			}
		}
	}
	walk(n)
}

func (x *extractor) body(n *sitter.Node, container string) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if c := n.NamedChild(i); c.Type() == "class_body" {
			x.members(c, container)
		}
	}
}

func (x *extractor) members(body *sitter.Node, container string) {
	for i := 0; i < int(body.NamedChildCount()); i++ {
		x.declaration(body.NamedChild(i), container)
	}
}

// callable returns the name and extension receiver of a function or
// property. The receiver is the type written before the name.
func (x *extractor) callable(n *sitter.Node, nameType string) (name, receiver string) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch c.Type() {
		case "modifiers", "type_parameters":
			continue
		case "user_type", "nullable_type", "parenthesized_type", "function_type":
			if receiver == "" {
				receiver = x.qualifyType(x.text(c))
			}
			continue
		case nameType:
			if nameType == "variable_declaration" {
				name = x.childText(c, "simple_identifier")
			} else {
				name = x.text(c)
			}
			return name, receiver
		case "multi_variable_declaration":
			return "", ""
		}
	}
	return "", ""
}

// defaultTypes maps implicitly imported type names to their packages.
var defaultTypes = map[string]string{
	"Any": "kotlin", "Unit": "kotlin", "Nothing": "kotlin",
	"String": "kotlin", "CharSequence": "kotlin", "Char": "kotlin",
	"Boolean": "kotlin", "Byte": "kotlin", "Short": "kotlin",
	"Int": "kotlin", "Long": "kotlin", "Float": "kotlin", "Double": "kotlin",
	"Number": "kotlin", "Array": "kotlin", "Comparable": "kotlin",
	"Throwable": "kotlin",
	"Iterable": "kotlin.collections", "Collection": "kotlin.collections",
	"List": "kotlin.collections", "MutableList": "kotlin.collections",
	"Set": "kotlin.collections", "MutableSet": "kotlin.collections",
	"Map": "kotlin.collections", "MutableMap": "kotlin.collections",
	"Sequence": "kotlin.sequences",
}

// qualifyType resolves a receiver type as written to a qualified name using
// the file's imports and Kotlin's default imports. Type arguments and
// nullability are dropped.
func (x *extractor) qualifyType(t string) string {
	t = strings.TrimSpace(t)
	t = strings.TrimSuffix(t, "?")
	t = strings.TrimSuffix(strings.TrimPrefix(t, "("), ")")
	t = strings.TrimSuffix(t, "?")
	if i := strings.Index(t, "<"); i >= 0 {
		t = t[:i]
	}
	t = strings.TrimSpace(t)
	if strings.Contains(t, ".") || t == "" {
		return t
	}
	for _, imp := range x.ast.Imports {
		if imp.Wildcard {
			continue
		}
		local := imp.Alias
		if local == "" {
			local = lastSegment(imp.Path)
		}
		if local == t {
			return imp.Path
		}
	}
	if pkg, ok := defaultTypes[t]; ok {
		return pkg + "." + t
	}
	if x.ast.Package != "" {
		return x.ast.Package + "." + t
	}
	return t
}

func (x *extractor) childText(n *sitter.Node, typ string) string {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if c := n.NamedChild(i); c.Type() == typ {
			return x.text(c)
		}
	}
	return ""
}

func (x *extractor) modifiers(n *sitter.Node) *sitter.Node {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if c := n.NamedChild(i); c.Type() == "modifiers" {
			return c
		}
	}
	return nil
}

func (x *extractor) hasModifier(n *sitter.Node, typ, value string) bool {
	mods := x.modifiers(n)
	if mods == nil {
		return false
	}
	for i := 0; i < int(mods.NamedChildCount()); i++ {
		c := mods.NamedChild(i)
		if c.Type() == typ && strings.TrimSpace(x.text(c)) == value {
			return true
		}
	}
	return false
}

func (x *extractor) visibility(n *sitter.Node) store.Visibility {
	mods := x.modifiers(n)
	if mods == nil {
		return store.VisibilityPublic
	}
	for i := 0; i < int(mods.NamedChildCount()); i++ {
		c := mods.NamedChild(i)
		if c.Type() != "visibility_modifier" {
			continue
		}
		switch strings.TrimSpace(x.text(c)) {
		case "private":
			return store.VisibilityPrivate
		case "internal":
			return store.VisibilityInternal
		case "protected":
			return store.VisibilityProtected
		}
	}
	return store.VisibilityPublic
}

func lastSegment(fq string) string {
	if i := strings.LastIndex(fq, "."); i >= 0 {
		return fq[i+1:]
	}
	return fq
}

// Classify maps a declaration to its index symbol. Properties are fields
// inside a class and variables at top level.
func (e *KotlinEngine) Classify(d Declaration) store.Symbol {
	return Classify(d)
}

// Classify is the engine-independent mapping used by KotlinEngine.
func Classify(d Declaration) store.Symbol {
	var kind store.SymbolKind
	switch d.Kind {
	case DeclClass, DeclTypeAlias:
		kind = store.KindClass
	case DeclInterface:
		kind = store.KindInterface
	case DeclObject:
		kind = store.KindModule
	case DeclEnum:
		kind = store.KindEnum
	case DeclEnumEntry:
		kind = store.KindEnumMember
	case DeclConstructor:
		kind = store.KindConstructor
	case DeclProperty:
		kind = store.KindVariable
		if d.Container != "" {
			kind = store.KindField
		}
	default:
		kind = store.KindFunction
	}
	sym := store.Symbol{
		FQName:     d.FQName,
		ShortName:  d.Name,
		Kind:       kind,
		Visibility: d.Visibility,
	}
	if d.Receiver != "" {
		r := d.Receiver
		sym.ReceiverType = &r
	}
	return sym
}
