package store

// SymbolKind classifies a declared symbol.
type SymbolKind string

const (
	KindClass       SymbolKind = "class"
	KindInterface   SymbolKind = "interface"
	KindFunction    SymbolKind = "function"
	KindVariable    SymbolKind = "variable"
	KindModule      SymbolKind = "module"
	KindEnum        SymbolKind = "enum"
	KindEnumMember  SymbolKind = "enum_member"
	KindConstructor SymbolKind = "constructor"
	KindField       SymbolKind = "field"
)

// Visibility is the declared access level of a symbol.
type Visibility string

const (
	VisibilityPrivateToThis Visibility = "private_to_this"
	VisibilityPrivate       Visibility = "private"
	VisibilityInternal      Visibility = "internal"
	VisibilityProtected     Visibility = "protected"
	VisibilityPublic        Visibility = "public"
)

// Symbol is one indexed declaration. It is uniquely addressed by
// (FQName, ReceiverType); Owner is the URI of the file that declared it.
type Symbol struct {
	ID           int64
	FQName       string
	ShortName    string
	Kind         SymbolKind
	Visibility   Visibility
	ReceiverType *string
	Owner        string
}

// ClasspathEntry is one persisted classpath artifact.
type ClasspathEntry struct {
	CompiledPath string
	SourcePath   *string
}

// Classpath kinds stored in classpath_entries.kind.
const (
	ClasspathPrimary     = "primary"
	ClasspathBuildScript = "build_script"
)
