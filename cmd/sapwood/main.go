package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/sapwood"
	"github.com/jward/sapwood/internal/config"
	"github.com/jward/sapwood/internal/source"
)

var (
	flagDB       string
	flagFormat   string
	flagLogLevel string
)

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "sapwood",
	Short:         "Kotlin workspace state for editor backends",
	Long:          "Sapwood tracks the sources of a Kotlin workspace, indexes their declarations into SQLite and resolves the build classpath.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		errorHandled = false
		return validateFormat(flagFormat)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "index database path (default: .sapwood/index.db relative to workspace root)")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "json", "output format: json|text")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug|info|warn|error (default: from config)")

	rootCmd.AddCommand(classpathCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(symbolsCmd)
	rootCmd.AddCommand(diagnosticsCmd)
}

// openSession opens a session for the workspace containing dir, applying
// the global flags over the workspace configuration.
func openSession(ctx context.Context, dir string) (*sapwood.Session, error) {
	root := findRepoRoot(dir)
	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}
	if flagDB != "" {
		cfg.Index.DBPath = flagDB
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Level()}))
	return sapwood.Open(ctx, root, sapwood.WithConfig(cfg), sapwood.WithLogger(logger))
}

// =============================================================================
// classpath
// =============================================================================

var classpathCmd = &cobra.Command{
	Use:   "classpath [path]",
	Short: "Resolve the external classpath of a workspace",
	Long:  "Runs the classpath resolution chain (override script, Gradle, Maven, local caches) and prints the resulting artifacts.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runClasspath,
}

func runClasspath(cmd *cobra.Command, args []string) error {
	dir, err := resolveTargetDir(args)
	if err != nil {
		return outputError(cmd, "classpath", err)
	}
	ctx := cmd.Context()
	s, err := openSession(ctx, dir)
	if err != nil {
		return outputError(cmd, "classpath", err)
	}
	defer s.Close()

	start := time.Now()
	set, err := s.ResolveClasspath(ctx)
	if err != nil {
		return outputError(cmd, "classpath", err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Resolved %d entries in %s\n", len(set), time.Since(start).Round(time.Millisecond))

	return outputResult(cmd, CLIResult{
		Command: "classpath",
		Results: CLIClasspath{
			Entries:     classpathToCLI(set),
			BuildScript: classpathToCLI(s.BuildScriptClasspath()),
		},
	})
}

// =============================================================================
// index
// =============================================================================

var flagResolve bool

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Index the declarations of a workspace",
	Long:  "Compiles every Kotlin source of the workspace and publishes its declarations to the SQLite index. Entries of deleted files are pruned.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&flagResolve, "classpath", true, "resolve the classpath before compiling")
}

func runIndex(cmd *cobra.Command, args []string) error {
	start := time.Now()
	dir, err := resolveTargetDir(args)
	if err != nil {
		return outputError(cmd, "index", err)
	}
	ctx := cmd.Context()
	s, err := openSession(ctx, dir)
	if err != nil {
		return outputError(cmd, "index", err)
	}
	defer s.Close()

	if flagResolve {
		if _, err := s.ResolveClasspath(ctx); err != nil {
			return outputError(cmd, "index", err)
		}
	}
	res, err := s.IndexWorkspace(ctx)
	if err != nil {
		return outputError(cmd, "index", err)
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Indexed %s in %s\n", s.Root(), time.Since(start).Round(time.Millisecond))
	fmt.Fprintf(cmd.ErrOrStderr(), "Database: %s\n", s.Config().DBPath(s.Root()))
	return outputResult(cmd, CLIResult{
		Command: "index",
		Results: CLIIndexResult{
			Files:    res.Files,
			Compiled: res.Compiled,
			Failed:   res.Failed,
		},
	})
}

// =============================================================================
// symbols
// =============================================================================

var (
	flagPath     string
	flagReceiver string
	flagExact    bool
	flagLimit    int
)

var symbolsCmd = &cobra.Command{
	Use:   "symbols <prefix>",
	Short: "Query indexed declarations by name",
	Long:  "Looks up declarations in the index by short-name prefix. Run 'sapwood index' first.",
	Args:  cobra.ExactArgs(1),
	RunE:  runSymbols,
}

func init() {
	symbolsCmd.Flags().StringVar(&flagPath, "path", ".", "workspace directory")
	symbolsCmd.Flags().StringVar(&flagReceiver, "receiver", "", "only extensions of this fully qualified type")
	symbolsCmd.Flags().BoolVar(&flagExact, "exact", false, "match the whole short name")
	symbolsCmd.Flags().IntVar(&flagLimit, "limit", 0, "maximum results (0: index default)")
}

func runSymbols(cmd *cobra.Command, args []string) error {
	dir, err := resolveTargetDir([]string{flagPath})
	if err != nil {
		return outputError(cmd, "symbols", err)
	}
	if flagLimit < 0 {
		return outputError(cmd, "symbols", fmt.Errorf("invalid --limit %d: must be non-negative", flagLimit))
	}
	s, err := openSession(cmd.Context(), dir)
	if err != nil {
		return outputError(cmd, "symbols", err)
	}
	defer s.Close()

	var receiver *string
	if flagReceiver != "" {
		receiver = &flagReceiver
	}
	syms, err := s.Symbols(args[0], receiver, flagLimit, flagExact)
	if err != nil {
		return outputError(cmd, "symbols", err)
	}
	out := make([]CLISymbol, len(syms))
	for i, sym := range syms {
		out[i] = symbolToCLI(sym)
	}
	total := len(out)
	return outputResult(cmd, CLIResult{Command: "symbols", Results: out, TotalCount: &total})
}

// =============================================================================
// diagnostics
// =============================================================================

var flagDiagResolve bool

var diagnosticsCmd = &cobra.Command{
	Use:   "diagnostics <file>",
	Short: "Compile a Kotlin file and report its diagnostics",
	Args:  cobra.ExactArgs(1),
	RunE:  runDiagnostics,
}

func runDiagnostics(cmd *cobra.Command, args []string) error {
	path, err := filepath.Abs(args[0])
	if err != nil {
		return outputError(cmd, "diagnostics", err)
	}
	if _, err := os.Stat(path); err != nil {
		return outputError(cmd, "diagnostics", fmt.Errorf("file not found: %s", path))
	}
	ctx := cmd.Context()
	s, err := openSession(ctx, filepath.Dir(path))
	if err != nil {
		return outputError(cmd, "diagnostics", err)
	}
	defer s.Close()

	if flagDiagResolve {
		if _, err := s.ResolveClasspath(ctx); err != nil {
			return outputError(cmd, "diagnostics", err)
		}
	}
	if _, err := s.TrackWorkspace(); err != nil {
		return outputError(cmd, "diagnostics", err)
	}
	diags, err := s.Diagnostics(ctx, source.FileURI(path))
	if err != nil {
		return outputError(cmd, "diagnostics", err)
	}
	out := make([]CLIDiagnostic, len(diags))
	for i, d := range diags {
		out[i] = diagnosticToCLI(path, d)
	}
	return outputResult(cmd, CLIResult{Command: "diagnostics", Results: out})
}

func init() {
	diagnosticsCmd.Flags().BoolVar(&flagDiagResolve, "classpath", true, "resolve the classpath before compiling")
}

// =============================================================================
// paths
// =============================================================================

// resolveTargetDir returns the absolute path of the directory to operate on.
func resolveTargetDir(args []string) (string, error) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving path %q: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("directory not found: %s", abs)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", abs)
	}
	return abs, nil
}

// findRepoRoot walks up from startDir looking for a .sapwood or .git
// directory. Returns startDir if neither is found.
func findRepoRoot(startDir string) string {
	dir := startDir
	for {
		for _, marker := range []string{config.Dir, ".git"} {
			if info, err := os.Stat(filepath.Join(dir, marker)); err == nil && info.IsDir() {
				return dir
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return startDir
		}
		dir = parent
	}
}
