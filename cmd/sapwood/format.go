package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// formatSymbolsText formats CLISymbol results as aligned columns.
func formatSymbolsText(w io.Writer, syms []CLISymbol) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tKIND\tRECEIVER\tFQNAME\tFILE")
	for _, s := range syms {
		recv := "-"
		if s.Receiver != nil {
			recv = *s.Receiver
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", s.Name, s.Kind, recv, s.FQName, s.File)
	}
	tw.Flush()
}

// formatClasspathText prints one compiled path per line, with its source
// archive indented below when known.
func formatClasspathText(w io.Writer, cp CLIClasspath) {
	for _, e := range cp.Entries {
		fmt.Fprintln(w, e.Compiled)
		if e.Source != "" {
			fmt.Fprintf(w, "  sources: %s\n", e.Source)
		}
	}
	if len(cp.BuildScript) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Build script:")
		for _, e := range cp.BuildScript {
			fmt.Fprintf(w, "  %s\n", e.Compiled)
		}
	}
}

// formatDiagnosticsText formats diagnostics as "file:line: severity: message [code]".
func formatDiagnosticsText(w io.Writer, diags []CLIDiagnostic) {
	for _, d := range diags {
		fmt.Fprintf(w, "%s:%d: %s: %s [%s]\n", d.File, d.Line, d.Severity, d.Message, d.Code)
	}
}

func formatIndexText(w io.Writer, r CLIIndexResult) {
	fmt.Fprintf(w, "Files: %d\nCompiled: %d\nFailed: %d\n", r.Files, r.Compiled, r.Failed)
}

// outputResult writes result to the command's stdout in the selected format.
func outputResult(cmd *cobra.Command, result CLIResult) error {
	w := cmd.OutOrStdout()
	if flagFormat == "text" {
		return outputResultText(w, result)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputError writes an error in the selected format and returns it so RunE
// exits non-zero.
func outputError(cmd *cobra.Command, command string, err error) error {
	errorHandled = true
	if flagFormat == "text" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %s\n", err)
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	enc.Encode(CLIResult{Command: command, Results: nil, Error: err.Error()})
	return err
}

// outputResultText dispatches to the appropriate text formatter based on the
// result type.
func outputResultText(w io.Writer, result CLIResult) error {
	switch v := result.Results.(type) {
	case []CLISymbol:
		formatSymbolsText(w, v)
	case CLIClasspath:
		formatClasspathText(w, v)
	case []CLIDiagnostic:
		formatDiagnosticsText(w, v)
	case CLIIndexResult:
		formatIndexText(w, v)
	case nil:
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}
	return nil
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}
