package main

import (
	"github.com/jward/sapwood"
)

// CLIResult is the top-level JSON envelope for all commands.
type CLIResult struct {
	Command    string `json:"command"`
	Results    any    `json:"results"`
	TotalCount *int   `json:"total_count,omitempty"`
	Error      string `json:"error,omitempty"`
}

// CLISymbol is a JSON-friendly symbol representation.
type CLISymbol struct {
	FQName     string  `json:"fq_name"`
	Name       string  `json:"name"`
	Kind       string  `json:"kind"`
	Visibility string  `json:"visibility"`
	Receiver   *string `json:"receiver,omitempty"`
	File       string  `json:"file"`
}

type CLIClasspathEntry struct {
	Compiled string `json:"compiled"`
	Source   string `json:"source,omitempty"`
}

type CLIClasspath struct {
	Entries     []CLIClasspathEntry `json:"entries"`
	BuildScript []CLIClasspathEntry `json:"build_script"`
}

type CLIIndexResult struct {
	Files    int `json:"files"`
	Compiled int `json:"compiled"`
	Failed   int `json:"failed"`
}

type CLIDiagnostic struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Severity string `json:"severity"`
	Code     string `json:"code"`
	Message  string `json:"message"`
}

func symbolToCLI(s sapwood.Symbol) CLISymbol {
	return CLISymbol{
		FQName:     s.FQName,
		Name:       s.ShortName,
		Kind:       string(s.Kind),
		Visibility: string(s.Visibility),
		Receiver:   s.ReceiverType,
		File:       s.Owner,
	}
}

func classpathToCLI(set sapwood.ClasspathSet) []CLIClasspathEntry {
	out := make([]CLIClasspathEntry, len(set))
	for i, e := range set {
		out[i] = CLIClasspathEntry{Compiled: e.Compiled, Source: e.Source}
	}
	return out
}

func diagnosticToCLI(file string, d sapwood.Diagnostic) CLIDiagnostic {
	return CLIDiagnostic{
		File:     file,
		Line:     d.Line,
		Severity: string(d.Severity),
		Code:     d.Code,
		Message:  d.Message,
	}
}
