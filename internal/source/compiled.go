package source

import (
	"log/slog"
	"sync"

	"github.com/jward/sapwood/internal/analysis"
	"github.com/jward/sapwood/internal/store"
)

// Compiled is the result of compiling one file. It owns two cleanup handles:
// the file's symbol index entries and the engine's generated output. Each
// handle runs at most once no matter how often Release is called.
type Compiled struct {
	URI     string
	Version int
	Model   *analysis.Model
	Module  *analysis.Module
	Symbols []store.Symbol

	index  SymbolIndex
	logger *slog.Logger

	indexOnce  sync.Once
	outputOnce sync.Once
}

// Diagnostics returns the model's diagnostics.
func (c *Compiled) Diagnostics() []analysis.Diagnostic {
	if c.Model == nil {
		return nil
	}
	return c.Model.Diagnostics
}

// Release retracts the index entries and deletes generated output.
func (c *Compiled) Release() {
	c.ReleaseIndex()
	c.ReleaseOutput()
}

// ReleaseIndex retracts this file's symbol index entries.
func (c *Compiled) ReleaseIndex() {
	c.indexOnce.Do(func() {
		if c.index != nil {
			c.index.Remove(c.URI)
		}
	})
}

// ReleaseOutput deletes the engine's generated output.
func (c *Compiled) ReleaseOutput() {
	c.outputOnce.Do(func() {
		if c.Module == nil {
			return
		}
		if err := c.Module.Release(); err != nil {
			c.logger.Warn("source.output.release_failed", "uri", c.URI, "path", c.Module.Path(), "err", err)
		}
	})
}
