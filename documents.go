package sapwood

import (
	"context"
	"errors"
	"fmt"

	"github.com/jward/sapwood/internal/analysis"
	"github.com/jward/sapwood/internal/source"
	"github.com/jward/sapwood/internal/workspace"
)

// OpenDocument tracks an editor buffer at version.
func (s *Session) OpenDocument(uri string, version int, text string) {
	s.repo.Open(uri, version, text)
}

// EditDocument applies incremental changes to an open buffer. Stale edits
// (version not newer than the current one) are ignored; the repository logs
// them.
func (s *Session) EditDocument(uri string, version int, changes ...source.Change) error {
	err := s.repo.Edit(uri, version, changes...)
	if errors.Is(err, source.ErrStaleEdit) {
		return nil
	}
	return err
}

// SaveDocument marks a buffer as backed by a file.
func (s *Session) SaveDocument(uri string) {
	s.repo.Save(uri)
}

// CloseDocument stops editor ownership of a buffer.
func (s *Session) CloseDocument(uri string) {
	s.repo.Close(uri)
}

// RemoveDocument stops tracking a file deleted from the workspace.
func (s *Session) RemoveDocument(uri string) {
	s.repo.Remove(uri)
}

// Compile brings the given files to the compiled stage.
func (s *Session) Compile(ctx context.Context, uris ...string) (map[string]*source.Compiled, error) {
	return s.repo.EnsureCompiled(ctx, uris)
}

// Diagnostics compiles uri and returns its diagnostics. A file that fails
// to parse reports its syntax error; a file that fails to compile for any
// other reason reports nothing and the failure is returned.
func (s *Session) Diagnostics(ctx context.Context, uri string) ([]analysis.Diagnostic, error) {
	compiled, err := s.repo.EnsureCompiled(ctx, []string{uri})
	if err != nil {
		return nil, err
	}
	if c, ok := compiled[uri]; ok {
		return c.Diagnostics(), nil
	}
	failure := s.repo.Failure(uri)
	var syntax *analysis.SyntaxError
	if errors.As(failure, &syntax) {
		return []analysis.Diagnostic{syntax.Diagnostic()}, nil
	}
	if failure != nil {
		return nil, failure
	}
	return nil, fmt.Errorf("%w: %s", source.ErrNotTracked, uri)
}

// TrackWorkspace reads every source file of the workspace into the
// repository, so compilations bind against all of them. It returns their
// URIs.
func (s *Session) TrackWorkspace() ([]string, error) {
	files, err := workspace.SourceFiles(s.root, workspace.Options{Exclude: s.cfg.Exclude})
	if err != nil {
		return nil, fmt.Errorf("sapwood: list sources: %w", err)
	}
	uris := make([]string, len(files))
	for i, f := range files {
		uris[i] = source.FileURI(f)
		if err := s.repo.Read(uris[i]); err != nil {
			s.logger.Warn("source.read.failed", "uri", uris[i], "err", err)
		}
	}
	return uris, nil
}

// IndexResult summarizes an IndexWorkspace run.
type IndexResult struct {
	Files    int
	Compiled int
	Failed   int
	Pruned   bool
}

// IndexWorkspace tracks every source file in the workspace and compiles all
// of them, so their declarations reach the symbol index. Index entries of
// files no longer in the workspace, or that fail to compile, are removed.
func (s *Session) IndexWorkspace(ctx context.Context) (IndexResult, error) {
	uris, err := s.TrackWorkspace()
	if err != nil {
		return IndexResult{}, err
	}

	compiled, err := s.repo.EnsureCompiled(ctx, uris)
	if err != nil {
		return IndexResult{}, err
	}
	res := IndexResult{Files: len(uris), Compiled: len(compiled), Failed: len(uris) - len(compiled)}

	if s.index != nil {
		// Entries left by an earlier session for a file that no longer
		// compiles have no artifact to retract them.
		for _, uri := range uris {
			if _, ok := compiled[uri]; !ok && s.repo.Failure(uri) != nil {
				s.index.Remove(uri)
			}
		}
		if err := s.index.Prune(s.repo.URIs()); err != nil {
			return res, fmt.Errorf("sapwood: %w", err)
		}
		res.Pruned = true
	}
	s.logger.Info("index.workspace", "files", res.Files, "compiled", res.Compiled, "failed", res.Failed)
	return res, nil
}

// Symbols queries the symbol index by short-name prefix, or exact name when
// exact is set. receiver restricts results to extensions of that type; nil
// selects non-extension symbols. limit 0 means the index default.
func (s *Session) Symbols(prefix string, receiver *string, limit int, exact bool) ([]Symbol, error) {
	if s.index == nil {
		return nil, nil
	}
	return s.index.Query(prefix, receiver, limit, exact)
}
