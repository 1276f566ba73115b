package analysis

import (
	"errors"
	"io/fs"
	"os"
	"sync"
)

// Module is the generated output of one compile. Release deletes it; calling
// Release more than once is harmless and returns the first result.
type Module struct {
	path string

	once sync.Once
	err  error
}

// NewModule returns a Module owning the file or directory at path. An empty
// path yields a Module whose Release does nothing.
func NewModule(path string) *Module {
	return &Module{path: path}
}

// Path returns the generated output path.
func (m *Module) Path() string {
	return m.path
}

// Release deletes the generated output.
func (m *Module) Release() error {
	m.once.Do(func() {
		if m.path == "" {
			return
		}
		if err := os.RemoveAll(m.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			m.err = err
		}
	})
	return m.err
}
