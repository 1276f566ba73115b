package source

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// ContentProvider supplies the text of files that are not open in the
// editor. Read must not have side effects.
type ContentProvider interface {
	Read(uri string) (string, bool)
}

// DiskProvider reads file:// URIs from the local filesystem.
type DiskProvider struct{}

// Read returns the file's text, or false if the URI is not a readable file.
func (DiskProvider) Read(uri string) (string, bool) {
	path, ok := PathFromURI(uri)
	if !ok {
		return "", false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	return string(data), true
}

// FileURI returns the file:// URI of an absolute or relative path.
func FileURI(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	return u.String()
}

// PathFromURI returns the local path of a file:// URI.
func PathFromURI(uri string) (string, bool) {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme != "file" {
		return "", false
	}
	p := u.Path
	// Windows drive paths come through as /C:/...
	if len(p) > 2 && p[0] == '/' && p[2] == ':' {
		p = strings.TrimPrefix(p, "/")
	}
	return filepath.FromSlash(p), true
}
