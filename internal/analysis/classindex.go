package analysis

import (
	"archive/zip"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// ClassIndex lists the class names available on the classpath. It is built
// once per engine; a classpath change builds a new engine.
type ClassIndex struct {
	classes  map[string]struct{}
	packages map[string]struct{}
}

// NewClassIndex reads class names from jars and class directories. Entries
// that cannot be read are logged and skipped.
func NewClassIndex(paths []string, logger *slog.Logger) *ClassIndex {
	if logger == nil {
		logger = slog.Default()
	}
	ci := &ClassIndex{
		classes:  make(map[string]struct{}),
		packages: make(map[string]struct{}),
	}
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			logger.Warn("analysis.classpath.missing", "path", p, "err", err)
			continue
		}
		if info.IsDir() {
			ci.addDir(p)
			continue
		}
		if !strings.HasSuffix(p, ".jar") {
			continue
		}
		if err := ci.addJar(p); err != nil {
			logger.Warn("analysis.classpath.unreadable", "path", p, "err", err)
		}
	}
	return ci
}

func (ci *ClassIndex) addJar(path string) error {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return err
	}
	defer zr.Close()
	for _, f := range zr.File {
		ci.addEntry(f.Name)
	}
	return nil
}

func (ci *ClassIndex) addDir(root string) {
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		ci.addEntry(filepath.ToSlash(rel))
		return nil
	})
}

// addEntry records a "com/example/Foo.class" style entry. Nested classes
// ("Outer$Inner.class") are recorded under their dotted source name.
func (ci *ClassIndex) addEntry(name string) {
	if !strings.HasSuffix(name, ".class") || strings.HasPrefix(name, "META-INF/") {
		return
	}
	name = strings.TrimSuffix(name, ".class")
	if strings.HasSuffix(name, "module-info") || strings.HasSuffix(name, "package-info") {
		return
	}
	fq := strings.ReplaceAll(strings.ReplaceAll(name, "/", "."), "$", ".")
	ci.classes[fq] = struct{}{}
	if i := strings.LastIndex(name, "/"); i > 0 {
		ci.packages[strings.ReplaceAll(name[:i], "/", ".")] = struct{}{}
	}
}

// HasClass reports whether fq names a class on the classpath.
func (ci *ClassIndex) HasClass(fq string) bool {
	_, ok := ci.classes[fq]
	return ok
}

// HasPackage reports whether any class on the classpath lives in pkg.
func (ci *ClassIndex) HasPackage(pkg string) bool {
	_, ok := ci.packages[pkg]
	return ok
}

// Len returns the number of indexed classes.
func (ci *ClassIndex) Len() int {
	return len(ci.classes)
}
