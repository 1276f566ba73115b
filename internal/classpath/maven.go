package classpath

import (
	"bufio"
	"context"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Artifact is one "group:artifact[:packaging[:classifier]]:version[:scope]"
// line of Maven's dependency:list output.
type Artifact struct {
	Group      string
	Artifact   string
	Packaging  string
	Classifier string
	Version    string
	Scope      string
}

// ParseArtifact parses one dependency:list line. Decorations after the
// coordinates, such as "-- module foo", are ignored.
func ParseArtifact(line string) (Artifact, bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Artifact{}, false
	}
	parts := strings.Split(fields[0], ":")
	var a Artifact
	switch len(parts) {
	case 3:
		a = Artifact{Group: parts[0], Artifact: parts[1], Version: parts[2]}
	case 4:
		a = Artifact{Group: parts[0], Artifact: parts[1], Packaging: parts[2], Version: parts[3]}
	case 5:
		a = Artifact{Group: parts[0], Artifact: parts[1], Packaging: parts[2], Version: parts[3], Scope: parts[4]}
	case 6:
		a = Artifact{Group: parts[0], Artifact: parts[1], Packaging: parts[2], Classifier: parts[3], Version: parts[4], Scope: parts[5]}
	default:
		return Artifact{}, false
	}
	if a.Group == "" || a.Artifact == "" || a.Version == "" {
		return Artifact{}, false
	}
	if a.Packaging == "" {
		a.Packaging = "jar"
	}
	return a, true
}

// extension maps a packaging type to the artifact's file extension. The
// empty string means the packaging has no classpath artifact.
func (a Artifact) extension() string {
	switch a.Packaging {
	case "pom":
		return ""
	case "jar", "bundle", "maven-plugin", "test-jar", "ejb", "eclipse-plugin":
		return "jar"
	default:
		return a.Packaging
	}
}

// Path returns the artifact's location in a Maven repository laid out as
// group/path/artifact/version/artifact-version[-classifier].ext.
func (a Artifact) Path(repo string) string {
	ext := a.extension()
	if ext == "" {
		return ""
	}
	name := a.Artifact + "-" + a.Version
	if a.Classifier != "" {
		name += "-" + a.Classifier
	} else if a.Packaging == "test-jar" {
		name += "-tests"
	}
	dir := filepath.Join(repo, filepath.FromSlash(strings.ReplaceAll(a.Group, ".", "/")), a.Artifact, a.Version)
	return filepath.Join(dir, name+"."+ext)
}

// SourcePath returns where the artifact's sources jar would be.
func (a Artifact) SourcePath(repo string) string {
	dir := filepath.Join(repo, filepath.FromSlash(strings.ReplaceAll(a.Group, ".", "/")), a.Artifact, a.Version)
	return filepath.Join(dir, a.Artifact+"-"+a.Version+"-sources.jar")
}

// Maven resolves the dependencies of the Maven project in dir with
// dependency:list.
func Maven(dir string, opts ...Option) Resolver {
	o := newOptions(opts)
	return newLeaf("maven:"+dir, o.logger, func(ctx context.Context) (result, error) {
		return resolveMaven(ctx, dir, o)
	})
}

func resolveMaven(ctx context.Context, dir string, o *options) (result, error) {
	exe, err := findExecutable(dir, platformName("mvnw", "mvnw.cmd"), "mvn")
	if err != nil {
		return result{}, err
	}

	f, err := os.CreateTemp("", "sapwood-mvn-*.txt")
	if err != nil {
		return result{}, fmt.Errorf("maven: output file: %w", err)
	}
	outPath := f.Name()
	f.Close()
	defer os.Remove(outPath)

	if _, err := o.runner().run(ctx, dir, exe,
		"-B", "-q",
		"-f", filepath.Join(dir, "pom.xml"),
		"dependency:list",
		"-DincludeScope=test",
		"-DoutputFile="+outPath,
		"-DappendOutput=true",
	); err != nil {
		return result{}, err
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		return result{}, fmt.Errorf("maven: reading %s: %w", outPath, err)
	}
	repo := o.mavenRepository
	if repo == "" {
		repo = LocalMavenRepository(o.home)
	}
	return result{primary: parseMavenList(string(data), repo)}, nil
}

// parseMavenList turns dependency:list output into entries that exist in
// repo, each paired with its sources jar when one is present.
func parseMavenList(out, repo string) Set {
	var entries []Entry
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		a, ok := ParseArtifact(sc.Text())
		if !ok {
			continue
		}
		p := a.Path(repo)
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			continue
		}
		e := Entry{Compiled: p}
		if src := a.SourcePath(repo); src != p {
			if _, err := os.Stat(src); err == nil {
				e.Source = src
			}
		}
		entries = append(entries, e)
	}
	return NewSet(entries...)
}

type mavenSettings struct {
	LocalRepository string `xml:"localRepository"`
}

// LocalMavenRepository returns the local repository configured in
// home/.m2/settings.xml, defaulting to home/.m2/repository.
func LocalMavenRepository(home string) string {
	def := filepath.Join(home, ".m2", "repository")
	data, err := os.ReadFile(filepath.Join(home, ".m2", "settings.xml"))
	if err != nil {
		return def
	}
	var s mavenSettings
	if err := xml.Unmarshal(data, &s); err != nil {
		return def
	}
	repo := strings.TrimSpace(s.LocalRepository)
	if repo == "" {
		return def
	}
	repo = strings.ReplaceAll(repo, "${user.home}", home)
	if strings.HasPrefix(repo, "~/") {
		repo = filepath.Join(home, repo[2:])
	}
	return repo
}
