package classpath

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArtifact(t *testing.T) {
	t.Parallel()
	tests := []struct {
		line string
		want Artifact
		ok   bool
	}{
		{"g:a:1.0", Artifact{Group: "g", Artifact: "a", Packaging: "jar", Version: "1.0"}, true},
		{"g:a:aar:1.0", Artifact{Group: "g", Artifact: "a", Packaging: "aar", Version: "1.0"}, true},
		{"   g:a:jar:1.0:compile", Artifact{Group: "g", Artifact: "a", Packaging: "jar", Version: "1.0", Scope: "compile"}, true},
		{"g:a:jar:jdk8:1.0:test -- module a", Artifact{Group: "g", Artifact: "a", Packaging: "jar", Classifier: "jdk8", Version: "1.0", Scope: "test"}, true},
		{"The following files have been resolved:", Artifact{}, false},
		{"", Artifact{}, false},
		{"g:a", Artifact{}, false},
		{"a:b:c:d:e:f:g", Artifact{}, false},
		{"g::1.0", Artifact{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, ok := ParseArtifact(tt.line)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestArtifactPath(t *testing.T) {
	t.Parallel()
	repo := filepath.FromSlash("/repo")
	a := Artifact{Group: "org.jetbrains.kotlin", Artifact: "kotlin-stdlib", Packaging: "jar", Version: "2.0.0"}
	assert.Equal(t, filepath.FromSlash("/repo/org/jetbrains/kotlin/kotlin-stdlib/2.0.0/kotlin-stdlib-2.0.0.jar"), a.Path(repo))
	assert.Equal(t, filepath.FromSlash("/repo/org/jetbrains/kotlin/kotlin-stdlib/2.0.0/kotlin-stdlib-2.0.0-sources.jar"), a.SourcePath(repo))

	a.Classifier = "jdk8"
	assert.Equal(t, filepath.FromSlash("/repo/org/jetbrains/kotlin/kotlin-stdlib/2.0.0/kotlin-stdlib-2.0.0-jdk8.jar"), a.Path(repo))

	bundle := Artifact{Group: "g", Artifact: "b", Packaging: "bundle", Version: "1"}
	assert.Equal(t, filepath.FromSlash("/repo/g/b/1/b-1.jar"), bundle.Path(repo))

	pom := Artifact{Group: "g", Artifact: "bom", Packaging: "pom", Version: "1"}
	assert.Empty(t, pom.Path(repo))
}

func TestParseMavenList_KeepsExistingArtifacts(t *testing.T) {
	t.Parallel()
	repo := t.TempDir()
	jar := touch(t, filepath.Join(repo, "com", "example", "lib", "1.0", "lib-1.0.jar"))
	src := touch(t, filepath.Join(repo, "com", "example", "lib", "1.0", "lib-1.0-sources.jar"))
	other := touch(t, filepath.Join(repo, "com", "example", "other", "2.0", "other-2.0.jar"))

	out := `
The following files have been resolved:
   com.example:lib:jar:1.0:compile -- module lib
   com.example:other:jar:2.0:test
   com.example:missing:jar:3.0:runtime
   com.example:parent:pom:1.0:import
`
	got := parseMavenList(out, repo)
	assert.Equal(t, Set{
		{Compiled: jar, Source: src},
		{Compiled: other},
	}, got)
}

func TestLocalMavenRepository(t *testing.T) {
	t.Parallel()

	home := t.TempDir()
	assert.Equal(t, filepath.Join(home, ".m2", "repository"), LocalMavenRepository(home))

	settings := `<?xml version="1.0"?>
<settings>
  <localRepository>${user.home}/custom-repo</localRepository>
</settings>`
	touch(t, filepath.Join(home, ".m2", "settings.xml"))
	require.NoError(t, os.WriteFile(filepath.Join(home, ".m2", "settings.xml"), []byte(settings), 0o644))
	assert.Equal(t, home+"/custom-repo", LocalMavenRepository(home))
}

func TestLocalMavenRepository_MalformedSettings(t *testing.T) {
	t.Parallel()
	home := t.TempDir()
	path := touch(t, filepath.Join(home, ".m2", "settings.xml"))
	require.NoError(t, os.WriteFile(path, []byte("<settings><localRepository>"), 0o644))
	assert.Equal(t, filepath.Join(home, ".m2", "repository"), LocalMavenRepository(home))
}

func TestMaven_RunsWrapper(t *testing.T) {
	dir := t.TempDir()
	repo := t.TempDir()
	jar := touch(t, filepath.Join(repo, "com", "example", "lib", "1.0", "lib-1.0.jar"))

	writeExecutable(t, filepath.Join(dir, "mvnw"), `
for a in "$@"; do
  case "$a" in
    -DoutputFile=*) out="${a#-DoutputFile=}" ;;
  esac
done
printf '%s\n' "The following files have been resolved:" "   com.example:lib:jar:1.0:compile" > "$out"
`)

	r := Maven(dir, WithLogger(quiet()), WithMavenRepository(repo))
	ctx := context.Background()
	assert.Equal(t, []string{jar}, r.Classpath(ctx).Paths())
	assert.Empty(t, r.BuildScriptClasspath(ctx))
}

func TestMaven_BuildFailureIsEmpty(t *testing.T) {
	dir := t.TempDir()
	writeExecutable(t, filepath.Join(dir, "mvnw"), "echo '[ERROR] BUILD FAILURE' >&2\nexit 1\n")
	logger, buf := capture()
	assert.Empty(t, Maven(dir, WithLogger(logger), WithMavenRepository(t.TempDir())).Classpath(context.Background()))
	assert.Contains(t, buf.String(), "BUILD FAILURE")
}
