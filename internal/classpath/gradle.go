package classpath

import (
	"bufio"
	"context"
	_ "embed"
	"fmt"
	"os"
	"strings"
)

//go:embed classpath.init.gradle
var gradleInitScript []byte

const (
	gradleMarker = "sapwood-gradle"
	gradleTask   = "sapwoodClasspath"
)

// failureBanner is printed by Gradle when a build fails, even in cases
// where it still exits zero.
const failureBanner = "FAILURE: Build failed"

// Gradle resolves the classpath of the Gradle project in dir by running the
// project wrapper, or gradle from PATH, with an injected init script.
func Gradle(dir string, opts ...Option) Resolver {
	o := newOptions(opts)
	return newLeaf("gradle:"+dir, o.logger, func(ctx context.Context) (result, error) {
		return resolveGradle(ctx, dir, o)
	})
}

func resolveGradle(ctx context.Context, dir string, o *options) (result, error) {
	exe, err := findExecutable(dir, platformName("gradlew", "gradlew.bat"), "gradle")
	if err != nil {
		return result{}, err
	}

	f, err := os.CreateTemp("", "sapwood-*.init.gradle")
	if err != nil {
		return result{}, fmt.Errorf("gradle: init script: %w", err)
	}
	initPath := f.Name()
	defer os.Remove(initPath)
	if _, err := f.Write(gradleInitScript); err != nil {
		f.Close()
		return result{}, fmt.Errorf("gradle: init script: %w", err)
	}
	if err := f.Close(); err != nil {
		return result{}, fmt.Errorf("gradle: init script: %w", err)
	}

	out, err := o.runner().run(ctx, dir, exe, "-I", initPath, "-q", "--console=plain", gradleTask)
	if err != nil {
		return result{}, err
	}
	if strings.Contains(out, failureBanner) {
		return result{}, fmt.Errorf("%w: %s", ErrBuildFailed, tail(out, 20))
	}
	return parseGradleOutput(out), nil
}

// parseGradleOutput reads "sapwood-gradle <project> <key> <path>" lines.
// Other lines, unknown keys and paths that are not artifacts are ignored.
func parseGradleOutput(out string) result {
	var primary, script []Entry
	sc := bufio.NewScanner(strings.NewReader(out))
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		parts := strings.SplitN(strings.TrimSpace(sc.Text()), " ", 4)
		if len(parts) != 4 || parts[0] != gradleMarker {
			continue
		}
		path := strings.TrimSpace(parts[3])
		if path == "" || !isArtifact(path) {
			continue
		}
		switch parts[2] {
		case "classpath":
			primary = append(primary, withSources(path))
		case "buildscript":
			script = append(script, withSources(path))
		}
	}
	return result{primary: NewSet(primary...), buildScript: NewSet(script...)}
}
