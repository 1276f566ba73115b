// Package config loads the workspace configuration from
// .sapwood/config.jsonc.
package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	jsonc "github.com/muhammadmuzzammil1998/jsonc"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

const (
	// Dir is the per-workspace directory holding configuration and state.
	Dir = ".sapwood"
	// File is the configuration file name inside Dir.
	File = "config.jsonc"

	schemaURL = "mem://schemas/config.schema.json"
)

//go:embed config.schema.json
var schemaJSON []byte

var (
	compileOnce sync.Once
	schema      *jsonschema.Schema
	compileErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
		if err != nil {
			compileErr = fmt.Errorf("config: decode schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(schemaURL, doc); err != nil {
			compileErr = fmt.Errorf("config: register schema: %w", err)
			return
		}
		schema, compileErr = c.Compile(schemaURL)
	})
	return schema, compileErr
}

// Config is the workspace configuration. Fields absent from the file keep
// their Default values.
type Config struct {
	LogLevel  string          `json:"logLevel"`
	Exclude   []string        `json:"exclude,omitempty"`
	Index     IndexConfig     `json:"index"`
	Classpath ClasspathConfig `json:"classpath"`
	Output    OutputConfig    `json:"output"`
}

type IndexConfig struct {
	Enabled bool   `json:"enabled"`
	DBPath  string `json:"dbPath"`
}

type ClasspathConfig struct {
	Gradle          bool     `json:"gradle"`
	Maven           bool     `json:"maven"`
	Cache           bool     `json:"cache"`
	OverrideScript  string   `json:"overrideScript,omitempty"`
	MavenRepository string   `json:"mavenRepository,omitempty"`
	TimeoutSeconds  int      `json:"timeoutSeconds"`
	StdlibFamilies  []string `json:"stdlibFamilies,omitempty"`
}

type OutputConfig struct {
	// Dir receives generated compilation output. Empty means a fresh
	// directory under the system temp dir per session.
	Dir string `json:"dir,omitempty"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Index: IndexConfig{
			Enabled: true,
			DBPath:  filepath.Join(Dir, "index.db"),
		},
		Classpath: ClasspathConfig{
			Gradle:         true,
			Maven:          true,
			Cache:          true,
			TimeoutSeconds: 300,
		},
	}
}

// Path returns the configuration file location for the workspace at root.
func Path(root string) string {
	return filepath.Join(root, Dir, File)
}

// Load reads and validates the configuration of the workspace at root. A
// missing file yields Default.
func Load(root string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(Path(root))
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}
	if err := cfg.decode(Path(root), data); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes JSONC configuration data over the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := cfg.decode("<input>", data); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(name string, data []byte) error {
	clean := jsonc.ToJSON(data)
	if len(bytes.TrimSpace(clean)) == 0 {
		return nil
	}

	s, err := compiledSchema()
	if err != nil {
		return err
	}
	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(clean))
	if err != nil {
		return fmt.Errorf("config: parse %s: %w", name, err)
	}
	if err := s.Validate(instance); err != nil {
		return fmt.Errorf("config: %s invalid: %w", name, err)
	}
	if err := json.Unmarshal(clean, c); err != nil {
		return fmt.Errorf("config: decode %s: %w", name, err)
	}
	return nil
}

// Level maps LogLevel to a slog level, defaulting to Info.
func (c *Config) Level() slog.Level {
	return ParseLevel(c.LogLevel)
}

// ParseLevel maps a level name to a slog level, defaulting to Info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Timeout is the per-invocation build tool limit. Zero means unbounded.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Classpath.TimeoutSeconds) * time.Second
}

// DBPath resolves the index database location against root.
func (c *Config) DBPath(root string) string {
	return resolve(root, c.Index.DBPath)
}

// OverrideScript resolves the configured override script against root, or
// returns "" when none is configured.
func (c *Config) OverrideScript(root string) string {
	if c.Classpath.OverrideScript == "" {
		return ""
	}
	return resolve(root, c.Classpath.OverrideScript)
}

// OutputDir resolves the output directory against root, or returns "" when
// none is configured.
func (c *Config) OutputDir(root string) string {
	if c.Output.Dir == "" {
		return ""
	}
	return resolve(root, c.Output.Dir)
}

func resolve(root, p string) string {
	if strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, p[2:])
		}
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}
