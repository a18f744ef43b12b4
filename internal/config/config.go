// Package config loads and validates sieve configuration.
//
// A config starts from Default, is overlaid with a YAML or CUE file, and
// then with command-line flags. Whatever the source, the result is
// validated against the embedded CUE schema before use.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/roach88/sieve/internal/engine"
)

// Default values.
const (
	DefaultDelayMS    = 0
	DefaultMaxDelayMS = 100
	DefaultProgressHz = 10
)

// Config is the runtime configuration shared by the CLI commands.
type Config struct {
	// Limit is the sieve range bound N.
	Limit int `yaml:"limit" json:"limit"`

	// DelayMS is the per-mark delay in milliseconds.
	DelayMS int `yaml:"delay_ms" json:"delay_ms"`

	// MaxDelayMS caps DelayMS.
	MaxDelayMS int `yaml:"max_delay_ms" json:"max_delay_ms"`

	// ProgressHz caps progress rendering per second.
	ProgressHz float64 `yaml:"progress_hz" json:"progress_hz"`

	// Database is the journal path. Empty disables journaling.
	Database string `yaml:"database" json:"database"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Limit:      engine.DefaultLimit,
		DelayMS:    DefaultDelayMS,
		MaxDelayMS: DefaultMaxDelayMS,
		ProgressHz: DefaultProgressHz,
	}
}

// Delay returns DelayMS as a duration.
func (c Config) Delay() time.Duration {
	return time.Duration(c.DelayMS) * time.Millisecond
}

// ValidationError reports a config value that breaks the schema.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid config: %s", e.Message)
	}
	return fmt.Sprintf("invalid config: %s: %s", e.Field, e.Message)
}

// IsValidationError reports whether err is or wraps a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Load reads path over Default and validates the result. The format is
// chosen by extension: .yaml/.yml or .cue. An empty path returns Default.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		cfg, err = ParseYAML(data)
	case ".cue":
		cfg, err = ParseCUE(data, path)
	default:
		return Config{}, fmt.Errorf("unsupported config format %q (want .yaml, .yml or .cue)", ext)
	}
	if err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ParseYAML decodes data over Default. Unknown fields are rejected.
// The result is not validated.
func ParseYAML(data []byte) (Config, error) {
	cfg := Default()

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	return cfg, nil
}

// ParseCUE evaluates data as CUE and decodes it over Default. Unknown
// fields are rejected. The result is not validated.
func ParseCUE(data []byte, filename string) (Config, error) {
	cfg := Default()

	v := cuecontext.New().CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return Config{}, fmt.Errorf("failed to parse CUE config: %w", err)
	}

	iter, err := v.Fields()
	if err != nil {
		return Config{}, fmt.Errorf("failed to parse CUE config: %w", err)
	}
	for iter.Next() {
		if !knownField(iter.Selector().String()) {
			return Config{}, &ValidationError{
				Field:   iter.Selector().String(),
				Message: "unknown field",
			}
		}
	}

	if err := v.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode CUE config: %w", err)
	}
	return cfg, nil
}

func knownField(name string) bool {
	switch name {
	case "limit", "delay_ms", "max_delay_ms", "progress_hz", "database":
		return true
	}
	return false
}
