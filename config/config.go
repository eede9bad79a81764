// Package config loads vexora settings from YAML files and VEXORA_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "VEXORA"

// Thread store backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// ModelConfig selects and tunes the model provider.
type ModelConfig struct {
	Provider    string  `yaml:"provider"` // openai | anthropic
	Name        string  `yaml:"name"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int64   `yaml:"max_tokens"`
	APIKey      string  `yaml:"api_key"`
}

// ThreadsConfig selects the thread store.
type ThreadsConfig struct {
	Backend string `yaml:"backend"`
	Dir     string `yaml:"dir"` // file backend
	DSN     string `yaml:"dsn"` // sqlite backend
}

// Settings is the full runtime configuration.
type Settings struct {
	LogLevel        string        `yaml:"log_level"`
	LogFormat       string        `yaml:"log_format"`
	MaxTurns        int           `yaml:"max_turns"`
	ToolParallelism int           `yaml:"tool_parallelism"`
	HistoryLimit    int           `yaml:"history_limit"`
	Model           ModelConfig   `yaml:"model"`
	Threads         ThreadsConfig `yaml:"threads"`
}

// Default returns settings with every default applied.
func Default() *Settings {
	s := &Settings{}
	applyDefaults(s)

	return s
}

var envTemplateRe = regexp.MustCompile(`\$\{(\w+)\}`)

// Load reads a YAML file, expands ${VAR} references, applies VEXORA_*
// overrides and defaults. An empty path skips the file.
func Load(path string) (*Settings, error) {
	s := &Settings{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}

		if err := Parse(data, s); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(s, os.LookupEnv); err != nil {
		return nil, fmt.Errorf("apply environment: %w", err)
	}

	applyDefaults(s)

	if err := s.Validate(); err != nil {
		return nil, err
	}

	return s, nil
}

// Parse decodes YAML into s after expanding ${VAR} references. Unknown keys
// are rejected.
func Parse(data []byte, s *Settings) error {
	expanded := envTemplateRe.ReplaceAllStringFunc(string(data), func(match string) string {
		return os.Getenv(envTemplateRe.FindStringSubmatch(match)[1])
	})

	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)

	if err := dec.Decode(s); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("unmarshal config: %w", err)
	}

	return nil
}

// Validate checks enumerated fields.
func (s *Settings) Validate() error {
	switch s.Threads.Backend {
	case BackendMemory, BackendFile, BackendSQLite:
	default:
		return fmt.Errorf("unknown thread backend %q", s.Threads.Backend)
	}

	switch s.Model.Provider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("unknown model provider %q", s.Model.Provider)
	}

	if s.MaxTurns < 0 {
		return fmt.Errorf("max_turns must not be negative")
	}

	return nil
}

func applyEnv(s *Settings, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + "_" + key); ok {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		if v, ok := lookup(EnvPrefix + "_" + key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s_%s: %w", EnvPrefix, key, err)
			}
			*dst = n
		}
		return nil
	}

	str("LOG_LEVEL", &s.LogLevel)
	str("LOG_FORMAT", &s.LogFormat)
	str("MODEL_PROVIDER", &s.Model.Provider)
	str("MODEL_NAME", &s.Model.Name)
	str("MODEL_API_KEY", &s.Model.APIKey)
	str("THREADS_BACKEND", &s.Threads.Backend)
	str("THREADS_DIR", &s.Threads.Dir)
	str("THREADS_DSN", &s.Threads.DSN)

	if v, ok := lookup(EnvPrefix + "_MODEL_TEMPERATURE"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s_MODEL_TEMPERATURE: %w", EnvPrefix, err)
		}
		s.Model.Temperature = f
	}

	if err := num("MAX_TURNS", &s.MaxTurns); err != nil {
		return err
	}

	return num("TOOL_PARALLELISM", &s.ToolParallelism)
}

// applyDefaults fills in zero-value fields with sensible defaults.
func applyDefaults(s *Settings) {
	if s.LogLevel == "" {
		s.LogLevel = "info"
	}
	if s.LogFormat == "" {
		s.LogFormat = "auto"
	}
	if s.MaxTurns == 0 {
		s.MaxTurns = 10
	}
	if s.ToolParallelism == 0 {
		s.ToolParallelism = 4
	}
	if s.HistoryLimit == 0 {
		s.HistoryLimit = 50
	}
	if s.Model.Provider == "" {
		s.Model.Provider = "openai"
	}
	if s.Model.Name == "" {
		switch s.Model.Provider {
		case "anthropic":
			s.Model.Name = "claude-3-5-sonnet-20241022"
		default:
			s.Model.Name = "gpt-4o-mini"
		}
	}
	if s.Model.Temperature == 0 {
		s.Model.Temperature = 0.7
	}
	if s.Model.MaxTokens == 0 {
		s.Model.MaxTokens = 4096
	}
	if s.Threads.Backend == "" {
		s.Threads.Backend = BackendMemory
	}
	if s.Threads.Dir == "" {
		s.Threads.Dir = filepath.Join(HomePath(), "threads")
	}
	if s.Threads.DSN == "" {
		s.Threads.DSN = filepath.Join(HomePath(), "threads.db")
	}
}

// HomePath returns the vexora state directory ($VEXORA_HOME or ~/.vexora).
func HomePath() string {
	if v := os.Getenv(EnvPrefix + "_HOME"); v != "" {
		return v
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ".vexora"
	}

	return filepath.Join(home, ".vexora")
}
