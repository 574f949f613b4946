package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/hpungsan/ale2ccc/internal/logger"
)

const (
	// DirName is the per-user and per-repo configuration directory name.
	DirName = ".ale2ccc"
	// FileName is the configuration file inside DirName.
	FileName = "config.yaml"
	// EnvPrefix prefixes every environment override, e.g. ALE2CCC_LOG_LEVEL.
	EnvPrefix = "ALE2CCC_"
)

// Config holds application configuration.
type Config struct {
	// NamingPattern derives the CDL id from a turnover item name. The first
	// capture group is the id; without groups the whole match is used.
	// Empty means the built-in ^(\d+\w\w_\d+).
	NamingPattern string `koanf:"naming_pattern"`

	// LogLevel is debug, info, warn or error.
	LogLevel string `koanf:"log_level"`

	// LogFormat is text or json.
	LogFormat string `koanf:"log_format"`

	// HistoryEnabled records every conversion run in history.db.
	HistoryEnabled bool `koanf:"history_enabled"`

	// MetricsFile, when set, receives a Prometheus textfile after each run.
	MetricsFile string `koanf:"metrics_file"`

	// ReportFile, when set, receives a run report. A .html suffix renders HTML,
	// anything else Markdown.
	ReportFile string `koanf:"report_file"`

	// LockTimeoutMS bounds how long a run waits for the output lock.
	// 0 means fail immediately if another run holds it.
	LockTimeoutMS int `koanf:"lock_timeout_ms"`

	// DBMaxOpenConns limits open history connections. 0 means sql.DB default.
	DBMaxOpenConns int `koanf:"db_max_open_conns"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Global and repo lists are merged. Unknown tool names are logged as warnings.
	DisabledTools []string `koanf:"disabled_tools"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:       "info",
		LogFormat:      "text",
		HistoryEnabled: false,
		LockTimeoutMS:  2000,
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.NamingPattern != "" {
		if _, err := regexp.Compile(c.NamingPattern); err != nil {
			return fmt.Errorf("naming_pattern: %w", err)
		}
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		return fmt.Errorf("log_format: unsupported value %q", c.LogFormat)
	}
	if c.LockTimeoutMS < 0 {
		return errors.New("lock_timeout_ms must not be negative")
	}
	if c.DBMaxOpenConns < 0 {
		return errors.New("db_max_open_conns must not be negative")
	}
	return nil
}

// Load loads configuration from baseDir/config.yaml and the environment.
// Missing files fall back to defaults.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.ale2ccc.
func Load(baseDir string) (*Config, error) {
	return load(filepath.Join(baseDir, FileName), "")
}

// LoadWithRepo layers defaults, the global config in globalDir, the nearest
// repo config found by walking upward from startDir, then ALE2CCC_* env vars.
// Later layers win for scalars; disabled_tools lists are merged (deduplicated).
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	return load(filepath.Join(globalDir, FileName), FindRepoConfig(startDir))
}

// FindRepoConfig walks upward from startDir to find the nearest .ale2ccc/config.yaml.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	if startDir == "" {
		return ""
	}
	dir := startDir
	for {
		configPath := filepath.Join(dir, DirName, FileName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root, not found
			return ""
		}
		dir = parent
	}
}

// DefaultDir returns ~/.ale2ccc.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, DirName), nil
}

func load(globalPath, repoPath string) (*Config, error) {
	k := koanf.New(".")
	var disabled []string

	for _, path := range []string{globalPath, repoPath} {
		layer, err := loadFile(path)
		if err != nil {
			return nil, err
		}
		if layer == nil {
			continue
		}
		disabled = mergeStringSlice(disabled, layer.Strings("disabled_tools"))
		if err := k.Merge(layer); err != nil {
			return nil, err
		}
	}

	// ALE2CCC_LOG_LEVEL -> log_level. List keys are comma separated.
	envProvider := env.ProviderWithValue(EnvPrefix, ".", func(key, value string) (string, interface{}) {
		key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
		if key == "disabled_tools" {
			return key, strings.Split(value, ",")
		}
		return key, value
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, err
	}

	cfg := *DefaultConfig()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, err
	}

	// An env override replaces the file lists instead of extending them.
	if _, ok := os.LookupEnv(EnvPrefix + "DISABLED_TOOLS"); !ok {
		cfg.DisabledTools = disabled
	} else {
		cfg.DisabledTools = mergeStringSlice(nil, cfg.DisabledTools)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadFile parses one YAML layer. A missing file yields nil.
func loadFile(path string) (*koanf.Koanf, error) {
	if path == "" {
		return nil, nil
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return k, nil
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
