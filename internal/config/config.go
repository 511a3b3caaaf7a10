package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"

	"github.com/dshills/branchpoints/internal/logging"
)

const (
	// FileName is the workspace config file name.
	FileName = ".branchpoints.toml"

	// EnvPrefix prefixes environment overrides.
	EnvPrefix = "BRANCHPOINTS"

	configName = ".branchpoints"
	configType = "toml"
)

// Setting keys.
const (
	KeyLoggingEnabled  = "logging.enabled"
	KeyLoggingLevel    = "logging.level"
	KeyLoggingFile     = "logging.file"
	KeyStoragePath     = "storage.path"
	KeyStorageKey      = "storage.key"
	KeyHostFile        = "host.breakpoints_file"
	KeyPluginScripts   = "plugins.scripts"
	KeyPluginTimeout   = "plugins.timeout"
	defaultStoragePath = ".branchpoints/state.db"
	defaultHostFile    = ".branchpoints/breakpoints.json"
	defaultStorageKey  = "branchpoints.branchMap"
)

// Config is the effective configuration.
type Config struct {
	Workspace string        `mapstructure:"-" toml:"workspace"`
	Logging   LoggingConfig `mapstructure:"logging" toml:"logging"`
	Storage   StorageConfig `mapstructure:"storage" toml:"storage"`
	Host      HostConfig    `mapstructure:"host" toml:"host"`
	Plugins   PluginsConfig `mapstructure:"plugins" toml:"plugins"`
	Source    string        `mapstructure:"-" toml:"-"`
}

// LoggingConfig controls the session log.
type LoggingConfig struct {
	// Enabled turns logging on. Logging is off by default.
	Enabled bool `mapstructure:"enabled" toml:"enabled"`
	// Level is debug, info, warn or error.
	Level string `mapstructure:"level" toml:"level"`
	// File appends log lines to a file instead of stderr.
	File string `mapstructure:"file" toml:"file,omitempty"`
}

// StorageConfig locates the workspace state store.
type StorageConfig struct {
	// Path is the SQLite database file.
	Path string `mapstructure:"path" toml:"path"`
	// Key is the blob key of the branch map.
	Key string `mapstructure:"key" toml:"key"`
}

// HostConfig locates the live breakpoint list.
type HostConfig struct {
	BreakpointsFile string `mapstructure:"breakpoints_file" toml:"breakpoints_file"`
}

// PluginsConfig lists Lua scripts run when a session opens.
type PluginsConfig struct {
	Scripts []string `mapstructure:"scripts" toml:"scripts"`
	// Timeout bounds each script run, as a duration string.
	Timeout string `mapstructure:"timeout" toml:"timeout"`
}

// Options controls Load.
type Options struct {
	// Workspace is the workspace directory. Empty means the working directory.
	Workspace string
	// File is an explicit config file. Empty means FileName in the workspace.
	File string
	// Overrides are applied last, keyed by setting path.
	Overrides map[string]any
}

// Default returns the built-in configuration for workspace.
func Default(workspace string) *Config {
	return &Config{
		Workspace: workspace,
		Logging:   LoggingConfig{Level: "info"},
		Storage:   StorageConfig{Path: defaultStoragePath, Key: defaultStorageKey},
		Host:      HostConfig{BreakpointsFile: defaultHostFile},
		Plugins:   PluginsConfig{Scripts: []string{}, Timeout: "5s"},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default("")
	v.SetDefault(KeyLoggingEnabled, d.Logging.Enabled)
	v.SetDefault(KeyLoggingLevel, d.Logging.Level)
	v.SetDefault(KeyLoggingFile, d.Logging.File)
	v.SetDefault(KeyStoragePath, d.Storage.Path)
	v.SetDefault(KeyStorageKey, d.Storage.Key)
	v.SetDefault(KeyHostFile, d.Host.BreakpointsFile)
	v.SetDefault(KeyPluginScripts, d.Plugins.Scripts)
	v.SetDefault(KeyPluginTimeout, d.Plugins.Timeout)
}

// Load builds the effective configuration. A missing workspace config file
// is not an error; a missing explicit file is.
func Load(opts Options) (*Config, error) {
	workspace := opts.Workspace
	if workspace == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("working directory: %w", err)
		}
		workspace = wd
	}
	workspace, err := filepath.Abs(workspace)
	if err != nil {
		return nil, fmt.Errorf("workspace path: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if opts.File != "" {
		if _, err := os.Stat(opts.File); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, opts.File)
		}
		v.SetConfigFile(opts.File)
		v.SetConfigType(configType)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType(configType)
		v.AddConfigPath(workspace)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, value := range opts.Overrides {
		v.Set(key, value)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Workspace = workspace
	cfg.Source = v.ConfigFileUsed()
	if cfg.Plugins.Scripts == nil {
		cfg.Plugins.Scripts = []string{}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var knownLevels = map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}

// Validate checks setting values.
func (c *Config) Validate() error {
	var errs []error

	if !knownLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, &ValidationError{Path: KeyLoggingLevel, Message: "unknown level", Value: c.Logging.Level})
	}
	if strings.TrimSpace(c.Storage.Path) == "" {
		errs = append(errs, &ValidationError{Path: KeyStoragePath, Message: "must not be empty", Value: c.Storage.Path})
	}
	if strings.TrimSpace(c.Storage.Key) == "" {
		errs = append(errs, &ValidationError{Path: KeyStorageKey, Message: "must not be empty", Value: c.Storage.Key})
	}
	if strings.TrimSpace(c.Host.BreakpointsFile) == "" {
		errs = append(errs, &ValidationError{Path: KeyHostFile, Message: "must not be empty", Value: c.Host.BreakpointsFile})
	}
	if d, err := time.ParseDuration(c.Plugins.Timeout); err != nil || d < 0 {
		errs = append(errs, &ValidationError{Path: KeyPluginTimeout, Message: "must be a non-negative duration", Value: c.Plugins.Timeout})
	}

	return errors.Join(errs...)
}

// Resolve returns p relative to the workspace unless it is absolute.
func (c *Config) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Workspace, p)
}

// StoragePath returns the resolved database path.
func (c *Config) StoragePath() string {
	return c.Resolve(c.Storage.Path)
}

// BreakpointsFile returns the resolved live breakpoint file path.
func (c *Config) BreakpointsFile() string {
	return c.Resolve(c.Host.BreakpointsFile)
}

// LogFile returns the resolved log file path, or "" for stderr.
func (c *Config) LogFile() string {
	return c.Resolve(c.Logging.File)
}

// Scripts returns the resolved plugin script paths.
func (c *Config) Scripts() []string {
	out := make([]string, len(c.Plugins.Scripts))
	for i, s := range c.Plugins.Scripts {
		out[i] = c.Resolve(s)
	}
	return out
}

// ScriptTimeout returns the parsed plugin timeout.
func (c *Config) ScriptTimeout() time.Duration {
	d, err := time.ParseDuration(c.Plugins.Timeout)
	if err != nil {
		return 0
	}
	return d
}

// LogLevel returns the parsed logging level.
func (c *Config) LogLevel() logging.Level {
	return logging.ParseLevel(c.Logging.Level)
}

// TOML renders the configuration as a TOML document.
func (c *Config) TOML() ([]byte, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}
