// Package config loads engine and CLI settings from defaults, an optional
// .tads3ls config file in the project directory, and TADS3LS_* environment
// variables.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// FileName is the config file base name; viper adds the extension.
const FileName = ".tads3ls"

// EnvPrefix prefixes environment overrides, e.g. TADS3LS_MAXWORKERS.
const EnvPrefix = "TADS3LS"

// Config is the complete tads3ls configuration.
type Config struct {
	MaxWorkers        int    `json:"maxWorkers" mapstructure:"maxWorkers"`
	WorkspaceOnly     bool   `json:"workspaceOnly" mapstructure:"workspaceOnly"`
	GlobalStoragePath string `json:"globalStoragePath" mapstructure:"globalStoragePath"`

	Library      LibraryConfig      `json:"library" mapstructure:"library"`
	Cache        CacheConfig        `json:"cache" mapstructure:"cache"`
	Preprocessor PreprocessorConfig `json:"preprocessor" mapstructure:"preprocessor"`
	Log          LogConfig          `json:"log" mapstructure:"log"`
}

// LibraryConfig controls which files count as library files.
type LibraryConfig struct {
	// Patterns are extra doublestar globs added to the variant's defaults.
	Patterns []string `json:"patterns" mapstructure:"patterns"`
}

// CacheConfig controls the library symbol cache.
type CacheConfig struct {
	VerifyFreshness bool `json:"verifyFreshness" mapstructure:"verifyFreshness"`
}

// PreprocessorConfig selects and configures the preprocessor. An empty
// Command selects the in-process preprocessor.
type PreprocessorConfig struct {
	Command       []string `json:"command" mapstructure:"command"`
	SystemInclude []string `json:"systemInclude" mapstructure:"systemInclude"`
	LibraryPath   []string `json:"libraryPath" mapstructure:"libraryPath"`
}

// LogConfig contains logging configuration.
type LogConfig struct {
	Level  string `json:"level" mapstructure:"level"`
	Format string `json:"format" mapstructure:"format"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		MaxWorkers: 6,
		Cache:      CacheConfig{VerifyFreshness: true},
		Log:        LogConfig{Level: "info", Format: "text"},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("maxWorkers", d.MaxWorkers)
	v.SetDefault("workspaceOnly", d.WorkspaceOnly)
	v.SetDefault("globalStoragePath", d.GlobalStoragePath)
	v.SetDefault("library.patterns", []string{})
	v.SetDefault("cache.verifyFreshness", d.Cache.VerifyFreshness)
	v.SetDefault("preprocessor.command", []string{})
	v.SetDefault("preprocessor.systemInclude", []string{})
	v.SetDefault("preprocessor.libraryPath", []string{})
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads .tads3ls.{json,yaml,toml} from dir if present. A missing file
// is not an error.
func Load(dir string) (*Config, error) {
	v := newViper()
	v.SetConfigName(FileName)
	v.AddConfigPath(dir)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return decode(v)
}

// LoadFile reads the config file at path, which must exist.
func LoadFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for values the engine cannot run with.
func (c *Config) Validate() error {
	if c.MaxWorkers < 1 {
		return &Error{Field: "maxWorkers", Message: fmt.Sprintf("must be at least 1, got %d", c.MaxWorkers)}
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return &Error{Field: "log.format", Message: fmt.Sprintf("unknown format %q", c.Log.Format)}
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "warning", "error", "off", "quiet", "none":
	default:
		return &Error{Field: "log.level", Message: fmt.Sprintf("unknown level %q", c.Log.Level)}
	}
	return nil
}

// Error is a configuration error.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
