// Package config provides centralized configuration management using Viper.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// DefaultUserEmail is the sign-in email used when none is configured.
const DefaultUserEmail = "demo@user.com"

// Config holds all configuration values for carepath.
type Config struct {
	LogLevel    string `mapstructure:"log_level" yaml:"log_level"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	UserEmail   string `mapstructure:"user_email" yaml:"user_email"`
	FormsDir    string `mapstructure:"forms_dir" yaml:"forms_dir"`
	Acknowledge bool   `mapstructure:"acknowledge" yaml:"acknowledge"`
	MetricsAddr string `mapstructure:"metrics_addr" yaml:"metrics_addr"`
	Headless    bool   `mapstructure:"headless" yaml:"headless"`
}

// keys lists every config key; each is bound to CAREPATH_<KEY>.
var keys = []string{
	"log_level",
	"log_file",
	"user_email",
	"forms_dir",
	"acknowledge",
	"metrics_addr",
	"headless",
}

// newViper returns a viper instance carrying only the defaults.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigName("carepath")

	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")
	v.SetDefault("user_email", DefaultUserEmail)
	v.SetDefault("forms_dir", "")
	v.SetDefault("acknowledge", true)
	v.SetDefault("metrics_addr", "")
	v.SetDefault("headless", false)
	return v
}

// Load loads configuration with full precedence:
// CLI flags > ENV vars > project config > XDG global config > defaults
func Load() (*Config, error) {
	v := newViper()

	v.SetEnvPrefix("CAREPATH")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Explicit bindings so Unmarshal sees env-only values.
	for _, key := range keys {
		if err := v.BindEnv(key, "CAREPATH_"+strings.ToUpper(key)); err != nil {
			return nil, fmt.Errorf("binding %s env: %w", key, err)
		}
	}

	globalPath := GlobalPath()
	if fileExists(globalPath) {
		v.SetConfigFile(globalPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading global config: %w", err)
		}
	}

	projectPath := ProjectPath()
	if fileExists(projectPath) {
		v.SetConfigFile(projectPath)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("merging project config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// LoadFile loads the defaults overlaid with the single file at path, ignoring
// env and the other config location. A missing file yields the defaults.
func LoadFile(path string) (*Config, error) {
	v := newViper()
	if fileExists(path) {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// Exists returns true if any config file exists (global or project).
func Exists() bool {
	return fileExists(GlobalPath()) || fileExists(ProjectPath())
}

// GlobalPath returns the XDG global config path.
// Returns ~/.config/carepath/carepath.yml or $XDG_CONFIG_HOME/carepath/carepath.yml.
func GlobalPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "carepath", "carepath.yml")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "carepath", "carepath.yml")
}

// ProjectPath returns the project-local config path.
func ProjectPath() string {
	return "carepath.yml"
}

// WriteGlobal writes the config to the XDG global location.
func WriteGlobal(cfg *Config) error {
	path := GlobalPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	return write(path, cfg)
}

// WriteProject writes the config to the project-local location.
func WriteProject(cfg *Config) error {
	return write(ProjectPath(), cfg)
}

// Marshal renders cfg as the YAML written to config files.
func Marshal(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshaling config: %w", err)
	}
	return data, nil
}

func write(path string, cfg *Config) error {
	data, err := Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
