package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

//go:embed default.toml
var defaultTOMLContent []byte

const (
	appName   = "modern-reader"
	envPrefix = "MODERN_READER"
	dotEnv    = ".env"
)

// Config はアプリケーションの設定を保持します。
type Config struct {
	Server  ServerConfig  `mapstructure:"server" toml:"server"`
	UI      UIConfig      `mapstructure:"ui" toml:"ui"`
	History HistoryConfig `mapstructure:"history" toml:"history"`
	Log     LogConfig     `mapstructure:"log" toml:"log"`
}

type ServerConfig struct {
	BaseURL string `mapstructure:"base_url" toml:"base_url"`
	APIKey  string `mapstructure:"api_key" toml:"api_key"`
	// CACert is a PEM file trusted in addition to the system roots.
	CACert string `mapstructure:"ca_cert" toml:"ca_cert"`
}

type UIConfig struct {
	DefaultStyle    string `mapstructure:"default_style" toml:"default_style"`
	HealthOnStartup bool   `mapstructure:"health_on_startup" toml:"health_on_startup"`
}

type HistoryConfig struct {
	Enabled    bool   `mapstructure:"enabled" toml:"enabled"`
	Path       string `mapstructure:"path" toml:"path"`
	MaxEntries int    `mapstructure:"max_entries" toml:"max_entries"`
}

type LogConfig struct {
	Level string `mapstructure:"level" toml:"level"`
}

// DefaultConfig returns the embedded defaults.
func DefaultConfig() Config {
	var cfg Config
	if _, err := toml.Decode(string(defaultTOMLContent), &cfg); err != nil {
		panic(fmt.Sprintf("embedded default config is invalid: %v", err))
	}
	return cfg
}

// LoadConfig は設定ファイルから設定を読み込みます。
//
// Layers, lowest first: embedded defaults, the user config file (path, or the
// first existing file from UserConfigPaths), then MODERN_READER_* environment
// variables. A .env file in the working directory is loaded into the
// environment before anything else and never overrides variables already set.
func LoadConfig(path string) (Config, error) {
	_ = gotenv.Load(dotEnv)

	v := viper.New()
	v.SetConfigType("toml")
	if err := v.ReadConfig(bytes.NewReader(defaultTOMLContent)); err != nil {
		return Config{}, fmt.Errorf("failed to read embedded config: %w", err)
	}

	file := path
	if file == "" {
		file = findUserConfig()
	}
	if file != "" {
		v.SetConfigFile(file)
		if err := v.MergeInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config %s: %w", file, err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Server.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.Server.BaseURL), "/")
	cfg.Server.CACert = expandHome(cfg.Server.CACert)
	cfg.History.Path = expandHome(cfg.History.Path)
	if cfg.History.Path == "" {
		cfg.History.Path = defaultHistoryPath()
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the values the rest of the program relies on.
func (c Config) Validate() error {
	if c.Server.BaseURL == "" {
		return errors.New("server.base_url must not be empty")
	}
	u, err := url.Parse(c.Server.BaseURL)
	if err != nil {
		return fmt.Errorf("server.base_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("server.base_url: unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("server.base_url: missing host in %q", c.Server.BaseURL)
	}
	return nil
}

// WriteDefault writes the default configuration to path, creating parent
// directories. An existing file is left untouched.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config %s already exists", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(DefaultConfig()); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// UserConfigPaths lists candidate config files, most specific first.
func UserConfigPaths() []string {
	var paths []string

	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		paths = append(paths, filepath.Join(xdg, appName, "config.toml"))
	}

	home, _ := os.UserHomeDir()
	if home != "" {
		paths = append(paths, filepath.Join(home, ".config", appName, "config.toml"))
	}

	return paths
}

func findUserConfig() string {
	for _, p := range UserConfigPaths() {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func defaultHistoryPath() string {
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, appName, "history.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(os.TempDir(), appName, "history.yaml")
	}
	return filepath.Join(home, ".local", "state", appName, "history.yaml")
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
