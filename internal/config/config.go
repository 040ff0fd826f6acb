package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Default config file path.
const DefaultConfigPath = "~/.config/timesheet/config.yaml"

// Config holds all timesheet configuration. Files ending in .toml are read
// as TOML, everything else as YAML.
type Config struct {
	Retention   RetentionConfig   `yaml:"retention" toml:"retention"`
	Capture     CaptureConfig     `yaml:"capture" toml:"capture"`
	History     HistoryConfig     `yaml:"history" toml:"history"`
	Aggregation AggregationConfig `yaml:"aggregation" toml:"aggregation"`
	Summarizer  SummarizerConfig  `yaml:"summarizer" toml:"summarizer"`
	Export      ExportConfig      `yaml:"export" toml:"export"`
	Storage     StorageConfig     `yaml:"storage" toml:"storage"`
	Daemon      DaemonConfig      `yaml:"daemon" toml:"daemon"`
	Logging     LoggingConfig     `yaml:"logging" toml:"logging"`
}

type RetentionConfig struct {
	// Mode is "calendar" or "rolling24h".
	Mode               string `yaml:"mode" toml:"mode"`
	Days               int    `yaml:"days" toml:"days"`
	MaxEntries         int    `yaml:"max_entries" toml:"max_entries"`
	PruneIntervalHours int    `yaml:"prune_interval_hours" toml:"prune_interval_hours"`
}

type CaptureConfig struct {
	ExcludedSchemes []string `yaml:"excluded_schemes" toml:"excluded_schemes"`
	DenylistDomains []string `yaml:"denylist_domains" toml:"denylist_domains"`
	DenylistRegex   []string `yaml:"denylist_regex" toml:"denylist_regex"`
}

type HistoryConfig struct {
	// ChromePath is a Chrome/Chromium "History" file. Empty disables reading
	// history from disk; uploads from the extension still work.
	ChromePath      string `yaml:"chrome_path" toml:"chrome_path"`
	VisitCapMinutes int    `yaml:"visit_cap_minutes" toml:"visit_cap_minutes"`
	MaxResults      int    `yaml:"max_results" toml:"max_results"`
	// ReloadBeforeCommands rebuilds the requested day from ChromePath before
	// every export and summarize.
	ReloadBeforeCommands bool `yaml:"reload_before_commands" toml:"reload_before_commands"`
}

type AggregationConfig struct {
	// Key is "domain" or "domain_title".
	Key string `yaml:"key" toml:"key"`
	// Order is "chronological" or "total_time".
	Order string `yaml:"order" toml:"order"`
	// Timezone is an IANA name. Empty uses the system zone.
	Timezone string `yaml:"timezone" toml:"timezone"`
}

type SummarizerConfig struct {
	// Provider is "bedrock", "openai", "gemini" or "none".
	Provider        string  `yaml:"provider" toml:"provider"`
	Model           string  `yaml:"model" toml:"model"`
	Region          string  `yaml:"region" toml:"region"`
	BaseURL         string  `yaml:"base_url" toml:"base_url"`
	APIKeyEnv       string  `yaml:"api_key_env" toml:"api_key_env"`
	AccessKeyEnv    string  `yaml:"access_key_env" toml:"access_key_env"`
	SecretKeyEnv    string  `yaml:"secret_key_env" toml:"secret_key_env"`
	SessionTokenEnv string  `yaml:"session_token_env" toml:"session_token_env"`
	TimeoutSeconds  int     `yaml:"timeout_seconds" toml:"timeout_seconds"`
	MaxTokens       int     `yaml:"max_tokens" toml:"max_tokens"`
	Temperature     float64 `yaml:"temperature" toml:"temperature"`
	TopP            float64 `yaml:"top_p" toml:"top_p"`
	// TimeMode is "range" or "stamp".
	TimeMode string `yaml:"time_mode" toml:"time_mode"`
	// Input is "aggregates" or "entries".
	Input string `yaml:"input" toml:"input"`
}

type ExportConfig struct {
	Dir      string `yaml:"dir" toml:"dir"`
	Compress bool   `yaml:"compress" toml:"compress"`
	// Format is "entries", "aggregates" or "live".
	Format string `yaml:"format" toml:"format"`
}

type StorageConfig struct {
	Path string `yaml:"path" toml:"path"`
	// Backend is "sqlite" or "badger".
	Backend    string `yaml:"backend" toml:"backend"`
	SQLiteFile string `yaml:"sqlite_file" toml:"sqlite_file"`
	BadgerDir  string `yaml:"badger_dir" toml:"badger_dir"`
}

type DaemonConfig struct {
	Host           string `yaml:"host" toml:"host"`
	Port           int    `yaml:"port" toml:"port"`
	AuthToken      string `yaml:"auth_token" toml:"auth_token"`
	MaxRequestSize int    `yaml:"max_request_size" toml:"max_request_size"`
}

type LoggingConfig struct {
	Level string `yaml:"level" toml:"level"`
	File  string `yaml:"file" toml:"file"`
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// Load reads a config file at path and merges it with defaults.
// Returns an error if the file cannot be read or does not parse.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if isTOML(path) {
		err = toml.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return cfg, nil
}

// ExpandPath replaces a leading ~ with the user's home directory.
func ExpandPath(path string) (string, error) {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving home directory: %w", err)
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// LoadOrCreate loads the config from the default path. If the file does
// not exist, it creates the directory structure and writes defaults.
func LoadOrCreate() (*Config, error) {
	path, err := ExpandPath(DefaultConfigPath)
	if err != nil {
		return nil, err
	}
	return LoadOrCreateAt(path)
}

// LoadOrCreateAt loads the config from the given path. If the file does
// not exist, it creates the directory structure and writes defaults.
func LoadOrCreateAt(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()

		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating config directory: %w", err)
		}

		data, err := cfg.marshal(path)
		if err != nil {
			return nil, fmt.Errorf("marshaling default config: %w", err)
		}

		if err := os.WriteFile(path, data, 0644); err != nil {
			return nil, fmt.Errorf("writing default config: %w", err)
		}

		return cfg, nil
	}

	return Load(path)
}

func (c *Config) marshal(path string) ([]byte, error) {
	if !isTOML(path) {
		return yaml.Marshal(c)
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DataDir returns the expanded storage directory.
func (c *Config) DataDir() (string, error) {
	return ExpandPath(c.Storage.Path)
}

// StorageLocation returns the path handed to storage.Open for the
// configured backend: the SQLite file or the Badger directory.
func (c *Config) StorageLocation() (string, error) {
	dir, err := c.DataDir()
	if err != nil {
		return "", err
	}
	if c.Storage.Backend == "badger" {
		return filepath.Join(dir, c.Storage.BadgerDir), nil
	}
	return filepath.Join(dir, c.Storage.SQLiteFile), nil
}

// ExportDir returns the expanded export directory.
func (c *Config) ExportDir() (string, error) {
	return ExpandPath(c.Export.Dir)
}

// LogFile returns the log file path, relative names resolving inside the
// data directory. Empty means stderr.
func (c *Config) LogFile() (string, error) {
	if c.Logging.File == "" {
		return "", nil
	}
	p, err := ExpandPath(c.Logging.File)
	if err != nil {
		return "", err
	}
	if filepath.IsAbs(p) {
		return p, nil
	}
	dir, err := c.DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, p), nil
}

// Location resolves the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Aggregation.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Aggregation.Timezone)
	if err != nil {
		return nil, fmt.Errorf("aggregation.timezone: %w", err)
	}
	return loc, nil
}

// SummarizerTimeout returns the configured call timeout.
func (c *Config) SummarizerTimeout() time.Duration {
	return time.Duration(c.Summarizer.TimeoutSeconds) * time.Second
}

// Addr returns the daemon listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Daemon.Host, c.Daemon.Port)
}
