// Package config loads the operator configuration: document paths,
// collaborator command lines, run tuning and company tiers. Settings
// come from ~/.jobflow/config.yaml with environment overrides on top;
// secrets only ever come from the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Env variable names. JOBFLOW_* override file settings; the rest are
// conventional names for the services they belong to.
const (
	EnvStatePath    = "JOBFLOW_STATE"
	EnvListingsPath = "JOBFLOW_LISTINGS"
	EnvMaterialsDir = "JOBFLOW_MATERIALS_DIR"
	EnvLockPath     = "JOBFLOW_LOCK"
	EnvHistoryDB    = "JOBFLOW_HISTORY_DB"
	EnvPostgresDSN  = "JOBFLOW_PG_DSN"
	EnvRedisURL     = "REDIS_URL"
	EnvTelegramTok  = "TELEGRAM_BOT_TOKEN"
	EnvTelegramChat = "TELEGRAM_CHAT_ID"
)

// Paths locate the shared documents and working directories.
type Paths struct {
	State     string `yaml:"state"`
	Listings  string `yaml:"listings"`
	Materials string `yaml:"materials"`
	Lock      string `yaml:"lock"`
	HistoryDB string `yaml:"history_db"`
}

// Run tunes the automated pipeline run.
type Run struct {
	PrepTop                 int `yaml:"prep_top"`
	WriteTop                int `yaml:"write_top"`
	LockTimeoutMS           int `yaml:"lock_timeout_ms"`
	WaitAfterQualifySeconds int `yaml:"wait_after_qualify_seconds"`
	FollowUpDays            int `yaml:"follow_up_days"`
}

// Tiers sort companies for prioritization.
type Tiers struct {
	Target  []string `yaml:"target"`
	Stretch []string `yaml:"stretch"`
	Known   []string `yaml:"known"`
}

// Collaborators hold the external tool command lines, empty meaning
// "phase disabled".
type Collaborators struct {
	Discovery string `yaml:"discovery"`
	Scrape    string `yaml:"scrape"`
	Qualify   string `yaml:"qualify"`
	Write     string `yaml:"write"`
}

// Config is the full operator configuration.
type Config struct {
	Paths  Paths         `yaml:"paths"`
	Run    Run           `yaml:"run"`
	Tiers  Tiers         `yaml:"tiers"`
	Collab Collaborators `yaml:"collaborators"`

	// Secrets, environment only.
	TelegramToken  string `yaml:"-"`
	TelegramChatID string `yaml:"-"`
	RedisURL       string `yaml:"-"`
	PostgresDSN    string `yaml:"-"`
}

// Default returns the configuration used when no file exists: documents
// under ~/.jobflow, application folders under ~/job_applications.
func Default() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	base := filepath.Join(home, ".jobflow")
	return &Config{
		Paths: Paths{
			State:     filepath.Join(base, "job_pipeline_state.json"),
			Listings:  filepath.Join(base, "listings.json"),
			Materials: filepath.Join(home, "job_applications"),
			Lock:      filepath.Join(base, "run.lock"),
			HistoryDB: filepath.Join(base, "history.db"),
		},
		Run: Run{
			PrepTop:                 3,
			WriteTop:                2,
			LockTimeoutMS:           30000,
			WaitAfterQualifySeconds: 3,
			FollowUpDays:            14,
		},
	}
}

// DefaultPath returns the conventional config file location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".jobflow", "config.yaml")
}

// Load reads the config file at path, layering it over defaults and the
// environment over both. A missing file is not an error; a malformed
// one is.
func Load(path string) (*Config, error) {
	// Pick up a local .env if present, never an error when absent.
	_ = godotenv.Load()

	cfg := Default()
	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	overlay := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	overlay(&c.Paths.State, EnvStatePath)
	overlay(&c.Paths.Listings, EnvListingsPath)
	overlay(&c.Paths.Materials, EnvMaterialsDir)
	overlay(&c.Paths.Lock, EnvLockPath)
	overlay(&c.Paths.HistoryDB, EnvHistoryDB)
	overlay(&c.TelegramToken, EnvTelegramTok)
	overlay(&c.TelegramChatID, EnvTelegramChat)
	overlay(&c.RedisURL, EnvRedisURL)
	overlay(&c.PostgresDSN, EnvPostgresDSN)
}

// Validate rejects configurations that cannot work.
func (c *Config) Validate() error {
	if c.Paths.State == "" || c.Paths.Listings == "" {
		return fmt.Errorf("config: state and listings paths are required")
	}
	if c.Paths.Lock == "" {
		return fmt.Errorf("config: lock path is required")
	}
	if c.Run.PrepTop < 0 || c.Run.WriteTop < 0 {
		return fmt.Errorf("config: prep_top and write_top must not be negative")
	}
	if c.Run.LockTimeoutMS < 0 {
		return fmt.Errorf("config: lock_timeout_ms must not be negative")
	}
	if c.Run.WaitAfterQualifySeconds < 0 {
		return fmt.Errorf("config: wait_after_qualify_seconds must not be negative")
	}
	if c.Run.FollowUpDays < 0 {
		return fmt.Errorf("config: follow_up_days must not be negative")
	}
	return nil
}

// Save writes the config as YAML, creating the directory if needed.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// LockTimeout converts the configured timeout to a duration.
func (c *Config) LockTimeout() time.Duration {
	return time.Duration(c.Run.LockTimeoutMS) * time.Millisecond
}

// WaitAfterQualify converts the settle window to a duration.
func (c *Config) WaitAfterQualify() time.Duration {
	return time.Duration(c.Run.WaitAfterQualifySeconds) * time.Second
}

// FollowUpAfter converts the follow-up threshold to a duration.
func (c *Config) FollowUpAfter() time.Duration {
	return time.Duration(c.Run.FollowUpDays) * 24 * time.Hour
}
