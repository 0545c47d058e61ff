package config

import (
	"errors"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	"eventcal/internal/fsutil"
)

const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"

	// DefaultStorageKey is the slot key the event collection lives under.
	DefaultStorageKey = "calendarEvents"

	DefaultOccurrences = 10
)

// StorageConfig selects where the event collection is persisted.
type StorageConfig struct {
	// Backend is one of "file", "sqlite" or "memory".
	Backend string `yaml:"backend" json:"backend"`
	// Path is the JSON file (file backend) or database file (sqlite backend).
	// Relative paths are resolved against the -data directory.
	Path string `yaml:"path" json:"path"`
	// Key names the slot inside the backend.
	Key string `yaml:"key" json:"key"`
}

// BackupConfig controls periodic snapshots of the persisted slot.
type BackupConfig struct {
	// Cron is a 5-field cron expression. Empty disables backups.
	Cron string `yaml:"cron" json:"cron"`
	Dir  string `yaml:"dir" json:"dir"`
	// Keep is how many snapshots are retained; older ones are pruned.
	Keep int `yaml:"keep" json:"keep"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
// PasswordHash is an Argon2id hash produced by `eventcal hash-password`.
type BasicAuthConfig struct {
	Username     string `yaml:"username" json:"username"`
	PasswordHash string `yaml:"password_hash" json:"-"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// WeekStart controls the first column of the month grid:
	//   - "sunday" (default)
	//   - "monday"
	WeekStart string `yaml:"week_start" json:"week_start"`

	// DefaultOccurrences is used for recurring drafts that carry no
	// positive occurrence count.
	DefaultOccurrences int `yaml:"default_occurrences" json:"default_occurrences"`

	Storage StorageConfig `yaml:"storage" json:"storage"`
	Backup  BackupConfig  `yaml:"backup" json:"backup"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:             "127.0.0.1:8080",
		LogLevel:           "info",
		WeekStart:          "sunday",
		DefaultOccurrences: DefaultOccurrences,
		Storage: StorageConfig{
			Backend: BackendFile,
			Path:    "events.json",
			Key:     DefaultStorageKey,
		},
		Backup: BackupConfig{
			Cron: "",
			Dir:  "backup",
			Keep: 7,
		},
		BasicAuth: nil,
	}
}

// Normalize fills in missing/zero values so that partially-filled configs
// still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	switch c.WeekStart {
	case "sunday", "monday":
	default:
		c.WeekStart = "sunday"
	}
	if c.DefaultOccurrences <= 0 {
		c.DefaultOccurrences = DefaultOccurrences
	}

	switch c.Storage.Backend {
	case BackendFile, BackendSQLite, BackendMemory:
	default:
		c.Storage.Backend = BackendFile
	}
	if c.Storage.Path == "" {
		if c.Storage.Backend == BackendSQLite {
			c.Storage.Path = "eventcal.db"
		} else {
			c.Storage.Path = "events.json"
		}
	}
	if c.Storage.Key == "" {
		c.Storage.Key = DefaultStorageKey
	}

	if c.Backup.Dir == "" {
		c.Backup.Dir = "backup"
	}
	if c.Backup.Keep <= 0 {
		c.Backup.Keep = 7
	}
}

// AuthEnabled reports whether usable Basic Auth credentials are configured.
func (c *Config) AuthEnabled() bool {
	return c.BasicAuth != nil && c.BasicAuth.Username != "" && c.BasicAuth.PasswordHash != ""
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms and returned.
//   - Otherwise the YAML is unmarshalled and normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600 perms.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(path, data, 0o600)
}

// Save is a convenience method that delegates to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
