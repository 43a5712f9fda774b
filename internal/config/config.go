package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the calendar API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone used when stamping process records
	// (e.g. "Europe/Berlin"). Course dates themselves are civil dates and
	// carry no zone.
	Timezone string `yaml:"timezone" json:"timezone"`

	// DatabasePath is the SQLite file holding generated process records.
	DatabasePath string `yaml:"database_path" json:"database_path"`

	// QueueSize bounds the number of pending process-generation jobs.
	QueueSize int `yaml:"queue_size" json:"queue_size"`

	// PurgeCron is a cron-style schedule string (e.g. "@hourly") for
	// purging finished generation job records from memory.
	PurgeCron string `yaml:"purge_cron" json:"purge_cron"`

	// IssueColours are the hex colors used to distinguish issues in the
	// calendar sheet. The presets keep distinguishability for users with
	// red-green color vision deficiency.
	IssueColours []string `yaml:"issue_colours" json:"issue_colours"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

var defaultIssueColours = []string{
	"#f94a15", "#0071bc", "#42ba37", "#d100b9", "#eacc00",
	"#53c3cf", "#522ddc", "#9b5f00", "#98acff", "#d20020",
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:       "127.0.0.1:8080",
		Timezone:     "Europe/Berlin",
		DatabasePath: "./var/newscal.db",
		QueueSize:    16,
		PurgeCron:    "@hourly",
		IssueColours: append([]string(nil), defaultIssueColours...),
		BasicAuth:    nil,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.Timezone == "" {
		c.Timezone = "Europe/Berlin"
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "./var/newscal.db"
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 16
	}
	if c.PurgeCron == "" {
		c.PurgeCron = "@hourly"
	}
	if len(c.IssueColours) == 0 {
		c.IssueColours = append([]string(nil), defaultIssueColours...)
	}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
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

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	// Atomic write: write to temp file in same directory then rename.
	tmp, err := os.CreateTemp(dir, ".newscal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	if err := os.Rename(tmpName, path); err != nil {
		return err
	}

	return nil
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
