package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the client configuration, loaded from an optional yaml file.
// Every field has a working default; an empty path yields a config that
// connects to a local relay.
type Config struct {
	RelayURL string `yaml:"relay_url"`
	DataDir  string `yaml:"data_dir"`

	// KeystorePassword encrypts the wallet file under DataDir. The
	// CLI flag and environment variable take precedence.
	KeystorePassword string `yaml:"keystore_password"`

	DisplayName string `yaml:"display_name"`
	Admin       bool   `yaml:"admin"`

	Journal JournalSpec `yaml:"journal"`
	Archive ArchiveSpec `yaml:"archive"`
}

// JournalSpec controls the raw message journal.
type JournalSpec struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir,omitempty"`
}

// ArchiveSpec controls the sqlite market index.
type ArchiveSpec struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path,omitempty"`
}

func Load(path string) (Config, error) {
	cfg := defaults()
	if strings.TrimSpace(path) == "" {
		cfg.Normalize()
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func defaults() Config {
	return Config{
		RelayURL: "ws://localhost:8090",
		DataDir:  "data",
		Journal:  JournalSpec{Enabled: true},
		Archive:  ArchiveSpec{Enabled: true},
	}
}

func (c *Config) Normalize() {
	if c == nil {
		return
	}
	c.RelayURL = strings.TrimSpace(c.RelayURL)
	c.DataDir = strings.TrimSpace(c.DataDir)
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.Journal.Dir == "" {
		c.Journal.Dir = c.DataDir + "/journal"
	}
	if c.Archive.Path == "" {
		c.Archive.Path = c.DataDir + "/market.db"
	}
}

func (c Config) Validate() error {
	if c.RelayURL == "" {
		return fmt.Errorf("relay_url must not be empty")
	}
	u, err := url.Parse(c.RelayURL)
	if err != nil {
		return fmt.Errorf("relay_url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("relay_url scheme must be ws or wss, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("relay_url must include a host")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	return nil
}
