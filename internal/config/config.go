package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

const appDir = "todo-tui"

// Config holds the application configuration
type Config struct {
	Store     StoreConfig     `toml:"store"`
	Database  DatabaseConfig  `toml:"database"`
	Firestore FirestoreConfig `toml:"firestore"`
	Log       LogConfig       `toml:"log"`
}

// StoreConfig selects the task store backend and the collection it serves
type StoreConfig struct {
	Backend    string `toml:"backend"`
	Collection string `toml:"collection"`
}

// DatabaseConfig holds settings for the local SQLite store
type DatabaseConfig struct {
	Path   string `toml:"path"`
	Driver string `toml:"driver"` // "sqlite3" (cgo) or "sqlite" (pure Go)
}

// FirestoreConfig holds settings for the Cloud Firestore store
type FirestoreConfig struct {
	ProjectID       string   `toml:"project_id"`
	DatabaseID      string   `toml:"database_id"`
	CredentialsFile string   `toml:"credentials_file"`
	ClientSecrets   string   `toml:"client_secrets"`
	TokenFile       string   `toml:"token_file"`
	Endpoint        string   `toml:"endpoint"`
	PollInterval    Duration `toml:"poll_interval"`
}

// LogConfig controls where the application writes its log
type LogConfig struct {
	Path  string `toml:"path"`
	Level string `toml:"level"`
}

// Duration is a time.Duration that reads and writes as a string like "2s"
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", string(text), err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Dir returns the directory holding the config file and default data files
func Dir() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".config", appDir)
}

// Default returns the default configuration
func Default() *Config {
	dir := Dir()
	return &Config{
		Store: StoreConfig{
			Backend:    "sqlite",
			Collection: "todos",
		},
		Database: DatabaseConfig{
			Path:   filepath.Join(dir, "todos.db"),
			Driver: "sqlite3",
		},
		Firestore: FirestoreConfig{
			DatabaseID:    "(default)",
			ClientSecrets: filepath.Join(dir, "credentials.json"),
			TokenFile:     filepath.Join(dir, "token.json"),
			PollInterval:  Duration{2 * time.Second},
		},
		Log: LogConfig{
			Path:  filepath.Join(dir, "todo.log"),
			Level: "info",
		},
	}
}

// Path returns the standard config file location
func Path() string {
	return filepath.Join(Dir(), "config.toml")
}

// Load loads configuration from the standard location
func Load() (*Config, error) {
	return LoadFrom(Path())
}

// LoadFrom loads configuration from a specific path
func LoadFrom(configPath string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg.applyEnv()
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.Database.Path = expandPath(cfg.Database.Path)
	cfg.Firestore.CredentialsFile = expandPath(cfg.Firestore.CredentialsFile)
	cfg.Firestore.ClientSecrets = expandPath(cfg.Firestore.ClientSecrets)
	cfg.Firestore.TokenFile = expandPath(cfg.Firestore.TokenFile)
	cfg.Log.Path = expandPath(cfg.Log.Path)
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv lets the Firestore emulator variable win over the file
func (c *Config) applyEnv() {
	if host := os.Getenv("FIRESTORE_EMULATOR_HOST"); host != "" {
		c.Firestore.Endpoint = "http://" + host + "/"
	}
}

// Validate reports settings that cannot work
func (c *Config) Validate() error {
	if c.Store.Collection == "" {
		return fmt.Errorf("store.collection must not be empty")
	}
	switch c.Database.Driver {
	case "sqlite3", "sqlite":
	default:
		return fmt.Errorf("database.driver %q: want sqlite3 or sqlite", c.Database.Driver)
	}
	if c.Firestore.PollInterval.Duration < 0 {
		return fmt.Errorf("firestore.poll_interval must not be negative")
	}
	return nil
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[1:])
	}
	return path
}

// Save saves the configuration to the standard location
func (c *Config) Save() error {
	if err := os.MkdirAll(Dir(), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	return c.SaveTo(Path())
}

// SaveTo saves the configuration to a specific path
func (c *Config) SaveTo(configPath string) error {
	f, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	return nil
}
