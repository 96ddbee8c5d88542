package configuration

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"panny/internal/file"
)

var defaultConfig = Config{
	APIHost:        "https://panny-be-production.up.railway.app",
	AuthAPIHost:    "",
	RequestTimeout: 60,
	DataDirectory:  "~/.panny",
	LogFile:        "~/.panny/panny.log",
}

// Config holds configuration for the panny client.
type Config struct {
	// Host serving the chat endpoints.
	APIHost string `json:"api_host"`
	// Optional dedicated auth host. Falls back to APIHost when empty.
	AuthAPIHost string `json:"auth_api_host"`
	// Request timeout, in seconds.
	RequestTimeout int `json:"request_timeout"`
	// The directory where we store the chat cache and session record.
	DataDirectory string `json:"data_directory"`
	// Log file path.
	LogFile string `json:"log_file"`
}

// Parse a configuration file.
func Parse(path string) (*Config, error) {
	path, err := file.ExpandPath(path)
	if err != nil {
		return nil, errors.Wrap(err, "expanding path")
	}

	if err := initializeIfNotPresent(path); err != nil {
		return nil, errors.Wrap(err, "initializing configuration")
	}
	bytes, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading file")
	}

	config := &Config{}
	if err = json.Unmarshal(bytes, config); err != nil {
		return nil, errors.Wrap(err, "unmarshaling into config")
	}

	expandedDataDirectory, err := file.ExpandPath(config.DataDirectory)
	if err != nil {
		return nil, errors.Wrap(err, "expanding data directory path")
	}
	config.DataDirectory = expandedDataDirectory
	if err := os.MkdirAll(config.DataDirectory, 0755); err != nil {
		return nil, errors.Wrap(err, "creating data directory")
	}

	expandedLogFile, err := file.ExpandPath(config.LogFile)
	if err != nil {
		return nil, errors.Wrap(err, "expanding log file path")
	}
	config.LogFile = expandedLogFile
	return config, nil
}

// ChatDatabasePath returns the path of the sqlite chat cache.
func (c *Config) ChatDatabasePath() string {
	return filepath.Join(c.DataDirectory, "chats.db")
}

// SessionDatabasePath returns the path of the persisted session store.
func (c *Config) SessionDatabasePath() string {
	return filepath.Join(c.DataDirectory, "session.db")
}

// AuthHost returns the host to use for auth endpoints.
func (c *Config) AuthHost() string {
	if c.AuthAPIHost != "" {
		return c.AuthAPIHost
	}
	return c.APIHost
}

// save a configuration file.
func (c *Config) save(path string) error {
	bytes, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshaling config")
	}

	err = os.WriteFile(path, bytes, 0644)
	if err != nil {
		return errors.Wrap(err, "writing file")
	}

	return nil
}

// initializeIfNotPresent initializes a config if it does not exist.
func initializeIfNotPresent(path string) error {
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		return nil
	}

	// Create the directories.
	dir, _ := filepath.Split(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "creating folders")
	}

	if err := defaultConfig.save(path); err != nil {
		return errors.Wrap(err, "saving default config")
	}
	return nil
}
