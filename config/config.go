package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"scrollfeed/models"

	"github.com/BurntSushi/toml"
)

// TomlFeed tunes the feed controller
type TomlFeed struct {
	PageSize  int           `toml:"page_size"`
	Threshold int           `toml:"threshold"`
	Debounce  time.Duration `toml:"debounce"` // e.g. "10ms", negative disables
}

// TomlServer configures the content server
type TomlServer struct {
	Port         int      `toml:"port"`
	Hostname     string   `toml:"hostname"`
	Database     string   `toml:"database"`
	AllowOrigins string   `toml:"allow_origins"`
	Languages    []string `toml:"languages"` // ISO 639-1 codes to detect
}

// TomlClient configures how the viewer reaches the content server
type TomlClient struct {
	Server            string        `toml:"server"`
	RequestsPerSecond float64       `toml:"requests_per_second"`
	Timeout           time.Duration `toml:"timeout"`
}

// TomlConfig represents the top-level configuration
type TomlConfig struct {
	Feed   TomlFeed   `toml:"feed"`
	Server TomlServer `toml:"server"`
	Client TomlClient `toml:"client"`
}

// Default is the configuration used for everything the file leaves out
func Default() *TomlConfig {
	return &TomlConfig{
		Feed: TomlFeed{
			PageSize:  models.PageSize,
			Threshold: 500,
			Debounce:  10 * time.Millisecond,
		},
		Server: TomlServer{
			Port:         3000,
			Hostname:     "localhost",
			Database:     "feed.db",
			AllowOrigins: "*",
			Languages:    []string{"en", "nb", "nn", "sv", "da", "de"},
		},
		Client: TomlClient{
			Server:  "http://localhost:3000",
			Timeout: 10 * time.Second,
		},
	}
}

// LoadConfig reads the file at path over the defaults. An empty path
// returns the defaults.
func LoadConfig(path string) (*TomlConfig, error) {
	config := Default()
	if path == "" {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file: %w", err)
	}

	return config, nil
}

func (c *TomlConfig) Validate() error {
	var errs []error
	if c.Feed.PageSize < 1 || c.Feed.PageSize > models.MaxLimit {
		errs = append(errs, fmt.Errorf("feed.page_size must be between 1 and %d, got %d", models.MaxLimit, c.Feed.PageSize))
	}
	if c.Feed.Threshold < 1 {
		errs = append(errs, fmt.Errorf("feed.threshold must be positive, got %d", c.Feed.Threshold))
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	if c.Client.RequestsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("client.requests_per_second must not be negative, got %g", c.Client.RequestsPerSecond))
	}
	return errors.Join(errs...)
}
