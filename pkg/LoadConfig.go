package pkg

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/vrischmann/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds everything the tool needs besides the query itself. Values
// are layered: built-in defaults, then an optional YAML file, then RTR_*
// environment variables, then command line flags (applied by the caller).
type Config struct {
	Server string `yaml:"server" envconfig:"RTR_SERVER,optional"`

	ConnectTimeoutSeconds uint `yaml:"connectTimeoutSeconds" envconfig:"RTR_CONNECT_TIMEOUT_SECONDS,optional"`
	TimeoutSeconds        uint `yaml:"timeoutSeconds" envconfig:"RTR_TIMEOUT_SECONDS,optional"`

	LogLevel string `yaml:"logLevel" envconfig:"RTR_LOG_LEVEL,optional"`
	Format   string `yaml:"format" envconfig:"RTR_FORMAT,optional"`

	TLS TLSConfig `yaml:"tls"`
}

// TLSConfig enables RTR over TLS for caches that require it.
type TLSConfig struct {
	Enabled    bool   `yaml:"enabled" envconfig:"RTR_TLS,optional"`
	SkipVerify bool   `yaml:"skipVerify" envconfig:"RTR_TLS_SKIP_VERIFY,optional"`
	ServerName string `yaml:"serverName" envconfig:"RTR_TLS_SERVER_NAME,optional"`
}

// DefaultConfig returns the built-in defaults: a 10 second connect deadline
// and a 30 second session deadline, sized for a one-shot validation run.
func DefaultConfig() Config {
	return Config{
		ConnectTimeoutSeconds: 10,
		TimeoutSeconds:        30,
		LogLevel:              "info",
		Format:                "text",
	}
}

// LoadConfig reads a YAML config file over the given base configuration.
func LoadConfig(filename string, base Config) (Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return base, err
	}

	config := base
	if err := yaml.Unmarshal(data, &config); err != nil {
		return base, fmt.Errorf("parse config %s: %w", filename, err)
	}
	return config, nil
}

// LoadEnv applies RTR_* environment variables over the configuration.
func LoadEnv(config *Config) error {
	return envconfig.Init(config)
}

// Validate checks the fields the tool cannot default its way out of.
func (c Config) Validate() error {
	if c.Server == "" {
		return errors.New("no RTR cache given (--server)")
	}
	if c.TimeoutSeconds == 0 {
		return errors.New("session timeout must be at least one second")
	}
	if c.ConnectTimeoutSeconds == 0 {
		return errors.New("connect timeout must be at least one second")
	}
	if c.Format != "text" && c.Format != "json" {
		return fmt.Errorf("unknown output format %q", c.Format)
	}
	return nil
}

func (c Config) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutSeconds) * time.Second
}

func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
