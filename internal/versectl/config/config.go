// Package config provides configuration management for the Versewall CLI
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config holds the CLI configuration
type Config struct {
	// CurrentContext is the name of the active context
	CurrentContext string `mapstructure:"current-context"`
	// Contexts holds the available deployment contexts
	Contexts map[string]*Context `mapstructure:"contexts"`
}

// Context represents one Versewall deployment
type Context struct {
	// Name is the context identifier
	Name string `mapstructure:"name"`
	// Broker is the cloud relay broker URL
	Broker string `mapstructure:"broker"`
	// Database is the display registry connection string
	Database string `mapstructure:"database"`
	// Token is the bearer token presented during local handshakes
	Token string `mapstructure:"token"`
	// Tenant scopes registry queries and the presence subscription
	Tenant string `mapstructure:"tenant"`
}

// defaultConfigPath returns the default config file path
func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".versectl/config.yaml"
	}
	return filepath.Join(home, ".versectl/config.yaml")
}

// LoadConfig loads the configuration from disk
func LoadConfig() (*Config, error) {
	configPath := os.Getenv("VERSECTL_CONFIG")
	if configPath == "" {
		configPath = defaultConfigPath()
	}

	viper.SetDefault("current-context", "")
	viper.SetDefault("contexts", map[string]*Context{})

	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			// First run: create the config directory and a default file
			configDir := filepath.Dir(configPath)
			if err := os.MkdirAll(configDir, 0755); err != nil {
				return nil, fmt.Errorf("error creating config directory: %w", err)
			}
			if err := viper.SafeWriteConfig(); err != nil {
				return nil, fmt.Errorf("error writing default config: %w", err)
			}
		} else if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	return &config, nil
}

// SaveConfig writes the configuration to disk
func SaveConfig(config *Config) error {
	viper.Set("current-context", config.CurrentContext)
	viper.Set("contexts", config.Contexts)

	if err := viper.WriteConfig(); err != nil {
		return fmt.Errorf("error writing config: %w", err)
	}

	return nil
}

// GetCurrentContext returns the active context configuration
func (c *Config) GetCurrentContext() (*Context, error) {
	if c.CurrentContext == "" {
		return nil, fmt.Errorf("no current context set")
	}

	ctx, ok := c.Contexts[c.CurrentContext]
	if !ok {
		return nil, fmt.Errorf("current context %q not found", c.CurrentContext)
	}

	return ctx, nil
}

// AddContext adds or updates a context in the configuration
func (c *Config) AddContext(name string, context *Context) {
	if c.Contexts == nil {
		c.Contexts = make(map[string]*Context)
	}
	context.Name = name
	c.Contexts[name] = context
}

// SetCurrentContext sets the active context
func (c *Config) SetCurrentContext(name string) error {
	if _, ok := c.Contexts[name]; !ok {
		return fmt.Errorf("context %q not found", name)
	}
	c.CurrentContext = name
	return nil
}

// RemoveContext removes a context from the configuration
func (c *Config) RemoveContext(name string) error {
	if _, ok := c.Contexts[name]; !ok {
		return fmt.Errorf("context %q not found", name)
	}
	delete(c.Contexts, name)

	if c.CurrentContext == name {
		c.CurrentContext = ""
	}

	return nil
}
