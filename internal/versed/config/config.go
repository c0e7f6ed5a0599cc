// Package config provides configuration management for the Versewall
// display host daemon
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the host daemon
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Local     LocalConfig     `yaml:"local"`
	Display   DisplayConfig   `yaml:"display"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Relay     RelayConfig     `yaml:"relay"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
}

// ServerConfig holds settings for the ops HTTP endpoint
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	IdleTimeout  time.Duration `yaml:"idleTimeout"`
}

// LocalConfig holds settings for the LAN transport listener
type LocalConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	HandshakeTimeout time.Duration `yaml:"handshakeTimeout"`
	WriteTimeout     time.Duration `yaml:"writeTimeout"`
}

// DisplayConfig holds the display's own identity settings
type DisplayConfig struct {
	// Name is the human-readable display name used in advertisements
	Name string `yaml:"name"`
	// DataDir is where the pairing file is persisted
	DataDir string `yaml:"dataDir"`
	// HeartbeatInterval is how often last-seen is written to the store
	HeartbeatInterval time.Duration `yaml:"heartbeatInterval"`
	// AdvertiseInterval is how often the local address is written to the store
	AdvertiseInterval time.Duration `yaml:"advertiseInterval"`
}

// DiscoveryConfig holds mDNS advertisement settings
type DiscoveryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Domain  string `yaml:"domain"`
}

// RelayConfig holds cloud relay broker settings
type RelayConfig struct {
	BrokerURL      string        `yaml:"brokerUrl"`
	QoS            int           `yaml:"qos"`
	ConnectTimeout time.Duration `yaml:"connectTimeout"`
}

// DatabaseConfig holds backing store connection settings
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Name            string        `yaml:"name"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// RedisConfig holds rate-limit store settings
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Load returns the default configuration overlaid with environment
// variables
func Load() (*Config, error) {
	cfg := defaultConfig()
	cfg.overlayEnv()
	return cfg, cfg.validate()
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8089,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Local: LocalConfig{
			Host:             "0.0.0.0",
			Port:             8765,
			HandshakeTimeout: 5 * time.Second,
			WriteTimeout:     10 * time.Second,
		},
		Display: DisplayConfig{
			Name:              "Versewall Display",
			DataDir:           "/var/lib/versewall",
			HeartbeatInterval: 30 * time.Second,
			AdvertiseInterval: 5 * time.Minute,
		},
		Discovery: DiscoveryConfig{
			Enabled: true,
			Domain:  "local.",
		},
		Relay: RelayConfig{
			BrokerURL:      "tcp://localhost:1883",
			QoS:            1,
			ConnectTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			Name:            "versewall",
			User:            "versewall",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: time.Hour,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
	}
}

// overlayEnv overlays environment variables on top of file-based config
func (c *Config) overlayEnv() {
	// Server config
	if host := getEnv("VERSE_SERVER_HOST", ""); host != "" {
		c.Server.Host = host
	}
	if port := getEnvAsInt("VERSE_SERVER_PORT", 0); port != 0 {
		c.Server.Port = port
	}

	// Local transport config
	if host := getEnv("VERSE_LOCAL_HOST", ""); host != "" {
		c.Local.Host = host
	}
	if port := getEnvAsInt("VERSE_LOCAL_PORT", 0); port != 0 {
		c.Local.Port = port
	}
	if timeout := getEnvAsDuration("VERSE_LOCAL_HANDSHAKE_TIMEOUT", 0); timeout != 0 {
		c.Local.HandshakeTimeout = timeout
	}

	// Display config
	if name := getEnv("VERSE_DISPLAY_NAME", ""); name != "" {
		c.Display.Name = name
	}
	if dir := getEnv("VERSE_DATA_DIR", ""); dir != "" {
		c.Display.DataDir = dir
	}
	if interval := getEnvAsDuration("VERSE_HEARTBEAT_INTERVAL", 0); interval != 0 {
		c.Display.HeartbeatInterval = interval
	}
	if interval := getEnvAsDuration("VERSE_ADVERTISE_INTERVAL", 0); interval != 0 {
		c.Display.AdvertiseInterval = interval
	}

	// Relay config
	if url := getEnv("VERSE_RELAY_BROKER_URL", ""); url != "" {
		c.Relay.BrokerURL = url
	}

	// Database config - check multiple env var names
	if host := getEnvMulti([]string{"VERSE_DB_HOST", "DB_HOST", "POSTGRES_HOST"}, ""); host != "" {
		c.Database.Host = host
	}
	if port := getEnvAsIntMulti([]string{"VERSE_DB_PORT", "DB_PORT", "POSTGRES_PORT"}, 0); port != 0 {
		c.Database.Port = port
	}
	if name := getEnvMulti([]string{"VERSE_DB_NAME", "DB_NAME", "POSTGRES_DB"}, ""); name != "" {
		c.Database.Name = name
	}
	if user := getEnvMulti([]string{"VERSE_DB_USER", "DB_USER", "POSTGRES_USER"}, ""); user != "" {
		c.Database.User = user
	}
	if password := getEnvMulti([]string{"VERSE_DB_PASSWORD", "DB_PASSWORD", "POSTGRES_PASSWORD"}, ""); password != "" {
		c.Database.Password = password
	}
	if sslmode := getEnv("VERSE_DB_SSLMODE", ""); sslmode != "" {
		c.Database.SSLMode = sslmode
	}

	// Redis config
	if addr := getEnv("VERSE_REDIS_ADDR", ""); addr != "" {
		c.Redis.Addr = addr
	}
	if password := getEnv("VERSE_REDIS_PASSWORD", ""); password != "" {
		c.Redis.Password = password
	}
	if db := getEnvAsInt("VERSE_REDIS_DB", -1); db >= 0 {
		c.Redis.DB = db
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvMulti(keys []string, fallback string) string {
	for _, key := range keys {
		if value, ok := os.LookupEnv(key); ok {
			return value
		}
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsIntMulti(keys []string, fallback int) int {
	for _, key := range keys {
		if value, ok := os.LookupEnv(key); ok {
			if parsed, err := strconv.Atoi(value); err == nil {
				return parsed
			}
		}
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}
