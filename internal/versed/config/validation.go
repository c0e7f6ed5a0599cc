package config

import (
	"fmt"
	"time"
)

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Local.Port < 1 || c.Local.Port > 65535 {
		return fmt.Errorf("invalid local transport port: %d", c.Local.Port)
	}
	if c.Local.HandshakeTimeout < time.Second {
		return fmt.Errorf("handshake timeout must be at least 1s")
	}
	if c.Display.Name == "" {
		return fmt.Errorf("display name is required")
	}
	if c.Display.HeartbeatInterval < time.Second {
		return fmt.Errorf("heartbeat interval must be at least 1s")
	}
	if c.Relay.BrokerURL == "" {
		return fmt.Errorf("relay broker URL is required")
	}
	if c.Relay.QoS < 0 || c.Relay.QoS > 2 {
		return fmt.Errorf("invalid relay QoS: %d", c.Relay.QoS)
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("invalid database port: %d", c.Database.Port)
	}
	if c.Database.MaxOpenConns < 1 {
		return fmt.Errorf("invalid max open connections: %d", c.Database.MaxOpenConns)
	}
	if c.Database.MaxIdleConns < 1 {
		return fmt.Errorf("invalid max idle connections: %d", c.Database.MaxIdleConns)
	}
	return nil
}
