package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable. Client host and port are
// checked by ValidateClient because a server-only deployment never sets them.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := ensurePositiveMap(map[string]int{
		"client.interval": c.Client.Interval,
		"client.timeout":  c.Client.Timeout,
	}); err != nil {
		return err
	}
	if c.Client.Port != 0 {
		if err := validatePort("client.port", c.Client.Port); err != nil {
			return err
		}
	}
	return c.validateLogging()
}

// ValidateClient checks the settings the polling client cannot run without.
func (c *Config) ValidateClient() error {
	if c.Client.Host == "" {
		return errors.New("client.host must be set")
	}
	return validatePort("client.port", c.Client.Port)
}

func (c *Config) validateServer() error {
	if err := validatePort("server.port", c.Server.Port); err != nil {
		return err
	}
	if c.Server.StartOffset < 0 {
		return errors.New("server.start_offset must be >= 0")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
}

func validatePort(key string, port int) error {
	if port <= 0 || port > 65535 {
		return fmt.Errorf("%s must be between 1 and 65535", key)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
