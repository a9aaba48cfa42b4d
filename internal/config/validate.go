package config

import (
	"errors"
	"fmt"
)

// Providers lists the generation backends this build ships.
var Providers = []string{"skybox", "soundfx"}

// Validate ensures the configuration is usable. Provider credentials are not
// checked here: parse-only and status invocations never need them, so the key
// requirement is enforced when the selected provider is constructed.
func (c *Config) Validate() error {
	if err := c.validateRunner(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateRunner() error {
	known := false
	for _, name := range Providers {
		if c.Runner.Provider == name {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("runner.provider must be one of %v, got %q", Providers, c.Runner.Provider)
	}
	if c.Runner.WaitTimeout <= c.Runner.PollInterval {
		return errors.New("runner.wait_timeout must exceed runner.poll_interval")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
