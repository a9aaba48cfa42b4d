package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeRunner()
	c.normalizeSkybox()
	c.normalizeSoundFX()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}

	// The checkpoint sidecar defaults to living beside the artifacts it
	// tracks, matching the one-batch-one-directory layout.
	if strings.TrimSpace(c.Paths.CheckpointFile) == "" {
		c.Paths.CheckpointFile = filepath.Join(c.Paths.OutputDir, "progress.json")
	}
	if c.Paths.CheckpointFile, err = expandPath(c.Paths.CheckpointFile); err != nil {
		return fmt.Errorf("paths.checkpoint_file: %w", err)
	}

	if strings.TrimSpace(c.Paths.HistoryDB) == "" {
		c.Paths.HistoryDB = defaultHistoryDB
	}
	if c.Paths.HistoryDB, err = expandPath(c.Paths.HistoryDB); err != nil {
		return fmt.Errorf("paths.history_db: %w", err)
	}

	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeRunner() {
	c.Runner.Provider = strings.ToLower(strings.TrimSpace(c.Runner.Provider))
	if c.Runner.Provider == "" {
		c.Runner.Provider = defaultProvider
	}
	if c.Runner.PollInterval <= 0 {
		c.Runner.PollInterval = defaultPollInterval
	}
	if c.Runner.ItemDelay < 0 {
		c.Runner.ItemDelay = defaultItemDelay
	}
	if c.Runner.WaitTimeout <= 0 {
		c.Runner.WaitTimeout = defaultWaitTimeout
	}
}

func (c *Config) normalizeSkybox() {
	if c.Skybox.APIKey == "" {
		if value, ok := os.LookupEnv("SKYBOX_API_KEY"); ok {
			c.Skybox.APIKey = value
		}
	}
	c.Skybox.BaseURL = strings.TrimRight(strings.TrimSpace(c.Skybox.BaseURL), "/")
	if c.Skybox.BaseURL == "" {
		c.Skybox.BaseURL = defaultSkyboxBaseURL
	}
	if c.Skybox.StyleID <= 0 {
		c.Skybox.StyleID = defaultSkyboxStyleID
	}
	if c.Skybox.RequestTimeout <= 0 {
		c.Skybox.RequestTimeout = defaultHTTPTimeout
	}
}

func (c *Config) normalizeSoundFX() {
	if c.SoundFX.APIKey == "" {
		if value, ok := os.LookupEnv("SOUNDFX_API_KEY"); ok {
			c.SoundFX.APIKey = value
		}
	}
	c.SoundFX.BaseURL = strings.TrimRight(strings.TrimSpace(c.SoundFX.BaseURL), "/")
	if c.SoundFX.BaseURL == "" {
		c.SoundFX.BaseURL = defaultSoundFXBaseURL
	}
	if c.SoundFX.RequestTimeout <= 0 {
		c.SoundFX.RequestTimeout = defaultHTTPTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
