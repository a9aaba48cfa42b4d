package main

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"foundry/internal/config"
	"foundry/internal/logging"
	"foundry/internal/provider"
	"foundry/internal/services"
	"foundry/internal/services/skybox"
	"foundry/internal/services/soundfx"
)

// newGenerator builds the provider adapter selected in configuration.
// Missing credentials surface here, not at config load, so read-only
// commands work without an API key.
func newGenerator(cfg *config.Config) (provider.Generator, error) {
	switch cfg.Runner.Provider {
	case "skybox":
		client, err := skybox.New(skybox.Config{
			APIKey:         cfg.Skybox.APIKey,
			BaseURL:        cfg.Skybox.BaseURL,
			StyleID:        cfg.Skybox.StyleID,
			EnhancePrompt:  cfg.Skybox.EnhancePrompt,
			TimeoutSeconds: cfg.Skybox.RequestTimeout,
		})
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "skybox", "configure", "", err)
		}
		return client, nil
	case "soundfx":
		client, err := soundfx.New(soundfx.Config{
			APIKey:         cfg.SoundFX.APIKey,
			BaseURL:        cfg.SoundFX.BaseURL,
			TimeoutSeconds: cfg.SoundFX.RequestTimeout,
		})
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "soundfx", "configure", "", err)
		}
		return client, nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "runner", "configure",
			fmt.Sprintf("unknown provider %q", cfg.Runner.Provider), nil)
	}
}

func newLogger(cfg *config.Config) (*slog.Logger, error) {
	return logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		OutputPaths: []string{
			"stderr",
			filepath.Join(cfg.Paths.LogDir, "foundry.log"),
		},
	})
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return d.Round(100 * time.Millisecond).String()
}

func truncate(value string, limit int) string {
	if limit <= 0 || len(value) <= limit {
		return value
	}
	if limit <= 3 {
		return value[:limit]
	}
	return value[:limit-3] + "..."
}
