package config

const (
	defaultOutputDir      = "~/foundry/output"
	defaultHistoryDB      = "~/.local/share/foundry/history.db"
	defaultLogDir         = "~/.local/share/foundry/logs"
	defaultProvider       = "skybox"
	defaultPollInterval   = 5
	defaultItemDelay      = 2
	defaultWaitTimeout    = 300
	defaultSkyboxBaseURL  = "https://backend.blockadelabs.com/api/v1"
	defaultSkyboxStyleID  = 67
	defaultSoundFXBaseURL = "https://api.elevenlabs.io/v1"
	defaultHTTPTimeout    = 60
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir: defaultOutputDir,
			HistoryDB: defaultHistoryDB,
			LogDir:    defaultLogDir,
		},
		Runner: Runner{
			Provider:     defaultProvider,
			PollInterval: defaultPollInterval,
			ItemDelay:    defaultItemDelay,
			WaitTimeout:  defaultWaitTimeout,
		},
		Skybox: Skybox{
			BaseURL:        defaultSkyboxBaseURL,
			StyleID:        defaultSkyboxStyleID,
			EnhancePrompt:  true,
			RequestTimeout: defaultHTTPTimeout,
		},
		SoundFX: SoundFX{
			BaseURL:        defaultSoundFXBaseURL,
			RequestTimeout: defaultHTTPTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
