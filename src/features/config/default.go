package config

import "runtime"

const (
	DefaultExcludeFile    = ".lmsignore"
	DefaultWriteBatchSize = 20
	DefaultScanLogPath    = "./logs/scans"
)

var defaultConfig = Config{
	Telegram: Telegram{
		Enabled:       false,
		Token:         "",                                   // Can be obtained with https://t.me/BotFather
		AllowedUsers:  []string{"<your_telegram_username>"}, // No @
		BotHandle:     "@<YourTelegramUserBot>",             // With @
		NotifyChatIDs: []int64{},
	},
	Logger: Logger{
		Enabled: true,
		Level:   "info",
		Format:  "text",
	},
	Server: Server{
		PrintRoutes: false,
		Port:        3535,
	},
	Database: Database{
		Path: "./library.db",
	},
	Scanner: Scanner{
		Libraries: []Library{
			{Name: "Music", Path: "./music"},
		},
		UpdatePeriod:   "daily",
		StartTime:      "03:00",
		ExcludeFile:    DefaultExcludeFile,
		WriteBatchSize: DefaultWriteBatchSize,
		Plugins:        []string{"audio", "lyrics", "playlist", "image", "artist_info"},
		ScanOnStartup:  true,
		Watch:          false,
		Log:            true,
		LogPath:        DefaultScanLogPath,
	},
	Webhook: Webhook{
		Enabled: false,
		Events:  []string{},
		Command: "",
	},
}

// createDefaultConfig returns a copy of the default configuration
func createDefaultConfig() *Config {
	cfg := defaultConfig
	cfg.Scanner.Libraries = append([]Library(nil), defaultConfig.Scanner.Libraries...)
	cfg.Scanner.Plugins = append([]string(nil), defaultConfig.Scanner.Plugins...)
	return &cfg
}

// applyDefaults fills the optional values left empty in a config file
func applyDefaults(cfg *Config) {
	if cfg.Scanner.UpdatePeriod == "" {
		cfg.Scanner.UpdatePeriod = "never"
	}
	if cfg.Scanner.Workers == 0 {
		cfg.Scanner.Workers = runtime.NumCPU()
	}
	if cfg.Scanner.WriteBatchSize == 0 {
		cfg.Scanner.WriteBatchSize = DefaultWriteBatchSize
	}
	if cfg.Scanner.LogPath == "" {
		cfg.Scanner.LogPath = DefaultScanLogPath
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 3535
	}
}
