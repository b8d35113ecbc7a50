package config

// Config holds the application configuration.
type Config struct {
	Telegram Telegram `yaml:"telegram"`
	Logger   Logger   `yaml:"logger"`
	Server   Server   `yaml:"server"`
	Database Database `yaml:"database"`
	Scanner  Scanner  `yaml:"scanner"`
	Webhook  Webhook  `yaml:"webhook"`
}

// Scanner holds the configuration of the library scanner.
type Scanner struct {
	Libraries []Library `yaml:"libraries" validate:"required,min=1,dive"`
	// UpdatePeriod is ignored when Schedule is set.
	UpdatePeriod string `yaml:"update_period" validate:"omitempty,oneof=never hourly daily weekly monthly"`
	StartTime    string `yaml:"start_time" validate:"omitempty,datetime=15:04"`
	// Schedule is a standard five fields cron expression.
	Schedule        string   `yaml:"schedule"`
	ExcludeFile     string   `yaml:"exclude_file"`
	Workers         int      `yaml:"workers" validate:"gte=0"`
	WriteBatchSize  int      `yaml:"write_batch_size" validate:"gte=0"`
	Plugins         []string `yaml:"plugins" validate:"dive,oneof=audio lyrics playlist image artist_info"`
	AudioExtensions []string `yaml:"audio_extensions"`
	ScanOnStartup   bool     `yaml:"scan_on_startup"`
	Watch           bool     `yaml:"watch"`
	Log             bool     `yaml:"log"`
	LogPath         string   `yaml:"log_path"`
}

// Library is a music root tracked as one unit.
type Library struct {
	Name string `yaml:"name" validate:"required"`
	Path string `yaml:"path" validate:"required"`
}

// Webhook runs a shell command when a scan ends.
type Webhook struct {
	Enabled bool `yaml:"enabled"`
	// Events filters on "complete" and "aborted", empty means both.
	Events  []string `yaml:"events" validate:"dive,oneof=complete aborted"`
	Command string   `yaml:"command"`
}

// Database holds the configuration for the database
type Database struct {
	Path string `yaml:"path" validate:"required"`
}

// Server hold the configuration for the Fiber server Config
type Server struct {
	PrintRoutes bool   `yaml:"show_routes"`
	Port        uint32 `yaml:"port"`
}

// Logger holds the configuration for the app logging
type Logger struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level"`
	Format  string `yaml:"format"`
}

type Telegram struct {
	Enabled       bool     `yaml:"enabled"`
	Token         string   `yaml:"token"`
	AllowedUsers  []string `yaml:"allowedUsers"`
	BotHandle     string   `yaml:"bot_handle"`
	NotifyChatIDs []int64  `yaml:"notify_chat_ids"`
}
