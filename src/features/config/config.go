package config

import "time"

// Config holds the application configuration.
type Config struct {
	OutputPath  string   `yaml:"outputPath" validate:"required"`
	ArtistsFile string   `yaml:"artistsFile"`
	Logger      Logger   `yaml:"logger"`
	Database    Database `yaml:"database"`
	Pipeline    Pipeline `yaml:"pipeline"`
	YtDlp       YtDlp    `yaml:"ytdlp"`
	Ledger      Ledger   `yaml:"ledger"`
	Tagging     Tagging  `yaml:"tagging"`
	Server      Server   `yaml:"server"`
	Telegram    Telegram `yaml:"telegram"`
	Jobs        Jobs     `yaml:"jobs"`
	Watch       Watch    `yaml:"watch"`
}

type Jobs struct {
	Log      bool          `yaml:"log"`
	LogPath  string        `yaml:"log_path"`
	Webhooks WebhookConfig `yaml:"webhooks"`
}

type WebhookConfig struct {
	Enabled  bool     `yaml:"enabled"`
	JobTypes []string `yaml:"job_types"`
	Command  string   `yaml:"command"`
}

// Database holds the configuration for the catalog database
type Database struct {
	Path    string `yaml:"path" validate:"required"`
	Retries int    `yaml:"retries" validate:"gte=0,lte=10"`
}

// Pipeline holds the acquisition pipeline knobs.
type Pipeline struct {
	Concurrency   int   `yaml:"concurrency" validate:"gte=1,lte=100"`
	SearchRetries int   `yaml:"search_retries" validate:"gte=0,lte=5"`
	MinFileSize   int64 `yaml:"min_file_size" validate:"gte=0"`
	SkipComplete  bool  `yaml:"skip_complete_artists"`
	Asciify       bool  `yaml:"asciify_paths"`
}

// YtDlp holds the configuration of the external search/download tool.
type YtDlp struct {
	Binary              string        `yaml:"binary" validate:"required"`
	BaseURL             string        `yaml:"base_url" validate:"required"`
	AudioFormat         string        `yaml:"audio_format" validate:"required"`
	AudioQuality        string        `yaml:"audio_quality"`
	CompletionMarker    string        `yaml:"completion_marker" validate:"required"`
	SearchTimeout       time.Duration `yaml:"search_timeout"`
	ListTimeout         time.Duration `yaml:"list_timeout"`
	DownloadTimeout     time.Duration `yaml:"download_timeout"`
	MaxOutputBytes      int           `yaml:"max_output_bytes" validate:"gte=0"`
	SearchRatePerSecond float64       `yaml:"search_rate_per_second" validate:"gte=0"`
}

// Ledger holds the failure ledger location.
type Ledger struct {
	Path string `yaml:"path" validate:"required"`
}

// Tagging holds the optional tag checks done around a download.
type Tagging struct {
	Verify bool `yaml:"verify"`
	Retag  bool `yaml:"retag"`
}

// Server hold the configuration for the Fiber server Config
type Server struct {
	Enabled     bool   `yaml:"enabled"`
	PrintRoutes bool   `yaml:"show_routes"`
	Port        uint32 `yaml:"port"`
}

// Logger holds the configuration for the app logging
type Logger struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format  string `yaml:"format" validate:"omitempty,oneof=text json logfmt"`
}

type Telegram struct {
	Enabled      bool     `yaml:"enabled"`
	Token        string   `yaml:"token"`
	AllowedUsers []string `yaml:"allowedUsers"`
	NotifyChats  []int64  `yaml:"notify_chats"`
}

// Watch enables re-running acquisition when the artists file changes.
type Watch struct {
	Enabled  bool          `yaml:"enabled"`
	Debounce time.Duration `yaml:"debounce"`
}
