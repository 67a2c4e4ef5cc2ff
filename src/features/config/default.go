package config

import "time"

// createDefaultConfig creates a new Config with sensible default values
func createDefaultConfig() *Config {
	return &Config{
		OutputPath:  "./Musics",
		ArtistsFile: "./artists.txt",
		Logger: Logger{
			Enabled: true,
			Level:   "info",
			Format:  "text",
		},
		Database: Database{
			Path:    "./music_database.sqlite",
			Retries: 1,
		},
		Pipeline: Pipeline{
			Concurrency:   10,
			SearchRetries: 1,
			MinFileSize:   1024,
			SkipComplete:  true,
			Asciify:       false,
		},
		YtDlp: YtDlp{
			Binary:              "yt-dlp",
			BaseURL:             "https://music.youtube.com/watch?v=",
			AudioFormat:         "mp3",
			AudioQuality:        "0",
			CompletionMarker:    "Deleting original file",
			SearchTimeout:       2 * time.Minute,
			ListTimeout:         time.Minute,
			DownloadTimeout:     15 * time.Minute,
			MaxOutputBytes:      5 * 1024 * 1024,
			SearchRatePerSecond: 0,
		},
		Ledger: Ledger{
			Path: "./FailedTracks.json",
		},
		Tagging: Tagging{
			Verify: false,
			Retag:  false,
		},
		Server: Server{
			Enabled:     true,
			PrintRoutes: false,
			Port:        3636,
		},
		Telegram: Telegram{
			Enabled:      false,
			Token:        "",                                   // Can be obtained with https://t.me/BotFather
			AllowedUsers: []string{"<your_telegram_username>"}, // No @
			NotifyChats:  []int64{},
		},
		Jobs: Jobs{
			Log:     true,
			LogPath: "./logs/jobs",
			Webhooks: WebhookConfig{
				Enabled:  false,
				JobTypes: []string{},
				Command:  "",
			},
		},
		Watch: Watch{
			Enabled:  false,
			Debounce: 5 * time.Second,
		},
	}
}
