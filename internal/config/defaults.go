package config

// DefaultPrompt is the summary prompt used when a group has no override.
const DefaultPrompt = "请总结以下聊天记录："

// DefaultTemplate is the render template used when a group has no override.
const DefaultTemplate = "base"

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			DataDir:         "~/.chatsummary/data",
			LogLevel:        "info",
			DefaultProvider: "openai",
		},
		Platform: PlatformConfig{
			APIBase: "http://localhost:3000",
		},
		Providers: map[string]ProviderConfig{
			"openai": {
				Enabled:      true,
				APIBase:      "https://api.openai.com/v1",
				DefaultModel: "gpt-4o-mini",
				VisionModels: []string{"gpt-4o", "gpt-4o-mini", "gpt-4.1"},
			},
		},
		Summary: SummaryConfig{
			DefaultPrompt:    DefaultPrompt,
			DefaultTemplate:  DefaultTemplate,
			WakePrefixes:     []string{"总结"},
			MaxRetries:       2,
			RetryBaseDelayMs: 1000,
			ExcerptRunes:     400,
		},
		Caption: CaptionConfig{
			Enabled:       true,
			MaxConcurrent: 2,
			DelayMs:       500,
			CacheSize:     128,
		},
		Render: RenderConfig{
			OutputDir: "~/.chatsummary/data/images",
			Headless:  true,
		},
		Archive: ArchiveConfig{
			Enabled: true,
			DBPath:  "~/.chatsummary/summaries.db",
		},
		Telegram: TelegramConfig{
			Enabled: false,
		},
	}
}
