package config

const (
	defaultConfigPath          = "~/.config/bookforge/config.toml"
	defaultDataDir             = "~/.local/share/bookforge"
	defaultExportDir           = "~/.local/share/bookforge/exports"
	defaultLogDir              = "~/.local/share/bookforge/logs"
	defaultAPIBind             = "127.0.0.1:8001"
	defaultTextProvider        = "anthropic"
	defaultAnthropicModel      = "claude-3-5-sonnet-latest"
	defaultOpenAITextModel     = "gpt-4o"
	defaultOpenRouterBaseURL   = "https://openrouter.ai/api/v1/chat/completions"
	defaultOpenRouterModel     = "anthropic/claude-3.5-sonnet"
	defaultTextReferer         = "https://github.com/bookforge/bookforge"
	defaultTextTitle           = "bookforge"
	defaultTextTimeoutSeconds  = 180
	defaultTextMaxTokens       = 8192
	defaultImageProvider       = "openai"
	defaultOpenAIImageModel    = "dall-e-3"
	defaultStockProvider       = "pixabay"
	defaultPixabayBaseURL      = "https://pixabay.com/api/"
	defaultImageConcurrency    = 3
	defaultImageSize           = 1024
	defaultImageTimeoutSeconds = 300
	defaultMaxAttempts         = 3
	defaultRetryBackoffSeconds = 2
	defaultPollInterval        = 5
	defaultMinChapters         = 10
	defaultWordsPerPage        = 250
	defaultCacheTTLMinutes     = 30
	defaultRateLimitPerMinute  = 120
	defaultNotifyTimeout       = 10
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:   defaultDataDir,
			ExportDir: defaultExportDir,
			LogDir:    defaultLogDir,
			APIBind:   defaultAPIBind,
		},
		Text: Text{
			Provider:       defaultTextProvider,
			Referer:        defaultTextReferer,
			Title:          defaultTextTitle,
			TimeoutSeconds: defaultTextTimeoutSeconds,
			MaxTokens:      defaultTextMaxTokens,
		},
		Images: Images{
			Provider:       defaultImageProvider,
			StockProvider:  defaultStockProvider,
			StockBaseURL:   defaultPixabayBaseURL,
			Placeholder:    true,
			Concurrency:    defaultImageConcurrency,
			Width:          defaultImageSize,
			Height:         defaultImageSize,
			TimeoutSeconds: defaultImageTimeoutSeconds,
		},
		Generation: Generation{
			MaxAttempts:         defaultMaxAttempts,
			RetryBackoffSeconds: defaultRetryBackoffSeconds,
			PollInterval:        defaultPollInterval,
			AutoImages:          true,
			MinChapters:         defaultMinChapters,
			WordsPerPage:        defaultWordsPerPage,
		},
		Export: Export{
			CacheTTLMinutes: defaultCacheTTLMinutes,
			KeepFiles:       true,
		},
		API: API{
			RateLimitPerMinute: defaultRateLimitPerMinute,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Outline:        true,
			Chapters:       true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

// defaultTextModel returns the model used when [text] model is unset.
func defaultTextModel(provider string) string {
	switch provider {
	case "openai":
		return defaultOpenAITextModel
	case "openrouter":
		return defaultOpenRouterModel
	default:
		return defaultAnthropicModel
	}
}
