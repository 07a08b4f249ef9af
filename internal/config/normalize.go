package config

import (
	"fmt"
	"os"
	"strings"
)

// hordeAnonymousKey is the shared key AI Horde accepts for anonymous, low-priority requests.
const hordeAnonymousKey = "0000000000"

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeText()
	c.normalizeImages()
	c.normalizeGeneration()
	c.normalizeExport()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ExportDir) == "" {
		c.Paths.ExportDir = defaultExportDir
	}
	if c.Paths.ExportDir, err = expandPath(c.Paths.ExportDir); err != nil {
		return fmt.Errorf("paths.export_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeText() {
	c.Text.Provider = strings.ToLower(strings.TrimSpace(c.Text.Provider))
	if c.Text.Provider == "" {
		c.Text.Provider = defaultTextProvider
	}
	c.Text.Model = strings.TrimSpace(c.Text.Model)
	if c.Text.Model == "" {
		c.Text.Model = defaultTextModel(c.Text.Provider)
	}
	c.Text.BaseURL = strings.TrimSpace(c.Text.BaseURL)
	if c.Text.BaseURL == "" && c.Text.Provider == "openrouter" {
		c.Text.BaseURL = defaultOpenRouterBaseURL
	}
	c.Text.Referer = strings.TrimSpace(c.Text.Referer)
	if c.Text.Referer == "" {
		c.Text.Referer = defaultTextReferer
	}
	c.Text.Title = strings.TrimSpace(c.Text.Title)
	if c.Text.Title == "" {
		c.Text.Title = defaultTextTitle
	}
	if c.Text.TimeoutSeconds <= 0 {
		c.Text.TimeoutSeconds = defaultTextTimeoutSeconds
	}
	if c.Text.MaxTokens <= 0 {
		c.Text.MaxTokens = defaultTextMaxTokens
	}
	c.Text.APIKey = envOverride(c.Text.APIKey, textKeyEnv(c.Text.Provider)...)
}

func (c *Config) normalizeImages() {
	c.Images.Provider = strings.ToLower(strings.TrimSpace(c.Images.Provider))
	if c.Images.Provider == "" {
		c.Images.Provider = defaultImageProvider
	}
	c.Images.Model = strings.TrimSpace(c.Images.Model)
	if c.Images.Model == "" && c.Images.Provider == "openai" {
		c.Images.Model = defaultOpenAIImageModel
	}
	c.Images.BaseURL = strings.TrimSpace(c.Images.BaseURL)
	switch c.Images.Provider {
	case "openai":
		c.Images.APIKey = envOverride(c.Images.APIKey, "OPENAI_API_KEY")
	case "horde":
		c.Images.APIKey = envOverride(c.Images.APIKey, "HORDE_API_KEY")
		if c.Images.APIKey == "" {
			c.Images.APIKey = hordeAnonymousKey
		}
	}
	c.Images.StockProvider = strings.ToLower(strings.TrimSpace(c.Images.StockProvider))
	if c.Images.StockProvider == "" {
		c.Images.StockProvider = defaultStockProvider
	}
	c.Images.StockBaseURL = strings.TrimSpace(c.Images.StockBaseURL)
	if c.Images.StockBaseURL == "" {
		c.Images.StockBaseURL = defaultPixabayBaseURL
	}
	c.Images.StockAPIKey = envOverride(c.Images.StockAPIKey, "PIXABAY_API_KEY")
	if c.Images.Concurrency <= 0 {
		c.Images.Concurrency = defaultImageConcurrency
	}
	if c.Images.Width <= 0 {
		c.Images.Width = defaultImageSize
	}
	if c.Images.Height <= 0 {
		c.Images.Height = defaultImageSize
	}
	if c.Images.TimeoutSeconds <= 0 {
		c.Images.TimeoutSeconds = defaultImageTimeoutSeconds
	}
}

func (c *Config) normalizeGeneration() {
	if c.Generation.MaxAttempts <= 0 {
		c.Generation.MaxAttempts = defaultMaxAttempts
	}
	if c.Generation.RetryBackoffSeconds < 0 {
		c.Generation.RetryBackoffSeconds = 0
	}
	if c.Generation.PollInterval <= 0 {
		c.Generation.PollInterval = defaultPollInterval
	}
	if c.Generation.MinChapters <= 0 {
		c.Generation.MinChapters = defaultMinChapters
	}
	if c.Generation.WordsPerPage <= 0 {
		c.Generation.WordsPerPage = defaultWordsPerPage
	}
}

func (c *Config) normalizeExport() {
	if c.Export.CacheTTLMinutes < 0 {
		c.Export.CacheTTLMinutes = 0
	}
	if c.API.RateLimitPerMinute < 0 {
		c.API.RateLimitPerMinute = 0
	}
	c.API.Token = envOverride(c.API.Token, "BOOKFORGE_API_TOKEN")
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func textKeyEnv(provider string) []string {
	switch provider {
	case "openai":
		return []string{"OPENAI_API_KEY"}
	case "openrouter":
		return []string{"OPENROUTER_API_KEY"}
	default:
		return []string{"ANTHROPIC_API_KEY"}
	}
}

// envOverride returns the first non-empty environment variable among names,
// falling back to the configured value.
func envOverride(current string, names ...string) string {
	for _, name := range names {
		if value, ok := os.LookupEnv(name); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return strings.TrimSpace(current)
}
