package config

import (
	"errors"
	"fmt"
	"slices"
)

var (
	textProviders  = []string{"anthropic", "openai", "openrouter"}
	imageProviders = []string{"openai", "horde", "none"}
	stockProviders = []string{"pixabay", "none"}
	logLevels      = []string{"debug", "info", "warn", "warning", "error"}
)

// Validate ensures the configuration is usable. Provider credentials are checked
// when providers are constructed so CLI commands that never reach a provider
// work without keys.
func (c *Config) Validate() error {
	if err := c.validateProviders(); err != nil {
		return err
	}
	if err := c.validateGeneration(); err != nil {
		return err
	}
	if c.Paths.DataDir == "" {
		return errors.New("paths.data_dir must be set")
	}
	if c.Paths.ExportDir == "" {
		return errors.New("paths.export_dir must be set")
	}
	if !slices.Contains(logLevels, c.Logging.Level) {
		return fmt.Errorf("logging.level %q is not one of %v", c.Logging.Level, logLevels)
	}
	return nil
}

func (c *Config) validateProviders() error {
	if !slices.Contains(textProviders, c.Text.Provider) {
		return fmt.Errorf("text.provider %q is not one of %v", c.Text.Provider, textProviders)
	}
	if !slices.Contains(imageProviders, c.Images.Provider) {
		return fmt.Errorf("images.provider %q is not one of %v", c.Images.Provider, imageProviders)
	}
	if !slices.Contains(stockProviders, c.Images.StockProvider) {
		return fmt.Errorf("images.stock_provider %q is not one of %v", c.Images.StockProvider, stockProviders)
	}
	return nil
}

func (c *Config) validateGeneration() error {
	if err := ensurePositiveMap(map[string]int{
		"generation.max_attempts":       c.Generation.MaxAttempts,
		"generation.poll_interval":      c.Generation.PollInterval,
		"generation.min_chapters":       c.Generation.MinChapters,
		"generation.words_per_page":     c.Generation.WordsPerPage,
		"images.concurrency":            c.Images.Concurrency,
		"text.timeout_seconds":          c.Text.TimeoutSeconds,
		"images.timeout_seconds":        c.Images.TimeoutSeconds,
		"notifications.request_timeout": c.Notifications.RequestTimeout,
	}); err != nil {
		return err
	}
	if c.Generation.RetryBackoffSeconds < 0 {
		return errors.New("generation.retry_backoff_seconds must be >= 0")
	}
	if c.Images.Width < 256 || c.Images.Height < 256 {
		return errors.New("images.width and images.height must be at least 256")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
