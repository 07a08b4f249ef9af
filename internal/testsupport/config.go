package testsupport

import (
	"path/filepath"
	"testing"

	"bookforge/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Providers are disabled so nothing reaches the network; retry backoff is zero.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.ExportDir = filepath.Join(base, "exports")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Text.APIKey = "test"
	cfgVal.Images.Provider = "none"
	cfgVal.Images.StockProvider = "none"
	cfgVal.Generation.RetryBackoffSeconds = 0
	cfgVal.Generation.PollInterval = 1
	cfgVal.Notifications.NtfyTopic = ""

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithMaxAttempts overrides the provider retry budget.
func WithMaxAttempts(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Generation.MaxAttempts = n
	}
}

// WithoutPlaceholder disables the placeholder image fallback.
func WithoutPlaceholder() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Images.Placeholder = false
	}
}

// WithAutoImages toggles image generation after each chapter.
func WithAutoImages(enabled bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Generation.AutoImages = enabled
	}
}

// WithNtfyTopic points notifications at a test server.
func WithNtfyTopic(topic string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Notifications.NtfyTopic = topic
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
