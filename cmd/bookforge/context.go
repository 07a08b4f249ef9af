package main

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"bookforge/internal/config"
	"bookforge/internal/daemonrun"
	"bookforge/internal/logging"
)

type commandContext struct {
	configFlag *string
	jsonFlag   *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string, jsonFlag *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		jsonFlag:   jsonFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) jsonOutput() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

// cliLogger writes warnings and errors to stderr so command output stays clean.
func (c *commandContext) cliLogger(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	logger, err := logging.New(logging.Options{
		Level:  "warn",
		Format: cfg.Logging.Format,
		Writer: cmd.ErrOrStderr(),
	})
	if err != nil {
		return logging.NewNop()
	}
	return logger
}

// withRuntime opens the local runtime for the duration of fn.
func (c *commandContext) withRuntime(cmd *cobra.Command, fn func(*daemonrun.Runtime) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	rt, err := daemonrun.Open(cfg, c.cliLogger(cmd, cfg))
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(rt)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func parseChapterArg(value string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid chapter number %q", value)
	}
	return n, nil
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
