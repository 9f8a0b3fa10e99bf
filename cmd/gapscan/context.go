package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/anatolykoptev/go-kit/env"

	"github.com/anatolykoptev/go_gap/internal/engine"
)

// commandContext carries the persistent flags shared by all subcommands.
type commandContext struct {
	configFlag   *string
	logLevelFlag *string
	loaded       bool
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag, logLevelFlag: logLevelFlag}
}

// ensureConfig reads the environment once, applies flag overrides and
// initializes the engine.
func (c *commandContext) ensureConfig() engine.Config {
	if c.loaded {
		return *engine.Cfg
	}
	level := strings.TrimSpace(*c.logLevelFlag)
	if level == "" {
		level = env.Str("LOG_LEVEL", "warn")
	}
	slog.SetDefault(engine.NewLogger(os.Stderr, level))

	cfg := engine.ConfigFromEnv()
	if p := strings.TrimSpace(*c.configFlag); p != "" {
		cfg.PhrasesFile = p
	}
	engine.Init(cfg)
	engine.InitCache(cfg.RedisURL, cfg.CompletionCacheTTL, cfg.CacheMaxEntries, cfg.CacheCleanupInterval)
	c.loaded = true
	return *engine.Cfg
}
