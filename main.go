// go_gap: content-gap discovery MCP server for YouTube channels.
//
// Exposes content_gaps, gap_history, signal_filter and source_cache_clear.
// Runs as HTTP MCP server or stdio transport. The same pipeline is available
// as a CLI in cmd/gapscan.
package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/anatolykoptev/go-kit/env"
	"github.com/anatolykoptev/go-mcpserver"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/go_gap/internal/engine"
	"github.com/anatolykoptev/go_gap/internal/gapserver"
)

var (
	version = "dev"
	mcpPort = env.Str("MCP_PORT", "8893")
)

func main() {
	slog.SetDefault(engine.NewLogger(os.Stderr, env.Str("LOG_LEVEL", "info")))
	initEngine()
	defer gapserver.CloseStore()

	slog.Info("starting go_gap",
		slog.String("port", mcpPort),
		slog.String("backend", engine.Cfg.LLMBackend),
	)

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "go_gap",
		Version: version,
	}, nil)

	gapserver.RegisterTools(server)
	slog.Info("tools registered", slog.Int("count", gapserver.ToolCount))

	if err := mcpserver.Run(server, mcpserver.Config{
		Name:         "go_gap",
		Version:      version,
		Port:         mcpPort,
		WriteTimeout: 1800 * time.Second,
		Metrics:      engine.FormatMetrics,
	}); err != nil {
		slog.Error("server failed", slog.Any("error", err))
	}
}

func initEngine() {
	c := engine.ConfigFromEnv()
	if c.YouTubeAPIKey == "" {
		slog.Warn("YOUTUBE_API_KEY not set, content_gaps will fail until it is configured")
	}
	engine.Init(c)
	engine.InitCache(c.RedisURL, c.CompletionCacheTTL, c.CacheMaxEntries, c.CacheCleanupInterval)
}
