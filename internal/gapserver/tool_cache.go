package gapserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/go_gap/internal/engine"
	"github.com/anatolykoptev/go_gap/internal/engine/gaps"
)

// CacheClearInput is the (empty) input of source_cache_clear.
type CacheClearInput struct{}

// CacheClearOutput is the result of source_cache_clear.
type CacheClearOutput struct {
	Dir     string `json:"dir"`
	Removed int    `json:"removed"`
}

func registerSourceCacheClear(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "source_cache_clear",
		Description: "Delete every cached per-video source record (metadata, transcript, comments). The next content_gaps run fetches everything again.",
	}, func(_ context.Context, _ *mcp.CallToolRequest, _ CacheClearInput) (*mcp.CallToolResult, CacheClearOutput, error) {
		out, err := clearSourceCache(engine.Cfg.CacheDir)
		if err != nil {
			return nil, CacheClearOutput{}, err
		}
		return nil, out, nil
	})
}

func clearSourceCache(dir string) (CacheClearOutput, error) {
	cache, err := gaps.NewSourceCache(dir)
	if err != nil {
		return CacheClearOutput{}, err
	}
	n, err := cache.Clear()
	if err != nil {
		return CacheClearOutput{}, err
	}
	return CacheClearOutput{Dir: cache.Dir(), Removed: n}, nil
}
