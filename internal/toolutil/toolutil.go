// Package toolutil provides helpers shared by the MCP tools and the gapscan CLI.
package toolutil

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/anatolykoptev/go_gap/internal/engine"
	"github.com/anatolykoptev/go_gap/internal/engine/gaps"
)

// CacheLoadJSON tries to load a cached value of type T from the engine cache.
// Returns the decoded value and true on hit; zero value and false on miss or decode error.
func CacheLoadJSON[T any](ctx context.Context, key string) (T, bool) {
	var out T
	cached, ok := engine.CacheGet(ctx, key)
	if !ok {
		return out, false
	}
	if err := json.Unmarshal([]byte(cached), &out); err != nil {
		var zero T
		return zero, false
	}
	return out, true
}

// CacheStoreJSON marshals v and stores it in the engine cache.
func CacheStoreJSON[T any](ctx context.Context, key string, v T) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	engine.CacheSet(ctx, key, string(data))
}

// ReportFiles are the paths written by WriteReport.
type ReportFiles struct {
	JSON     string `json:"json"`
	Markdown string `json:"markdown"`
}

// WriteReport writes the run as gaps-<channel>-<timestamp>.json plus the
// rendered Markdown next to it. dir is created if missing.
func WriteReport(dir string, r gaps.RunReport) (ReportFiles, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ReportFiles{}, fmt.Errorf("create output dir: %w", err)
	}
	base := fmt.Sprintf("gaps-%s-%s", Slug(r.Channel), r.GeneratedAt.UTC().Format("20060102-150405"))
	files := ReportFiles{
		JSON:     filepath.Join(dir, base+".json"),
		Markdown: filepath.Join(dir, base+".md"),
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return ReportFiles{}, fmt.Errorf("encode report: %w", err)
	}
	if err := os.WriteFile(files.JSON, data, 0o644); err != nil {
		return ReportFiles{}, fmt.Errorf("write report: %w", err)
	}
	if err := os.WriteFile(files.Markdown, []byte(gaps.RenderMarkdown(r)), 0o644); err != nil {
		return ReportFiles{}, fmt.Errorf("write report: %w", err)
	}
	return files, nil
}

// Slug turns a channel reference into a file-name-safe token.
func Slug(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "@")
	var b strings.Builder
	dash := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	out := strings.TrimRight(b.String(), "-")
	if out == "" {
		return "channel"
	}
	return out
}
