package gaps

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/anatolykoptev/go_gap/internal/engine"
	"github.com/anatolykoptev/go_gap/internal/engine/sources"
)

// NewPipelineFromConfig wires the production pipeline: YouTube Data API and
// caption scraping, the named LLM backend behind the completion cache, the
// on-disk source cache, Google Trends and the audio fallback.
func NewPipelineFromConfig(ctx context.Context, c engine.Config, backend string) (*Pipeline, error) {
	yt := sources.NewYouTube(c)
	if !yt.HasAPIKey() {
		return nil, fmt.Errorf("YOUTUBE_API_KEY: %w", engine.ErrMissingCredentials)
	}
	if backend == "" {
		backend = c.LLMBackend
	}
	b, err := engine.NewBackend(ctx, backend, c)
	if err != nil {
		return nil, err
	}
	cache, err := NewSourceCache(c.CacheDir)
	if err != nil {
		return nil, err
	}
	filter, err := LoadFilterOptions(c.PhrasesFile)
	if err != nil {
		return nil, err
	}

	policy := engine.DefaultDownloadPolicy()
	if c.DownloadRetries > 0 {
		policy.MaxAttempts = c.DownloadRetries
	}
	audio := sources.NewAudioDownloader(c.DownloaderBin, filepath.Join(c.DataDir, "audio"), policy)

	return NewPipeline(Deps{
		Platform:    yt,
		Backend:     engine.WithCompletionCache(b),
		Trends:      sources.NewTrends(c, ""),
		Cache:       cache,
		Audio:       audio,
		Transcriber: sources.SharedTranscriber,
	}, c, filter), nil
}
