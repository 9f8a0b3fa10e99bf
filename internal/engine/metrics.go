package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
)

// Metrics tracks operational counters across the engine.
var metrics struct {
	VideosIngested         atomic.Int64
	VideosSkipped          atomic.Int64
	VideosFailed           atomic.Int64
	SourceCacheHits        atomic.Int64
	SourceCacheMisses      atomic.Int64
	YouTubeAPIRequests     atomic.Int64
	YouTubeCaptionRequests atomic.Int64
	CommentPages           atomic.Int64
	AudioDownloads         atomic.Int64
	AudioRetries           atomic.Int64
	LLMCalls               atomic.Int64
	LLMErrors              atomic.Int64
	TrendLookups           atomic.Int64
	TrendErrors            atomic.Int64
	PipelineRuns           atomic.Int64
}

// GetMetrics returns a snapshot of all metrics including completion cache stats.
func GetMetrics() map[string]int64 {
	hits, misses := CacheStats()
	return map[string]int64{
		"videos_ingested":          metrics.VideosIngested.Load(),
		"videos_skipped":           metrics.VideosSkipped.Load(),
		"videos_failed":            metrics.VideosFailed.Load(),
		"source_cache_hits":        metrics.SourceCacheHits.Load(),
		"source_cache_misses":      metrics.SourceCacheMisses.Load(),
		"youtube_api_requests":     metrics.YouTubeAPIRequests.Load(),
		"youtube_caption_requests": metrics.YouTubeCaptionRequests.Load(),
		"comment_pages":            metrics.CommentPages.Load(),
		"audio_downloads":          metrics.AudioDownloads.Load(),
		"audio_retries":            metrics.AudioRetries.Load(),
		"llm_calls":                metrics.LLMCalls.Load(),
		"llm_errors":               metrics.LLMErrors.Load(),
		"trend_lookups":            metrics.TrendLookups.Load(),
		"trend_errors":             metrics.TrendErrors.Load(),
		"pipeline_runs":            metrics.PipelineRuns.Load(),
		"completion_cache_hits":    hits,
		"completion_cache_misses":  misses,
	}
}

// FormatMetrics returns metrics as a simple text format for HTTP endpoint.
func FormatMetrics() string {
	m := GetMetrics()
	var sb strings.Builder
	keys := []string{
		"pipeline_runs",
		"videos_ingested", "videos_skipped", "videos_failed",
		"source_cache_hits", "source_cache_misses",
		"youtube_api_requests", "youtube_caption_requests", "comment_pages",
		"audio_downloads", "audio_retries",
		"llm_calls", "llm_errors",
		"trend_lookups", "trend_errors",
		"completion_cache_hits", "completion_cache_misses",
	}
	for _, k := range keys {
		fmt.Fprintf(&sb, "%s %d\n", k, m[k])
	}
	return sb.String()
}

// Incrementors for the gaps/ and sources/ sub-packages.
func IncrVideosIngested()  { metrics.VideosIngested.Add(1) }
func IncrVideosSkipped()   { metrics.VideosSkipped.Add(1) }
func IncrVideosFailed()    { metrics.VideosFailed.Add(1) }
func IncrSourceCacheHit()  { metrics.SourceCacheHits.Add(1) }
func IncrSourceCacheMiss() { metrics.SourceCacheMisses.Add(1) }
func IncrYouTubeAPI()      { metrics.YouTubeAPIRequests.Add(1) }
func IncrYouTubeCaption()  { metrics.YouTubeCaptionRequests.Add(1) }
func IncrCommentPages()    { metrics.CommentPages.Add(1) }
func IncrAudioDownloads()  { metrics.AudioDownloads.Add(1) }
func IncrAudioRetries()    { metrics.AudioRetries.Add(1) }
func IncrTrendLookups()    { metrics.TrendLookups.Add(1) }
func IncrTrendErrors()     { metrics.TrendErrors.Add(1) }
func IncrPipelineRuns()    { metrics.PipelineRuns.Add(1) }

// TrackOperation logs a warning if an operation takes longer than threshold.
func TrackOperation(ctx context.Context, name string, fn func(context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)
	if elapsed > 30*time.Second {
		slog.Warn("slow operation", slog.String("op", name), slog.Duration("elapsed", elapsed))
	}
	return err
}
