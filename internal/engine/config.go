package engine

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/anatolykoptev/go-kit/env"
)

// Config holds all engine configuration, injected from main.
type Config struct {
	// LLM backends
	LLMBackend         string // chat, gemini, local
	LLMAPIKey          string
	LLMAPIKeyFallbacks []string
	LLMAPIBase         string
	LLMModel           string
	LLMTemperature     float64
	LLMMaxTokens       int
	LLMTimeout         time.Duration
	GeminiAPIKey       string
	GeminiModel        string
	LocalLLMURL        string
	LocalLLMModel      string

	// Video platform
	YouTubeAPIKey         string
	YouTubeAPIKeyFallback string
	CaptionLangs          []string
	MaxComments           int
	FetchTimeout          time.Duration

	// Audio fallback (transcribe mode)
	DownloaderBin   string // yt-dlp compatible
	WhisperBin      string
	WhisperModel    string
	DownloadRetries int

	// Trends
	TrendsDelay  time.Duration
	TrendsGeo    string
	TrendsWindow string

	// Storage
	CacheDir             string
	DataDir              string
	DatabaseURL          string
	RedisURL             string
	CompletionCacheTTL   time.Duration
	CacheMaxEntries      int
	CacheCleanupInterval time.Duration

	// Pipeline
	IngestWorkers   int
	CommentWorkers  int
	MinMentions     int
	TranscriptChars int
	PhrasesFile     string

	HTTPClient *http.Client
}

var cfg Config

// Cfg exposes the engine configuration for sub-packages (gaps, sources).
// Always points to the current cfg value.
var Cfg = &cfg

// Init initializes the engine with the given configuration.
func Init(c Config) {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.FetchTimeout}
	}
	cfg = c
	Cfg = &cfg
}

// ConfigFromEnv builds a Config from environment variables.
// Shared by the MCP server and the gapscan CLI.
func ConfigFromEnv() Config {
	home, _ := os.UserHomeDir()
	dataDir := env.Str("GAP_DATA_DIR", filepath.Join(home, ".go_gap"))

	return Config{
		LLMBackend:         strings.ToLower(env.Str("LLM_BACKEND", "chat")),
		LLMAPIKey:          env.Str("LLM_API_KEY", ""),
		LLMAPIKeyFallbacks: env.List("LLM_API_KEY_FALLBACKS", ""),
		LLMAPIBase:         env.Str("LLM_API_BASE", "https://api.openai.com/v1"),
		LLMModel:           env.Str("LLM_MODEL", "gpt-4o-mini"),
		LLMTemperature:     env.Float("LLM_TEMPERATURE", 0.1),
		LLMMaxTokens:       env.Int("LLM_MAX_TOKENS", 8192),
		LLMTimeout:         env.Duration("LLM_TIMEOUT", 120*time.Second),
		GeminiAPIKey:       env.Str("GEMINI_API_KEY", ""),
		GeminiModel:        env.Str("GEMINI_MODEL", "gemini-2.5-flash"),
		LocalLLMURL:        env.Str("LOCAL_LLM_URL", "http://localhost:11434"),
		LocalLLMModel:      env.Str("LOCAL_LLM_MODEL", "llama3.1"),

		YouTubeAPIKey:         env.Str("YOUTUBE_API_KEY", ""),
		YouTubeAPIKeyFallback: env.Str("YOUTUBE_API_KEY_FALLBACK", ""),
		CaptionLangs:          env.List("CAPTION_LANGS", "en"),
		MaxComments:           env.Int("MAX_COMMENTS", 500),
		FetchTimeout:          env.Duration("FETCH_TIMEOUT", 20*time.Second),

		DownloaderBin:   env.Str("DOWNLOADER_BIN", "yt-dlp"),
		WhisperBin:      env.Str("WHISPER_BIN", "whisper"),
		WhisperModel:    env.Str("WHISPER_MODEL", "base"),
		DownloadRetries: env.Int("DOWNLOAD_RETRIES", 3),

		TrendsDelay:  env.Duration("TRENDS_DELAY", 2*time.Second),
		TrendsGeo:    env.Str("TRENDS_GEO", ""),
		TrendsWindow: env.Str("TRENDS_WINDOW", "today 3-m"),

		CacheDir:             env.Str("GAP_CACHE_DIR", filepath.Join(dataDir, "cache")),
		DataDir:              dataDir,
		DatabaseURL:          env.Str("DATABASE_URL", ""),
		RedisURL:             env.Str("REDIS_URL", ""),
		CompletionCacheTTL:   env.Duration("COMPLETION_CACHE_TTL", 24*time.Hour),
		CacheMaxEntries:      env.Int("CACHE_MAX_ENTRIES", 1000),
		CacheCleanupInterval: env.Duration("CACHE_CLEANUP_INTERVAL", 300*time.Second),

		IngestWorkers:   env.Int("INGEST_WORKERS", 4),
		CommentWorkers:  env.Int("COMMENT_WORKERS", 6),
		MinMentions:     env.Int("MIN_MENTIONS", 3),
		TranscriptChars: env.Int("TRANSCRIPT_CHARS", 3000),
		PhrasesFile:     env.Str("SIGNAL_PHRASES_FILE", ""),

		HTTPClient: &http.Client{
			Timeout: 20 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     60 * time.Second,
			},
		},
	}
}
