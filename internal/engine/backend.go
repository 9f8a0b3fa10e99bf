package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/anatolykoptev/go-kit/llm"
	"google.golang.org/genai"
)

// Backend is the single call contract every LLM backend implements.
// Callers never branch on backend identity; they only read MaxBatch to size
// comment batches for the backend's context capacity.
type Backend interface {
	Name() string
	Complete(ctx context.Context, prompt string) (string, error)
	MaxBatch() int
}

// Backend kinds accepted by NewBackend.
const (
	BackendChat   = "chat"
	BackendGemini = "gemini"
	BackendLocal  = "local"
)

// ErrMissingCredentials is returned when a backend needs an API key that is not configured.
var ErrMissingCredentials = errors.New("missing credentials")

// NewBackend builds the backend named by kind from c.
func NewBackend(ctx context.Context, kind string, c Config) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", BackendChat:
		if c.LLMAPIKey == "" {
			return nil, fmt.Errorf("chat backend: LLM_API_KEY: %w", ErrMissingCredentials)
		}
		return NewChatBackend(c), nil
	case BackendGemini:
		if c.GeminiAPIKey == "" {
			return nil, fmt.Errorf("gemini backend: GEMINI_API_KEY: %w", ErrMissingCredentials)
		}
		return NewGeminiBackend(ctx, c.GeminiAPIKey, c.GeminiModel, c.LLMTemperature)
	case BackendLocal:
		return NewLocalBackend(c.LocalLLMURL, c.LocalLLMModel, c.LLMTimeout), nil
	default:
		return nil, fmt.Errorf("unknown llm backend %q (want chat, gemini or local)", kind)
	}
}

// --- chat: OpenAI-compatible chat completion ---

// ChatBackend talks to any OpenAI-compatible chat completion endpoint.
type ChatBackend struct {
	client *llm.Client
	model  string
}

// NewChatBackend creates a chat completion backend from c.
func NewChatBackend(c Config) *ChatBackend {
	timeout := c.LLMTimeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	client := llm.NewClient(c.LLMAPIBase, c.LLMAPIKey, c.LLMModel,
		llm.WithFallbackKeys(c.LLMAPIKeyFallbacks),
		llm.WithMaxTokens(c.LLMMaxTokens),
		llm.WithTemperature(c.LLMTemperature),
		llm.WithHTTPClient(&http.Client{Timeout: timeout}),
	)
	return &ChatBackend{client: client, model: c.LLMModel}
}

func (b *ChatBackend) Name() string  { return "chat:" + b.model }
func (b *ChatBackend) MaxBatch() int { return 60 }

func (b *ChatBackend) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := b.client.Complete(ctx, systemJSONOnly, prompt)
	if err != nil {
		return "", err
	}
	return StripFences(resp), nil
}

// --- gemini: generate content ---

// GeminiBackend calls the Gemini GenerateContent API.
type GeminiBackend struct {
	client      *genai.Client
	model       string
	temperature float32
}

// NewGeminiBackend creates a Gemini backend.
func NewGeminiBackend(ctx context.Context, apiKey, model string, temperature float64) (*GeminiBackend, error) {
	if model == "" {
		model = "gemini-2.5-flash"
	}
	return newGeminiBackend(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}, model, temperature)
}

func newGeminiBackend(ctx context.Context, cc *genai.ClientConfig, model string, temperature float64) (*GeminiBackend, error) {
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &GeminiBackend{client: client, model: model, temperature: float32(temperature)}, nil
}

func (b *GeminiBackend) Name() string { return "gemini:" + b.model }

// MaxBatch is larger than the chat backend: Gemini models carry a 1M token context.
func (b *GeminiBackend) MaxBatch() int { return 200 }

func (b *GeminiBackend) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := b.client.Models.GenerateContent(ctx, b.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature:       genai.Ptr(b.temperature),
		ResponseMIMEType:  "application/json",
		SystemInstruction: genai.NewContentFromText(systemJSONOnly, genai.RoleUser),
	})
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	return StripFences(resp.Text()), nil
}

// --- local: HTTP inference daemon (Ollama /api/generate) ---

// LocalBackend calls a local inference daemon speaking the Ollama generate API.
type LocalBackend struct {
	endpoint string
	model    string
	client   *http.Client
}

// NewLocalBackend creates a local daemon backend.
func NewLocalBackend(endpoint, model string, timeout time.Duration) *LocalBackend {
	if endpoint == "" {
		endpoint = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3.1"
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &LocalBackend{
		endpoint: strings.TrimRight(endpoint, "/"),
		model:    model,
		client:   &http.Client{Timeout: timeout},
	}
}

func (b *LocalBackend) Name() string { return "local:" + b.model }

// MaxBatch is small: local models usually run with an 8k context.
func (b *LocalBackend) MaxBatch() int { return 25 }

type localGenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	System string `json:"system,omitempty"`
	Format string `json:"format,omitempty"`
	Stream bool   `json:"stream"`
}

type localGenerateResponse struct {
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}

func (b *LocalBackend) Complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(localGenerateRequest{
		Model:  b.model,
		Prompt: prompt,
		System: systemJSONOnly,
		Format: "json",
		Stream: false,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("local llm request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("local llm returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out localGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode local llm response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("local llm: %s", out.Error)
	}
	return StripFences(out.Response), nil
}
