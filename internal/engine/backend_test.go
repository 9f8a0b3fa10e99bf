package engine

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"google.golang.org/genai"
)

func TestNewBackend(t *testing.T) {
	ctx := context.Background()

	t.Run("chat without key", func(t *testing.T) {
		_, err := NewBackend(ctx, BackendChat, Config{})
		if !errors.Is(err, ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("gemini without key", func(t *testing.T) {
		_, err := NewBackend(ctx, BackendGemini, Config{})
		if !errors.Is(err, ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("unknown", func(t *testing.T) {
		if _, err := NewBackend(ctx, "telepathy", Config{}); err == nil {
			t.Error("expected error for unknown backend")
		}
	})

	t.Run("local needs no key", func(t *testing.T) {
		b, err := NewBackend(ctx, " LOCAL ", Config{LocalLLMModel: "qwen"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if b.Name() != "local:qwen" {
			t.Errorf("Name() = %q", b.Name())
		}
	})

	t.Run("chat default", func(t *testing.T) {
		b, err := NewBackend(ctx, "", Config{LLMAPIKey: "k", LLMModel: "m"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if b.MaxBatch() != 60 {
			t.Errorf("MaxBatch() = %d, want 60", b.MaxBatch())
		}
	})
}

func TestLocalBackendComplete(t *testing.T) {
	var got localGenerateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(localGenerateResponse{Response: "```json\n{\"ok\":true}\n```"})
	}))
	defer srv.Close()

	b := NewLocalBackend(srv.URL+"/", "llama3.1", 5*time.Second)
	out, err := b.Complete(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != `{"ok":true}` {
		t.Errorf("fences not stripped: %q", out)
	}
	if got.Model != "llama3.1" || got.Prompt != "hello" || got.Format != "json" || got.Stream {
		t.Errorf("unexpected request: %+v", got)
	}
	if got.System == "" {
		t.Error("system instruction missing")
	}
}

func TestLocalBackendErrors(t *testing.T) {
	t.Run("status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "model not found", http.StatusNotFound)
		}))
		defer srv.Close()
		if _, err := NewLocalBackend(srv.URL, "x", time.Second).Complete(context.Background(), "p"); err == nil {
			t.Error("expected error on 404")
		}
	})

	t.Run("error field", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_ = json.NewEncoder(w).Encode(localGenerateResponse{Error: "out of memory"})
		}))
		defer srv.Close()
		if _, err := NewLocalBackend(srv.URL, "x", time.Second).Complete(context.Background(), "p"); err == nil {
			t.Error("expected error from error field")
		}
	})
}

const fencedReply = "```json\n{\"ok\":true}\n```"

func TestChatBackendComplete(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		body = string(raw)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]string{"role": "assistant", "content": fencedReply},
			}},
		})
	}))
	defer srv.Close()

	b := NewChatBackend(Config{LLMAPIBase: srv.URL, LLMAPIKey: "k", LLMModel: "test-model", LLMTimeout: 5 * time.Second})
	out, err := b.Complete(context.Background(), "hello chat")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != `{"ok":true}` {
		t.Errorf("fences not stripped: %q", out)
	}
	if !strings.Contains(body, "hello chat") || !strings.Contains(body, "test-model") {
		t.Errorf("unexpected request body: %s", body)
	}
}

func TestGeminiBackendComplete(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{{
				"content": map[string]any{
					"role":  "model",
					"parts": []map[string]string{{"text": fencedReply}},
				},
				"finishReason": "STOP",
			}},
		})
	}))
	defer srv.Close()

	b, err := newGeminiBackend(context.Background(), &genai.ClientConfig{
		APIKey:      "k",
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: srv.URL},
	}, "gemini-test", 0.2)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	if b.Name() != "gemini:gemini-test" {
		t.Errorf("Name() = %q", b.Name())
	}

	out, err := b.Complete(context.Background(), "hello gemini")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != `{"ok":true}` {
		t.Errorf("fences not stripped: %q", out)
	}
	if !strings.Contains(path, "gemini-test:generateContent") {
		t.Errorf("unexpected request path %q", path)
	}
}
