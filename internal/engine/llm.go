package engine

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"
)

// CurrentDate returns today's date in ISO 8601 format (UTC).
func CurrentDate() string {
	return time.Now().UTC().Format("2006-01-02")
}

// StripFences removes markdown code fences from LLM output.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```JSON")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// extractJSONObject returns the outermost {...} or [...] span of s, or s
// unchanged when no balanced span is found. Models sometimes wrap the JSON
// in a sentence even after being told not to.
func extractJSONObject(s string) string {
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return s
	}
	open, closeCh := s[start], byte('}')
	if open == '[' {
		closeCh = ']'
	}
	depth := 0
	inStr := false
	var prev byte
	for i := start; i < len(s); i++ {
		c := s[i]
		if inStr {
			if c == '"' && prev != '\\' {
				inStr = false
			}
		} else {
			switch c {
			case '"':
				inStr = true
			case open:
				depth++
			case closeCh:
				depth--
				if depth == 0 {
					return s[start : i+1]
				}
			}
		}
		prev = c
	}
	return s
}

// DecodeJSON strips fences and unmarshals raw into T.
func DecodeJSON[T any](raw string) (T, error) {
	var out T
	raw = StripFences(raw)
	if err := json.Unmarshal([]byte(raw), &out); err == nil {
		return out, nil
	}
	var retry T
	err := json.Unmarshal([]byte(extractJSONObject(raw)), &retry)
	return retry, err
}

// CompleteJSON sends prompt to the backend and decodes the response into T.
// Any failure (transport, empty completion, malformed JSON) is logged and
// reported as ok=false; it never stops the caller.
func CompleteJSON[T any](ctx context.Context, b Backend, op, prompt string) (T, bool) {
	var zero T
	metrics.LLMCalls.Add(1)
	raw, err := b.Complete(ctx, prompt)
	if err != nil {
		metrics.LLMErrors.Add(1)
		slog.Warn("llm: call failed", slog.String("op", op), slog.String("backend", b.Name()), slog.Any("error", err))
		return zero, false
	}
	if strings.TrimSpace(raw) == "" {
		metrics.LLMErrors.Add(1)
		slog.Warn("llm: empty completion", slog.String("op", op), slog.String("backend", b.Name()))
		return zero, false
	}
	out, err := DecodeJSON[T](raw)
	if err != nil {
		metrics.LLMErrors.Add(1)
		slog.Warn("llm: parse failed", slog.String("op", op), slog.String("backend", b.Name()),
			slog.String("raw", TruncateRunes(raw, 200, "...")), slog.Any("error", err))
		return zero, false
	}
	return out, true
}
