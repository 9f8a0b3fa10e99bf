package gaps

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anatolykoptev/go_gap/internal/engine"
)

const maxPromptCommentRunes = 600

type extractResponse struct {
	PainPoints []struct {
		Topic      string `json:"topic"`
		Struggle   string `json:"struggle"`
		Sentiment  string `json:"sentiment"`
		Evidence   string `json:"evidence"`
		CommentID  int    `json:"comment_id"`
		Engagement int    `json:"engagement"`
	} `json:"pain_points"`
}

// Extractor is the map stage: it turns batches of comments into pain points.
type Extractor struct {
	backend engine.Backend
}

// NewExtractor creates an extractor on top of b.
func NewExtractor(b engine.Backend) *Extractor {
	return &Extractor{backend: b}
}

// Extract runs one LLM call per batch of Backend.MaxBatch comments and
// returns the pain points of all batches along with the batch count. A
// failed batch contributes nothing. Pain points whose evidence cannot be
// found in the batch are discarded.
func (e *Extractor) Extract(ctx context.Context, comments []engine.Comment, channel string) ([]PainPoint, int) {
	size := e.backend.MaxBatch()
	if size <= 0 {
		size = 25
	}

	var (
		points  []PainPoint
		batches int
	)
	for start := 0; start < len(comments); start += size {
		if ctx.Err() != nil {
			break
		}
		batch := comments[start:min(start+size, len(comments))]
		batches++
		got := e.extractBatch(ctx, batch, channel)
		slog.Debug("extract: batch done", slog.Int("batch", batches),
			slog.Int("comments", len(batch)), slog.Int("pain_points", len(got)))
		points = append(points, got...)
	}
	return points, batches
}

func (e *Extractor) extractBatch(ctx context.Context, batch []engine.Comment, channel string) []PainPoint {
	var sb strings.Builder
	for i, c := range batch {
		text := engine.TruncateRunes(strings.TrimSpace(c.Text), maxPromptCommentRunes, "...")
		fmt.Fprintf(&sb, "[%d] (%d likes) %s\n", i+1, c.Likes, text)
	}
	prompt := fmt.Sprintf(engine.ExtractPainPointsPrompt, engine.CurrentDate(), channel, sb.String())

	resp, ok := engine.CompleteJSON[extractResponse](ctx, e.backend, "extract", prompt)
	if !ok {
		return nil
	}

	normalized := make([]string, len(batch))
	for i, c := range batch {
		normalized[i] = engine.NormalizeSpace(c.Text)
	}

	var out []PainPoint
	for _, p := range resp.PainPoints {
		topic := strings.TrimSpace(p.Topic)
		evidence := strings.Trim(strings.TrimSpace(p.Evidence), `"“”'`)
		if topic == "" || evidence == "" {
			continue
		}
		idx := matchEvidence(normalized, engine.NormalizeSpace(evidence), p.CommentID-1)
		if idx < 0 {
			slog.Debug("extract: evidence not found in batch, dropping",
				slog.String("topic", topic), slog.String("evidence", engine.TruncateRunes(evidence, 80, "...")))
			continue
		}
		engagement := p.Engagement
		if engagement <= 0 {
			engagement = batch[idx].Likes
		}
		out = append(out, PainPoint{
			Topic:      topic,
			Struggle:   strings.TrimSpace(p.Struggle),
			Sentiment:  strings.ToLower(strings.TrimSpace(p.Sentiment)),
			Evidence:   evidence,
			Engagement: engagement,
		})
	}
	return out
}

// matchEvidence returns the index of the comment containing evidence,
// trying the hinted index first, or -1.
func matchEvidence(comments []string, evidence string, hint int) int {
	if hint >= 0 && hint < len(comments) && strings.Contains(comments[hint], evidence) {
		return hint
	}
	for i, c := range comments {
		if strings.Contains(c, evidence) {
			return i
		}
	}
	return -1
}
