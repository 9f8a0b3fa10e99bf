package gaps

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anatolykoptev/go_gap/internal/engine"
)

// DefaultTranscriptChars is how much of each transcript the verifier sees.
const DefaultTranscriptChars = 3000

// SourceTranscript is one of the creator's videos as shown to the verifier.
type SourceTranscript struct {
	Title string
	Text  string
}

type verifyResponse struct {
	Verified []struct {
		ID       int    `json:"id"`
		Topic    string `json:"topic"`
		Status   string `json:"status"`
		Evidence string `json:"evidence"`
	} `json:"verified"`
}

// Verifier classifies gaps against the creator's own transcripts.
type Verifier struct {
	backend engine.Backend
	chars   int
}

// NewVerifier creates a verifier that sends the first chars characters of
// each transcript (DefaultTranscriptChars when chars ≤ 0).
func NewVerifier(b engine.Backend, chars int) *Verifier {
	if chars <= 0 {
		chars = DefaultTranscriptChars
	}
	return &Verifier{backend: b, chars: chars}
}

// Verify returns one VerifiedGap per input gap, in input order. Gaps the
// backend could not classify get TRUE_GAP with Inconclusive set.
func (v *Verifier) Verify(ctx context.Context, gaps []ClusteredGap, transcripts []SourceTranscript) []VerifiedGap {
	if len(gaps) == 0 {
		return nil
	}
	out := make([]VerifiedGap, len(gaps))
	for i, g := range gaps {
		out[i] = VerifiedGap{ClusteredGap: g, Status: StatusTrueGap, Evidence: NoMentionEvidence, Inconclusive: true}
	}

	rendered := v.renderTranscripts(transcripts)
	if rendered == "" {
		slog.Info("verify: no transcripts to check against", slog.Int("gaps", len(gaps)))
		return out
	}

	var topics strings.Builder
	byTopic := make(map[string]int, len(gaps))
	for i, g := range gaps {
		fmt.Fprintf(&topics, "%d. %s: %s\n", i+1, g.Topic, g.Struggle)
		byTopic[engine.NormalizeTopic(g.Topic)] = i
	}
	prompt := fmt.Sprintf(engine.VerifyGapsPrompt, topics.String(), rendered)

	resp, ok := engine.CompleteJSON[verifyResponse](ctx, v.backend, "verify", prompt)
	if !ok {
		slog.Warn("verify: backend failed, keeping every gap as TRUE_GAP", slog.Int("gaps", len(gaps)))
		return out
	}

	for _, r := range resp.Verified {
		idx := r.ID - 1
		if idx < 0 || idx >= len(gaps) {
			var found bool
			if idx, found = byTopic[engine.NormalizeTopic(r.Topic)]; !found {
				continue
			}
		}
		if !out[idx].Inconclusive {
			continue
		}
		status := Status(strings.ToUpper(strings.TrimSpace(r.Status)))
		if !status.Valid() {
			continue
		}
		evidence := strings.TrimSpace(r.Evidence)
		if status == StatusTrueGap || evidence == "" {
			evidence = NoMentionEvidence
		}
		out[idx].Status = status
		out[idx].Evidence = evidence
		out[idx].Inconclusive = false
	}
	return out
}

func (v *Verifier) renderTranscripts(transcripts []SourceTranscript) string {
	var sb strings.Builder
	for _, t := range transcripts {
		text := strings.TrimSpace(t.Text)
		if text == "" {
			continue
		}
		fmt.Fprintf(&sb, "### [%s]\n%s\n\n", t.Title, engine.TruncateRunes(text, v.chars, ""))
	}
	return sb.String()
}
