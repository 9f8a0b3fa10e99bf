package gaps

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clustered(topics ...string) []ClusteredGap {
	out := make([]ClusteredGap, len(topics))
	for i, t := range topics {
		out[i] = ClusteredGap{Topic: t, Struggle: "s", MentionCount: 3, TotalEngagement: 10 * (i + 1), Actionable: true}
	}
	return out
}

var testTranscripts = []SourceTranscript{
	{Title: "Docker basics", Text: "docker networking uses a bridge by default " + strings.Repeat("x", 5000)},
	{Title: "Empty", Text: "   "},
}

func TestVerify_AppliesVerdicts(t *testing.T) {
	resp := `{"verified": [
		{"id": 1, "topic": "docker networking", "status": "saturated", "evidence": "[Docker basics] uses a bridge by default"},
		{"id": 99, "topic": "Volumes", "status": "UNDER_EXPLAINED", "evidence": ""},
		{"id": 3, "topic": "compose", "status": "TRUE_GAP", "evidence": "something"}
	]}`
	b := &fakeBackend{respond: func(string) (string, error) { return resp, nil }}

	got := NewVerifier(b, 100).Verify(context.Background(), clustered("docker networking", "volumes", "compose", "swarm"), testTranscripts)
	require.Len(t, got, 4)

	assert.Equal(t, StatusSaturated, got[0].Status)
	assert.Equal(t, "[Docker basics] uses a bridge by default", got[0].Evidence)
	assert.False(t, got[0].Inconclusive)

	assert.Equal(t, StatusUnderExplained, got[1].Status, "matched by topic when the id is unknown")
	assert.Equal(t, NoMentionEvidence, got[1].Evidence)

	assert.Equal(t, StatusTrueGap, got[2].Status)
	assert.Equal(t, NoMentionEvidence, got[2].Evidence)
	assert.False(t, got[2].Inconclusive)

	assert.Equal(t, StatusTrueGap, got[3].Status, "missing from the response")
	assert.True(t, got[3].Inconclusive)

	for i, g := range got {
		assert.Equal(t, clustered("docker networking", "volumes", "compose", "swarm")[i], g.ClusteredGap)
	}

	prompt := b.prompts[0]
	assert.Contains(t, prompt, "### [Docker basics]")
	assert.NotContains(t, prompt, "[Empty]")
	assert.NotContains(t, prompt, strings.Repeat("x", 100), "transcripts are truncated")
}

func TestVerify_BackendFailureKeepsEveryGap(t *testing.T) {
	gaps := clustered("a", "b", "c")
	got := NewVerifier(failingBackend(), 0).Verify(context.Background(), gaps, testTranscripts)
	require.Len(t, got, len(gaps))
	for i, g := range got {
		assert.Equal(t, gaps[i].Topic, g.Topic)
		assert.Equal(t, StatusTrueGap, g.Status)
		assert.Equal(t, NoMentionEvidence, g.Evidence)
		assert.True(t, g.Inconclusive)
	}
}

func TestVerify_InvalidStatusIsIgnored(t *testing.T) {
	b := &fakeBackend{respond: func(string) (string, error) {
		return `{"verified": [{"id": 1, "status": "MAYBE", "evidence": "?"}]}`, nil
	}}
	got := NewVerifier(b, 0).Verify(context.Background(), clustered("a"), testTranscripts)
	require.Len(t, got, 1)
	assert.Equal(t, StatusTrueGap, got[0].Status)
	assert.True(t, got[0].Inconclusive)
}

func TestVerify_NoTranscripts(t *testing.T) {
	b := failingBackend()
	got := NewVerifier(b, 0).Verify(context.Background(), clustered("a"), nil)
	require.Len(t, got, 1)
	assert.True(t, got[0].Inconclusive)
	assert.Zero(t, b.calls())

	assert.Empty(t, NewVerifier(b, 0).Verify(context.Background(), nil, testTranscripts))
}
