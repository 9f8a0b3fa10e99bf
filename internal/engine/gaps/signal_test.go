package gaps

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anatolykoptev/go_gap/internal/engine"
)

func comment(text string, likes int) engine.Comment {
	return engine.Comment{Author: "viewer", Text: text, Likes: likes}
}

func qualifying(n int) []engine.Comment {
	out := make([]engine.Comment, n)
	for i := range out {
		out[i] = comment(fmt.Sprintf("How do I configure docker networking for service %d?", i), i)
	}
	return out
}

func TestScoreComment(t *testing.T) {
	opts := DefaultFilterOptions()
	tests := []struct {
		name string
		text string
		want int
	}{
		{"question with high intent", "How do I deploy this to production?", 2 + 3},
		{"plain question", "Is this still relevant in 2026?", 3},
		{"two high intent phrases", "I'm stuck, can you explain the second step", 2 + 2 + 2},
		{"praise only", "Great video, thanks a lot", -2},
		{"neutral", "I watched this during my lunch break", 0},
		{"phrase inside a word does not match", "My school project uses this exact setup", 0},
		{"case insensitive", "HOW TO get started with the setup", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ScoreComment(tt.text, opts))
		})
	}
}

func TestFilterComments_DropsShortComments(t *testing.T) {
	in := []engine.Comment{
		comment("How to do it?", 100), // 13 runes
		comment("how do i do it?", 1), // exactly 15 runes
		comment("Как это?? 🤔", 50),
	}
	out := FilterComments(in, DefaultFilterOptions())
	require.Len(t, out, 1)
	assert.Equal(t, "how do i do it?", out[0].Text)
	for _, c := range out {
		assert.GreaterOrEqual(t, utf8.RuneCountInString(c.Text), DefaultMinCommentLength)
	}
}

func TestFilterComments_KeepsTopHalfOfQualifying(t *testing.T) {
	var in []engine.Comment
	for i := range 10 {
		in = append(in, comment(fmt.Sprintf("nice %d", i), 1000))
	}
	for i := range 18 {
		if i%2 == 0 {
			in = append(in, comment(fmt.Sprintf("Great video, thanks a lot (%d)", i), 500))
		} else {
			in = append(in, comment(fmt.Sprintf("I watched this during lunch break %d", i), 500))
		}
	}
	in = append(in, qualifying(12)...)
	require.Len(t, in, 40)

	out := FilterComments(in, DefaultFilterOptions())
	require.Len(t, out, 6)
	for i, c := range out {
		assert.Positive(t, c.SignalScore)
		if i > 0 {
			prev := out[i-1]
			assert.True(t, prev.SignalScore > c.SignalScore ||
				(prev.SignalScore == c.SignalScore && prev.Likes >= c.Likes), "order at %d", i)
		}
	}
	// All twelve score the same, so the most-liked six win.
	assert.Equal(t, 11, out[0].Likes)
	assert.Equal(t, 6, out[5].Likes)
}

func TestFilterComments_Floor(t *testing.T) {
	tests := []struct {
		qualifying int
		want       int
	}{
		{0, 0},
		{1, 1},
		{19, 10},
		{20, 20},
		{30, 20},
		{40, 20},
		{50, 25},
		{61, 31},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.qualifying), func(t *testing.T) {
			out := FilterComments(qualifying(tt.qualifying), DefaultFilterOptions())
			assert.Len(t, out, tt.want)
		})
	}
}

func TestFilterComments_Idempotent(t *testing.T) {
	for _, n := range []int{12, 30, 61} {
		first := FilterComments(qualifying(n), DefaultFilterOptions())
		second := FilterComments(first, DefaultFilterOptions())
		assert.Equal(t, first, second, "n=%d", n)
	}
}

func TestFilterComments_DoesNotMutateInput(t *testing.T) {
	in := qualifying(4)
	FilterComments(in, DefaultFilterOptions())
	for _, c := range in {
		assert.Zero(t, c.SignalScore)
	}
}

func TestFallbackTopLiked(t *testing.T) {
	in := []engine.Comment{comment("a", 3), comment("b", 10), comment("c", 7)}
	out := FallbackTopLiked(in, 2)
	require.Len(t, out, 2)
	assert.Equal(t, "b", out[0].Text)
	assert.Equal(t, "c", out[1].Text)
	assert.Equal(t, "a", in[0].Text, "input order untouched")

	assert.Len(t, FallbackTopLiked(in, 0), 3)
}

func TestLoadFilterOptions(t *testing.T) {
	opts, err := LoadFilterOptions("")
	require.NoError(t, err)
	assert.Equal(t, DefaultFilterOptions(), opts)

	path := filepath.Join(t.TempDir(), "phrases.yaml")
	yaml := "min_length: 20\nhigh_intent:\n  - \"Wie geht\"\n  - \"  \"\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	opts, err = LoadFilterOptions(path)
	require.NoError(t, err)
	assert.Equal(t, 20, opts.MinLength)
	assert.Equal(t, DefaultFloor, opts.Floor)
	assert.Equal(t, []string{"wie geht"}, opts.HighIntent)
	assert.Equal(t, DefaultFilterOptions().LowIntent, opts.LowIntent)

	_, err = LoadFilterOptions(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
