package gapserver

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anatolykoptev/go_gap/internal/engine"
	"github.com/anatolykoptev/go_gap/internal/engine/gaps"
)

func TestContentGaps_Validation(t *testing.T) {
	ctx := context.Background()

	_, err := contentGaps(ctx, engine.ContentGapsInput{Channel: "  "})
	assert.EqualError(t, err, "channel is required")

	_, err = contentGaps(ctx, engine.ContentGapsInput{Channel: "@test", Mode: "podcast"})
	assert.ErrorContains(t, err, `unknown mode "podcast"`)
}

func TestContentGaps_MissingAPIKey(t *testing.T) {
	engine.Init(engine.Config{DataDir: t.TempDir()})
	t.Cleanup(func() { engine.Init(engine.Config{}) })

	_, err := contentGaps(context.Background(), engine.ContentGapsInput{Channel: "@test", Mode: "Comments"})
	assert.ErrorIs(t, err, engine.ErrMissingCredentials)
}

func TestContentGaps_SetupErrorIsWrapped(t *testing.T) {
	orig := newPipeline
	t.Cleanup(func() { newPipeline = orig })
	boom := errors.New("boom")
	newPipeline = func(context.Context, engine.Config, string) (*gaps.Pipeline, error) {
		return nil, boom
	}

	_, err := contentGaps(context.Background(), engine.ContentGapsInput{Channel: "@test"})
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "content_gaps setup")
}

func TestGapHistory(t *testing.T) {
	ctx := context.Background()
	s, err := gaps.OpenSQLiteStore(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	base := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	for i := range 12 {
		r := gaps.RunReport{
			RunID:       fmt.Sprintf("run-%02d", i),
			Channel:     "@test",
			ChannelID:   "UCtest",
			GeneratedAt: base.Add(time.Duration(i) * time.Hour),
		}
		for j := range 7 {
			r.Opportunities = append(r.Opportunities, gaps.ScoredOpportunity{
				VerifiedGap: gaps.VerifiedGap{ClusteredGap: gaps.ClusteredGap{Topic: fmt.Sprintf("topic %d", j)}},
				Rank:        j + 1,
			})
		}
		require.NoError(t, s.SaveRun(ctx, r))
	}

	out, err := gapHistory(ctx, s, engine.GapHistoryInput{})
	require.NoError(t, err)
	assert.Equal(t, gaps.DefaultHistoryLimit, out.Total)
	require.Len(t, out.Runs, gaps.DefaultHistoryLimit)
	assert.Equal(t, "run-11", out.Runs[0].RunID)
	assert.Equal(t, []string{"topic 0", "topic 1", "topic 2", "topic 3", "topic 4"}, out.Runs[0].TopTopics)

	out, err = gapHistory(ctx, s, engine.GapHistoryInput{Channel: "@other", Limit: 3})
	require.NoError(t, err)
	assert.Zero(t, out.Total)
	assert.NotNil(t, out.Runs)
}

func TestSignalFilter(t *testing.T) {
	out, err := signalFilter(engine.SignalFilterInput{Comments: []string{
		"How do I configure docker networking between containers?",
		"Great video, thanks a lot",
		"first",
	}}, gaps.DefaultFilterOptions())
	require.NoError(t, err)
	assert.Equal(t, 3, out.Total)
	assert.False(t, out.Fallback)
	require.Len(t, out.Kept, 1)
	assert.Positive(t, out.Kept[0].Score)
	assert.Equal(t, 2, out.Dropped)
}

func TestSignalFilter_FallbackAndEmpty(t *testing.T) {
	out, err := signalFilter(engine.SignalFilterInput{Comments: []string{"Great video, thanks a lot"}}, gaps.DefaultFilterOptions())
	require.NoError(t, err)
	assert.True(t, out.Fallback)
	assert.Len(t, out.Kept, 1)

	_, err = signalFilter(engine.SignalFilterInput{}, gaps.DefaultFilterOptions())
	assert.Error(t, err)
}

func TestClearSourceCache(t *testing.T) {
	dir := t.TempDir()
	cache, err := gaps.NewSourceCache(dir)
	require.NoError(t, err)
	require.NoError(t, cache.Put("dQw4w9WgXcQ", gaps.IngestResult{VideoID: "dQw4w9WgXcQ"}))

	out, err := clearSourceCache(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Removed)
	assert.Equal(t, dir, out.Dir)
}

func TestRunOptions(t *testing.T) {
	opts := runOptions("@test", gaps.ModeCaptions, engine.ContentGapsInput{Channel: " @test ", Videos: 7, Sample: true})
	assert.Equal(t, "@test", opts.Channel)
	assert.Equal(t, 7, opts.Videos)
	assert.True(t, opts.Sample)
	assert.False(t, opts.UncaptionedComments)

	opts = runOptions("@test", gaps.ModeCaptions, engine.ContentGapsInput{UncaptionedComments: true})
	assert.True(t, opts.UncaptionedComments)
}
