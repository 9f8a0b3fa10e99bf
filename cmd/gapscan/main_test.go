package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anatolykoptev/go_gap/internal/engine"
	"github.com/anatolykoptev/go_gap/internal/engine/gaps"
)

func setupEnv(t *testing.T) string {
	t.Helper()
	base := t.TempDir()
	t.Setenv("GAP_DATA_DIR", filepath.Join(base, "data"))
	t.Setenv("GAP_CACHE_DIR", filepath.Join(base, "cache"))
	t.Setenv("YOUTUBE_API_KEY", "")
	t.Setenv("YOUTUBE_API_KEY_FALLBACK", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "")
	return base
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{}, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

func TestScan_RequiresChannel(t *testing.T) {
	setupEnv(t)
	_, err := execute(t)
	assert.Error(t, err)
}

func TestScan_InvalidMode(t *testing.T) {
	setupEnv(t)
	_, err := execute(t, "@test", "--mode", "podcast")
	assert.ErrorContains(t, err, `unknown mode "podcast"`)
}

func TestScan_MissingAPIKeyIsSetupError(t *testing.T) {
	setupEnv(t)
	_, err := execute(t, "@test")
	assert.ErrorIs(t, err, engine.ErrMissingCredentials)
}

func TestScan_PassesFlagsToPipeline(t *testing.T) {
	setupEnv(t)
	orig := newPipeline
	t.Cleanup(func() { newPipeline = orig })
	var gotBackend string
	var gotPhrases string
	boom := errors.New("stop here")
	newPipeline = func(_ context.Context, c engine.Config, backend string) (*gaps.Pipeline, error) {
		gotBackend = backend
		gotPhrases = c.PhrasesFile
		return nil, boom
	}

	_, err := execute(t, "@test", "--backend", "gemini", "--config", "phrases.yaml")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "gemini", gotBackend)
	assert.Equal(t, "phrases.yaml", gotPhrases)
}

func TestCacheClear(t *testing.T) {
	base := setupEnv(t)
	cacheDir := filepath.Join(base, "cache")
	cache, err := gaps.NewSourceCache(cacheDir)
	require.NoError(t, err)
	require.NoError(t, cache.Put("dQw4w9WgXcQ", gaps.IngestResult{VideoID: "dQw4w9WgXcQ"}))

	out, err := execute(t, "cache", "clear")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed 1 cached videos")

	entries, err := os.ReadDir(cacheDir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotEqual(t, ".json", filepath.Ext(e.Name()))
	}
}

func TestHistory(t *testing.T) {
	base := setupEnv(t)

	out, err := execute(t, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "No runs recorded")

	store, err := gaps.OpenSQLiteStore(filepath.Join(base, "data", "runs.db"))
	require.NoError(t, err)
	require.NoError(t, store.SaveRun(context.Background(), gaps.RunReport{
		RunID:       "r1",
		Channel:     "@test",
		Mode:        gaps.ModeComments,
		GeneratedAt: time.Now(),
		Opportunities: []gaps.ScoredOpportunity{{
			VerifiedGap: gaps.VerifiedGap{ClusteredGap: gaps.ClusteredGap{Topic: "docker networking"}},
		}},
	}))
	require.NoError(t, store.Close())

	out, err = execute(t, "history", "@test")
	require.NoError(t, err)
	assert.Contains(t, out, "docker networking")
	assert.Contains(t, out, "comments")
}

func TestRenderOpportunities(t *testing.T) {
	assert.Equal(t, gaps.NoGapsMessage, renderOpportunities(nil))

	out := renderOpportunities([]gaps.ScoredOpportunity{{
		VerifiedGap: gaps.VerifiedGap{
			ClusteredGap: gaps.ClusteredGap{Topic: "docker networking", MentionCount: 3},
			Status:       gaps.StatusTrueGap,
			Inconclusive: true,
		},
		Trend:    gaps.TrendInfo{Trajectory: gaps.TrajectoryRising},
		Total:    74.5,
		Priority: gaps.PriorityHigh,
		Rank:     1,
	}})
	assert.Contains(t, out, "docker networking")
	assert.Contains(t, out, "74.5")
	assert.Contains(t, out, "TRUE_GAP?")
	assert.Contains(t, out, "RISING")
}

func TestScanOptions(t *testing.T) {
	f := newRootCommand().Flags().Lookup("uncaptioned-comments")
	require.NotNil(t, f)
	assert.Equal(t, "false", f.DefValue)

	opts := scanOptions("@test", gaps.ModeCaptions, scanFlags{videos: 5, competitors: []string{"@rival"}})
	assert.False(t, opts.UncaptionedComments)
	assert.Equal(t, 5, opts.Videos)
	assert.Equal(t, []string{"@rival"}, opts.Competitors)

	opts = scanOptions("@test", gaps.ModeCaptions, scanFlags{uncaptioned: true})
	assert.True(t, opts.UncaptionedComments)
}

func TestRenderHistory_VideoCount(t *testing.T) {
	out := renderHistory([]gaps.RunReport{{
		Channel:     "@cached",
		Mode:        gaps.ModeCaptions,
		GeneratedAt: time.Now(),
		Counters:    gaps.Counters{VideosIngested: 7, VideosCached: 6},
	}})

	var cells []string
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "@cached") {
			cells = strings.Split(line, "│")
		}
	}
	require.Len(t, cells, 8)
	assert.Equal(t, "7", strings.TrimSpace(cells[4]), "cache hits are part of the ingested count")
}
