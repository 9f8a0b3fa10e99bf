package gaps

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeSeries(t *testing.T) {
	tests := []struct {
		name       string
		series     []float64
		trajectory Trajectory
		score      float64
	}{
		{"empty", nil, TrajectoryUnknown, 0},
		{"single point", []float64{40}, TrajectoryUnknown, 40},
		{"rising", []float64{10, 10, 10, 10, 20, 20, 30, 30}, TrajectoryRising, 30},
		{"falling", []float64{50, 50, 50, 50, 60, 60, 40, 40}, TrajectoryFalling, 40},
		{"stable within 20 percent", []float64{0, 0, 0, 0, 50, 50, 55, 55}, TrajectoryStable, 55},
		{"just under 20 percent", []float64{50, 50, 59}, TrajectoryStable, 59},
		{"from zero", []float64{0, 0, 0, 0, 0, 0, 5, 5}, TrajectoryRising, 5},
		{"flat zero", []float64{0, 0, 0, 0}, TrajectoryStable, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AnalyzeSeries("kw", tt.series)
			assert.Equal(t, tt.trajectory, got.Trajectory)
			assert.InDelta(t, tt.score, got.Score, 1e-9)
			assert.Equal(t, "kw", got.Keyword)
		})
	}
}

func TestCleanKeyword(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Docker Networking", "docker networking"},
		{`"C++ templates"!`, "c++ templates"},
		{"node.js / express", "node.js express"},
		{"how to set up a home lab server fast", "how to set up a"},
		{"  ...  ", ""},
		{"C# async/await", "c# async await"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CleanKeyword(tt.in), tt.in)
	}
}

func verified(topic string, status Status) VerifiedGap {
	return VerifiedGap{ClusteredGap: ClusteredGap{Topic: topic, MentionCount: 3, Actionable: true}, Status: status}
}

func TestEnrich_OnlyActionableStatuses(t *testing.T) {
	src := &fakeTrends{series: map[string][]float64{
		"docker networking": {10, 10, 10, 30},
		"volumes":           {50, 50, 50, 50},
	}}
	gaps := []VerifiedGap{
		verified("Docker Networking", StatusTrueGap),
		verified("volumes", StatusUnderExplained),
		verified("compose", StatusSaturated),
	}
	got := NewEnricher(src, 0).Enrich(context.Background(), gaps)

	require.Len(t, got, 2)
	assert.Equal(t, TrajectoryRising, got["Docker Networking"].Trajectory)
	assert.Equal(t, TrajectoryStable, got["volumes"].Trajectory)
	assert.NotContains(t, got, "compose")
	assert.Equal(t, []string{"docker networking", "volumes"}, src.calls)
}

func TestEnrich_FailureDegradesPerTopic(t *testing.T) {
	src := &fakeTrends{err: errors.New("429 too many requests")}
	got := NewEnricher(src, 0).Enrich(context.Background(),
		[]VerifiedGap{verified("a", StatusTrueGap), verified("b", StatusTrueGap)})

	require.Len(t, got, 2)
	for _, info := range got {
		assert.Equal(t, TrajectoryError, info.Trajectory)
		assert.Zero(t, info.Score)
	}
}

func TestEnrich_DelaysBetweenLookups(t *testing.T) {
	src := &fakeTrends{series: map[string][]float64{}}
	gaps := []VerifiedGap{verified("a", StatusTrueGap), verified("b", StatusTrueGap), verified("c", StatusTrueGap)}

	start := time.Now()
	NewEnricher(src, 30*time.Millisecond).Enrich(context.Background(), gaps)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	assert.Len(t, src.calls, 3)
}
