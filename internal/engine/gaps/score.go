package gaps

import (
	"cmp"
	"math"
	"slices"
	"strings"

	"github.com/anatolykoptev/go_gap/internal/engine"
)

// Score weights.
const (
	weightCommentFrequency  = 0.2
	weightVisualOutlier     = 0.2
	weightTrendMomentum     = 0.3
	weightSaturationInverse = 0.3
)

// Priority thresholds on the total score.
const (
	highThreshold   = 70
	mediumThreshold = 45
)

const (
	noCompetitorScore = 50
	trajectoryBonus   = 25
)

// ScoreInput is one gap with its already-computed components.
type ScoreInput struct {
	Gap        VerifiedGap
	Trend      TrendInfo
	Components Components
}

// ComputeComponents derives the four score components of each gap.
// competitorTitles maps a competitor channel to its recent upload titles;
// competitors whose titles could not be fetched must be left out.
func ComputeComponents(gaps []VerifiedGap, trends map[string]TrendInfo, competitorTitles map[string][]string) []ScoreInput {
	var maxMentions, maxEngagement int
	for _, g := range gaps {
		maxMentions = max(maxMentions, g.MentionCount)
		maxEngagement = max(maxEngagement, g.TotalEngagement)
	}

	normTitles := make([][]string, 0, len(competitorTitles))
	for _, titles := range competitorTitles {
		norm := make([]string, len(titles))
		for i, t := range titles {
			norm[i] = " " + engine.NormalizeTopic(t) + " "
		}
		normTitles = append(normTitles, norm)
	}

	out := make([]ScoreInput, len(gaps))
	for i, g := range gaps {
		trend, ok := trends[g.Topic]
		if !ok {
			trend = TrendInfo{Keyword: CleanKeyword(g.Topic), Trajectory: TrajectoryUnknown}
		}
		out[i] = ScoreInput{
			Gap:   g,
			Trend: trend,
			Components: Components{
				CommentFrequency:  commentFrequency(g, maxMentions, maxEngagement),
				VisualOutlier:     visualOutlier(g.Topic, normTitles),
				TrendMomentum:     trendMomentum(trend),
				SaturationInverse: saturationInverse(g.Status),
			},
		}
	}
	return out
}

func commentFrequency(g VerifiedGap, maxMentions, maxEngagement int) float64 {
	var m, e float64
	if maxMentions > 0 {
		m = float64(g.MentionCount) / float64(maxMentions)
	}
	if maxEngagement > 0 {
		e = float64(g.TotalEngagement) / float64(maxEngagement)
	}
	return 100 * (0.5*m + 0.5*e)
}

// visualOutlier is the share of competitors none of whose recent titles
// mention the topic.
func visualOutlier(topic string, competitors [][]string) float64 {
	if len(competitors) == 0 {
		return noCompetitorScore
	}
	key := " " + engine.NormalizeTopic(topic) + " "
	uncovered := 0
	for _, titles := range competitors {
		covered := slices.ContainsFunc(titles, func(t string) bool { return strings.Contains(t, key) })
		if !covered {
			uncovered++
		}
	}
	return 100 * float64(uncovered) / float64(len(competitors))
}

func trendMomentum(t TrendInfo) float64 {
	switch t.Trajectory {
	case TrajectoryError:
		return 0
	case TrajectoryRising:
		return t.Score + trajectoryBonus
	case TrajectoryFalling:
		return t.Score - trajectoryBonus
	}
	return t.Score
}

func saturationInverse(s Status) float64 {
	switch s {
	case StatusTrueGap:
		return 100
	case StatusUnderExplained:
		return 60
	}
	return 0
}

// Score weights and ranks the inputs. Rank 1 is the highest total; ties
// go to the higher engagement, then to the lexically smaller topic.
func Score(inputs []ScoreInput) []ScoredOpportunity {
	out := make([]ScoredOpportunity, len(inputs))
	for i, in := range inputs {
		c := Components{
			CommentFrequency:  clamp(in.Components.CommentFrequency),
			VisualOutlier:     clamp(in.Components.VisualOutlier),
			TrendMomentum:     clamp(in.Components.TrendMomentum),
			SaturationInverse: clamp(in.Components.SaturationInverse),
		}
		total := weightCommentFrequency*c.CommentFrequency +
			weightVisualOutlier*c.VisualOutlier +
			weightTrendMomentum*c.TrendMomentum +
			weightSaturationInverse*c.SaturationInverse
		total = math.Round(total*10) / 10
		out[i] = ScoredOpportunity{
			VerifiedGap: in.Gap,
			Trend:       in.Trend,
			Components:  c,
			Total:       total,
			Priority:    priorityFor(total),
		}
	}

	slices.SortStableFunc(out, func(a, b ScoredOpportunity) int {
		if c := cmp.Compare(b.Total, a.Total); c != 0 {
			return c
		}
		if c := cmp.Compare(b.TotalEngagement, a.TotalEngagement); c != 0 {
			return c
		}
		return cmp.Compare(a.Topic, b.Topic)
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

func priorityFor(total float64) Priority {
	switch {
	case total >= highThreshold:
		return PriorityHigh
	case total >= mediumThreshold:
		return PriorityMedium
	}
	return PriorityLow
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(100, v))
}
