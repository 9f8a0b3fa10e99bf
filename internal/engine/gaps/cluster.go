package gaps

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/anatolykoptev/go_gap/internal/engine"
)

const (
	maxSampleEvidence = 3
	maxVideoAngles    = 2
)

type clusterResponse struct {
	Gaps []struct {
		Topic               string   `json:"topic"`
		Struggle            string   `json:"struggle"`
		SourceIDs           []int    `json:"source_ids"`
		TotalEngagement     int      `json:"total_engagement"`
		MentionCount        int      `json:"mention_count"`
		Actionable          bool     `json:"actionable"`
		ActionabilityReason string   `json:"actionability_reason"`
		SampleEvidence      []string `json:"sample_evidence"`
		VideoAngles         []string `json:"video_angles"`
	} `json:"gaps"`
}

// Clusterer is the reduce stage: it merges pain points into topics and keeps
// the actionable topics mentioned often enough.
type Clusterer struct {
	backend     engine.Backend
	minMentions int
}

// NewClusterer creates a clusterer. minMentions below 1 disables the
// mention threshold.
func NewClusterer(b engine.Backend, minMentions int) *Clusterer {
	return &Clusterer{backend: b, minMentions: max(minMentions, 1)}
}

// Cluster merges points. The model proposes the grouping; topic names,
// mention counts and engagement are then recomputed from the pain points it
// referenced, and the mention/actionability gate is applied here. When the
// backend fails the points are grouped by normalized topic instead.
func (c *Clusterer) Cluster(ctx context.Context, points []PainPoint) []ClusteredGap {
	if len(points) == 0 {
		return nil
	}

	var sb strings.Builder
	for i, p := range points {
		line, _ := json.Marshal(p)
		fmt.Fprintf(&sb, "%d. %s\n", i+1, line)
	}
	prompt := fmt.Sprintf(engine.ClusterPainPointsPrompt, c.minMentions, sb.String())

	var gaps []ClusteredGap
	if resp, ok := engine.CompleteJSON[clusterResponse](ctx, c.backend, "cluster", prompt); ok {
		gaps = c.resolve(resp, points)
	} else {
		slog.Warn("cluster: backend failed, merging by topic", slog.Int("pain_points", len(points)))
		gaps = mergeByTopic(points)
	}

	out := gaps[:0]
	for _, g := range gaps {
		if g.MentionCount >= c.minMentions && g.Actionable {
			out = append(out, g)
		}
	}
	sortGaps(out)
	return out
}

func (c *Clusterer) resolve(resp clusterResponse, points []PainPoint) []ClusteredGap {
	topics := make(map[string]string, len(points))
	for _, p := range points {
		key := engine.NormalizeTopic(p.Topic)
		if _, ok := topics[key]; !ok {
			topics[key] = p.Topic
		}
	}

	claimed := make([]bool, len(points))
	byKey := make(map[string]int)
	var gaps []ClusteredGap

	for _, rg := range resp.Gaps {
		var srcs []PainPoint
		for _, id := range rg.SourceIDs {
			if id < 1 || id > len(points) || claimed[id-1] {
				continue
			}
			claimed[id-1] = true
			srcs = append(srcs, points[id-1])
		}
		key := engine.NormalizeTopic(rg.Topic)
		if len(srcs) == 0 {
			// No usable ids: fall back to points carrying the same topic.
			for i, p := range points {
				if !claimed[i] && engine.NormalizeTopic(p.Topic) == key {
					claimed[i] = true
					srcs = append(srcs, p)
				}
			}
		}
		if len(srcs) == 0 {
			continue
		}

		topic, ok := topics[key]
		if !ok {
			topic = srcs[0].Topic
			key = engine.NormalizeTopic(topic)
		}
		struggle := strings.TrimSpace(rg.Struggle)
		if struggle == "" {
			struggle = srcs[0].Struggle
		}

		if i, seen := byKey[key]; seen {
			addSources(&gaps[i], srcs)
			gaps[i].VideoAngles = appendLimited(gaps[i].VideoAngles, rg.VideoAngles, maxVideoAngles)
			continue
		}
		g := ClusteredGap{
			Topic:               topic,
			Struggle:            struggle,
			Actionable:          rg.Actionable,
			ActionabilityReason: strings.TrimSpace(rg.ActionabilityReason),
			VideoAngles:         appendLimited(nil, rg.VideoAngles, maxVideoAngles),
		}
		addSources(&g, srcs)
		byKey[key] = len(gaps)
		gaps = append(gaps, g)
	}
	return gaps
}

// mergeByTopic groups points whose normalized topics are equal. Without a
// model verdict every group is treated as actionable.
func mergeByTopic(points []PainPoint) []ClusteredGap {
	byKey := make(map[string]int)
	var gaps []ClusteredGap
	for _, p := range points {
		key := engine.NormalizeTopic(p.Topic)
		if key == "" {
			continue
		}
		if i, ok := byKey[key]; ok {
			addSources(&gaps[i], []PainPoint{p})
			continue
		}
		g := ClusteredGap{
			Topic:               p.Topic,
			Struggle:            p.Struggle,
			Actionable:          true,
			ActionabilityReason: "not assessed: merged by topic",
		}
		addSources(&g, []PainPoint{p})
		byKey[key] = len(gaps)
		gaps = append(gaps, g)
	}
	return gaps
}

func addSources(g *ClusteredGap, srcs []PainPoint) {
	for _, p := range srcs {
		g.MentionCount++
		g.TotalEngagement += p.Engagement
		if len(g.SampleEvidence) < maxSampleEvidence && !slices.Contains(g.SampleEvidence, p.Evidence) {
			g.SampleEvidence = append(g.SampleEvidence, p.Evidence)
		}
	}
}

func appendLimited(dst, src []string, limit int) []string {
	for _, s := range src {
		if len(dst) >= limit {
			break
		}
		if s = strings.TrimSpace(s); s != "" {
			dst = append(dst, s)
		}
	}
	return dst
}

func sortGaps(gaps []ClusteredGap) {
	slices.SortStableFunc(gaps, func(a, b ClusteredGap) int {
		if c := cmp.Compare(b.TotalEngagement, a.TotalEngagement); c != 0 {
			return c
		}
		return cmp.Compare(a.Topic, b.Topic)
	})
}
