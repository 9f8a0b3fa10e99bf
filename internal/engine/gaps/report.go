package gaps

import (
	"fmt"
	"strings"

	"github.com/anatolykoptev/go_gap/internal/engine"
)

// NoGapsMessage is rendered when a run verified no gap.
const NoGapsMessage = "No verified gaps found."

// RenderMarkdown renders the human-readable report of a run. It always
// produces a document, including for runs that found nothing.
func RenderMarkdown(r RunReport) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Content gaps: %s\n\n", r.Channel)
	fmt.Fprintf(&sb, "Run `%s` · %s · backend `%s` · mode `%s`\n\n",
		r.RunID, r.GeneratedAt.Format("2006-01-02 15:04 MST"), r.Backend, r.Mode)

	c := r.Counters
	sb.WriteString("## Summary\n\n")
	fmt.Fprintf(&sb, "- Videos: %d requested, %d ingested (%d from cache), %d without captions, %d failed\n",
		c.VideosRequested, c.VideosIngested, c.VideosCached, c.VideosNoCaptions, c.VideosFailed)
	fmt.Fprintf(&sb, "- Comments: %d fetched, %d kept by the signal filter", c.CommentsRaw, c.CommentsFiltered)
	if c.FilterFallback {
		sb.WriteString(" (fallback to most-liked)")
	}
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "- Pain points: %d from %d batches, %d clustered gaps\n", c.PainPoints, c.Batches, c.Clustered)
	fmt.Fprintf(&sb, "- Verified gaps: %d (%d inconclusive)\n", c.Verified, c.Inconclusive)
	fmt.Fprintf(&sb, "- Trend lookups: %d (%d errors)\n\n", c.TrendLookups, c.TrendErrors)

	if len(r.Opportunities) == 0 {
		sb.WriteString(NoGapsMessage + "\n")
		return sb.String()
	}

	sb.WriteString("## Opportunities\n\n")
	sb.WriteString("| # | Topic | Score | Priority | Status | Mentions | Engagement | Trend |\n")
	sb.WriteString("|---|-------|-------|----------|--------|----------|------------|-------|\n")
	for _, o := range r.Opportunities {
		fmt.Fprintf(&sb, "| %d | %s | %.1f | %s | %s | %d | %d | %s |\n",
			o.Rank, escapeCell(o.Topic), o.Total, o.Priority, o.Status, o.MentionCount, o.TotalEngagement, o.Trend.Trajectory)
	}
	sb.WriteString("\n")

	for _, o := range r.Opportunities {
		fmt.Fprintf(&sb, "### %d. %s\n\n", o.Rank, o.Topic)
		if o.Struggle != "" {
			fmt.Fprintf(&sb, "**Struggle:** %s\n\n", o.Struggle)
		}
		fmt.Fprintf(&sb, "**Verification:** %s", o.Status)
		if o.Inconclusive {
			sb.WriteString(" (inconclusive)")
		}
		fmt.Fprintf(&sb, ": %s\n\n", o.Evidence)
		fmt.Fprintf(&sb, "**Components:** comments %.0f · competitors %.0f · trend %.0f · saturation %.0f\n\n",
			o.Components.CommentFrequency, o.Components.VisualOutlier,
			o.Components.TrendMomentum, o.Components.SaturationInverse)
		if len(o.SampleEvidence) > 0 {
			sb.WriteString("Evidence:\n")
			for _, e := range o.SampleEvidence {
				fmt.Fprintf(&sb, "> %s\n\n", engine.TruncateRunes(e, 200, "..."))
			}
		}
		if len(o.VideoAngles) > 0 {
			sb.WriteString("Angles:\n")
			for _, a := range o.VideoAngles {
				fmt.Fprintf(&sb, "- %s\n", a)
			}
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
