package gapserver

import (
	"context"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/go_gap/internal/engine"
	"github.com/anatolykoptev/go_gap/internal/engine/gaps"
)

const maxHistoryLimit = 100

// RunSummary is one row of gap_history.
type RunSummary struct {
	RunID       string        `json:"run_id"`
	Channel     string        `json:"channel"`
	ChannelID   string        `json:"channel_id"`
	Mode        gaps.Mode     `json:"mode"`
	Backend     string        `json:"backend"`
	GeneratedAt time.Time     `json:"generated_at"`
	Counters    gaps.Counters `json:"counters"`
	TopTopics   []string      `json:"top_topics,omitempty"`
}

// GapHistoryOutput is the result of the gap_history tool.
type GapHistoryOutput struct {
	Runs  []RunSummary `json:"runs"`
	Total int          `json:"total"`
}

func registerGapHistory(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "gap_history",
		Description: "List previous content_gaps runs, newest first, with counters and the top-ranked topics. Optionally filter by channel handle or ID.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input engine.GapHistoryInput) (*mcp.CallToolResult, GapHistoryOutput, error) {
		s, err := runStore(ctx)
		if err != nil {
			return nil, GapHistoryOutput{}, err
		}
		out, err := gapHistory(ctx, s, input)
		if err != nil {
			return nil, GapHistoryOutput{}, err
		}
		return nil, out, nil
	})
}

func gapHistory(ctx context.Context, s gaps.RunStore, input engine.GapHistoryInput) (GapHistoryOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = gaps.DefaultHistoryLimit
	}
	limit = min(limit, maxHistoryLimit)

	runs, err := s.ListRuns(ctx, strings.TrimSpace(input.Channel), limit)
	if err != nil {
		return GapHistoryOutput{}, err
	}
	out := GapHistoryOutput{Runs: make([]RunSummary, 0, len(runs)), Total: len(runs)}
	for _, r := range runs {
		out.Runs = append(out.Runs, summarize(r))
	}
	return out, nil
}

func summarize(r gaps.RunReport) RunSummary {
	s := RunSummary{
		RunID:       r.RunID,
		Channel:     r.Channel,
		ChannelID:   r.ChannelID,
		Mode:        r.Mode,
		Backend:     r.Backend,
		GeneratedAt: r.GeneratedAt,
		Counters:    r.Counters,
	}
	for i, o := range r.Opportunities {
		if i == 5 {
			break
		}
		s.TopTopics = append(s.TopTopics, o.Topic)
	}
	return s
}
