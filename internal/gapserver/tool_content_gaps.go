package gapserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/go_gap/internal/engine"
	"github.com/anatolykoptev/go_gap/internal/engine/gaps"
	"github.com/anatolykoptev/go_gap/internal/toolutil"
)

// ContentGapsOutput is the result of the content_gaps tool.
type ContentGapsOutput struct {
	Report   gaps.RunReport `json:"report"`
	Markdown string         `json:"markdown"`
}

// newPipeline is swapped in tests.
var newPipeline = gaps.NewPipelineFromConfig

func registerContentGaps(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "content_gaps",
		Description: "Find content gaps for a YouTube channel: reads recent uploads (captions + comments), extracts audience pain points with an LLM, clusters them, checks the creator's own transcripts for existing coverage, enriches with Google Trends and ranks opportunities 0-100. Returns the full run report and a Markdown summary. Runs are saved to gap_history.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input engine.ContentGapsInput) (*mcp.CallToolResult, ContentGapsOutput, error) {
		out, err := contentGaps(ctx, input)
		if err != nil {
			return nil, ContentGapsOutput{}, err
		}
		return nil, out, nil
	})
}

func contentGaps(ctx context.Context, input engine.ContentGapsInput) (ContentGapsOutput, error) {
	channel := strings.TrimSpace(input.Channel)
	if channel == "" {
		return ContentGapsOutput{}, errors.New("channel is required")
	}
	mode, ok := gaps.ParseMode(strings.ToLower(strings.TrimSpace(input.Mode)))
	if !ok {
		return ContentGapsOutput{}, fmt.Errorf("unknown mode %q (captions, transcribe, comments)", input.Mode)
	}

	cacheKey := engine.CacheKey("content_gaps", channel, strconv.Itoa(input.Videos), string(mode),
		input.Backend, strings.Join(input.Competitors, ","), strconv.FormatBool(input.Sample),
		strconv.FormatBool(input.UncaptionedComments))
	if out, ok := toolutil.CacheLoadJSON[ContentGapsOutput](ctx, cacheKey); ok {
		return out, nil
	}

	p, err := newPipeline(ctx, *engine.Cfg, input.Backend)
	if err != nil {
		return ContentGapsOutput{}, fmt.Errorf("content_gaps setup: %w", err)
	}

	var report gaps.RunReport
	err = engine.TrackOperation(ctx, "content_gaps", func(ctx context.Context) error {
		var runErr error
		report, runErr = p.Run(ctx, runOptions(channel, mode, input))
		return runErr
	})
	if err != nil {
		return ContentGapsOutput{}, fmt.Errorf("content_gaps: %w", err)
	}

	saveRun(ctx, report)

	out := ContentGapsOutput{Report: report, Markdown: gaps.RenderMarkdown(report)}
	toolutil.CacheStoreJSON(ctx, cacheKey, out)
	slog.Info("content_gaps: done",
		slog.String("channel", channel),
		slog.String("run_id", report.RunID),
		slog.Int("opportunities", len(report.Opportunities)),
	)
	return out, nil
}

func runOptions(channel string, mode gaps.Mode, input engine.ContentGapsInput) gaps.Options {
	return gaps.Options{
		Channel:             channel,
		Videos:              input.Videos,
		Mode:                mode,
		Competitors:         input.Competitors,
		Sample:              input.Sample,
		UncaptionedComments: input.UncaptionedComments,
	}
}
