package gapserver

import (
	"context"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/go_gap/internal/engine"
	"github.com/anatolykoptev/go_gap/internal/engine/gaps"
)

// ScoredComment is a comment kept by the signal filter.
type ScoredComment struct {
	Text  string `json:"text"`
	Score int    `json:"score"`
}

// SignalFilterOutput is the result of the signal_filter tool.
type SignalFilterOutput struct {
	Kept     []ScoredComment `json:"kept"`
	Total    int             `json:"total"`
	Dropped  int             `json:"dropped"`
	Fallback bool            `json:"fallback"`
}

func registerSignalFilter(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "signal_filter",
		Description: "Score raw comments for learning intent (questions, confusion, requests) and keep the strongest ones, exactly as the content_gaps pipeline does before LLM extraction. Useful for tuning the phrase lists.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(_ context.Context, _ *mcp.CallToolRequest, input engine.SignalFilterInput) (*mcp.CallToolResult, SignalFilterOutput, error) {
		opts, err := gaps.LoadFilterOptions(engine.Cfg.PhrasesFile)
		if err != nil {
			return nil, SignalFilterOutput{}, err
		}
		out, err := signalFilter(input, opts)
		if err != nil {
			return nil, SignalFilterOutput{}, err
		}
		return nil, out, nil
	})
}

func signalFilter(input engine.SignalFilterInput, opts gaps.FilterOptions) (SignalFilterOutput, error) {
	if len(input.Comments) == 0 {
		return SignalFilterOutput{}, errors.New("comments are required")
	}
	comments := make([]engine.Comment, len(input.Comments))
	for i, text := range input.Comments {
		comments[i] = engine.Comment{Text: text}
	}

	kept := gaps.FilterComments(comments, opts)
	out := SignalFilterOutput{Total: len(comments)}
	if len(kept) == 0 {
		kept = gaps.FallbackTopLiked(comments, gaps.DefaultFallbackTopN)
		out.Fallback = true
	}
	out.Dropped = len(comments) - len(kept)
	out.Kept = make([]ScoredComment, len(kept))
	for i, c := range kept {
		out.Kept[i] = ScoredComment{Text: c.Text, Score: c.SignalScore}
	}
	return out, nil
}
