package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/anatolykoptev/go_gap/internal/engine"
	"github.com/anatolykoptev/go_gap/internal/engine/gaps"
	"github.com/anatolykoptev/go_gap/internal/toolutil"
)

type scanFlags struct {
	videos      int
	mode        string
	backend     string
	competitors []string
	sample      bool
	uncaptioned bool
	out         string
	noHistory   bool
}

func newRootCommand() *cobra.Command {
	var configFlag, logLevelFlag string
	var flags scanFlags

	ctx := newCommandContext(&configFlag, &logLevelFlag)

	rootCmd := &cobra.Command{
		Use:   "gapscan <channel>",
		Short: "Find content gaps for a YouTube channel",
		Long: "gapscan reads a channel's recent uploads, extracts what the audience struggles with,\n" +
			"checks the creator's own transcripts for coverage and ranks the remaining gaps.",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd, ctx, args[0], flags)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "YAML file overriding the signal filter phrase lists")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level: debug, info, warn, error (default $LOG_LEVEL or warn)")

	f := rootCmd.Flags()
	f.IntVarP(&flags.videos, "videos", "n", gaps.DefaultVideos, fmt.Sprintf("Number of recent uploads to analyze (max %d)", gaps.MaxVideos))
	f.StringVarP(&flags.mode, "mode", "m", string(gaps.ModeCaptions), "Source mode: captions, transcribe, comments")
	f.StringVarP(&flags.backend, "backend", "b", "", "LLM backend: chat, gemini, local (default $LLM_BACKEND)")
	f.StringSliceVar(&flags.competitors, "competitors", nil, "Competitor channels for the outlier score (comma separated)")
	f.BoolVar(&flags.sample, "sample", false, fmt.Sprintf("Sample run: %d videos, %d comments each", gaps.SampleVideos, gaps.SampleComments))
	f.BoolVar(&flags.uncaptioned, "uncaptioned-comments", false, "Captions mode: still read the comments of videos without captions")
	f.StringVarP(&flags.out, "out", "o", ".", "Directory for the JSON and Markdown report")
	f.BoolVar(&flags.noHistory, "no-history", false, "Do not record the run in the history store")

	rootCmd.AddCommand(newCacheCommand(ctx))
	rootCmd.AddCommand(newHistoryCommand(ctx))

	return rootCmd
}

func scanOptions(channel string, mode gaps.Mode, flags scanFlags) gaps.Options {
	return gaps.Options{
		Channel:             channel,
		Videos:              flags.videos,
		Mode:                mode,
		Competitors:         flags.competitors,
		Sample:              flags.sample,
		UncaptionedComments: flags.uncaptioned,
	}
}

func runScan(cmd *cobra.Command, ctx *commandContext, channel string, flags scanFlags) error {
	mode, ok := gaps.ParseMode(strings.ToLower(strings.TrimSpace(flags.mode)))
	if !ok {
		return fmt.Errorf("unknown mode %q (captions, transcribe, comments)", flags.mode)
	}
	cfg := ctx.ensureConfig()

	p, err := newPipeline(cmd.Context(), cfg, flags.backend)
	if err != nil {
		return fmt.Errorf("setup: %w", err)
	}
	report, err := p.Run(cmd.Context(), scanOptions(channel, mode, flags))
	if err != nil {
		return err
	}

	files, err := toolutil.WriteReport(flags.out, report)
	if err != nil {
		return err
	}
	if !flags.noHistory {
		recordRun(cmd, cfg, report)
	}

	out := cmd.OutOrStdout()
	if isTerminal(out) {
		fmt.Fprintln(out, renderSummary(report))
		fmt.Fprintln(out, renderOpportunities(report.Opportunities))
	} else {
		fmt.Fprint(out, gaps.RenderMarkdown(report))
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Report written to %s and %s\n", files.JSON, files.Markdown)
	return nil
}

// newPipeline is swapped in tests.
var newPipeline = gaps.NewPipelineFromConfig

func recordRun(cmd *cobra.Command, cfg engine.Config, r gaps.RunReport) {
	store, err := gaps.OpenRunStore(cmd.Context(), cfg)
	if err != nil {
		slog.Warn("gap history unavailable", slog.Any("error", err))
		return
	}
	defer store.Close()
	if err := store.SaveRun(cmd.Context(), r); err != nil {
		slog.Warn("gap history: save failed", slog.Any("error", err))
	}
}

func isTerminal(w any) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
