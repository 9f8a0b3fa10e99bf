package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/anatolykoptev/go_gap/internal/engine/gaps"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history [channel]",
		Short: "List previous runs, newest first",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			channel := ""
			if len(args) == 1 {
				channel = args[0]
			}
			cfg := ctx.ensureConfig()
			store, err := gaps.OpenRunStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.ListRuns(cmd.Context(), channel, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}
			fmt.Fprintln(out, renderHistory(runs))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "l", gaps.DefaultHistoryLimit, "Maximum number of runs")
	return cmd
}

func renderHistory(runs []gaps.RunReport) string {
	const stampLayout = "2006-01-02 15:04"
	headers := []string{"When", "Channel", "Mode", "Videos", "Opportunities", "Top topic"}
	aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft}
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		top := "-"
		if len(r.Opportunities) > 0 {
			top = r.Opportunities[0].Topic
		}
		rows = append(rows, []string{
			r.GeneratedAt.Local().Format(stampLayout),
			r.Channel,
			string(r.Mode),
			strconv.Itoa(r.Counters.VideosIngested),
			strconv.Itoa(len(r.Opportunities)),
			top,
		})
	}
	return renderTable(headers, rows, aligns)
}
