package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/anatolykoptev/go_gap/internal/engine/gaps"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the per-video source cache",
	}
	cacheCmd.AddCommand(newCacheClearCommand(ctx))
	return cacheCmd
}

func newCacheClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every cached video record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.ensureConfig()
			cache, err := gaps.NewSourceCache(cfg.CacheDir)
			if err != nil {
				return err
			}
			n, err := cache.Clear()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cached videos from %s\n", n, cache.Dir())
			return nil
		},
	}
}
