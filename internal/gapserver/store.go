package gapserver

import (
	"context"
	"log/slog"
	"sync"

	"github.com/anatolykoptev/go_gap/internal/engine"
	"github.com/anatolykoptev/go_gap/internal/engine/gaps"
)

var (
	store     gaps.RunStore
	storeOnce sync.Once
	storeErr  error
)

// runStore opens the run history store on first use.
func runStore(ctx context.Context) (gaps.RunStore, error) {
	storeOnce.Do(func() {
		store, storeErr = gaps.OpenRunStore(ctx, *engine.Cfg)
	})
	return store, storeErr
}

// saveRun records a finished run. History is best effort: a failing store
// never fails the tool call.
func saveRun(ctx context.Context, r gaps.RunReport) {
	s, err := runStore(ctx)
	if err != nil {
		slog.Warn("gap history unavailable", slog.Any("error", err))
		return
	}
	if err := s.SaveRun(ctx, r); err != nil {
		slog.Warn("gap history: save failed", slog.String("run_id", r.RunID), slog.Any("error", err))
	}
}

// CloseStore releases the history store if it was opened.
func CloseStore() {
	if store != nil {
		if err := store.Close(); err != nil {
			slog.Warn("gap history: close failed", slog.Any("error", err))
		}
	}
}
