package gaps

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// PoolResult is the outcome of one pool item.
type PoolResult[T any] struct {
	Item  string
	Value T
	Err   error
}

// RunPool runs fn over items with at most workers concurrent calls. Items
// are failure-isolated: an error is recorded on its own result and never
// cancels the others. Results are returned in input order.
func RunPool[T any](ctx context.Context, items []string, workers int, fn func(ctx context.Context, item string) (T, error)) []PoolResult[T] {
	if workers <= 0 {
		workers = 1
	}
	results := make([]PoolResult[T], len(items))

	var g errgroup.Group
	g.SetLimit(workers)
	for idx, item := range items {
		g.Go(func() error {
			results[idx].Item = item
			if err := ctx.Err(); err != nil {
				results[idx].Err = err
				return nil
			}
			results[idx].Value, results[idx].Err = fn(ctx, item)
			return nil
		})
	}
	_ = g.Wait()
	return results
}
