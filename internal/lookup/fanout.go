package lookup

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// DefaultFanOut bounds concurrent lookups when no limit is given.
const DefaultFanOut = 16

// Outcome is the result of one key in a loader's LoadAll.
type Outcome[V any] struct {
	Value V
	Found bool
	Err   error
}

// ForEach runs fn for every item with at most fanOut calls in flight. The
// first error returned by fn, or the cancellation of ctx, stops the
// remaining items.
func ForEach[T any](ctx context.Context, items []T, fanOut int, fn func(context.Context, int, T) error) error {
	if fanOut <= 0 {
		fanOut = DefaultFanOut
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fanOut)
	for i, item := range items {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(gctx, i, item)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
