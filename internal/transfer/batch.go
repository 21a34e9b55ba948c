package transfer

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// BatchError aggregates every failure of one concurrent batch. Successful
// members of the batch are not rolled back.
type BatchError struct {
	Op    string // "create folders", "upload", "list", "download"
	Total int
	Errs  []error
}

func (e *BatchError) Error() string {
	if len(e.Errs) == 1 {
		return fmt.Sprintf("%s: 1 of %d failed: %v", e.Op, e.Total, e.Errs[0])
	}

	return fmt.Sprintf("%s: %d of %d failed (first: %v)", e.Op, len(e.Errs), e.Total, e.Errs[0])
}

// Unwrap exposes the member errors so errors.Is and errors.As see through
// the aggregate.
func (e *BatchError) Unwrap() []error {
	return e.Errs
}

// runBatch runs fn for every item through a bounded errgroup. Each task
// writes its outcome into its own slot and never fails the group, so one
// failure does not cancel its siblings and every error is reported.
// The returned slice holds only the non-nil errors, in item order.
func runBatch[T any](ctx context.Context, workers int, items []T, fn func(context.Context, T) error) []error {
	if len(items) == 0 {
		return nil
	}

	slots := make([]error, len(items))

	var g errgroup.Group
	g.SetLimit(max(workers, 1))

	for i, item := range items {
		g.Go(func() error {
			slots[i] = fn(ctx, item)
			return nil
		})
	}

	_ = g.Wait() //nolint:errcheck // tasks always return nil

	var errs []error
	for _, err := range slots {
		if err != nil {
			errs = append(errs, err)
		}
	}

	return errs
}

// batchError returns a *BatchError for errs, or nil when errs is empty.
func batchError(op string, total int, errs []error) error {
	if len(errs) == 0 {
		return nil
	}

	return &BatchError{Op: op, Total: total, Errs: errs}
}
