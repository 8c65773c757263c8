package orchestrator

import (
	"context"
	"runtime/debug"

	appErr "tosts/pkg/errors"

	"golang.org/x/sync/errgroup"
)

// caseFunc handles one case index. A returned error aborts the whole run.
type caseFunc func(ctx context.Context, index int) error

// forEachCase dispatches indices 1..total in ascending order to at most
// parallel concurrent workers. No new index is claimed once stop is set or
// a worker has failed; in-flight workers are left to finish.
func forEachCase(ctx context.Context, total, parallel int, stop *StopFlag, fn caseFunc) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)

	for i := 1; i <= total; i++ {
		if stop.Stopped() || gctx.Err() != nil {
			break
		}
		index := i
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = appErr.Newf(appErr.WorkerFault, "worker panicked on case %d: %v", index, r).
						WithDetail("stack", string(debug.Stack()))
				}
			}()
			// g.Go may have blocked on the limit while another case failed.
			if stop.Stopped() || gctx.Err() != nil {
				return nil
			}
			return fn(gctx, index)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	// Parent cancellation with no worker error still means the run did not finish.
	if err := ctx.Err(); err != nil && !stop.Stopped() {
		return appErr.Wrap(err, appErr.Canceled)
	}
	return nil
}
