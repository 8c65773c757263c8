package orchestrator

import (
	"context"
	"time"

	"tosts/internal/harness/event"
	"tosts/internal/harness/result"
	"tosts/internal/harness/source"
	"tosts/internal/harness/spec"
	appErr "tosts/pkg/errors"
)

// BatchRequest checks one solution against stored input/expected pairs.
type BatchRequest struct {
	Solution  spec.Executable
	Pairs     []source.Pair
	TimeLimit time.Duration
}

// Run checks every pair in order of index. Pairs must come from
// source.PairDirectory or source.OpenPack so expected files are known to exist.
func (o *Orchestrator) Run(ctx context.Context, req BatchRequest) (result.Outcome, error) {
	if req.Solution.Path == "" {
		return result.Outcome{Workflow: result.WorkflowRun}, appErr.ValidationError("solution", "required")
	}
	if req.TimeLimit <= 0 {
		return result.Outcome{Workflow: result.WorkflowRun}, appErr.ValidationError("timelimit", "must be positive")
	}

	ctx, r := o.begin(ctx, result.WorkflowRun, len(req.Pairs))
	err := forEachCase(ctx, len(req.Pairs), o.cfg.Parallelism, &r.stop, func(ctx context.Context, index int) error {
		pair := req.Pairs[index-1]
		o.emit(ctx, r, event.Event{Type: event.CaseStarted, Index: pair.Index, Stem: pair.Stem, Total: r.total})
		tc, err := pair.Load()
		if err != nil {
			return err
		}
		verdict, err := o.comparator.Run(ctx, req.Solution, tc.Input, tc.ExpectedPath, req.TimeLimit)
		if err != nil {
			return err
		}
		return o.caseDone(ctx, r, tc, verdict)
	})
	return o.finish(ctx, r, err)
}
