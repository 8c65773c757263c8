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

// StressRequest compares a candidate against a reference on generated inputs.
type StressRequest struct {
	Candidate spec.Executable
	Reference spec.Executable
	Generator spec.Executable
	Cases     int
	TimeLimit time.Duration
}

func (r StressRequest) validate() error {
	if r.Candidate.Path == "" {
		return appErr.ValidationError("solution", "required")
	}
	if r.Reference.Path == "" {
		return appErr.ValidationError("reference", "required")
	}
	if r.Generator.Path == "" {
		return appErr.ValidationError("generator", "required")
	}
	if r.Cases < 0 {
		return appErr.ValidationError("number", "must not be negative")
	}
	if r.TimeLimit <= 0 {
		return appErr.ValidationError("timelimit", "must be positive")
	}
	return nil
}

// Stress runs req.Cases generated cases. The first mismatch or timeout is
// saved as fail_<index>.in and stops further cases from starting.
func (o *Orchestrator) Stress(ctx context.Context, req StressRequest) (result.Outcome, error) {
	if err := req.validate(); err != nil {
		return result.Outcome{Workflow: result.WorkflowStress}, err
	}
	gen := source.NewGenerator(o.runner, req.Generator, o.cfg.GeneratorTimeLimit)

	ctx, r := o.begin(ctx, result.WorkflowStress, req.Cases)
	err := forEachCase(ctx, req.Cases, o.cfg.Parallelism, &r.stop, func(ctx context.Context, index int) error {
		o.emit(ctx, r, event.Event{Type: event.CaseStarted, Index: index, Total: r.total})
		tc, err := gen.Generate(ctx, index)
		if err != nil {
			return err
		}
		verdict, err := o.comparator.Compare(ctx, req.Candidate, req.Reference, tc.Input, req.TimeLimit)
		if err != nil {
			return err
		}
		return o.caseDone(ctx, r, tc, verdict)
	})
	return o.finish(ctx, r, err)
}
