// Package orchestrator drives stress, batch-run and generate workflows over many cases
// with bounded parallelism and stop-on-first-failure semantics.
package orchestrator

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"tosts/internal/harness/artifact"
	"tosts/internal/harness/compare"
	"tosts/internal/harness/event"
	"tosts/internal/harness/process"
	"tosts/internal/harness/result"
	"tosts/internal/harness/spec"
	"tosts/pkg/utils/contextkey"
	"tosts/pkg/utils/logger"

	"go.uber.org/zap"
)

// Config holds orchestration settings shared by all workflows.
type Config struct {
	// Parallelism bounds concurrently running cases; 0 means one per CPU.
	Parallelism        int
	GeneratorTimeLimit time.Duration
	ReferenceTimeLimit time.Duration
	RunID              string
}

// Orchestrator wires the runner, comparator, artifact store and event sink.
type Orchestrator struct {
	cfg        Config
	runner     process.Runner
	comparator *compare.Comparator
	store      artifact.Store
	sink       event.Sink
}

// New creates an orchestrator. A nil store writes artifacts to the working
// directory and a nil sink discards events.
func New(cfg Config, runner process.Runner, store artifact.Store, sink event.Sink) *Orchestrator {
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = runtime.NumCPU()
	}
	if cfg.GeneratorTimeLimit <= 0 {
		cfg.GeneratorTimeLimit = spec.DefaultGeneratorTimeLimit
	}
	if cfg.ReferenceTimeLimit <= 0 {
		cfg.ReferenceTimeLimit = spec.DefaultReferenceTimeLimit
	}
	if store == nil {
		store = artifact.NewLocalStore("")
	}
	if sink == nil {
		sink = event.Nop{}
	}
	return &Orchestrator{
		cfg:        cfg,
		runner:     runner,
		comparator: compare.NewComparator(runner),
		store:      store,
		sink:       sink,
	}
}

// run tracks one workflow execution.
type run struct {
	workflow result.Workflow
	total    int
	start    time.Time
	stop     StopFlag

	completed atomic.Int64
	passed    atomic.Int64

	mu      sync.Mutex
	failure *result.Failure
}

func (o *Orchestrator) begin(ctx context.Context, workflow result.Workflow, total int) (context.Context, *run) {
	ctx = context.WithValue(ctx, contextkey.Workflow, string(workflow))
	if o.cfg.RunID != "" {
		ctx = context.WithValue(ctx, contextkey.RunID, o.cfg.RunID)
	}
	r := &run{workflow: workflow, total: total, start: time.Now()}
	o.emit(ctx, r, event.Event{Type: event.RunStarted, Total: total})
	return ctx, r
}

func (o *Orchestrator) emit(ctx context.Context, r *run, ev event.Event) {
	ev.RunID = o.cfg.RunID
	ev.Workflow = r.workflow
	o.sink.Emit(ctx, event.Stamp(ev))
}

// caseDone records a finished case. Only the failure that wins the stop flag
// is reported and persisted; failures finishing after it are counted but not
// reported.
func (o *Orchestrator) caseDone(ctx context.Context, r *run, tc spec.TestCase, verdict result.Verdict) error {
	r.completed.Add(1)
	if !verdict.Failed() {
		r.passed.Add(1)
		o.emit(ctx, r, event.Event{Type: event.CaseCompleted, Index: tc.Index, Stem: tc.Stem, Verdict: verdict, Total: r.total})
		return nil
	}
	if !r.stop.Trip() {
		logger.Debug(ctx, "failure after stop discarded", zap.Int("case", tc.Index), zap.String("verdict", string(verdict)))
		return nil
	}
	o.emit(ctx, r, event.Event{Type: event.CaseCompleted, Index: tc.Index, Stem: tc.Stem, Verdict: verdict, Total: r.total})

	path, err := o.store.Save(ctx, tc)
	if err != nil {
		return err
	}
	failure := &result.Failure{
		Index:        tc.Index,
		Stem:         tc.Stem,
		Verdict:      verdict,
		Cause:        verdict.Cause(),
		ArtifactPath: path,
	}
	r.mu.Lock()
	r.failure = failure
	r.mu.Unlock()

	o.emit(ctx, r, event.Event{
		Type:         event.RunFailed,
		Index:        failure.Index,
		Stem:         failure.Stem,
		Verdict:      failure.Verdict,
		Cause:        failure.Cause,
		ArtifactPath: failure.ArtifactPath,
		Total:        r.total,
	})
	return nil
}

// finish turns the pool result into the run outcome.
func (o *Orchestrator) finish(ctx context.Context, r *run, poolErr error) (result.Outcome, error) {
	r.mu.Lock()
	failure := r.failure
	r.mu.Unlock()

	elapsed := time.Since(r.start)
	outcome := result.Outcome{
		Workflow:  r.workflow,
		Total:     r.total,
		Completed: int(r.completed.Load()),
		Passed:    int(r.passed.Load()),
		Elapsed:   elapsed,
		Failure:   failure,
	}

	if poolErr != nil {
		outcome.State = result.StateAborted
		o.emit(ctx, r, event.Event{Type: event.RunFailed, Error: poolErr.Error(), Total: r.total, ElapsedMs: elapsed.Milliseconds()})
		return outcome, poolErr
	}
	if failure != nil {
		outcome.State = result.StateStoppedOnFailure
		return outcome, nil
	}
	outcome.State = result.StateCompletedAllCases
	o.emit(ctx, r, event.Event{Type: event.RunCompleted, Total: r.total, ElapsedMs: elapsed.Milliseconds()})
	return outcome, nil
}
