// Package result defines execution results, verdicts and run outcomes.
package result

import "time"

// Verdict is the terminal classification of one case.
type Verdict string

const (
	VerdictMatch    Verdict = "OK"
	VerdictMismatch Verdict = "WA"
	VerdictTimedOut Verdict = "TLE"
)

// Failed reports whether the verdict stops a run.
func (v Verdict) Failed() bool {
	return v == VerdictMismatch || v == VerdictTimedOut
}

// Cause is the human readable failure reason.
func (v Verdict) Cause() string {
	switch v {
	case VerdictMismatch:
		return "wrong answer"
	case VerdictTimedOut:
		return "time limit exceeded"
	default:
		return ""
	}
}

// ExecutionResult is the outcome of one process invocation.
// Output is meaningful only when TimedOut is false.
type ExecutionResult struct {
	Output   []byte
	TimedOut bool
	ExitCode int
	Elapsed  time.Duration
}

// Workflow names the orchestrated run type.
type Workflow string

const (
	WorkflowStress   Workflow = "stress"
	WorkflowRun      Workflow = "run"
	WorkflowGenerate Workflow = "generate"
)

// RunState is the orchestrator state machine position.
type RunState string

const (
	StateRunning           RunState = "Running"
	StateStoppedOnFailure  RunState = "StoppedOnFailure"
	StateCompletedAllCases RunState = "CompletedAllCases"
	// StateAborted marks a run ended by an environment failure or cancellation.
	StateAborted RunState = "Aborted"
)

// Failure describes the single failing case surfaced by a run.
type Failure struct {
	Index        int
	Stem         string
	Verdict      Verdict
	Cause        string
	ArtifactPath string
}

// Outcome aggregates one orchestrated run.
type Outcome struct {
	Workflow  Workflow
	State     RunState
	Total     int
	Completed int
	Passed    int
	Elapsed   time.Duration
	Failure   *Failure
}

// Success reports whether every case passed.
func (o Outcome) Success() bool {
	return o.State == StateCompletedAllCases && o.Failure == nil
}
