// Package event reports run and case lifecycle to logs and message queues.
package event

import (
	"context"
	"time"

	"tosts/internal/harness/result"
)

// Type identifies a lifecycle event.
type Type string

const (
	RunStarted    Type = "run_started"
	CaseStarted   Type = "case_started"
	CaseCompleted Type = "case_completed"
	RunFailed     Type = "run_failed"
	RunCompleted  Type = "run_completed"
)

// Event is one lifecycle notification. Fields irrelevant to a type stay zero.
type Event struct {
	Type         Type            `json:"type"`
	RunID        string          `json:"run_id"`
	Workflow     result.Workflow `json:"workflow"`
	Index        int             `json:"index,omitempty"`
	Stem         string          `json:"stem,omitempty"`
	Total        int             `json:"total,omitempty"`
	Verdict      result.Verdict  `json:"verdict,omitempty"`
	Cause        string          `json:"cause,omitempty"`
	ArtifactPath string          `json:"artifact_path,omitempty"`
	ElapsedMs    int64           `json:"elapsed_ms,omitempty"`
	Error        string          `json:"error,omitempty"`
	CreatedAt    int64           `json:"created_at"`
}

// Sink receives events. Implementations must be safe for concurrent use and
// must never influence verdicts, so Emit has no error return.
type Sink interface {
	Emit(ctx context.Context, ev Event)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Emit(context.Context, Event) {}

// Multi fans out to every non-nil sink in order.
type Multi []Sink

func (m Multi) Emit(ctx context.Context, ev Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(ctx, ev)
		}
	}
}

// Stamp fills CreatedAt when missing.
func Stamp(ev Event) Event {
	if ev.CreatedAt == 0 {
		ev.CreatedAt = time.Now().UnixMilli()
	}
	return ev
}
