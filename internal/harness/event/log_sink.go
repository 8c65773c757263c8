package event

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"tosts/internal/harness/result"
	"tosts/pkg/utils/logger"

	"go.uber.org/zap"
)

// LogSink renders progress and verdicts through the global logger.
type LogSink struct {
	done atomic.Int64

	mu    sync.Mutex
	start time.Time
	total int
}

// NewLogSink creates a log sink.
func NewLogSink() *LogSink {
	return &LogSink{}
}

func (s *LogSink) Emit(ctx context.Context, ev Event) {
	switch ev.Type {
	case RunStarted:
		s.mu.Lock()
		s.start = time.Now()
		s.total = ev.Total
		s.mu.Unlock()
		s.done.Store(0)
		logger.Info(ctx, "run started", zap.Int("total", ev.Total))
	case CaseStarted:
		logger.Debug(ctx, "case started", zap.Int("case", ev.Index))
	case CaseCompleted:
		done := s.done.Add(1)
		s.mu.Lock()
		start, total := s.start, s.total
		s.mu.Unlock()
		logger.Info(ctx, "progress",
			zap.Int64("done", done),
			zap.Int("total", total),
			zap.Int("case", ev.Index),
			zap.String("verdict", string(ev.Verdict)),
			zap.Duration("eta", eta(start, done, total)),
		)
	case RunFailed:
		switch {
		case ev.Error != "":
			logger.Error(ctx, "run aborted", zap.String("error", ev.Error))
		case ev.Verdict == result.VerdictTimedOut:
			logger.Error(ctx, "TLE on test", failureFields(ev)...)
		default:
			logger.Error(ctx, "WA on test", failureFields(ev)...)
		}
	case RunCompleted:
		if ev.Workflow == result.WorkflowGenerate {
			logger.Info(ctx, "all tests generated", zap.Int("total", ev.Total), zap.Int64("elapsed_ms", ev.ElapsedMs))
			return
		}
		logger.Info(ctx, "ALL TESTS PASSED", zap.Int("total", ev.Total), zap.Int64("elapsed_ms", ev.ElapsedMs))
	}
}

func failureFields(ev Event) []zap.Field {
	fields := []zap.Field{zap.Int("case", ev.Index), zap.String("artifact", ev.ArtifactPath)}
	if ev.Stem != "" {
		fields = append(fields, zap.String("stem", ev.Stem))
	}
	return fields
}

// eta extrapolates the remaining time from the average completed case.
func eta(start time.Time, done int64, total int) time.Duration {
	if done <= 0 || start.IsZero() || int64(total) <= done {
		return 0
	}
	elapsed := time.Since(start)
	perCase := elapsed / time.Duration(done)
	return (perCase * time.Duration(int64(total)-done)).Round(time.Millisecond)
}
