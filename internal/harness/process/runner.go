// Package process runs one external program on a full stdin payload under a wall-clock limit.
package process

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"

	"tosts/internal/harness/result"
	"tosts/internal/harness/spec"
	appErr "tosts/pkg/errors"
	"tosts/pkg/utils/logger"

	"go.uber.org/zap"
)

const defaultWaitDelay = time.Second

// Runner executes a program once and collects its stdout.
type Runner interface {
	RunOnInput(ctx context.Context, exe spec.Executable, input []byte, limit time.Duration) (result.ExecutionResult, error)
}

// Config controls process execution.
type Config struct {
	// StdoutMaxBytes caps captured stdout; 0 keeps everything.
	StdoutMaxBytes int64
	// WorkDir is the child's working directory; empty inherits ours.
	WorkDir string
	// WaitDelay bounds how long output pipes are drained after the child exits.
	WaitDelay time.Duration
}

type runner struct {
	cfg Config
}

// NewRunner creates a process runner.
func NewRunner(cfg Config) Runner {
	if cfg.WaitDelay <= 0 {
		cfg.WaitDelay = defaultWaitDelay
	}
	return &runner{cfg: cfg}
}

// RunOnInput spawns exe, writes input to its stdin and waits up to limit.
// On timeout or cancellation the child is killed and reaped before returning.
func (r *runner) RunOnInput(ctx context.Context, exe spec.Executable, input []byte, limit time.Duration) (result.ExecutionResult, error) {
	if exe.Path == "" {
		return result.ExecutionResult{}, appErr.ValidationError("executable", "required")
	}
	if limit <= 0 {
		return result.ExecutionResult{}, appErr.ValidationError("timelimit", "must be positive")
	}
	if err := ctx.Err(); err != nil {
		return result.ExecutionResult{}, appErr.Wrap(err, appErr.Canceled)
	}

	cmd := exec.Command(exe.Path, exe.Args...)
	cmd.Dir = r.cfg.WorkDir
	cmd.WaitDelay = r.cfg.WaitDelay
	configureProcessGroup(cmd)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return result.ExecutionResult{}, appErr.Wrapf(err, appErr.ProcessSpawnFailed, "create stdin pipe for %s failed", exe.Path)
	}
	stdout := newCappedBuffer(r.cfg.StdoutMaxBytes)
	cmd.Stdout = stdout
	cmd.Stderr = nil

	start := time.Now()
	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		return result.ExecutionResult{}, appErr.Wrapf(err, appErr.ProcessSpawnFailed, "start %s failed", exe.Path)
	}

	writeDone := make(chan error, 1)
	go func() {
		_, werr := stdin.Write(input)
		if cerr := stdin.Close(); werr == nil && !errors.Is(cerr, os.ErrClosed) {
			werr = cerr
		}
		writeDone <- werr
	}()

	waitDone := make(chan error, 1)
	go func() {
		waitDone <- cmd.Wait()
	}()

	timer := time.NewTimer(limit)
	defer timer.Stop()

	var waitErr error
	timedOut := false
	select {
	case waitErr = <-waitDone:
	case <-timer.C:
		timedOut = true
		killProcess(cmd)
		waitErr = <-waitDone
	case <-ctx.Done():
		killProcess(cmd)
		<-waitDone
		<-writeDone
		return result.ExecutionResult{}, appErr.Wrap(ctx.Err(), appErr.Canceled)
	}
	elapsed := time.Since(start)
	// Descendants the child left behind share its group and go with it.
	killProcess(cmd)
	writeErr := <-writeDone

	if timedOut {
		logger.Debug(ctx, "process killed on time limit",
			zap.String("executable", exe.Path),
			zap.Duration("limit", limit),
			zap.Duration("elapsed", elapsed),
		)
		return result.ExecutionResult{TimedOut: true, ExitCode: -1, Elapsed: elapsed}, nil
	}

	if writeErr != nil && !isClosedPipe(writeErr) {
		return result.ExecutionResult{}, appErr.Wrapf(writeErr, appErr.InputWriteFailed, "write stdin of %s failed", exe.Path)
	}

	exitCode := 0
	if waitErr != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.As(waitErr, &exitErr):
			exitCode = exitErr.ExitCode()
		case errors.Is(waitErr, exec.ErrWaitDelay):
			// The child exited but a descendant still held stdout open; the
			// group kill above has already taken it down.
			logger.Warn(ctx, "stdout left open after exit", zap.String("executable", exe.Path))
		default:
			return result.ExecutionResult{}, appErr.Wrapf(waitErr, appErr.OutputReadFailed, "wait %s failed", exe.Path)
		}
	}

	return result.ExecutionResult{
		Output:   stdout.Bytes(),
		ExitCode: exitCode,
		Elapsed:  elapsed,
	}, nil
}

// isClosedPipe reports whether a stdin write failed only because the child
// stopped reading, which is legitimate for programs that ignore input.
func isClosedPipe(err error) bool {
	return errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, os.ErrClosed) ||
		errors.Is(err, io.ErrClosedPipe)
}

// cappedBuffer keeps at most max bytes and silently drops the rest so the
// child never observes a write error on stdout.
type cappedBuffer struct {
	buf bytes.Buffer
	max int64
}

func newCappedBuffer(max int64) *cappedBuffer {
	return &cappedBuffer{max: max}
}

func (c *cappedBuffer) Write(p []byte) (int, error) {
	if c.max <= 0 {
		return c.buf.Write(p)
	}
	remaining := c.max - int64(c.buf.Len())
	if remaining > 0 {
		if int64(len(p)) > remaining {
			c.buf.Write(p[:remaining])
		} else {
			c.buf.Write(p)
		}
	}
	return len(p), nil
}

func (c *cappedBuffer) Bytes() []byte {
	return c.buf.Bytes()
}
