// Package compare classifies program outputs against each other or against expected files.
package compare

import (
	"bytes"
	"context"
	"os"
	"time"

	"tosts/internal/harness/process"
	"tosts/internal/harness/result"
	"tosts/internal/harness/spec"
	appErr "tosts/pkg/errors"

	"github.com/edsrzf/mmap-go"
	"golang.org/x/sync/errgroup"
)

// Normalize strips trailing newline and carriage-return bytes only.
// Leading whitespace and interior bytes are significant.
func Normalize(out []byte) []byte {
	return bytes.TrimRight(out, "\r\n")
}

// Classify decides the verdict for two finished runs.
// A timeout on either side wins over any output comparison.
func Classify(a, b result.ExecutionResult) result.Verdict {
	if a.TimedOut || b.TimedOut {
		return result.VerdictTimedOut
	}
	if bytes.Equal(Normalize(a.Output), Normalize(b.Output)) {
		return result.VerdictMatch
	}
	return result.VerdictMismatch
}

// Comparator runs candidates through a process runner.
type Comparator struct {
	runner process.Runner
}

// NewComparator creates a comparator on top of runner.
func NewComparator(runner process.Runner) *Comparator {
	return &Comparator{runner: runner}
}

// Compare runs a and b concurrently on the same input and classifies the pair.
// Both runs are joined before the verdict is produced.
func (c *Comparator) Compare(ctx context.Context, a, b spec.Executable, input []byte, limit time.Duration) (result.Verdict, error) {
	var resA, resB result.ExecutionResult
	// A plain Group: one side's error never cancels the other run.
	var g errgroup.Group
	g.Go(func() error {
		return c.runSide(ctx, a, input, limit, &resA)
	})
	g.Go(func() error {
		return c.runSide(ctx, b, input, limit, &resB)
	})
	if err := g.Wait(); err != nil {
		return "", err
	}
	return Classify(resA, resB), nil
}

// runSide runs one candidate on its own goroutine, turning a panic into an error
// so it reaches the caller instead of crashing the process.
func (c *Comparator) runSide(ctx context.Context, exe spec.Executable, input []byte, limit time.Duration, out *result.ExecutionResult) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = appErr.Newf(appErr.WorkerFault, "run of %s panicked: %v", exe.Path, r)
		}
	}()
	*out, err = c.runner.RunOnInput(ctx, exe, input, limit)
	return err
}

// Run executes one program and checks it against the expected file.
func (c *Comparator) Run(ctx context.Context, exe spec.Executable, input []byte, expectedPath string, limit time.Duration) (result.Verdict, error) {
	res, err := c.runner.RunOnInput(ctx, exe, input, limit)
	if err != nil {
		return "", err
	}
	if res.TimedOut {
		return result.VerdictTimedOut, nil
	}
	return Check(res.Output, expectedPath)
}

// Check compares actual output with the content of expectedPath after normalization.
func Check(actual []byte, expectedPath string) (result.Verdict, error) {
	file, err := os.Open(expectedPath)
	if err != nil {
		return "", appErr.Wrapf(err, appErr.FileReadFailed, "open expected output %s failed", expectedPath)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", appErr.Wrapf(err, appErr.FileReadFailed, "stat expected output %s failed", expectedPath)
	}
	// Zero-length files cannot be mapped.
	if info.Size() == 0 {
		return verdictOf(actual, nil), nil
	}

	expected, err := mmap.Map(file, mmap.RDONLY, 0)
	if err != nil {
		return "", appErr.Wrapf(err, appErr.FileReadFailed, "map expected output %s failed", expectedPath)
	}
	defer expected.Unmap()

	return verdictOf(actual, expected), nil
}

func verdictOf(actual, expected []byte) result.Verdict {
	if bytes.Equal(Normalize(actual), Normalize(expected)) {
		return result.VerdictMatch
	}
	return result.VerdictMismatch
}
