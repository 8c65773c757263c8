package compare

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"tosts/internal/harness/process"
	"tosts/internal/harness/result"
	"tosts/internal/harness/spec"
	appErr "tosts/pkg/errors"
)

type fakeRunner struct {
	results map[string]result.ExecutionResult
	errs    map[string]error
	calls   atomic.Int32
}

func (f *fakeRunner) RunOnInput(ctx context.Context, exe spec.Executable, input []byte, limit time.Duration) (result.ExecutionResult, error) {
	f.calls.Add(1)
	if err := f.errs[exe.Path]; err != nil {
		return result.ExecutionResult{}, err
	}
	return f.results[exe.Path], nil
}

func out(s string) result.ExecutionResult {
	return result.ExecutionResult{Output: []byte(s)}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"42\n", "42"},
		{"42\r\n\r\n", "42"},
		{"42", "42"},
		{" 42 \n", " 42 "},
		{"a\nb\n", "a\nb"},
		{"\n\n", ""},
	}
	for _, tt := range tests {
		if got := string(Normalize([]byte(tt.in))); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestClassify(t *testing.T) {
	timeout := result.ExecutionResult{TimedOut: true}
	tests := []struct {
		name string
		a, b result.ExecutionResult
		want result.Verdict
	}{
		{"trailing newline ignored", out("42\n"), out("42"), result.VerdictMatch},
		{"different values", out("42\n"), out("43\n"), result.VerdictMismatch},
		{"leading space significant", out(" 42"), out("42"), result.VerdictMismatch},
		{"left timeout", timeout, out("42"), result.VerdictTimedOut},
		{"right timeout", out("42"), timeout, result.VerdictTimedOut},
		{"both timeout", timeout, timeout, result.VerdictTimedOut},
		{"empty outputs", out(""), out("\n"), result.VerdictMatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.a, tt.b); got != tt.want {
				t.Fatalf("Classify = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestCompareJoinsBothRuns(t *testing.T) {
	runner := &fakeRunner{
		results: map[string]result.ExecutionResult{"a": out("25\n"), "b": out("25")},
	}
	c := NewComparator(runner)
	v, err := c.Compare(context.Background(), spec.Executable{Path: "a"}, spec.Executable{Path: "b"}, []byte("5\n"), time.Second)
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if v != result.VerdictMatch {
		t.Fatalf("verdict = %s, want match", v)
	}
	if runner.calls.Load() != 2 {
		t.Fatalf("expected 2 runs, got %d", runner.calls.Load())
	}
}

func TestCompareEnvironmentError(t *testing.T) {
	spawnErr := appErr.New(appErr.ProcessSpawnFailed)
	runner := &fakeRunner{
		results: map[string]result.ExecutionResult{"a": out("1")},
		errs:    map[string]error{"b": spawnErr},
	}
	c := NewComparator(runner)
	_, err := c.Compare(context.Background(), spec.Executable{Path: "a"}, spec.Executable{Path: "b"}, nil, time.Second)
	if !errors.Is(err, spawnErr) {
		t.Fatalf("expected spawn error, got %v", err)
	}
	if runner.calls.Load() != 2 {
		t.Fatalf("both sides must run, got %d", runner.calls.Load())
	}
}

func TestCheck(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
		return path
	}

	tests := []struct {
		name     string
		actual   string
		expected string
		want     result.Verdict
	}{
		{"match with crlf", "42\n", "42\r\n", result.VerdictMatch},
		{"mismatch", "43\n", "42\n", result.VerdictMismatch},
		{"empty expected", "\n", "", result.VerdictMatch},
		{"empty expected vs data", "1", "", result.VerdictMismatch},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := write(fmt.Sprintf("%d.out", i), tt.expected)
			got, err := Check([]byte(tt.actual), path)
			if err != nil {
				t.Fatalf("check: %v", err)
			}
			if got != tt.want {
				t.Fatalf("Check = %s, want %s", got, tt.want)
			}
		})
	}

	if _, err := Check([]byte("x"), filepath.Join(dir, "missing.out")); !appErr.Is(err, appErr.FileReadFailed) {
		t.Fatalf("expected file read error, got %v", err)
	}
}

func TestCompareRealProcesses(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires /bin/sh")
	}
	sh := func(script string) spec.Executable {
		return spec.Executable{Path: "/bin/sh", Args: []string{"-c", script}}
	}
	c := NewComparator(process.NewRunner(process.Config{}))
	ctx := context.Background()

	v, err := c.Compare(ctx, spec.Executable{Path: "cat"}, spec.Executable{Path: "cat"}, []byte("1 2 3\n"), 2*time.Second)
	if err != nil || v != result.VerdictMatch {
		t.Fatalf("echo programs: verdict %s, err %v", v, err)
	}

	v, err = c.Compare(ctx, sh("echo 25"), sh("sleep 5"), nil, 200*time.Millisecond)
	if err != nil || v != result.VerdictTimedOut {
		t.Fatalf("sleeping program: verdict %s, err %v", v, err)
	}
}
