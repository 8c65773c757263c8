package process

import (
	"bytes"
	"context"
	"runtime"
	"strings"
	"testing"
	"time"

	"tosts/internal/harness/spec"
	appErr "tosts/pkg/errors"
)

func shell(script string) spec.Executable {
	return spec.Executable{Path: "/bin/sh", Args: []string{"-c", script}}
}

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires /bin/sh")
	}
}

func TestRunOnInput(t *testing.T) {
	requireShell(t)
	bigInput := bytes.Repeat([]byte("0123456789abcdef"), 1<<16)

	cases := []struct {
		name   string
		cfg    Config
		exe    spec.Executable
		input  []byte
		limit  time.Duration
		verify func(t *testing.T, out []byte, exitCode int)
	}{
		{
			name:  "echo_stdin",
			exe:   spec.Executable{Path: "cat"},
			input: []byte("5\n"),
			limit: 2 * time.Second,
			verify: func(t *testing.T, out []byte, exitCode int) {
				if string(out) != "5\n" {
					t.Fatalf("unexpected output: %q", out)
				}
			},
		},
		{
			name:  "large_input_round_trip",
			exe:   spec.Executable{Path: "cat"},
			input: bigInput,
			limit: 5 * time.Second,
			verify: func(t *testing.T, out []byte, exitCode int) {
				if !bytes.Equal(out, bigInput) {
					t.Fatalf("output length %d, want %d", len(out), len(bigInput))
				}
			},
		},
		{
			name:  "program_ignores_stdin",
			exe:   shell("echo hi"),
			input: bigInput,
			limit: 2 * time.Second,
			verify: func(t *testing.T, out []byte, exitCode int) {
				if string(out) != "hi\n" {
					t.Fatalf("unexpected output: %q", out)
				}
			},
		},
		{
			name:  "nonzero_exit_keeps_output",
			exe:   shell("echo partial; exit 3"),
			limit: 2 * time.Second,
			verify: func(t *testing.T, out []byte, exitCode int) {
				if string(out) != "partial\n" {
					t.Fatalf("unexpected output: %q", out)
				}
				if exitCode != 3 {
					t.Fatalf("exit code = %d, want 3", exitCode)
				}
			},
		},
		{
			name:  "stdout_capped",
			cfg:   Config{StdoutMaxBytes: 3},
			exe:   shell("printf abcdef"),
			limit: 2 * time.Second,
			verify: func(t *testing.T, out []byte, exitCode int) {
				if string(out) != "abc" {
					t.Fatalf("unexpected output: %q", out)
				}
			},
		},
		{
			name:  "stderr_discarded",
			exe:   shell("echo noise >&2; echo 25"),
			limit: 2 * time.Second,
			verify: func(t *testing.T, out []byte, exitCode int) {
				if string(out) != "25\n" {
					t.Fatalf("unexpected output: %q", out)
				}
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := NewRunner(tc.cfg)
			res, err := r.RunOnInput(context.Background(), tc.exe, tc.input, tc.limit)
			if err != nil {
				t.Fatalf("run: %v", err)
			}
			if res.TimedOut {
				t.Fatalf("unexpected timeout after %v", res.Elapsed)
			}
			tc.verify(t, res.Output, res.ExitCode)
		})
	}
}

func TestRunOnInputTimeout(t *testing.T) {
	requireShell(t)
	r := NewRunner(Config{})
	limit := 200 * time.Millisecond

	start := time.Now()
	res, err := r.RunOnInput(context.Background(), shell("sleep 5"), nil, limit)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !res.TimedOut {
		t.Fatalf("expected timeout, got output %q", res.Output)
	}
	if elapsed := time.Since(start); elapsed > limit+2*time.Second {
		t.Fatalf("timeout took too long: %v", elapsed)
	}
}

func TestRunOnInputSpawnFailure(t *testing.T) {
	r := NewRunner(Config{})
	_, err := r.RunOnInput(context.Background(), spec.Executable{Path: "/nonexistent/solution"}, nil, time.Second)
	if !appErr.Is(err, appErr.ProcessSpawnFailed) {
		t.Fatalf("expected spawn failure, got %v", err)
	}
	if !strings.Contains(err.Error(), "/nonexistent/solution") {
		t.Fatalf("error should name the executable: %v", err)
	}
}

func TestRunOnInputCanceled(t *testing.T) {
	requireShell(t)
	r := NewRunner(Config{})
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	start := time.Now()
	_, err := r.RunOnInput(ctx, shell("sleep 5"), nil, 10*time.Second)
	if !appErr.Is(err, appErr.Canceled) {
		t.Fatalf("expected canceled, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Fatalf("cancel took too long: %v", elapsed)
	}
}

func TestRunOnInputValidation(t *testing.T) {
	r := NewRunner(Config{})
	if _, err := r.RunOnInput(context.Background(), spec.Executable{}, nil, time.Second); !appErr.Is(err, appErr.ValidationFailed) {
		t.Fatalf("expected validation error for empty path, got %v", err)
	}
	if _, err := r.RunOnInput(context.Background(), spec.Executable{Path: "cat"}, nil, 0); !appErr.Is(err, appErr.ValidationFailed) {
		t.Fatalf("expected validation error for zero limit, got %v", err)
	}
}
