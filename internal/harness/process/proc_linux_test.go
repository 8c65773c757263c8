//go:build linux

package process

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"
)

func TestTimeoutKillsProcessGroup(t *testing.T) {
	dir := t.TempDir()
	childPid := filepath.Join(dir, "child.pid")
	grandchildPid := filepath.Join(dir, "grandchild.pid")
	script := fmt.Sprintf("echo $$ > %s; sleep 30 & echo $! > %s; wait", childPid, grandchildPid)

	r := NewRunner(Config{})
	res, err := r.RunOnInput(context.Background(), shell(script), nil, 300*time.Millisecond)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !res.TimedOut {
		t.Fatalf("expected timeout")
	}

	for _, path := range []string{childPid, grandchildPid} {
		pid := readPid(t, path)
		if !waitGone(pid, 2*time.Second) {
			t.Fatalf("process %d from %s still running", pid, filepath.Base(path))
		}
	}
}

func TestNormalExitKillsBackgroundedDescendants(t *testing.T) {
	dir := t.TempDir()
	grandchildPid := filepath.Join(dir, "grandchild.pid")
	script := fmt.Sprintf("sleep 30 >/dev/null 2>&1 </dev/null & echo $! > %s; echo done", grandchildPid)

	r := NewRunner(Config{})
	res, err := r.RunOnInput(context.Background(), shell(script), nil, 5*time.Second)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.TimedOut || string(res.Output) != "done\n" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if pid := readPid(t, grandchildPid); !waitGone(pid, 2*time.Second) {
		t.Fatalf("backgrounded process %d still running after return", pid)
	}
}

func TestDescendantHoldingStdoutIsKilled(t *testing.T) {
	dir := t.TempDir()
	grandchildPid := filepath.Join(dir, "grandchild.pid")
	script := fmt.Sprintf("sleep 30 </dev/null & echo $! > %s; echo done", grandchildPid)

	r := NewRunner(Config{WaitDelay: 200 * time.Millisecond})
	res, err := r.RunOnInput(context.Background(), shell(script), nil, 5*time.Second)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.TimedOut || !strings.HasPrefix(string(res.Output), "done") {
		t.Fatalf("unexpected result: %+v", res)
	}
	if pid := readPid(t, grandchildPid); !waitGone(pid, 2*time.Second) {
		t.Fatalf("process %d holding stdout still running after return", pid)
	}
}

func readPid(t *testing.T, path string) int {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read pid file: %v", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		t.Fatalf("parse pid: %v", err)
	}
	return pid
}

// waitGone treats zombies as gone since they no longer execute.
func waitGone(pid int, within time.Duration) bool {
	deadline := time.Now().Add(within)
	for {
		stat, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
		if err != nil {
			return true
		}
		if idx := strings.LastIndexByte(string(stat), ')'); idx >= 0 && idx+2 < len(stat) {
			if state := stat[idx+2]; state == 'Z' || state == 'X' {
				return true
			}
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(20 * time.Millisecond)
	}
}
