package command

import (
	"errors"
	"flag"
	"io"
	"testing"

	"tosts/internal/harness/result"
	appErr "tosts/pkg/errors"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name   string
		args   []string
		verify func(t *testing.T, inv Invocation)
	}{
		{
			name: "stress_short_flags",
			args: []string{"s", "./gen", "./sol", "./brute", "-n", "100", "-t", "150"},
			verify: func(t *testing.T, inv Invocation) {
				if inv.Workflow != result.WorkflowStress || inv.Cases != 100 || inv.TimeLimit != 150 {
					t.Fatalf("unexpected invocation: %+v", inv)
				}
				if inv.Generator != "./gen" || inv.Solution != "./sol" || inv.Reference != "./brute" {
					t.Fatalf("unexpected positionals: %+v", inv)
				}
			},
		},
		{
			name: "stress_interspersed_long_flags",
			args: []string{"stress", "--number", "5", "./gen", "--timelimit=20", "python3 sol.py", "-j", "4", "./brute"},
			verify: func(t *testing.T, inv Invocation) {
				if inv.Cases != 5 || inv.TimeLimit != 20 || inv.Parallelism != 4 {
					t.Fatalf("unexpected invocation: %+v", inv)
				}
				if inv.Solution != "python3 sol.py" {
					t.Fatalf("unexpected solution: %q", inv.Solution)
				}
			},
		},
		{
			name: "run_with_dirs",
			args: []string{"r", "-i", "tests/in", "-o", "tests/out", "--ie", "in", "--oe", "out", "-t", "100", "./sol"},
			verify: func(t *testing.T, inv Invocation) {
				if inv.Workflow != result.WorkflowRun || inv.InDir != "tests/in" || inv.OutExt != "out" || inv.Solution != "./sol" {
					t.Fatalf("unexpected invocation: %+v", inv)
				}
			},
		},
		{
			name: "run_with_pack",
			args: []string{"run", "--pack", "cases.tar.zst", "--in-ext", "in", "--out-ext", "ans", "-t", "100", "--artifacts", "fails", "./sol"},
			verify: func(t *testing.T, inv Invocation) {
				if inv.Pack != "cases.tar.zst" || inv.ArtifactDir != "fails" || inv.InDir != "" {
					t.Fatalf("unexpected invocation: %+v", inv)
				}
			},
		},
		{
			name: "positionals_after_terminator",
			args: []string{"stress", "-n", "2", "-t", "10", "./gen", "--", "-sol", "--jobs"},
			verify: func(t *testing.T, inv Invocation) {
				if inv.Generator != "./gen" || inv.Solution != "-sol" || inv.Reference != "--jobs" {
					t.Fatalf("unexpected positionals: %+v", inv)
				}
				if inv.Parallelism != 0 {
					t.Fatalf("--jobs after -- must not be parsed as a flag: %+v", inv)
				}
			},
		},
		{
			name: "generate",
			args: []string{"g", "-i", "in", "-o", "out", "--ie", ".in", "--oe", ".out", "-n", "3", "--archive", "set.tar.zst", "./gen", "./sol"},
			verify: func(t *testing.T, inv Invocation) {
				if inv.Workflow != result.WorkflowGenerate || inv.Cases != 3 || inv.Archive != "set.tar.zst" {
					t.Fatalf("unexpected invocation: %+v", inv)
				}
				if inv.Generator != "./gen" || inv.Reference != "./sol" {
					t.Fatalf("unexpected positionals: %+v", inv)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv, err := Parse(tt.args, io.Discard)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			tt.verify(t, inv)
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no command", nil},
		{"unknown command", []string{"fuzz"}},
		{"missing positional", []string{"stress", "./gen", "./sol", "-n", "1", "-t", "1"}},
		{"extra positional", []string{"run", "-i", "a", "-o", "b", "--ie", "in", "--oe", "out", "-t", "1", "./sol", "./other"}},
		{"missing required flag", []string{"stress", "./gen", "./a", "./b", "-n", "1"}},
		{"bad integer", []string{"stress", "./gen", "./a", "./b", "-n", "ten", "-t", "1"}},
		{"run without dirs or pack", []string{"run", "--ie", "in", "--oe", "out", "-t", "1", "./sol"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.args, io.Discard)
			if !appErr.Is(err, appErr.InvalidParams) {
				t.Fatalf("expected invalid params, got %v", err)
			}
		})
	}
}

func TestParseHelp(t *testing.T) {
	_, err := Parse([]string{"stress", "-h"}, io.Discard)
	if !errors.Is(err, flag.ErrHelp) {
		t.Fatalf("expected help error, got %v", err)
	}
}

func TestRegistryAliases(t *testing.T) {
	registry := Registry()
	for alias, name := range map[string]string{"s": "stress", "r": "run", "g": "generate"} {
		if registry[alias].Name != name {
			t.Fatalf("alias %s resolves to %q", alias, registry[alias].Name)
		}
	}
}
