// Package source supplies test case inputs to the orchestrator.
package source

import (
	"context"
	"time"

	"tosts/internal/harness/process"
	"tosts/internal/harness/spec"
	appErr "tosts/pkg/errors"
)

// Generator produces one case per invocation of a generator program.
type Generator struct {
	runner process.Runner
	exe    spec.Executable
	limit  time.Duration
}

// NewGenerator creates a generator source. A non-positive limit selects the default.
func NewGenerator(runner process.Runner, exe spec.Executable, limit time.Duration) *Generator {
	if limit <= 0 {
		limit = spec.DefaultGeneratorTimeLimit
	}
	return &Generator{runner: runner, exe: exe, limit: limit}
}

// Generate runs the generator with empty stdin and returns its stdout as case input.
// Generators are expected to randomize per invocation; nothing is passed to seed them.
func (g *Generator) Generate(ctx context.Context, index int) (spec.TestCase, error) {
	res, err := g.runner.RunOnInput(ctx, g.exe, nil, g.limit)
	if err != nil {
		return spec.TestCase{}, err
	}
	if res.TimedOut {
		return spec.TestCase{}, appErr.Newf(appErr.GeneratorFailed, "generator %s timed out after %v on case %d", g.exe.Path, g.limit, index)
	}
	return spec.TestCase{Index: index, Input: res.Output}, nil
}
