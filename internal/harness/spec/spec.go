// Package spec defines the executable references and run settings shared by the harness.
package spec

import (
	"strings"
	"time"

	appErr "tosts/pkg/errors"

	"github.com/google/shlex"
)

// Executable references a runnable program. It is immutable once constructed.
type Executable struct {
	Path string
	Args []string
}

// ParseExecutable splits a command line with shell-like quoting.
// "./sol" and "python3 gen.py --max 10" are both valid.
func ParseExecutable(command string) (Executable, error) {
	fields, err := shlex.Split(command)
	if err != nil {
		return Executable{}, appErr.Wrapf(err, appErr.InvalidExecutable, "parse command %q failed", command)
	}
	if len(fields) == 0 || fields[0] == "" {
		return Executable{}, appErr.ValidationError("executable", "required")
	}
	return Executable{Path: fields[0], Args: fields[1:]}, nil
}

// String renders the executable for logs.
func (e Executable) String() string {
	if len(e.Args) == 0 {
		return e.Path
	}
	return e.Path + " " + strings.Join(e.Args, " ")
}

// TestCase is one input payload. Index is 1-based; Stem names the
// source file for directory cases and is empty for generated ones.
type TestCase struct {
	Index        int
	Stem         string
	Input        []byte
	ExpectedPath string
}

// Centiseconds is a time limit expressed in hundredths of a second.
type Centiseconds int64

// Duration converts the limit with millisecond fidelity.
func (c Centiseconds) Duration() time.Duration {
	return time.Duration(c*10) * time.Millisecond
}

const (
	// DefaultGeneratorTimeLimit bounds one generator invocation.
	DefaultGeneratorTimeLimit = 60 * time.Second
	// DefaultReferenceTimeLimit is the effectively unbounded budget of the reference
	// solution in the generate workflow.
	DefaultReferenceTimeLimit = 100000 * time.Second
)

// RunConfig is built once per invocation and read-only afterwards.
type RunConfig struct {
	TimeLimit   time.Duration
	Parallelism int
	InputExt    string
	OutputExt   string
	Cases       int
}

// Validate checks the fields every workflow relies on.
func (c RunConfig) Validate() error {
	if c.TimeLimit <= 0 {
		return appErr.ValidationError("timelimit", "must be positive")
	}
	if c.Parallelism < 0 {
		return appErr.ValidationError("parallelism", "must not be negative")
	}
	if c.Cases < 0 {
		return appErr.ValidationError("number", "must not be negative")
	}
	return nil
}

// NormalizeExt strips a leading dot so "in" and ".in" are equivalent.
func NormalizeExt(ext string) string {
	return strings.TrimPrefix(strings.TrimSpace(ext), ".")
}
