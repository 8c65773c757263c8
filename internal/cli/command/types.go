package command

import (
	"strconv"
	"strings"

	"tosts/internal/harness/result"
	"tosts/internal/harness/spec"
)

// FieldType describes a flag value type.
type FieldType int

const (
	FieldString FieldType = iota
	FieldInt
)

// Field defines a command flag. Every alias sets the same value.
type Field struct {
	Name     string
	Aliases  []string
	Usage    string
	Type     FieldType
	Required bool
}

// Command defines a subcommand binding.
type Command struct {
	Name        string
	Aliases     []string
	Summary     string
	Workflow    result.Workflow
	Positionals []string
	Fields      []Field
	// Check runs after required fields are present.
	Check func(params Params) error
}

// Params holds parsed flag values keyed by canonical field name.
type Params map[string]string

func (p Params) Get(key string) string {
	return p[strings.ToLower(key)]
}

func (p Params) Set(key, value string) {
	p[strings.ToLower(key)] = value
}

func (p Params) Has(key string) bool {
	_, ok := p[strings.ToLower(key)]
	return ok
}

func ParseInt(value string) (int, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 32)
	return int(n), err
}

// Invocation is a fully parsed command line.
type Invocation struct {
	Workflow result.Workflow

	// Raw command strings, split later by spec.ParseExecutable.
	Generator string
	Solution  string
	Reference string

	Cases       int
	TimeLimit   spec.Centiseconds
	InDir       string
	OutDir      string
	InExt       string
	OutExt      string
	Pack        string
	Archive     string
	Parallelism int
	ArtifactDir string
}
