package command

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"tosts/internal/harness/result"
	"tosts/internal/harness/spec"
	appErr "tosts/pkg/errors"
)

var (
	fieldNumber      = Field{Name: "number", Aliases: []string{"n"}, Usage: "number of tests", Type: FieldInt, Required: true}
	fieldTimeLimit   = Field{Name: "timelimit", Aliases: []string{"t"}, Usage: "time limit (in centiseconds)", Type: FieldInt, Required: true}
	fieldInDir       = Field{Name: "in-dir", Aliases: []string{"i"}, Usage: "directory with input files", Required: true}
	fieldOutDir      = Field{Name: "out-dir", Aliases: []string{"o"}, Usage: "directory with output files", Required: true}
	fieldInExt       = Field{Name: "in-ext", Aliases: []string{"ie"}, Usage: "extension of input files", Required: true}
	fieldOutExt      = Field{Name: "out-ext", Aliases: []string{"oe"}, Usage: "extension of output files", Required: true}
	fieldParallelism = Field{Name: "jobs", Aliases: []string{"j"}, Usage: "cases run in parallel (default: one per CPU)", Type: FieldInt}
	fieldArtifacts   = Field{Name: "artifacts", Usage: "directory for fail_<index>.in (default: working directory)"}
)

// Registry returns all subcommands keyed by name and alias.
func Registry() map[string]Command {
	commands := []Command{
		{
			Name:        "stress",
			Aliases:     []string{"s"},
			Summary:     "test solution with generator and another solution",
			Workflow:    result.WorkflowStress,
			Positionals: []string{"generator", "solution1", "solution2"},
			Fields:      []Field{fieldNumber, fieldTimeLimit, fieldParallelism, fieldArtifacts},
		},
		{
			Name:        "run",
			Aliases:     []string{"r"},
			Summary:     "test solution with pregenerated tests from a directory",
			Workflow:    result.WorkflowRun,
			Positionals: []string{"solution"},
			Fields: []Field{
				optional(fieldInDir),
				optional(fieldOutDir),
				fieldInExt,
				fieldOutExt,
				fieldTimeLimit,
				fieldParallelism,
				fieldArtifacts,
				{Name: "pack", Usage: "read tests from a .tar.zst data pack instead of directories"},
			},
			Check: func(params Params) error {
				if params.Has("pack") {
					return nil
				}
				if !params.Has("in-dir") || !params.Has("out-dir") {
					return appErr.New(appErr.InvalidParams).WithMessage("--in-dir and --out-dir are required without --pack")
				}
				return nil
			},
		},
		{
			Name:        "generate",
			Aliases:     []string{"g"},
			Summary:     "generate tests with a generator and a solution",
			Workflow:    result.WorkflowGenerate,
			Positionals: []string{"generator", "solution"},
			Fields: []Field{
				fieldInDir,
				fieldOutDir,
				fieldInExt,
				fieldOutExt,
				fieldNumber,
				fieldParallelism,
				{Name: "archive", Usage: "also write the generated tests into a .tar.zst data pack"},
			},
		},
	}

	registry := make(map[string]Command, len(commands)*2)
	for _, cmd := range commands {
		registry[cmd.Name] = cmd
		for _, alias := range cmd.Aliases {
			registry[alias] = cmd
		}
	}
	return registry
}

func optional(f Field) Field {
	f.Required = false
	return f
}

// Parse resolves the subcommand in args[0] and parses its flags and positionals.
// Flags may appear before, between or after positional arguments.
func Parse(args []string, output io.Writer) (Invocation, error) {
	if len(args) == 0 {
		return Invocation{}, appErr.New(appErr.InvalidParams).WithMessage("a command is required")
	}
	cmd, ok := Registry()[args[0]]
	if !ok {
		return Invocation{}, appErr.Newf(appErr.InvalidParams, "unknown command %q", args[0])
	}

	params := make(Params)
	fs := flag.NewFlagSet(cmd.Name, flag.ContinueOnError)
	fs.SetOutput(output)
	for _, field := range cmd.Fields {
		field := field
		set := func(value string) error {
			if field.Type == FieldInt {
				if _, err := ParseInt(value); err != nil {
					return fmt.Errorf("invalid integer %q", value)
				}
			}
			params.Set(field.Name, value)
			return nil
		}
		for _, name := range append([]string{field.Name}, field.Aliases...) {
			fs.Func(name, field.Usage, set)
		}
	}
	fs.Usage = func() {
		fmt.Fprintf(output, "usage: tosts %s [flags] %s\n", cmd.Name, positionalUsage(cmd.Positionals))
		fmt.Fprintf(output, "%s\n", cmd.Summary)
		fs.PrintDefaults()
	}

	var positionals []string
	rest := args[1:]
	for {
		if err := fs.Parse(rest); err != nil {
			if errors.Is(err, flag.ErrHelp) {
				return Invocation{}, err
			}
			return Invocation{}, appErr.Wrapf(err, appErr.InvalidParams, "parse %s flags failed", cmd.Name)
		}
		remaining := fs.Args()
		// flag stops after consuming "--"; everything behind it is positional.
		if consumed := len(rest) - len(remaining); consumed > 0 && rest[consumed-1] == "--" {
			positionals = append(positionals, remaining...)
			break
		}
		rest = remaining
		if len(rest) == 0 {
			break
		}
		positionals = append(positionals, rest[0])
		rest = rest[1:]
	}

	if len(positionals) != len(cmd.Positionals) {
		return Invocation{}, appErr.Newf(appErr.InvalidParams, "%s expects %d arguments (%s), got %d",
			cmd.Name, len(cmd.Positionals), positionalUsage(cmd.Positionals), len(positionals))
	}
	for _, field := range cmd.Fields {
		if field.Required && !params.Has(field.Name) {
			return Invocation{}, appErr.Newf(appErr.InvalidParams, "--%s is required", field.Name)
		}
	}
	if cmd.Check != nil {
		if err := cmd.Check(params); err != nil {
			return Invocation{}, err
		}
	}
	return buildInvocation(cmd, positionals, params), nil
}

func positionalUsage(names []string) string {
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = "<" + name + ">"
	}
	return strings.Join(parts, " ")
}

func buildInvocation(cmd Command, positionals []string, params Params) Invocation {
	inv := Invocation{
		Workflow:    cmd.Workflow,
		InDir:       params.Get("in-dir"),
		OutDir:      params.Get("out-dir"),
		InExt:       params.Get("in-ext"),
		OutExt:      params.Get("out-ext"),
		Pack:        params.Get("pack"),
		Archive:     params.Get("archive"),
		ArtifactDir: params.Get("artifacts"),
	}
	// Values were validated when the flags were set.
	inv.Cases, _ = ParseInt(params.Get("number"))
	inv.Parallelism, _ = ParseInt(params.Get("jobs"))
	limit, _ := ParseInt(params.Get("timelimit"))
	inv.TimeLimit = spec.Centiseconds(limit)

	switch cmd.Workflow {
	case result.WorkflowStress:
		inv.Generator, inv.Solution, inv.Reference = positionals[0], positionals[1], positionals[2]
	case result.WorkflowRun:
		inv.Solution = positionals[0]
	case result.WorkflowGenerate:
		inv.Generator, inv.Reference = positionals[0], positionals[1]
	}
	return inv
}

// Usage writes the top-level help.
func Usage(w io.Writer) {
	fmt.Fprintln(w, "usage: tosts [-config path] [-log-level level] <command> [flags] [args]")
	fmt.Fprintln(w, "commands:")
	for _, name := range []string{"stress", "run", "generate"} {
		cmd := Registry()[name]
		fmt.Fprintf(w, "  %-9s (%s) %s\n", cmd.Name, strings.Join(cmd.Aliases, ", "), cmd.Summary)
	}
}
