// Package app wires configuration, integrations and the orchestrator for one CLI invocation.
package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"tosts/internal/cli/command"
	"tosts/internal/cli/config"
	"tosts/internal/common/mq"
	"tosts/internal/common/storage"
	"tosts/internal/harness/artifact"
	"tosts/internal/harness/event"
	"tosts/internal/harness/orchestrator"
	"tosts/internal/harness/process"
	"tosts/internal/harness/result"
	"tosts/internal/harness/source"
	"tosts/internal/harness/spec"
	appErr "tosts/pkg/errors"
	"tosts/pkg/utils/contextkey"
	"tosts/pkg/utils/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	ExitOK          = 0
	ExitCaseFailed  = 1
	ExitEnvironment = 2
)

// Run executes the command line in args (without the program name) and
// returns the process exit code.
func Run(ctx context.Context, args []string, stderr io.Writer) int {
	global := flag.NewFlagSet("tosts", flag.ContinueOnError)
	global.SetOutput(stderr)
	configPath := global.String("config", "", "path to config file (default "+config.DefaultConfigPath+" if present)")
	logLevel := global.String("log-level", "", "override log level (debug, info, warn, error)")
	global.Usage = func() {
		command.Usage(stderr)
		global.PrintDefaults()
	}
	if err := global.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return ExitOK
		}
		return ExitEnvironment
	}

	inv, err := command.Parse(global.Args(), stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return ExitOK
		}
		fmt.Fprintf(stderr, "%v\n", err)
		command.Usage(stderr)
		return ExitEnvironment
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "load config failed: %v\n", err)
		return ExitEnvironment
	}
	if *logLevel != "" {
		cfg.Logger.Level = *logLevel
	}
	if err := logger.Init(cfg.Logger); err != nil {
		fmt.Fprintf(stderr, "init logger failed: %v\n", err)
		return ExitEnvironment
	}
	defer func() {
		_ = logger.Sync()
	}()

	runID := uuid.NewString()
	ctx = context.WithValue(ctx, contextkey.RunID, runID)

	outcome, err := execute(ctx, cfg, inv, runID)
	return exitCode(ctx, outcome, err)
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.LoadOptional(config.DefaultConfigPath)
	}
	return config.Load(path)
}

func execute(ctx context.Context, cfg config.Config, inv command.Invocation, runID string) (result.Outcome, error) {
	runner := process.NewRunner(process.Config{StdoutMaxBytes: cfg.Harness.StdoutMaxBytes})

	sink, closeSink := buildSink(ctx, cfg.Events)
	defer closeSink()

	parallelism := cfg.Harness.Parallelism
	if inv.Parallelism > 0 {
		parallelism = inv.Parallelism
	}
	orch := orchestrator.New(orchestrator.Config{
		Parallelism:        parallelism,
		GeneratorTimeLimit: cfg.Harness.GeneratorTimeout,
		ReferenceTimeLimit: cfg.Harness.ReferenceTimeout,
		RunID:              runID,
	}, runner, buildStore(ctx, cfg, inv, runID), sink)

	switch inv.Workflow {
	case result.WorkflowStress:
		exes, err := parseExecutables(inv.Generator, inv.Solution, inv.Reference)
		if err != nil {
			return result.Outcome{Workflow: inv.Workflow}, err
		}
		return orch.Stress(ctx, orchestrator.StressRequest{
			Generator: exes[0],
			Candidate: exes[1],
			Reference: exes[2],
			Cases:     inv.Cases,
			TimeLimit: inv.TimeLimit.Duration(),
		})
	case result.WorkflowRun:
		exes, err := parseExecutables(inv.Solution)
		if err != nil {
			return result.Outcome{Workflow: inv.Workflow}, err
		}
		pairs, cleanup, err := loadPairs(inv)
		if err != nil {
			return result.Outcome{Workflow: inv.Workflow}, err
		}
		defer cleanup()
		if len(pairs) == 0 {
			logger.Warn(ctx, "no test cases found", zap.String("in_dir", inv.InDir), zap.String("in_ext", inv.InExt))
		}
		return orch.Run(ctx, orchestrator.BatchRequest{
			Solution:  exes[0],
			Pairs:     pairs,
			TimeLimit: inv.TimeLimit.Duration(),
		})
	case result.WorkflowGenerate:
		exes, err := parseExecutables(inv.Generator, inv.Reference)
		if err != nil {
			return result.Outcome{Workflow: inv.Workflow}, err
		}
		return orch.Generate(ctx, orchestrator.GenerateRequest{
			Generator:   exes[0],
			Reference:   exes[1],
			InDir:       inv.InDir,
			OutDir:      inv.OutDir,
			InExt:       inv.InExt,
			OutExt:      inv.OutExt,
			Cases:       inv.Cases,
			ArchivePath: inv.Archive,
		})
	default:
		return result.Outcome{}, appErr.Newf(appErr.InvalidParams, "unsupported workflow %q", inv.Workflow)
	}
}

func parseExecutables(commands ...string) ([]spec.Executable, error) {
	exes := make([]spec.Executable, 0, len(commands))
	for _, c := range commands {
		exe, err := spec.ParseExecutable(c)
		if err != nil {
			return nil, err
		}
		exes = append(exes, exe)
	}
	return exes, nil
}

func loadPairs(inv command.Invocation) ([]source.Pair, func(), error) {
	if inv.Pack == "" {
		pairs, err := source.PairDirectory(inv.InDir, inv.OutDir, inv.InExt, inv.OutExt)
		return pairs, func() {}, err
	}
	pack, err := source.OpenPack(inv.Pack, inv.InExt, inv.OutExt)
	if err != nil {
		return nil, func() {}, err
	}
	return pack.Pairs, func() { _ = pack.Close() }, nil
}

// buildStore mirrors artifacts to MinIO when configured. A MinIO setup error
// only disables mirroring.
func buildStore(ctx context.Context, cfg config.Config, inv command.Invocation, runID string) artifact.Store {
	dir := cfg.Harness.ArtifactDir
	if inv.ArtifactDir != "" {
		dir = inv.ArtifactDir
	}
	local := artifact.NewLocalStore(dir)
	if !cfg.MinIO.Enabled() {
		return local
	}
	objects, err := storage.NewMinIOStorage(cfg.MinIO)
	if err != nil {
		logger.Warn(ctx, "artifact mirroring disabled", zap.Error(err))
		return local
	}
	return artifact.NewMirrorStore(local, objects, cfg.MinIO.Bucket, cfg.MinIO.Prefix, runID)
}

// buildSink always logs and additionally publishes to Kafka when configured.
func buildSink(ctx context.Context, cfg config.EventsConfig) (event.Sink, func()) {
	logSink := event.NewLogSink()
	if !cfg.Enabled() {
		return logSink, func() {}
	}
	producer, err := mq.NewKafkaProducer(cfg.ToMQConfig())
	if err != nil {
		logger.Warn(ctx, "event publishing disabled", zap.Error(err))
		return logSink, func() {}
	}
	pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	err = producer.Ping(pingCtx)
	cancel()
	if err != nil {
		_ = producer.Close()
		logger.Warn(ctx, "event publishing disabled", zap.Strings("brokers", cfg.Brokers), zap.Error(err))
		return logSink, func() {}
	}
	mqSink, err := event.NewMQSink(producer, cfg.Topic)
	if err != nil {
		_ = producer.Close()
		logger.Warn(ctx, "event publishing disabled", zap.Error(err))
		return logSink, func() {}
	}
	return event.Multi{logSink, mqSink}, func() {
		mqSink.Close()
		if err := producer.Close(); err != nil {
			logger.Warn(ctx, "close event producer failed", zap.Error(err))
		}
	}
}

func exitCode(ctx context.Context, outcome result.Outcome, err error) int {
	if err != nil {
		code := appErr.GetCode(err)
		logger.Error(ctx, "run failed", zap.String("code", code.Message()), zap.Error(err))
		if stack, ok := appErr.Detail(err, "stack"); ok {
			logger.Debug(ctx, "worker stack", zap.Any("stack", stack))
		}
		return code.ExitCode()
	}
	if outcome.Failure != nil {
		logger.Info(ctx, "run stopped on failure",
			zap.Int("case", outcome.Failure.Index),
			zap.String("cause", outcome.Failure.Cause),
			zap.String("artifact", outcome.Failure.ArtifactPath),
			zap.Duration("elapsed", outcome.Elapsed.Round(time.Millisecond)),
		)
		return ExitCaseFailed
	}
	return ExitOK
}
