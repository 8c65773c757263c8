package orchestrator

import (
	"context"
	"os"
	"path/filepath"

	"tosts/internal/harness/event"
	"tosts/internal/harness/result"
	"tosts/internal/harness/source"
	"tosts/internal/harness/spec"
	appErr "tosts/pkg/errors"
	"tosts/pkg/utils/logger"

	"go.uber.org/zap"
)

// GenerateRequest builds a test set from a generator and a reference solution.
type GenerateRequest struct {
	Generator spec.Executable
	Reference spec.Executable
	InDir     string
	OutDir    string
	InExt     string
	OutExt    string
	Cases     int
	// ArchivePath, when set, receives a .tar.zst data pack of the generated set.
	ArchivePath string
}

func (r GenerateRequest) validate() error {
	switch {
	case r.Generator.Path == "":
		return appErr.ValidationError("generator", "required")
	case r.Reference.Path == "":
		return appErr.ValidationError("solution", "required")
	case r.InDir == "":
		return appErr.ValidationError("in-dir", "required")
	case r.OutDir == "":
		return appErr.ValidationError("out-dir", "required")
	case spec.NormalizeExt(r.InExt) == "":
		return appErr.ValidationError("in-ext", "required")
	case spec.NormalizeExt(r.OutExt) == "":
		return appErr.ValidationError("out-ext", "required")
	case r.Cases < 0:
		return appErr.ValidationError("number", "must not be negative")
	}
	return nil
}

// Generate writes <InDir>/<i>.<InExt> and <OutDir>/<i>.<OutExt> for every case.
// The reference runs under the reference limit; its timeout is fatal.
func (o *Orchestrator) Generate(ctx context.Context, req GenerateRequest) (result.Outcome, error) {
	if err := req.validate(); err != nil {
		return result.Outcome{Workflow: result.WorkflowGenerate}, err
	}
	for _, dir := range []string{req.OutDir, req.InDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return result.Outcome{Workflow: result.WorkflowGenerate}, appErr.Wrapf(err, appErr.FileWriteFailed, "create directory %s failed", dir)
		}
	}
	gen := source.NewGenerator(o.runner, req.Generator, o.cfg.GeneratorTimeLimit)

	ctx, r := o.begin(ctx, result.WorkflowGenerate, req.Cases)
	err := forEachCase(ctx, req.Cases, o.cfg.Parallelism, &r.stop, func(ctx context.Context, index int) error {
		o.emit(ctx, r, event.Event{Type: event.CaseStarted, Index: index, Total: r.total})
		tc, err := gen.Generate(ctx, index)
		if err != nil {
			return err
		}
		inPath := filepath.Join(req.InDir, source.CaseFileName(index, req.InExt))
		if err := os.WriteFile(inPath, tc.Input, 0o644); err != nil {
			return appErr.Wrapf(err, appErr.FileWriteFailed, "write %s failed", inPath)
		}

		res, err := o.runner.RunOnInput(ctx, req.Reference, tc.Input, o.cfg.ReferenceTimeLimit)
		if err != nil {
			return err
		}
		if res.TimedOut {
			return appErr.Newf(appErr.ReferenceTimeout, "reference %s exceeded %v on case %d", req.Reference.Path, o.cfg.ReferenceTimeLimit, index)
		}
		outPath := filepath.Join(req.OutDir, source.CaseFileName(index, req.OutExt))
		if err := os.WriteFile(outPath, res.Output, 0o644); err != nil {
			return appErr.Wrapf(err, appErr.FileWriteFailed, "write %s failed", outPath)
		}
		return o.caseDone(ctx, r, spec.TestCase{Index: index, Input: tc.Input}, result.VerdictMatch)
	})
	if err != nil {
		return o.finish(ctx, r, err)
	}

	if req.ArchivePath != "" {
		if err := source.WritePack(req.ArchivePath, req.InDir, req.OutDir, req.InExt, req.OutExt); err != nil {
			return o.finish(ctx, r, err)
		}
		logger.Info(ctx, "data pack written", zap.String("path", req.ArchivePath))
	}
	return o.finish(ctx, r, nil)
}
