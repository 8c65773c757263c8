package source

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"tosts/internal/harness/spec"
	appErr "tosts/pkg/errors"
)

// Pair links one input file with its expected output file.
type Pair struct {
	Index        int
	Stem         string
	InputPath    string
	ExpectedPath string
}

// Load reads the input file into a test case.
func (p Pair) Load() (spec.TestCase, error) {
	data, err := os.ReadFile(p.InputPath)
	if err != nil {
		return spec.TestCase{}, appErr.Wrapf(err, appErr.FileReadFailed, "read input %s failed", p.InputPath)
	}
	return spec.TestCase{
		Index:        p.Index,
		Stem:         p.Stem,
		Input:        data,
		ExpectedPath: p.ExpectedPath,
	}, nil
}

// PairDirectory enumerates inDir for files ending in inExt and pairs each with
// outDir/<stem>.<outExt>. Pairs are sorted by input path and indexed from 1.
// Every pair is validated up front so a missing expected file fails before any case runs.
func PairDirectory(inDir, outDir, inExt, outExt string) ([]Pair, error) {
	inExt = spec.NormalizeExt(inExt)
	outExt = spec.NormalizeExt(outExt)
	if inExt == "" {
		return nil, appErr.ValidationError("in-ext", "required")
	}
	if outExt == "" {
		return nil, appErr.ValidationError("out-ext", "required")
	}

	entries, err := os.ReadDir(inDir)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.FileReadFailed, "read input dir %s failed", inDir)
	}

	var inputs []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if filepath.Ext(entry.Name()) != "."+inExt {
			continue
		}
		inputs = append(inputs, filepath.Join(inDir, entry.Name()))
	}
	sort.Strings(inputs)

	pairs := make([]Pair, 0, len(inputs))
	for i, input := range inputs {
		stem := strings.TrimSuffix(filepath.Base(input), "."+inExt)
		expected := filepath.Join(outDir, stem+"."+outExt)
		info, err := os.Stat(expected)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, appErr.Newf(appErr.PairMissing, "no expected output %s for input %s", expected, input)
			}
			return nil, appErr.Wrapf(err, appErr.FileReadFailed, "stat expected output %s failed", expected)
		}
		if info.IsDir() {
			return nil, appErr.Newf(appErr.PairMissing, "expected output %s is a directory", expected)
		}
		pairs = append(pairs, Pair{
			Index:        i + 1,
			Stem:         stem,
			InputPath:    input,
			ExpectedPath: expected,
		})
	}
	return pairs, nil
}

// CaseFileName builds the "<index>.<ext>" name used by the generate workflow.
func CaseFileName(index int, ext string) string {
	return strconv.Itoa(index) + "." + spec.NormalizeExt(ext)
}
