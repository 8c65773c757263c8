package source

import (
	"archive/tar"
	"errors"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	appErr "tosts/pkg/errors"

	"github.com/klauspost/compress/zstd"
)

const (
	packInputDir  = "in"
	packOutputDir = "out"
)

// Pack is a data pack extracted into a temporary directory.
type Pack struct {
	Root  string
	Pairs []Pair
}

// InputDir is where pack inputs were extracted.
func (p *Pack) InputDir() string { return filepath.Join(p.Root, packInputDir) }

// OutputDir is where pack expected outputs were extracted.
func (p *Pack) OutputDir() string { return filepath.Join(p.Root, packOutputDir) }

// Close removes the extracted files.
func (p *Pack) Close() error {
	if p == nil || p.Root == "" {
		return nil
	}
	return os.RemoveAll(p.Root)
}

// OpenPack extracts a .tar.zst data pack and pairs its in/ and out/ entries.
func OpenPack(packPath, inExt, outExt string) (*Pack, error) {
	root, err := os.MkdirTemp("", "tosts-pack-")
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.FileWriteFailed, "create pack dir failed")
	}
	pack := &Pack{Root: root}
	if err := ExtractPack(packPath, root); err != nil {
		_ = pack.Close()
		return nil, err
	}
	if _, err := os.Stat(pack.InputDir()); err != nil {
		_ = pack.Close()
		return nil, appErr.Newf(appErr.DataPackInvalid, "data pack %s has no %s/ directory", packPath, packInputDir)
	}
	if err := os.MkdirAll(pack.OutputDir(), 0o755); err != nil {
		_ = pack.Close()
		return nil, appErr.Wrapf(err, appErr.FileWriteFailed, "create pack output dir failed")
	}
	pairs, err := PairDirectory(pack.InputDir(), pack.OutputDir(), inExt, outExt)
	if err != nil {
		_ = pack.Close()
		return nil, err
	}
	if len(pairs) == 0 {
		_ = pack.Close()
		return nil, appErr.Newf(appErr.NoCasesFound, "data pack %s contains no .%s inputs", packPath, strings.TrimPrefix(inExt, "."))
	}
	pack.Pairs = pairs
	return pack, nil
}

// ExtractPack unpacks the in/ and out/ files of a zstd-compressed tar into
// dstDir. Entries outside that layout are skipped; entries that would leave
// dstDir make the whole pack invalid.
func ExtractPack(srcPath, dstDir string) error {
	file, err := os.Open(srcPath)
	if err != nil {
		return appErr.Wrapf(err, appErr.FileReadFailed, "open data pack %s failed", srcPath)
	}
	defer file.Close()

	zr, err := zstd.NewReader(file)
	if err != nil {
		return appErr.Wrapf(err, appErr.DataPackInvalid, "data pack %s is not zstd", srcPath)
	}
	defer zr.Close()

	tr := tar.NewReader(zr)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return appErr.Wrapf(err, appErr.DataPackInvalid, "read data pack %s failed", srcPath)
		}
		dir, name, ok, err := packEntry(hdr.Name)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if name == "" {
				if err := os.MkdirAll(filepath.Join(dstDir, dir), 0o755); err != nil {
					return appErr.Wrapf(err, appErr.FileWriteFailed, "create %s failed", dir)
				}
			}
		case tar.TypeReg:
			if name == "" {
				return appErr.Newf(appErr.DataPackInvalid, "data pack entry %q is a file", hdr.Name)
			}
			if err := extractFile(tr, filepath.Join(dstDir, dir), name); err != nil {
				return err
			}
		}
	}
}

// packEntry splits a tar entry name into its layout directory and file name.
// ok is false for entries outside in/ and out/ or nested deeper than one level.
func packEntry(raw string) (dir, name string, ok bool, err error) {
	clean := path.Clean(strings.TrimPrefix(raw, "./"))
	if raw == "" || clean == "." {
		return "", "", false, nil
	}
	if !filepath.IsLocal(filepath.FromSlash(clean)) {
		return "", "", false, appErr.Newf(appErr.DataPackInvalid, "data pack entry %q escapes the pack", raw)
	}
	dir, name, _ = strings.Cut(clean, "/")
	if dir != packInputDir && dir != packOutputDir {
		return "", "", false, nil
	}
	if strings.Contains(name, "/") {
		return "", "", false, nil
	}
	return dir, name, true, nil
}

func extractFile(r io.Reader, dir, name string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return appErr.Wrapf(err, appErr.FileWriteFailed, "create %s failed", dir)
	}
	target := filepath.Join(dir, name)
	out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return appErr.Wrapf(err, appErr.FileWriteFailed, "create %s failed", target)
	}
	if _, err := io.Copy(out, r); err != nil {
		_ = out.Close()
		return appErr.Wrapf(err, appErr.DataPackInvalid, "extract %s failed", target)
	}
	if err := out.Close(); err != nil {
		return appErr.Wrapf(err, appErr.FileWriteFailed, "close %s failed", target)
	}
	return nil
}

// WritePack archives every paired input/output file of inDir and outDir into dst
// using the in/ and out/ layout read by OpenPack.
func WritePack(dst, inDir, outDir, inExt, outExt string) (err error) {
	pairs, err := PairDirectory(inDir, outDir, inExt, outExt)
	if err != nil {
		return err
	}

	file, err := os.Create(dst)
	if err != nil {
		return appErr.Wrapf(err, appErr.FileWriteFailed, "create data pack %s failed", dst)
	}
	defer func() {
		if cerr := file.Close(); err == nil && cerr != nil {
			err = appErr.Wrapf(cerr, appErr.FileWriteFailed, "close data pack failed")
		}
	}()

	zw, err := zstd.NewWriter(file)
	if err != nil {
		return appErr.Wrapf(err, appErr.FileWriteFailed, "create zstd writer failed")
	}
	tw := tar.NewWriter(zw)

	for _, pair := range pairs {
		if err := addFile(tw, pair.InputPath, packInputDir+"/"+filepath.Base(pair.InputPath)); err != nil {
			_ = zw.Close()
			return err
		}
		if err := addFile(tw, pair.ExpectedPath, packOutputDir+"/"+filepath.Base(pair.ExpectedPath)); err != nil {
			_ = zw.Close()
			return err
		}
	}
	if err := tw.Close(); err != nil {
		_ = zw.Close()
		return appErr.Wrapf(err, appErr.FileWriteFailed, "finish tar stream failed")
	}
	if err := zw.Close(); err != nil {
		return appErr.Wrapf(err, appErr.FileWriteFailed, "finish zstd stream failed")
	}
	return nil
}

func addFile(tw *tar.Writer, path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return appErr.Wrapf(err, appErr.FileReadFailed, "open %s failed", path)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return appErr.Wrapf(err, appErr.FileReadFailed, "stat %s failed", path)
	}
	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return appErr.Wrapf(err, appErr.FileWriteFailed, "build tar header for %s failed", path)
	}
	hdr.Name = name
	if err := tw.WriteHeader(hdr); err != nil {
		return appErr.Wrapf(err, appErr.FileWriteFailed, "write tar header for %s failed", path)
	}
	if _, err := io.Copy(tw, f); err != nil {
		return appErr.Wrapf(err, appErr.FileWriteFailed, "write %s into pack failed", path)
	}
	return nil
}
