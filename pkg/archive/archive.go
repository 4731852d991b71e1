// Package archive unpacks add-on zip archives into the add-on root.
package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/glorpus-work/addonctl/internal/logger"
	"github.com/glorpus-work/addonctl/pkg/errutils"
	"github.com/glorpus-work/addonctl/pkg/fsutil"
	"github.com/mholt/archives"
)

// Result describes a completed extraction.
type Result struct {
	// RootDir is the top-level component of the first archive entry.
	RootDir string `json:"root_dir"`
	Files   int    `json:"files"`
	Dirs    int    `json:"dirs"`
}

// Extractor unpacks zip archives held in memory.
type Extractor struct {
	format archives.Zip
}

// NewExtractor creates an Extractor.
func NewExtractor() *Extractor {
	return &Extractor{format: archives.Zip{}}
}

// Extract writes every entry of the zip in data below destRoot.
//
// Entries that resolve outside destRoot halt extraction with an
// *errutils.ExtractionError; files written before the offending entry are
// left in place. Symlink entries are skipped.
func (e *Extractor) Extract(ctx context.Context, data []byte, destRoot string) (*Result, error) {
	if err := fsutil.EnsureDir(destRoot); err != nil {
		return nil, &errutils.ExtractionError{Err: fmt.Errorf("create destination: %w", err)}
	}

	res := &Result{}
	first := true
	handler := func(_ context.Context, f archives.FileInfo) error {
		name := f.NameInArchive
		if first {
			res.RootDir = fsutil.TopLevel(name)
			first = false
		}

		target, err := fsutil.ResolveWithin(destRoot, name)
		if err != nil {
			return &errutils.ExtractionError{Path: name, Err: errutils.ErrInvalidFilePath}
		}

		switch {
		case f.IsDir():
			if err := os.MkdirAll(target, fsutil.DirModeDefault); err != nil {
				return &errutils.ExtractionError{Path: name, Err: err}
			}
			res.Dirs++
		case f.Mode()&fs.ModeSymlink != 0 || f.LinkTarget != "":
			logger.Debug("Skipping symlink entry", logger.Fields{"entry": name})
		default:
			if err := writeFile(f, target); err != nil {
				return &errutils.ExtractionError{Path: name, Err: err}
			}
			res.Files++
		}
		return nil
	}

	if err := e.format.Extract(ctx, bytes.NewReader(data), handler); err != nil {
		var extractErr *errutils.ExtractionError
		if errors.As(err, &extractErr) {
			return nil, extractErr
		}
		return nil, &errutils.ExtractionError{Err: err}
	}
	if first {
		return nil, &errutils.ExtractionError{Err: errutils.ErrEmptyArchive}
	}
	return res, nil
}

func writeFile(f archives.FileInfo, target string) error {
	src, err := f.Open()
	if err != nil {
		return fmt.Errorf("open entry: %w", err)
	}
	defer func() { _ = src.Close() }()

	if err := fsutil.EnsureFileDir(target); err != nil {
		return fmt.Errorf("create parent directory: %w", err)
	}

	perm := f.Mode().Perm()
	if perm == 0 {
		perm = fsutil.FileModeDefault
	}
	dst, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(target), err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(target), err)
	}
	return dst.Close()
}
