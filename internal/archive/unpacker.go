// Package archive unpacks ZIP batches of study material for ingestion.
package archive

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/studykit/studykit/internal/extract"
)

// DefaultMaxEntries caps how many file entries of an archive are considered;
// entries beyond the cap are ignored.
const DefaultMaxEntries = 100

// DefaultTimeout bounds the wall-clock time spent unpacking and handling a
// single archive.
const DefaultTimeout = 30 * time.Minute

// HandleFunc processes one extracted archive member. name is the member's base
// filename; path points at a temporary file that is removed after the call
// returns.
type HandleFunc func(ctx context.Context, name, path string) error

// Unpacker extracts supported documents out of ZIP archives.
type Unpacker struct {
	maxEntries int
	timeout    time.Duration
	tempDir    string // "" means the OS default
	logger     *zap.Logger
}

// UnpackerOption configures an Unpacker.
type UnpackerOption func(*Unpacker)

// WithMaxEntries overrides the archive entry cap.
func WithMaxEntries(n int) UnpackerOption {
	return func(u *Unpacker) { u.maxEntries = n }
}

// WithTimeout overrides the per-archive processing budget.
func WithTimeout(d time.Duration) UnpackerOption {
	return func(u *Unpacker) { u.timeout = d }
}

// WithTempDir sets the directory for extraction scratch space.
func WithTempDir(dir string) UnpackerOption {
	return func(u *Unpacker) { u.tempDir = dir }
}

// WithUnpackerLogger sets a logger for per-entry events.
func WithUnpackerLogger(l *zap.Logger) UnpackerOption {
	return func(u *Unpacker) { u.logger = l }
}

// NewUnpacker returns an Unpacker with default limits.
func NewUnpacker(opts ...UnpackerOption) *Unpacker {
	u := &Unpacker{
		maxEntries: DefaultMaxEntries,
		timeout:    DefaultTimeout,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Unpack opens the archive at archivePath and invokes handle for every
// supported document inside it, in archive order. It makes two passes: the
// first selects at most maxEntries file entries, ignoring anything past the
// cap, the second extracts each selected supported member to scratch space and
// hands it to handle. Scratch space is removed before Unpack returns, whether
// or not processing succeeded. Handler errors are logged and skipped, and
// running out of the wall-clock budget stops after the current entry and
// keeps what was done so far. The returned count is the number of members
// handled without error; the only error is an archive that cannot be opened.
func (u *Unpacker) Unpack(ctx context.Context, archivePath string, handle HandleFunc) (int, error) {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return 0, fmt.Errorf("open archive: %w", err)
	}
	defer r.Close()

	// First pass: select the entries within the cap.
	type member struct {
		file  *zip.File
		index int
	}
	var selected []member
	skipped := 0
	for i, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if len(selected) >= u.maxEntries {
			skipped++
			continue
		}
		selected = append(selected, member{file: f, index: i})
	}
	if skipped > 0 && u.logger != nil {
		u.logger.Warn("archive exceeds entry cap, ignoring the rest",
			zap.Int("cap", u.maxEntries), zap.Int("ignored", skipped))
	}

	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	tempDir, err := os.MkdirTemp(u.tempDir, "studykit-unpack-")
	if err != nil {
		return 0, fmt.Errorf("create scratch directory: %w", err)
	}
	defer os.RemoveAll(tempDir)

	// Second pass: extract and handle.
	processed := 0
	for _, m := range selected {
		if ctx.Err() != nil {
			if u.logger != nil {
				u.logger.Warn("archive processing budget exhausted, keeping partial result",
					zap.Int("processed", processed))
			}
			return processed, nil
		}
		f, i := m.file, m.index
		name := filepath.Base(filepath.ToSlash(f.Name))
		if skipEntry(f.Name, name) {
			continue
		}
		if !extract.IsSupported(name) {
			if u.logger != nil {
				u.logger.Debug("skipping unsupported archive entry", zap.String("entry", f.Name))
			}
			continue
		}

		tempPath := filepath.Join(tempDir, fmt.Sprintf("%d-%s", i, name))
		if err := extractEntry(f, tempPath); err != nil {
			if u.logger != nil {
				u.logger.Warn("failed to extract archive entry", zap.String("entry", f.Name), zap.Error(err))
			}
			continue
		}
		if err := handle(ctx, name, tempPath); err != nil {
			if u.logger != nil {
				u.logger.Warn("failed to process archive entry", zap.String("entry", f.Name), zap.Error(err))
			}
			os.Remove(tempPath)
			continue
		}
		os.Remove(tempPath)
		processed++
	}
	return processed, nil
}

// skipEntry filters out archive metadata and hidden files.
func skipEntry(fullName, baseName string) bool {
	if strings.HasPrefix(fullName, "__MACOSX/") {
		return true
	}
	return strings.HasPrefix(baseName, ".")
}

func extractEntry(f *zip.File, dest string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, rc); err != nil {
		return err
	}
	return out.Close()
}
