package asset

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Writer stores records one file per asset.
type Writer struct {
	Extension string // Defaults to DefaultExtension
	Overwrite bool   // Replace existing files instead of failing with ErrExists
	Logger    *slog.Logger
}

// FileName returns the file name of rec: <hostname>.<domain><ext>.
func (w *Writer) FileName(rec Record) string {
	return rec.Identity() + w.ext()
}

func (w *Writer) ext() string {
	if w.Extension == "" {
		return DefaultExtension
	}
	return w.Extension
}

// WriteAll writes every record into dir and returns the written paths.
//
// All records are checked and encoded before the first file is touched, so
// a bad batch leaves dir unchanged. Each file is written to a temporary name
// and renamed into place, so readers never see a partial record.
func (w *Writer) WriteAll(ctx context.Context, dir string, records []Record) ([]string, error) {
	logger := w.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	type pending struct {
		path string
		data []byte
	}
	files := make([]pending, 0, len(records))
	seen := make(map[string]bool, len(records))

	for _, rec := range records {
		if err := validateIdentity(rec); err != nil {
			return nil, err
		}
		name := w.FileName(rec)
		if seen[name] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateIdentity, rec.Identity())
		}
		seen[name] = true

		path := filepath.Join(dir, name)
		if !w.Overwrite {
			if _, err := os.Stat(path); err == nil {
				return nil, fmt.Errorf("%w: %s", ErrExists, path)
			} else if !errors.Is(err, fs.ErrNotExist) {
				return nil, err
			}
		}

		data, err := Encode(rec)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", rec.Identity(), err)
		}
		files = append(files, pending{path: path, data: data})
	}

	written := make([]string, 0, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return written, fmt.Errorf("write cancelled after %d files: %w", len(written), err)
		}
		if err := writeFileAtomic(f.path, f.data); err != nil {
			return written, err
		}
		written = append(written, f.path)
		logger.Debug("record written", "path", f.path)
	}
	return written, nil
}

// validateIdentity rejects identities that are empty or would escape the
// output directory.
func validateIdentity(rec Record) error {
	for _, part := range []struct{ name, value string }{
		{"hostname", rec.Hostname},
		{"domain", rec.Domain},
	} {
		switch {
		case part.value == "":
			return fmt.Errorf("%w: empty %s for %q", ErrInvalidIdentity, part.name, rec.Identity())
		case strings.ContainsAny(part.value, `/\`) || strings.Contains(part.value, ".."):
			return fmt.Errorf("%w: %s %q", ErrInvalidIdentity, part.name, part.value)
		}
	}
	if strings.Contains(rec.Hostname, ".") {
		return fmt.Errorf("%w: hostname %q contains a dot", ErrInvalidIdentity, rec.Hostname)
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", filepath.Base(path), err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return nil
}
