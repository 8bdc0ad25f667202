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
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultExtension is the file suffix of record files.
const DefaultExtension = ".yaml"

// DefaultLoadWorkers is the default number of files parsed in parallel.
const DefaultLoadWorkers = 4

// Loaded is one record read from disk.
type Loaded struct {
	Identity string // File name without the extension
	Path     string
	Record   Record
}

// LoadResult holds the records of one directory and the files that failed.
type LoadResult struct {
	Dir     string
	Records []Loaded
	Errors  []*RecordError
}

// Err joins every per-file error, or returns nil if all files loaded.
func (r *LoadResult) Err() error {
	errs := make([]error, len(r.Errors))
	for i, e := range r.Errors {
		errs[i] = e
	}
	return errors.Join(errs...)
}

// Loader reads record directories.
type Loader struct {
	ext     string
	workers int
	logger  *slog.Logger
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithExtension sets the record file suffix, including the dot.
func WithExtension(ext string) LoaderOption {
	return func(l *Loader) {
		if ext != "" {
			l.ext = ext
		}
	}
}

// WithWorkers sets how many files are parsed in parallel.
func WithWorkers(n int) LoaderOption {
	return func(l *Loader) {
		if n > 0 {
			l.workers = n
		}
	}
}

// WithLogger sets the logger used for load summaries.
func WithLogger(logger *slog.Logger) LoaderOption {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLoader returns a Loader for DefaultExtension files unless configured otherwise.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		ext:     DefaultExtension,
		workers: DefaultLoadWorkers,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Extension returns the record file suffix.
func (l *Loader) Extension() string { return l.ext }

// NormalizeDir returns dir with exactly one trailing path separator.
// Applying it twice gives the same result as applying it once.
func NormalizeDir(dir string) string {
	sep := string(filepath.Separator)
	trimmed := strings.TrimRight(dir, sep)
	if trimmed == "" && dir == "" {
		return "." + sep
	}
	return trimmed + sep
}

// Load reads every record file directly inside dir.
//
// Files are listed in the order the directory returns them; callers must not
// depend on that order. A missing directory fails with ErrNotFound. Files
// that cannot be read or parsed do not stop the load: each one is reported
// in LoadResult.Errors and the rest are returned in LoadResult.Records.
func (l *Loader) Load(ctx context.Context, dir string) (*LoadResult, error) {
	start := time.Now()
	dir = NormalizeDir(dir)

	names, err := l.list(dir)
	if err != nil {
		return nil, err
	}

	loaded := make([]Loaded, len(names))
	fileErrs := make([]*RecordError, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.workers)

	for i, name := range names {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			path := dir + name
			identity := strings.TrimSuffix(name, l.ext)
			rec, err := readRecord(path)
			if err != nil {
				fileErrs[i] = &RecordError{File: name, Err: err}
				return nil
			}
			rec.Hostname, rec.Domain = SplitIdentity(identity)
			loaded[i] = Loaded{Identity: identity, Path: path, Record: rec}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load %s: %w", dir, err)
	}

	result := &LoadResult{Dir: dir}
	for i := range names {
		if fileErrs[i] != nil {
			result.Errors = append(result.Errors, fileErrs[i])
			continue
		}
		result.Records = append(result.Records, loaded[i])
	}

	l.logger.Debug("records loaded",
		"dir", dir,
		"records", len(result.Records),
		"errors", len(result.Errors),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}

// list returns the names of record files in dir, in directory order.
// os.ReadDir is avoided because it sorts.
func (l *Loader) list(dir string) ([]string, error) {
	f, err := os.Open(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: directory %s", ErrNotFound, dir)
	}
	if err != nil {
		return nil, fmt.Errorf("open directory %s: %w", dir, err)
	}
	defer f.Close()

	entries, err := f.ReadDir(-1)
	if err != nil {
		return nil, fmt.Errorf("reading directory %s: %w", dir, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, l.ext) || len(name) == len(l.ext) {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

func readRecord(path string) (Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Record{}, err
	}
	return Decode(data)
}
