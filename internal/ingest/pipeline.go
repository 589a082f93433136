// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ingest stages uploaded files and promotes them into a corpus
// directory. Archives are expanded member-by-member, unrecognized file
// types are dropped, and name collisions at the destination are resolved
// by the batch overwrite policy. The pipeline never touches the catalog;
// callers feed its result lists into the registry.
package ingest

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/panjf2000/ants/v2"
)

// DefaultFileTypes is the recognized suffix set used when the caller
// configures none.
var DefaultFileTypes = []string{".docx", ".pdf", ".txt", ".json"}

const cacheDirName = "cache"

// File is one uploaded file handle: a name and its byte content.
type File struct {
	Name    string
	Content io.Reader
}

// FailedFile records a staging task that failed, without aborting the
// rest of the batch.
type FailedFile struct {
	Name string
	Err  error
}

// Result classifies every promoted filename. The three lists are
// disjoint; names reflect the final flattened destination filename.
type Result struct {
	AlreadyExists []string
	NewlyAdded    []string
	Overwritten   []string
	Failed        []FailedFile
}

// Total returns the number of promoted or skipped files.
func (r Result) Total() int {
	return len(r.AlreadyExists) + len(r.NewlyAdded) + len(r.Overwritten)
}

// HasFailures reports whether any staging task failed.
func (r Result) HasFailures() bool {
	return len(r.Failed) > 0
}

// Pipeline stages one batch of uploads at a time. A worker pool is
// created per Save call and torn down at batch completion.
type Pipeline struct {
	dest      string
	fileTypes map[string]bool
	override  bool
	poolSize  int
	logger    *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithFileTypes replaces the recognized suffix set. Suffixes include the
// leading dot and are matched case-insensitively.
func WithFileTypes(suffixes []string) Option {
	return func(p *Pipeline) {
		p.fileTypes = make(map[string]bool, len(suffixes))
		for _, s := range suffixes {
			p.fileTypes[strings.ToLower(s)] = true
		}
	}
}

// WithOverride controls whether promoted files replace same-named
// destination files.
func WithOverride(override bool) Option {
	return func(p *Pipeline) { p.override = override }
}

// WithPoolSize bounds the staging worker pool. Default is the number of
// CPUs, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) {
		if size < 1 {
			size = 1
		}
		p.poolSize = size
	}
}

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPipeline creates a pipeline promoting into dest.
func NewPipeline(dest string, opts ...Option) (*Pipeline, error) {
	if dest == "" {
		return nil, fmt.Errorf("destination directory is required")
	}

	p := &Pipeline{
		dest:     dest,
		poolSize: runtime.NumCPU(),
		logger:   slog.Default(),
	}
	if p.poolSize < 1 {
		p.poolSize = 1
	}
	WithFileTypes(DefaultFileTypes)(p)

	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Save runs one batch: stage every file concurrently into a scratch
// cache, then promote staged files into the destination. The cache
// directory is recreated before the batch and removed afterwards, so it
// never leaks artifacts. A failing file is reported in Result.Failed and
// the rest of the batch continues.
func (p *Pipeline) Save(files []File) (Result, error) {
	cacheDir := filepath.Join(p.dest, cacheDirName)

	// Discard stale leftovers from an interrupted batch.
	if err := os.RemoveAll(cacheDir); err != nil {
		return Result{}, fmt.Errorf("clearing cache directory: %w", err)
	}
	for _, dir := range []string{p.dest, cacheDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Result{}, fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}
	defer os.RemoveAll(cacheDir)

	staged, failed := p.stageAll(files, cacheDir)

	result := p.promote(staged, cacheDir)
	result.Failed = append(failed, result.Failed...)
	return result, nil
}

// stageAll dispatches one task per file to a bounded pool and collects
// staged names in completion order.
func (p *Pipeline) stageAll(files []File, cacheDir string) ([]string, []FailedFile) {
	pool, err := ants.NewPool(p.poolSize)
	if err != nil {
		// Pool creation only fails on invalid sizes; fall back to
		// staging serially.
		p.logger.Warn("worker pool unavailable, staging serially", "error", err)
		return p.stageSerial(files, cacheDir)
	}
	defer pool.Release()

	type taskResult struct {
		name   string
		staged []string
		err    error
	}

	ch := make(chan taskResult, len(files))
	var wg sync.WaitGroup

	for _, f := range files {
		f := f
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			staged, err := p.stage(f, cacheDir)
			ch <- taskResult{name: f.Name, staged: staged, err: err}
		})
		if err != nil {
			wg.Done()
			ch <- taskResult{name: f.Name, err: fmt.Errorf("submitting staging task: %w", err)}
		}
	}

	go func() {
		wg.Wait()
		close(ch)
	}()

	var staged []string
	var failed []FailedFile
	for tr := range ch {
		if tr.err != nil {
			p.logger.Error("staging failed", "file", tr.name, "error", tr.err)
			failed = append(failed, FailedFile{Name: tr.name, Err: tr.err})
			continue
		}
		staged = append(staged, tr.staged...)
	}
	return staged, failed
}

func (p *Pipeline) stageSerial(files []File, cacheDir string) ([]string, []FailedFile) {
	var staged []string
	var failed []FailedFile
	for _, f := range files {
		names, err := p.stage(f, cacheDir)
		if err != nil {
			p.logger.Error("staging failed", "file", f.Name, "error", err)
			failed = append(failed, FailedFile{Name: f.Name, Err: err})
			continue
		}
		staged = append(staged, names...)
	}
	return staged, failed
}

// stage writes one uploaded file into the cache directory. Archives are
// expanded with the suffix filter applied per member; plain files are
// staged as-is when recognized and dropped otherwise.
func (p *Pipeline) stage(f File, cacheDir string) ([]string, error) {
	switch strings.ToLower(filepath.Ext(f.Name)) {
	case ".tar":
		return p.extractTar(f, cacheDir)
	case ".zip":
		return p.extractZip(f, cacheDir)
	}

	if !p.recognized(f.Name) {
		return nil, nil
	}

	path := filepath.Join(cacheDir, f.Name)
	// Another task in this batch may already have staged the same name.
	if _, err := os.Stat(path); err == nil {
		return []string{f.Name}, nil
	}

	out, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("staging %s: %w", f.Name, err)
	}
	if _, err := io.Copy(out, f.Content); err != nil {
		out.Close()
		return nil, fmt.Errorf("writing %s: %w", f.Name, err)
	}
	if err := out.Close(); err != nil {
		return nil, fmt.Errorf("closing %s: %w", f.Name, err)
	}
	return []string{f.Name}, nil
}

func (p *Pipeline) recognized(name string) bool {
	return p.fileTypes[strings.ToLower(filepath.Ext(name))]
}

// promote moves staged files into the destination, flattening nested
// archive entry names and resolving collisions per the overwrite policy.
func (p *Pipeline) promote(staged []string, cacheDir string) Result {
	var result Result
	for _, name := range staged {
		flat := flattenName(name)
		realPath := filepath.Join(p.dest, flat)
		cachePath := filepath.Join(cacheDir, name)

		if _, err := os.Stat(realPath); err == nil {
			if !p.override {
				result.AlreadyExists = append(result.AlreadyExists, flat)
				continue
			}
			if err := os.Rename(cachePath, realPath); err != nil {
				p.logger.Error("promotion failed", "file", flat, "error", err)
				result.Failed = append(result.Failed, FailedFile{Name: flat, Err: err})
				continue
			}
			result.Overwritten = append(result.Overwritten, flat)
			continue
		}

		if err := os.Rename(cachePath, realPath); err != nil {
			p.logger.Error("promotion failed", "file", flat, "error", err)
			result.Failed = append(result.Failed, FailedFile{Name: flat, Err: err})
			continue
		}
		result.NewlyAdded = append(result.NewlyAdded, flat)
	}
	return result
}

// flattenName collapses embedded path separators from nested archive
// entries into a single-level filename.
func flattenName(name string) string {
	name = strings.ReplaceAll(name, "/", "_")
	return strings.ReplaceAll(name, "\\", "_")
}
