// Copyright (c) peforge authors 2026. All rights reserved.
// SPDX-License-Identifier: MIT

// Package copyengine transfers bulk file sets with bounded parallelism.
// Small batches are copied sequentially on the calling goroutine; larger
// batches fan out across a worker pool capped at the caller's throttle limit.
package copyengine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"

	"github.com/peforge/peforge/internal/builderr"
	"github.com/peforge/peforge/internal/ctxlog"
)

const source = "copyengine"

// DefaultSequentialThreshold is the batch size at or below which files are
// copied sequentially; parallel dispatch overhead is not worth it for small
// batches.
const DefaultSequentialThreshold = 32

const (
	dirMode  = os.FileMode(0o755)
	fileMode = os.FileMode(0o644)

	// minWorkerCeiling keeps the hardware ceiling usable on small machines.
	minWorkerCeiling = 4
)

var (
	// ErrCopyAborted is returned when the context is cancelled mid-transfer.
	ErrCopyAborted = errors.New("copy aborted")
	// ErrNoDestination is returned when CopyMany is called without a destination.
	ErrNoDestination = errors.New("destination must not be empty")
)

// copyFileFn performs a single file copy. It is a package variable so tests
// can substitute an instrumented implementation.
var copyFileFn = func(fs afero.Fs, task *Task) error {
	src, err := fs.Open(task.Source)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer src.Close()

	if err := fs.MkdirAll(filepath.Dir(task.Dest), dirMode); err != nil {
		return fmt.Errorf("create destination directory: %w", err)
	}

	dst, err := fs.OpenFile(task.Dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, fileMode)
	if err != nil {
		return fmt.Errorf("open destination: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("copy contents: %w", err)
	}

	return nil
}

// Engine copies file sets onto a destination, deciding between a sequential
// and a parallel strategy per call. An Engine is intended for one CopyMany
// call at a time; the concurrency gauge is reset per call.
type Engine struct {
	// FS is the filesystem all reads and writes go through.
	FS afero.Fs
	// SequentialThreshold is the batch size at or below which the engine
	// copies sequentially. Zero means DefaultSequentialThreshold.
	SequentialThreshold int

	collector *builderr.Collector

	inFlight atomic.Int64
	peak     atomic.Int64
}

// New creates an Engine over the given filesystem, appending aggregate
// failures to the collector.
func New(fs afero.Fs, collector *builderr.Collector) *Engine {
	return &Engine{
		FS:        fs,
		collector: collector,
	}
}

// PeakConcurrency reports the highest number of simultaneously running copy
// operations observed during the most recent CopyMany call.
func (e *Engine) PeakConcurrency() int64 {
	return e.peak.Load()
}

// CopyMany copies the given source paths beneath destDir, running at most
// throttle copies concurrently. With recurse, directory sources are expanded
// to the files below them, preserving their relative layout. It returns the
// number of files copied; if any task failed, it also returns one aggregate
// error with category FileSystem listing every failed path. Sibling tasks are
// never aborted by an individual failure.
func (e *Engine) CopyMany(ctx context.Context, sources []string, destDir string, throttle int, recurse bool) (int, error) {
	logger := ctxlog.Logger(ctx).With("component", source)

	if destDir == "" {
		ce := builderr.New("no destination for bulk copy", builderr.CategoryValidation, source,
			builderr.WithCause(ErrNoDestination))
		e.collector.Append(ce)

		return 0, ce
	}

	tasks, err := e.expand(sources, destDir, recurse)
	if err != nil {
		ce := builderr.New("could not enumerate files to copy", builderr.CategoryFileSystem, source,
			builderr.WithCause(err))
		e.collector.Append(ce)

		return 0, ce
	}

	e.peak.Store(0)
	e.inFlight.Store(0)

	if len(tasks) == 0 {
		logger.Debug("nothing to copy", "destination", destDir)
		return 0, nil
	}

	threshold := e.SequentialThreshold
	if threshold <= 0 {
		threshold = DefaultSequentialThreshold
	}

	if len(tasks) <= threshold {
		logger.Info("copying sequentially",
			"files", len(tasks),
			"threshold", threshold,
			"destination", destDir)

		e.runSequential(ctx, tasks)
	} else {
		workers := workerCount(throttle, len(tasks))
		logger.Info("copying in parallel",
			"files", len(tasks),
			"throttle", throttle,
			"workers", workers,
			"destination", destDir)

		e.runParallel(ctx, tasks, workers)
	}

	return e.settle(ctx, tasks, destDir)
}

// workerCount bounds the pool at the throttle limit and the hardware
// concurrency ceiling. At most throttle copies run at any instant.
func workerCount(throttle, taskCount int) int {
	ceiling := max(2*runtime.NumCPU(), minWorkerCeiling)

	n := min(throttle, ceiling)
	n = min(n, taskCount)

	return max(n, 1)
}

func (e *Engine) runSequential(ctx context.Context, tasks []*Task) {
	for _, t := range tasks {
		e.runOne(ctx, t)
	}
}

func (e *Engine) runParallel(ctx context.Context, tasks []*Task, workers int) {
	taskCh := make(chan *Task)
	wg := &sync.WaitGroup{}

	for range workers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for t := range taskCh {
				e.runOne(ctx, t)
			}
		}()
	}

	for _, t := range tasks {
		taskCh <- t
	}

	close(taskCh)
	wg.Wait()
}

func (e *Engine) runOne(ctx context.Context, t *Task) {
	select {
	case <-ctx.Done():
		t.Status = StatusFailed
		t.Err = errors.Join(ErrCopyAborted, ctx.Err())

		return
	default:
	}

	cur := e.inFlight.Add(1)

	for {
		prev := e.peak.Load()
		if cur <= prev || e.peak.CompareAndSwap(prev, cur) {
			break
		}
	}

	defer e.inFlight.Add(-1)

	if err := copyFileFn(e.FS, t); err != nil {
		t.Status = StatusFailed
		t.Err = err

		return
	}

	t.Status = StatusDone
}

// settle tallies terminal task states and builds the aggregate error, after
// every task has reached a terminal state.
func (e *Engine) settle(ctx context.Context, tasks []*Task, destDir string) (int, error) {
	copied := 0

	var merr *multierror.Error

	failedPaths := make([]string, 0)

	for _, t := range tasks {
		switch t.Status {
		case StatusDone:
			copied++
		case StatusFailed, StatusPending:
			failedPaths = append(failedPaths, t.Source)
			merr = multierror.Append(merr, fmt.Errorf("%s: %w", t.Source, t.Err))
		}
	}

	if len(failedPaths) == 0 {
		ctxlog.Debug(ctx, "bulk copy complete", "copied", copied, "destination", destDir)
		return copied, nil
	}

	ce := builderr.New(
		fmt.Sprintf("%d of %d files failed to copy", len(failedPaths), len(tasks)),
		builderr.CategoryFileSystem,
		source,
		builderr.WithCause(merr.ErrorOrNil()),
		builderr.WithData("failedPaths", failedPaths),
		builderr.WithData("copied", copied),
	)
	e.collector.Append(ce)

	return copied, ce
}

// expand resolves the source list into concrete per-file tasks.
func (e *Engine) expand(sources []string, destDir string, recurse bool) ([]*Task, error) {
	tasks := make([]*Task, 0, len(sources))

	for _, src := range sources {
		info, err := e.FS.Stat(src)
		if err != nil {
			// A missing source is a task failure, not an enumeration
			// failure: siblings still copy.
			tasks = append(tasks, &Task{Source: src, Dest: filepath.Join(destDir, filepath.Base(src)), Status: StatusFailed, Err: err})
			continue
		}

		if !info.IsDir() {
			tasks = append(tasks, &Task{
				Source: src,
				Dest:   filepath.Join(destDir, filepath.Base(src)),
				Bytes:  info.Size(),
			})

			continue
		}

		if !recurse {
			continue
		}

		err = afero.Walk(e.FS, src, func(path string, fi os.FileInfo, err error) error {
			if err != nil {
				return err
			}

			if fi.IsDir() {
				return nil
			}

			rel, err := filepath.Rel(src, path)
			if err != nil {
				return err
			}

			tasks = append(tasks, &Task{
				Source: path,
				Dest:   filepath.Join(destDir, filepath.Base(src), rel),
				Bytes:  fi.Size(),
			})

			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	return tasks, nil
}
