// Copyright (c) peforge authors 2026. All rights reserved.
// SPDX-License-Identifier: MIT

package critsec

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
)

// lockRetryInterval is how often the file lock is re-attempted while waiting.
const lockRetryInterval = 50 * time.Millisecond

// ErrLockName is returned when a section name cannot be mapped to a lock file.
var ErrLockName = errors.New("invalid critical section name")

// FileProvider backs critical sections with lock files in a shared directory,
// serializing holders across processes on the same machine.
type FileProvider struct {
	// Dir is the directory holding the lock files. Created on first use.
	Dir string
}

var _ Provider = (*FileProvider)(nil)

// NewLocker implements Provider.
func (p *FileProvider) NewLocker(name string) (Locker, error) {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return nil, fmt.Errorf("%w: %q", ErrLockName, name)
	}

	if err := os.MkdirAll(p.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("could not create lock directory: %w", err)
	}

	return &fileLock{fl: flock.New(filepath.Join(p.Dir, name+".lock"))}, nil
}

type fileLock struct {
	fl *flock.Flock
}

func (l *fileLock) Acquire(ctx context.Context, timeout time.Duration) (bool, error) {
	lockCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ok, err := l.fl.TryLockContext(lockCtx, lockRetryInterval)
	if err != nil {
		// Deadline expiry is a timeout, not an acquisition failure.
		if errors.Is(err, context.DeadlineExceeded) {
			return false, nil
		}

		return false, err
	}

	return ok, nil
}

func (l *fileLock) Release() error {
	return l.fl.Unlock()
}

func (l *fileLock) Close() error {
	return l.fl.Close()
}
