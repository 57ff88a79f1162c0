// Copyright (c) peforge authors 2026. All rights reserved.
// SPDX-License-Identifier: MIT

package critsec

import (
	"context"
	"sync"
	"time"
)

// MemProvider backs critical sections with in-process semaphores keyed by
// name. It serializes holders within one process only; tests and
// single-process deployments use it in place of file locks.
type MemProvider struct {
	mu   sync.Mutex
	sems map[string]chan struct{}
}

var _ Provider = (*MemProvider)(nil)

// NewMemProvider creates an empty MemProvider.
func NewMemProvider() *MemProvider {
	return &MemProvider{sems: make(map[string]chan struct{})}
}

// NewLocker implements Provider. Lockers for the same name share one
// underlying semaphore.
func (p *MemProvider) NewLocker(name string) (Locker, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	sem, ok := p.sems[name]
	if !ok {
		sem = make(chan struct{}, 1)
		p.sems[name] = sem
	}

	return &memLock{sem: sem}, nil
}

type memLock struct {
	sem  chan struct{}
	held bool
}

func (l *memLock) Acquire(ctx context.Context, timeout time.Duration) (bool, error) {
	t := time.NewTimer(timeout)
	defer t.Stop()

	select {
	case l.sem <- struct{}{}:
		l.held = true
		return true, nil
	case <-t.C:
		return false, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func (l *memLock) Release() error {
	if !l.held {
		return nil
	}

	l.held = false
	<-l.sem

	return nil
}

func (l *memLock) Close() error {
	return nil
}
