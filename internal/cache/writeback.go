// Colporteur - Collectibles Metadata Aggregation and Caching Gateway
// Copyright 2026 F.X. Brun (fxbrun)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fxbrun/colporteur

package cache

import (
	"context"
	"sync"
	"time"

	"github.com/fxbrun/colporteur/internal/logging"
	"github.com/fxbrun/colporteur/internal/metrics"
)

// writebackTimeout bounds one queued write; a wedged database must not
// pin workers forever.
const writebackTimeout = 10 * time.Second

// Writeback is the bounded worker pool behind every fire-and-forget cache
// write. Jobs are dropped oldest-first under back-pressure: cache writes
// are lossy by design, and the freshest write is the one worth keeping.
type Writeback struct {
	jobs   chan job
	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

type job struct {
	name string
	fn   func(ctx context.Context) error
}

// NewWriteback starts a pool of workers consuming a queue of the given
// size.
func NewWriteback(workers, queueSize int) *Writeback {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 64
	}
	wb := &Writeback{jobs: make(chan job, queueSize)}
	wb.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go wb.worker()
	}
	return wb
}

func (wb *Writeback) worker() {
	defer wb.wg.Done()
	for j := range wb.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), writebackTimeout)
		if err := j.fn(ctx); err != nil {
			logging.Warn().Err(err).Str("write", j.name).Msg("cache write-back failed")
		}
		cancel()
	}
}

// Submit enqueues a write. If the queue is full the oldest pending write
// is discarded to make room. Never blocks the caller.
func (wb *Writeback) Submit(name string, fn func(ctx context.Context) error) {
	wb.mu.Lock()
	defer wb.mu.Unlock()
	if wb.closed {
		return
	}

	metrics.WritebackQueued.Inc()
	for {
		select {
		case wb.jobs <- job{name: name, fn: fn}:
			return
		default:
		}
		// Queue full: drop the oldest pending write.
		select {
		case dropped := <-wb.jobs:
			metrics.WritebackDropped.Inc()
			logging.Debug().Str("write", dropped.name).Msg("write-back queue full, dropped oldest")
		default:
		}
	}
}

// Close stops accepting writes and waits for in-flight jobs to finish.
func (wb *Writeback) Close() {
	wb.mu.Lock()
	if wb.closed {
		wb.mu.Unlock()
		return
	}
	wb.closed = true
	close(wb.jobs)
	wb.mu.Unlock()

	wb.wg.Wait()
}
