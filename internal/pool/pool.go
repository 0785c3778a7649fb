// Package pool runs batches of content items through a bounded set of
// concurrent workers with progress reporting and cooperative stop
// signaling.
package pool

import (
	"context"
	"sync"
)

// Processor handles one work item. Failures must be reflected in item
// status by the processor itself, never returned as an error, so one
// item's failure cannot abort the batch.
type Processor[T any] func(ctx context.Context, item T)

// ProgressFunc receives (completed, total) after every processed item.
type ProgressFunc func(completed, total int)

// StopFunc is polled before every queue pop; returning true clears the
// queue. In-flight items still run to completion.
type StopFunc func() bool

// Run processes items with exactly `concurrency` workers. onProgress
// and shouldStop may be nil. Completion order across workers is
// unspecified.
func Run[T any](ctx context.Context, items []T, processor Processor[T], concurrency int, onProgress ProgressFunc, shouldStop StopFunc) {
	if len(items) == 0 {
		return
	}
	if concurrency < 1 {
		concurrency = 1
	}
	if concurrency > len(items) {
		concurrency = len(items)
	}

	total := len(items)
	queue := &workQueue[T]{items: items}
	var completed int
	var progressMu sync.Mutex

	report := func() {
		if onProgress == nil {
			return
		}
		progressMu.Lock()
		completed++
		done := completed
		progressMu.Unlock()
		onProgress(done, total)
	}

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				if ctx.Err() != nil {
					return
				}
				if shouldStop != nil && shouldStop() {
					queue.clear()
					return
				}

				item, ok := queue.pop()
				if !ok {
					return
				}

				processor(ctx, item)
				report()
			}
		}()
	}
	wg.Wait()
}

// workQueue is the shared mutable queue drained by the workers.
type workQueue[T any] struct {
	mu    sync.Mutex
	items []T
}

func (q *workQueue[T]) pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	item := q.items[0]
	q.items = q.items[1:]
	return item, true
}

func (q *workQueue[T]) clear() {
	q.mu.Lock()
	q.items = nil
	q.mu.Unlock()
}
