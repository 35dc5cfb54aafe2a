// Package asyncpool implements a fixed-size worker pool that preserves the
// caller's input order in its results and fails fast on the first error.
//
// Grounded on mapproxy.core.utils.ThreadedExecutor and
// mapproxy.seed.seeder.TileWorkerPool/TileWorker.
package asyncpool

import (
	"context"
	"sync"
)

// Task is one unit of work submitted to a Pool.
type Task func(ctx context.Context) (interface{}, error)

// Pool runs a fixed number of worker goroutines over a batch of tasks,
// returning results in the same order tasks were submitted. The first
// error encountered cancels the pool's context so remaining workers stop
// picking up new tasks; already-started tasks are not interrupted (they
// are expected to respect ctx themselves).
type Pool struct {
	size int
}

// New builds a pool with the given worker count. A size <= 0 is treated as
// 1 (sequential execution, still via the same code path).
func New(size int) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{size: size}
}

type indexedResult struct {
	index int
	value interface{}
	err   error
}

// Run executes tasks and returns their results in submission order. If any
// task returns an error, Run returns that error (the first one encountered
// by index, not by completion time) and the partial results slice is nil.
//
// Grounded on mapproxy.core.utils.ThreadedExecutor.execute/_get_results
// (queue-based fan-out, index-tagged results, re-raise on first error,
// final sort by index for ordering).
func (p *Pool) Run(ctx context.Context, tasks []Task) ([]interface{}, error) {
	if len(tasks) == 0 {
		return nil, nil
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan int)
	results := make(chan indexedResult, len(tasks))

	var wg sync.WaitGroup
	workers := p.size
	if workers > len(tasks) {
		workers = len(tasks)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				select {
				case <-ctx.Done():
					results <- indexedResult{index: idx, err: ctx.Err()}
					continue
				default:
				}
				v, err := tasks[idx](ctx)
				results <- indexedResult{index: idx, value: v, err: err}
				if err != nil {
					cancel()
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := range tasks {
			select {
			case jobs <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	out := make([]interface{}, len(tasks))
	errs := make([]error, len(tasks))
	seen := 0
	for r := range results {
		seen++
		if r.err != nil {
			errs[r.index] = r.err
			continue
		}
		out[r.index] = r.value
	}
	// Report the first error in submission order, not completion order, so
	// results are deterministic regardless of which worker happened to
	// finish first.
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	if seen < len(tasks) {
		return nil, context.Canceled
	}
	return out, nil
}
