// Package batch runs a per-item operation over a slice of work, either
// sequentially or through a small worker pool. Item failures are collected,
// not propagated: one bad record must never abort the rest of a load.
package batch

import (
	"sync"
	"sync/atomic"
)

// Operation represents a batch operation configuration
type Operation struct {
	// Jobs is the worker count. 0 or 1 means sequential execution.
	Jobs int

	// ContinueOnError keeps processing remaining items after a failure.
	ContinueOnError bool
}

// Result represents the result of a batch operation
type Result struct {
	TotalItems int
	Succeeded  int
	Failed     int
	Errors     []ItemError
}

// ItemError represents an error for a specific item
type ItemError struct {
	Index int
	Err   error
}

// ItemFunc is the function to execute for each item index
type ItemFunc func(i int) error

// Execute runs fn once per index in [0, total). Submission order is
// preserved in sequential mode; parallel mode makes no ordering guarantee.
func (op *Operation) Execute(total int, fn ItemFunc) *Result {
	result := &Result{
		TotalItems: total,
	}

	if total == 0 {
		return result
	}

	if op.Jobs <= 1 {
		return op.executeSequential(total, fn)
	}

	return op.executeParallel(total, fn, op.Jobs)
}

// executeSequential processes items one by one
func (op *Operation) executeSequential(total int, fn ItemFunc) *Result {
	result := &Result{
		TotalItems: total,
	}

	for i := 0; i < total; i++ {
		if err := fn(i); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, ItemError{Index: i, Err: err})
			if !op.ContinueOnError {
				return result
			}
		} else {
			result.Succeeded++
		}
	}

	return result
}

// executeParallel processes items using a worker pool
func (op *Operation) executeParallel(total int, fn ItemFunc, workers int) *Result {
	result := &Result{
		TotalItems: total,
	}

	workQueue := make(chan int, total)
	for i := 0; i < total; i++ {
		workQueue <- i
	}
	close(workQueue)

	var (
		succeeded  int32
		failed     int32
		errorsMux  sync.Mutex
		stopSignal int32 // 0 = continue, 1 = stop
	)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for i := range workQueue {
				if !op.ContinueOnError && atomic.LoadInt32(&stopSignal) == 1 {
					break
				}

				if err := fn(i); err != nil {
					atomic.AddInt32(&failed, 1)
					errorsMux.Lock()
					result.Errors = append(result.Errors, ItemError{Index: i, Err: err})
					errorsMux.Unlock()

					if !op.ContinueOnError {
						atomic.StoreInt32(&stopSignal, 1)
					}
				} else {
					atomic.AddInt32(&succeeded, 1)
				}
			}
		}()
	}

	wg.Wait()

	result.Succeeded = int(succeeded)
	result.Failed = int(failed)

	return result
}

// ExitCode returns the appropriate exit code for the result
func (r *Result) ExitCode() int {
	if r.Failed == 0 {
		return 0 // All succeeded
	}
	if r.Succeeded > 0 {
		return 5 // Partial success
	}
	return 1 // All failed
}
