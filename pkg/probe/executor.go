package probe

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// Prober executes a single unit. Implementations absorb all network failures
// into the returned Result; Probe never returns an error.
type Prober interface {
	Probe(ctx context.Context, unit Unit) Result
}

// Executor dispatches units to a Prober with a hard ceiling on simultaneously
// in-flight probes. Unbounded concurrency exhausts ephemeral ports and file
// descriptors on large port ranges, so the ceiling is the one resource
// invariant the whole system depends on.
type Executor struct {
	prober      Prober
	concurrency int64
}

// NewExecutor builds an executor around prober. A non-positive concurrency
// falls back to 1.
func NewExecutor(prober Prober, concurrency int) *Executor {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Executor{prober: prober, concurrency: int64(concurrency)}
}

// Run probes every unit and returns a report with exactly len(units) results
// in submission order. onResult, when non-nil, observes results in completion
// order as they arrive; calls are serialized, so the callback does not need
// to be safe for concurrent use.
//
// Cancelling ctx abandons in-flight acquisition: units never dispatched are
// recorded as unreachable with Detail "cancelled", so a cancelled scan still
// yields a complete, if degraded, report.
func (e *Executor) Run(ctx context.Context, units []Unit, onResult func(Result)) Report {
	report := Report{
		ID:        uuid.New().String(),
		StartedAt: time.Now().UTC(),
	}
	results := make([]Result, len(units))

	sem := semaphore.NewWeighted(e.concurrency)
	var (
		wg         sync.WaitGroup
		callbackMu sync.Mutex
	)

	emit := func(res Result) {
		if onResult == nil {
			return
		}
		callbackMu.Lock()
		onResult(res)
		callbackMu.Unlock()
	}

	for i, unit := range units {
		if err := sem.Acquire(ctx, 1); err != nil {
			// ctx cancelled; flush the remainder without dispatching.
			for j := i; j < len(units); j++ {
				results[j] = Result{
					Unit:       units[j],
					Reachable:  false,
					Detail:     DetailCancelled,
					ObservedAt: time.Now().UTC(),
				}
			}
			break
		}
		wg.Add(1)
		go func(idx int, u Unit) {
			// The slot is held until the outcome is finalized; the prober
			// bounds itself with the unit timeout so a hung endpoint cannot
			// leak the slot.
			defer wg.Done()
			defer sem.Release(1)
			res := e.prober.Probe(ctx, u)
			results[idx] = res
			emit(res)
		}(i, unit)
	}

	wg.Wait()

	report.FinishedAt = time.Now().UTC()
	report.Results = results
	report.TotalUnits = len(results)
	for _, res := range results {
		if res.Reachable {
			report.ReachableCount++
		}
	}
	return report
}
