package workerfleet

import (
	"context"
	"sync"
)

// Fleet owns the set of per-platform Worker goroutines and their shared
// shutdown lifecycle.
type Fleet struct {
	workers []*Worker
	wg      sync.WaitGroup
}

// New builds a Fleet over workers, one goroutine per Worker (spec §4.F
// "one long-running consumer per platform (plus a default one)").
func New(workers []*Worker) *Fleet {
	return &Fleet{workers: workers}
}

// Start launches every worker's Run loop in its own goroutine. Returns
// immediately; call Wait to block until ctx is cancelled and every worker
// has exited.
func (f *Fleet) Start(ctx context.Context) {
	for _, w := range f.workers {
		w := w
		f.wg.Add(1)
		go func() {
			defer f.wg.Done()
			w.Run(ctx)
		}()
	}
}

// Wait blocks until every worker goroutine has returned.
func (f *Fleet) Wait() {
	f.wg.Wait()
}
