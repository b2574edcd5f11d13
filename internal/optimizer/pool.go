package optimizer

import (
	"context"
	"runtime"
	"sync"

	"github.com/quantlab/stocklab/pkg/params"
)

// WorkerPool evaluates candidate parameter sets in parallel with a fixed
// number of goroutines. Workers only touch their own job; every shared
// write goes through the ResultStore.
type WorkerPool struct {
	workerCount int
	evaluator   *Evaluator
	jobQueue    chan evalJob
	resultQueue chan *Result
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
}

type evalJob struct {
	set params.Set
}

// NewWorkerPool creates a pool of workerCount evaluators. A non-positive
// count uses one worker per CPU.
func NewWorkerPool(ctx context.Context, workerCount, bufferSize int, evaluator *Evaluator) *WorkerPool {
	if workerCount <= 0 {
		workerCount = runtime.NumCPU()
	}
	if bufferSize <= 0 {
		bufferSize = workerCount * 2
	}
	poolCtx, cancel := context.WithCancel(ctx)
	return &WorkerPool{
		workerCount: workerCount,
		evaluator:   evaluator,
		jobQueue:    make(chan evalJob, bufferSize),
		resultQueue: make(chan *Result, bufferSize),
		ctx:         poolCtx,
		cancel:      cancel,
	}
}

// Start launches the workers.
func (wp *WorkerPool) Start() {
	for i := 0; i < wp.workerCount; i++ {
		wp.wg.Add(1)
		go wp.worker()
	}
}

// Stop drains the pool gracefully: no more submissions, workers finish
// their current job, the result channel closes.
func (wp *WorkerPool) Stop() {
	close(wp.jobQueue)
	wp.wg.Wait()
	close(wp.resultQueue)
	wp.cancel()
}

// Submit queues a candidate for evaluation. It fails only when the pool's
// context is already canceled.
func (wp *WorkerPool) Submit(set params.Set) error {
	select {
	case wp.jobQueue <- evalJob{set: set}:
		return nil
	case <-wp.ctx.Done():
		return wp.ctx.Err()
	}
}

// Results returns the channel completed evaluations arrive on.
func (wp *WorkerPool) Results() <-chan *Result {
	return wp.resultQueue
}

func (wp *WorkerPool) worker() {
	defer wp.wg.Done()
	for {
		select {
		case job, ok := <-wp.jobQueue:
			if !ok {
				return
			}
			result := wp.evaluator.Evaluate(wp.ctx, job.set)
			select {
			case wp.resultQueue <- result:
			case <-wp.ctx.Done():
				return
			}
		case <-wp.ctx.Done():
			return
		}
	}
}
