package concurrent

import (
	"context"
	"sync"
)

type JobFunc[T any, G any] func(job T) G

// Pool fans a fixed batch of jobs over numWorkers goroutines. Results come
// back indexed by job, so reductions over them are independent of worker
// scheduling; any randomness a job needs must be derived from the job
// itself, never from the worker it lands on.
type Pool[T any, G any] struct {
	numWorkers int
}

func NewPool[T any, G any](numWorkers int) *Pool[T, G] {
	if numWorkers < 1 {
		numWorkers = 1
	}
	return &Pool[T, G]{numWorkers: numWorkers}
}

// Run executes every job and returns the results in job order. When ctx is
// cancelled mid-batch the remaining slots keep their zero value.
func (p *Pool[T, G]) Run(ctx context.Context, jobs []T, fn JobFunc[T, G]) []G {
	type indexedJob struct {
		idx int
		job T
	}

	queue := make(chan indexedJob)
	results := make([]G, len(jobs))

	var wg sync.WaitGroup
	for w := 0; w < p.numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range queue {
				results[item.idx] = fn(item.job)
			}
		}()
	}

	for i, job := range jobs {
		if ctx.Err() != nil {
			break
		}
		queue <- indexedJob{idx: i, job: job}
	}
	close(queue)
	wg.Wait()

	return results
}
