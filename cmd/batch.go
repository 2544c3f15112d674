package main

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/okian/rollcall/internal/adapters/mq/queue"
	"github.com/okian/rollcall/internal/adapters/mq/worker"
	"github.com/okian/rollcall/pkg/logger"
)

// readJobs loads every path into a job, in argument order.
func readJobs(paths []string) ([]queue.Job, error) {
	jobs := make([]queue.Job, 0, len(paths))
	for i, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		jobs = append(jobs, queue.Job{Seq: i, Name: p, Payload: data})
	}
	return jobs, nil
}

// runBatch pushes jobs through a worker pool and returns the results in job
// order.
func runBatch(ctx context.Context, jobs []queue.Job, workers int, log logger.Logger, h worker.Handler) ([]worker.Result, error) {
	q := queue.NewInMemoryQueue(queue.WithCapacity(len(jobs) + 1))
	for _, j := range jobs {
		if !q.Enqueue(ctx, j) {
			return nil, fmt.Errorf("queue rejected %s", j.Name)
		}
	}
	if err := q.Close(); err != nil {
		return nil, err
	}

	pool := worker.NewPool(workers, q, h, worker.WithLogger(log.Named("batch")))
	log.Debug(ctx, "batch started", logger.Int("jobs", len(jobs)), logger.Int("workers", pool.Size()))
	pool.Start(ctx)

	// Cancellation stops the workers after their current job.
	stop := context.AfterFunc(ctx, func() {
		if err := pool.Shutdown(context.WithoutCancel(ctx)); err != nil {
			log.Warn(ctx, "batch shutdown incomplete", logger.Error(err))
		}
	})
	defer stop()

	results := make([]worker.Result, 0, len(jobs))
	for r := range pool.Results() {
		results = append(results, r)
	}
	if err := ctx.Err(); err != nil {
		return results, err
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Job.Seq < results[j].Job.Seq })
	return results, nil
}
