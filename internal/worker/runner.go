package worker

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/pool"
	"github.com/wcag-monitor/internal/model"
	"go.uber.org/zap"
)

// TaskRunner runs a single task by id.
type TaskRunner interface {
	Run(ctx context.Context, taskID uint) (*model.Result, error)
}

// Runner fans task runs out over at most Workers goroutines. Tasks start in
// list order; a failing or panicking task never stops the rest of the batch.
type Runner struct {
	exec    TaskRunner
	workers int
	log     *zap.Logger
}

func NewRunner(exec TaskRunner, workers int, log *zap.Logger) *Runner {
	if workers < 1 {
		workers = 1
	}
	return &Runner{exec: exec, workers: workers, log: log}
}

func (r *Runner) Workers() int {
	return r.workers
}

// RunBatch returns once every task has been run exactly once.
func (r *Runner) RunBatch(ctx context.Context, tasks []model.Task) {
	if len(tasks) == 0 {
		r.log.Info("no tasks to run")
		return
	}

	start := time.Now()
	r.log.Info("batch started", zap.Int("batch_size", len(tasks)), zap.Int("workers", r.workers))

	var failed atomic.Int64
	p := pool.New().WithMaxGoroutines(r.workers)
	for i := range tasks {
		task := tasks[i]
		p.Go(func() {
			log := r.log.With(zap.Uint("task_id", task.ID), zap.String("name", task.Name), zap.String("url", task.URL))
			log.Debug("running task")

			var err error
			if recovered := panics.Try(func() { _, err = r.exec.Run(ctx, task.ID) }); recovered != nil {
				log.Error("task run panicked", zap.Error(recovered.AsError()))
				failed.Add(1)
				return
			}
			if err != nil {
				failed.Add(1)
				return
			}
			log.Debug("completed task")
		})
	}
	p.Wait()

	r.log.Info("batch finished",
		zap.Int("batch_size", len(tasks)),
		zap.Int64("failed", failed.Load()),
		zap.Duration("elapsed", time.Since(start)),
	)
}
