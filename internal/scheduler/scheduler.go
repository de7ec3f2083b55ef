// Package scheduler triggers batch runs of every task on a cron cadence.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/wcag-monitor/internal/metrics"
	"github.com/wcag-monitor/internal/model"
	"github.com/wcag-monitor/pkg/config"
	"go.uber.org/zap"
)

// TaskLister returns every task in the system.
type TaskLister interface {
	ListAll(ctx context.Context) ([]model.Task, error)
}

// BatchRunner runs a batch of tasks to completion.
type BatchRunner interface {
	RunBatch(ctx context.Context, tasks []model.Task)
}

var parser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

type Scheduler struct {
	spec         string
	allowOverlap bool
	tasks        TaskLister
	runner       BatchRunner
	metrics      *metrics.Metrics
	log          *zap.Logger

	cron    *cron.Cron
	running sync.Mutex
}

// New validates the cron expression. An empty expression yields a disabled
// scheduler whose Start is a no-op.
func New(cfg *config.SchedulerConfig, tasks TaskLister, runner BatchRunner, m *metrics.Metrics, log *zap.Logger) (*Scheduler, error) {
	s := &Scheduler{
		spec:         cfg.Cron,
		allowOverlap: cfg.AllowOverlap,
		tasks:        tasks,
		runner:       runner,
		metrics:      m,
		log:          log,
	}
	if s.spec == "" {
		return s, nil
	}

	cronLog := zapCronLogger{log: log.Sugar()}
	s.cron = cron.New(
		cron.WithParser(parser),
		cron.WithLocation(time.UTC),
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog)),
	)
	if _, err := s.cron.AddFunc(s.spec, func() { s.RunOnce(context.Background()) }); err != nil {
		return nil, fmt.Errorf("invalid scheduler cron %q: %w", s.spec, err)
	}
	return s, nil
}

func (s *Scheduler) Enabled() bool {
	return s.cron != nil
}

func (s *Scheduler) Start() {
	if !s.Enabled() {
		s.log.Info("cron jobs disabled")
		return
	}
	s.cron.Start()
	s.log.Info("cron jobs enabled", zap.String("cron", s.spec), zap.Bool("allow_overlap", s.allowOverlap))
}

// Stop prevents further ticks and waits for a running batch until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) error {
	if !s.Enabled() {
		return nil
	}
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce fetches the current task list and hands it to the runner. Unless
// overlap is allowed, a call made while a previous batch is still running is
// skipped.
func (s *Scheduler) RunOnce(ctx context.Context) {
	if !s.allowOverlap {
		if !s.running.TryLock() {
			s.log.Warn("previous batch still running, skipping tick")
			s.metrics.Batch(metrics.BatchSkipped)
			return
		}
		defer s.running.Unlock()
	}
	s.metrics.Batch(metrics.BatchRun)

	start := time.Now()
	s.log.Info("starting scheduled tasks")
	tasks, err := s.tasks.ListAll(ctx)
	if err != nil {
		s.log.Error("cron job error", zap.Error(err))
		return
	}
	s.runner.RunBatch(ctx, tasks)
	s.log.Info("finished scheduled tasks", zap.Int("batch_size", len(tasks)), zap.Duration("elapsed", time.Since(start)))
}

// zapCronLogger adapts zap to cron.Logger.
type zapCronLogger struct {
	log *zap.SugaredLogger
}

func (l zapCronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw("cron: "+msg, keysAndValues...)
}

func (l zapCronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}
