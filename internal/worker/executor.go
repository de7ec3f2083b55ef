package worker

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wcag-monitor/internal/metrics"
	"github.com/wcag-monitor/internal/model"
	"github.com/wcag-monitor/internal/scanner"
	"go.uber.org/zap"
)

// TaskSource is the part of the task store the executor needs.
type TaskSource interface {
	GetByID(ctx context.Context, id uint) (*model.Task, error)
	MarkRun(ctx context.Context, id uint, at time.Time) error
}

// ResultSink persists finished scans.
type ResultSink interface {
	Create(ctx context.Context, result *model.Result) error
}

// Executor runs the scan of a single task and stores its result.
type Executor struct {
	tasks   TaskSource
	results ResultSink
	engine  scanner.Engine
	metrics *metrics.Metrics
	log     *zap.Logger
	Now     func() time.Time
}

func NewExecutor(tasks TaskSource, results ResultSink, engine scanner.Engine, m *metrics.Metrics, log *zap.Logger) *Executor {
	return &Executor{
		tasks:   tasks,
		results: results,
		engine:  engine,
		metrics: m,
		log:     log,
		Now:     time.Now,
	}
}

// Run scans the task with the given id. On any failure nothing is persisted,
// the task's last run is left untouched and the error is returned after being
// logged.
func (e *Executor) Run(ctx context.Context, taskID uint) (*model.Result, error) {
	log := e.log.With(zap.Uint("task_id", taskID))
	done := e.metrics.ScanStarted()

	result, err := e.run(ctx, taskID, log)
	done(err)
	if err != nil {
		log.Error("task run failed", zap.Error(err))
		return nil, err
	}
	log.Info("task run finished",
		zap.Uint("result_id", result.ID),
		zap.Int("errors", result.Count.Error),
		zap.Int("warnings", result.Count.Warning),
		zap.Int("notices", result.Count.Notice),
		zap.Int("score", result.Score),
	)
	return result, nil
}

func (e *Executor) run(ctx context.Context, taskID uint, log *zap.Logger) (*model.Result, error) {
	task, err := e.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("load task: %w", err)
	}

	opts, err := ScanOptions(task)
	if err != nil {
		return nil, err
	}
	opts.Log = log

	scanCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	log.Info("task run started", zap.String("url", task.URL), zap.String("standard", task.Standard))
	report, err := e.engine.Scan(scanCtx, task.URL, opts)
	if err != nil {
		if errors.Is(scanCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("scan timed out after %s: %w", opts.Timeout, err)
		}
		return nil, fmt.Errorf("scan: %w", err)
	}

	now := e.Now().UTC()
	result := &model.Result{
		TaskID: task.ID,
		Date:   now,
		Count:  model.CountIssues(report.Issues),
		Ignore: append(model.StringList{}, task.Ignore...),
		Issues: model.IssueList(report.Issues),
	}
	if err := e.results.Create(ctx, result); err != nil {
		return nil, fmt.Errorf("store result: %w", err)
	}
	if err := e.tasks.MarkRun(ctx, task.ID, now); err != nil {
		log.Warn("result stored but last run not updated", zap.Uint("result_id", result.ID), zap.Error(err))
	}
	return result, nil
}

// ScanOptions resolves a task into engine options: defaults are applied,
// stored actions are parsed and a Basic Authorization header is derived from
// the task credentials unless one is already configured.
func ScanOptions(task *model.Task) (scanner.Options, error) {
	actions, err := scanner.ParseActions(task.Actions)
	if err != nil {
		return scanner.Options{}, err
	}

	headers := make(map[string]string, len(task.Headers)+1)
	for k, v := range task.Headers {
		headers[k] = v
	}
	if task.Username != "" && task.Password != "" && !hasHeader(headers, "Authorization") {
		credentials := base64.StdEncoding.EncodeToString([]byte(task.Username + ":" + task.Password))
		headers["Authorization"] = "Basic " + credentials
	}

	return scanner.Options{
		Standard:     task.Standard,
		Timeout:      task.EffectiveTimeout(),
		Wait:         task.EffectiveWait(),
		Headers:      headers,
		Actions:      actions,
		HideElements: task.HideElements,
		Ignore:       task.Ignore,
	}, nil
}

func hasHeader(headers map[string]string, name string) bool {
	for k := range headers {
		if strings.EqualFold(k, name) {
			return true
		}
	}
	return false
}
