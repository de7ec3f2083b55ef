package handler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/wcag-monitor/internal/api/dto"
	"github.com/wcag-monitor/internal/api/response"
	"github.com/wcag-monitor/internal/api/validator"
	"github.com/wcag-monitor/internal/model"
	"github.com/wcag-monitor/internal/store"
	"github.com/wcag-monitor/internal/worker"
	"github.com/wcag-monitor/pkg/config"
	"go.uber.org/zap"
)

// Enqueuer hands on-demand runs to the background queue. *asynq.Client
// satisfies it.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// queueGrace is added to the scan timeout to bound a queued run.
const queueGrace = time.Minute

type TaskHandler struct {
	tasks   *store.TaskStore
	results *store.ResultStore
	runner  worker.TaskRunner
	queue   Enqueuer
	quota   config.QuotaConfig
	log     *zap.Logger
}

// NewTaskHandler wires the task endpoints. queue may be nil, in which case
// asynchronous runs are refused.
func NewTaskHandler(tasks *store.TaskStore, results *store.ResultStore, runner worker.TaskRunner, queue Enqueuer, quota config.QuotaConfig, log *zap.Logger) *TaskHandler {
	return &TaskHandler{tasks: tasks, results: results, runner: runner, queue: queue, quota: quota, log: log}
}

func (h *TaskHandler) ListTasks(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var q dto.ListTasksQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, "invalid query parameters", err)
		return
	}
	ctx := c.Request.Context()
	tasks, err := h.tasks.ListByUser(ctx, user.ID)
	if err != nil {
		response.ServerErrorMsg(c, "failed to list tasks", err)
		return
	}

	var latest map[uint]model.Result
	if q.LastResult {
		if latest, err = h.results.LatestForTasks(ctx, taskIDs(tasks)); err != nil {
			response.ServerErrorMsg(c, "failed to load latest results", err)
			return
		}
	}

	out := make([]dto.TaskResponse, 0, len(tasks))
	for i := range tasks {
		resp := dto.NewTaskResponse(&tasks[i])
		if r, found := latest[tasks[i].ID]; found {
			resp.LastResult = dto.NewResultResponse(&r, false)
		}
		out = append(out, resp)
	}
	response.Ok(c, out)
}

func (h *TaskHandler) CreateTask(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req dto.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "", err)
		return
	}
	ctx := c.Request.Context()

	count, err := h.tasks.CountByUser(ctx, user.ID)
	if err != nil {
		response.ServerError(c, err)
		return
	}
	limit := user.URLLimit(h.quota.FreeURLLimit)
	if count >= int64(limit) {
		response.Forbidden(c, response.QuotaExceededCode,
			fmt.Sprintf("URL limit reached: you can monitor up to %d URLs, upgrade to add more", limit),
			dto.QuotaExceededData{CurrentCount: count, Limit: limit})
		return
	}

	headers, err := validator.Headers(req.Headers)
	if err != nil {
		response.BadRequest(c, err.Error(), err)
		return
	}
	actions, err := validator.Actions(req.Actions)
	if err != nil {
		response.BadRequest(c, err.Error(), err)
		return
	}

	task, err := h.tasks.Create(ctx, user.ID, store.NewTask{
		Name:         req.Name,
		URL:          req.URL,
		Standard:     req.Standard,
		Timeout:      req.Timeout,
		Wait:         req.Wait,
		Username:     req.Username,
		Password:     req.Password,
		HideElements: req.HideElements,
		Headers:      headers,
		Actions:      actions,
		Ignore:       req.Ignore,
		PageLimit:    h.quota.PagesPerURL,
	})
	if err != nil {
		response.ServerErrorMsg(c, "failed to create task", err)
		return
	}
	h.log.Info("task created", zap.Uint("task_id", task.ID), zap.Uint("user_id", user.ID))
	response.Created(c, fmt.Sprintf("/api/v1/tasks/%d", task.ID), "task created successfully", dto.NewTaskResponse(task))
}

func (h *TaskHandler) GetTask(c *gin.Context) {
	task, ok := ownedTask(c, h.tasks)
	if !ok {
		return
	}
	var q dto.ListTasksQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, "", err)
		return
	}

	resp := dto.NewTaskResponse(task)
	if q.LastResult {
		latest, err := h.results.Latest(c.Request.Context(), task.ID, true)
		switch {
		case err == nil:
			resp.LastResult = dto.NewResultResponse(latest, true)
		case !errors.Is(err, store.ErrNotFound):
			response.ServerErrorMsg(c, "failed to load latest result", err)
			return
		}
	}
	response.Ok(c, resp)
}

func (h *TaskHandler) UpdateTask(c *gin.Context) {
	task, ok := ownedTask(c, h.tasks)
	if !ok {
		return
	}
	var req dto.UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "", err)
		return
	}

	edit := store.TaskEdit{
		Name:         req.Name,
		Timeout:      req.Timeout,
		Wait:         req.Wait,
		Username:     req.Username,
		Password:     req.Password,
		HideElements: req.HideElements,
		Comment:      req.Comment,
	}
	if len(req.Headers) > 0 {
		headers, err := validator.Headers(req.Headers)
		if err != nil {
			response.BadRequest(c, err.Error(), err)
			return
		}
		edit.Headers = &headers
	}
	if len(req.Actions) > 0 {
		actions, err := validator.Actions(req.Actions)
		if err != nil {
			response.BadRequest(c, err.Error(), err)
			return
		}
		edit.Actions = &actions
	}
	if req.Ignore != nil {
		ignore := model.StringList(*req.Ignore)
		edit.Ignore = &ignore
	}

	updated, err := h.tasks.Edit(c.Request.Context(), task.ID, task.UserID, edit)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			response.NotFoundMsg(c, "task not found")
			return
		}
		response.ServerErrorMsg(c, "failed to update task", err)
		return
	}
	response.OkWithMessage(c, "task updated successfully", dto.NewTaskResponse(updated))
}

func (h *TaskHandler) DeleteTask(c *gin.Context) {
	task, ok := ownedTask(c, h.tasks)
	if !ok {
		return
	}
	if err := h.tasks.Delete(c.Request.Context(), task.ID, task.UserID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			response.NotFoundMsg(c, "task not found")
			return
		}
		response.ServerErrorMsg(c, "failed to delete task", err)
		return
	}
	h.log.Info("task deleted", zap.Uint("task_id", task.ID), zap.Uint("user_id", task.UserID))
	response.NoContent(c)
}

// RunTask scans a task immediately and returns the new result. With
// ?async=true the run is queued instead and 202 is returned.
func (h *TaskHandler) RunTask(c *gin.Context) {
	task, ok := ownedTask(c, h.tasks)
	if !ok {
		return
	}
	var q dto.RunTaskQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, "invalid query parameters", err)
		return
	}

	if q.Async {
		h.enqueueRun(c, task)
		return
	}

	result, err := h.runner.Run(c.Request.Context(), task.ID)
	if err != nil {
		response.ServerErrorMsg(c, fmt.Sprintf("failed to run task %d", task.ID), err)
		return
	}
	response.OkWithMessage(c, "task run completed", dto.NewResultResponse(result, false))
}

func (h *TaskHandler) enqueueRun(c *gin.Context, task *model.Task) {
	if h.queue == nil {
		response.Unavailable(c, "background runs are not available", nil)
		return
	}
	job, err := worker.NewScanRunTask(task.ID, task.UserID, task.EffectiveTimeout()+queueGrace)
	if err != nil {
		response.ServerError(c, err)
		return
	}
	info, err := h.queue.EnqueueContext(c.Request.Context(), job)
	if err != nil {
		response.ServerErrorMsg(c, "failed to queue task run", err)
		return
	}
	h.log.Info("task run queued", zap.Uint("task_id", task.ID), zap.String("job_id", info.ID))
	response.Accepted(c, "task run queued", gin.H{"task": task.ID, "jobId": info.ID})
}

// Stats summarizes the user's quota and the latest result of each task.
func (h *TaskHandler) Stats(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	tasks, err := h.tasks.ListByUser(ctx, user.ID)
	if err != nil {
		response.ServerErrorMsg(c, "failed to fetch stats", err)
		return
	}
	latest, err := h.results.LatestForTasks(ctx, taskIDs(tasks))
	if err != nil {
		response.ServerErrorMsg(c, "failed to fetch stats", err)
		return
	}

	limit := user.URLLimit(h.quota.FreeURLLimit)
	stats := dto.StatsResponse{
		URLCount:      len(tasks),
		URLLimit:      limit,
		URLsRemaining: max(limit-len(tasks), 0),
		Plan:          user.Plan,
		PaidURLCount:  user.PaidURLCount,
	}
	scoreSum := 0
	for _, r := range latest {
		stats.TotalErrors += r.Count.Error
		stats.TotalWarnings += r.Count.Warning
		stats.TotalNotices += r.Count.Notice
		scoreSum += r.Score
	}
	if len(latest) > 0 {
		stats.AverageScore = (scoreSum + len(latest)/2) / len(latest)
	}
	response.Ok(c, stats)
}

func taskIDs(tasks []model.Task) []uint {
	ids := make([]uint, len(tasks))
	for i := range tasks {
		ids[i] = tasks[i].ID
	}
	return ids
}
