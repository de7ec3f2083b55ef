package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/wcag-monitor/internal/api/dto"
	"github.com/wcag-monitor/internal/api/response"
	"github.com/wcag-monitor/internal/store"
)

type ResultHandler struct {
	tasks   *store.TaskStore
	results *store.ResultStore
}

func NewResultHandler(tasks *store.TaskStore, results *store.ResultStore) *ResultHandler {
	return &ResultHandler{tasks: tasks, results: results}
}

// ListResults returns the results of every task the user owns.
func (h *ResultHandler) ListResults(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	filter, ok := resultFilter(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	tasks, err := h.tasks.ListByUser(ctx, user.ID)
	if err != nil {
		response.ServerErrorMsg(c, "failed to list results", err)
		return
	}
	results, err := h.results.ListForTasks(ctx, taskIDs(tasks), filter)
	if err != nil {
		response.ServerErrorMsg(c, "failed to list results", err)
		return
	}
	response.Ok(c, dto.NewResultResponses(results, filter.Full))
}

func (h *ResultHandler) ListTaskResults(c *gin.Context) {
	task, ok := ownedTask(c, h.tasks)
	if !ok {
		return
	}
	filter, ok := resultFilter(c)
	if !ok {
		return
	}
	results, err := h.results.ListByTask(c.Request.Context(), task.ID, filter)
	if err != nil {
		response.ServerErrorMsg(c, "failed to list results", err)
		return
	}
	response.Ok(c, dto.NewResultResponses(results, filter.Full))
}

func (h *ResultHandler) GetTaskResult(c *gin.Context) {
	task, ok := ownedTask(c, h.tasks)
	if !ok {
		return
	}
	id, ok := parseID(c, "resultId")
	if !ok {
		return
	}
	full := c.Query("full") == "true"
	result, err := h.results.GetByIDAndTask(c.Request.Context(), id, task.ID, full)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			response.NotFoundMsg(c, "result not found")
			return
		}
		response.ServerError(c, err)
		return
	}
	response.Ok(c, dto.NewResultResponse(result, full))
}

// Trend returns the weekly averages of the last 12 weeks, oldest first.
func (h *ResultHandler) Trend(c *gin.Context) {
	task, ok := ownedTask(c, h.tasks)
	if !ok {
		return
	}
	trend, err := h.results.WeeklyTrend(c.Request.Context(), task.ID)
	if err != nil {
		response.ServerErrorMsg(c, "failed to fetch trend", err)
		return
	}
	response.Ok(c, trend)
}
