package handler

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wcag-monitor/internal/api/dto"
	"github.com/wcag-monitor/internal/api/middleware"
	"github.com/wcag-monitor/internal/api/response"
	"github.com/wcag-monitor/internal/model"
	"github.com/wcag-monitor/internal/store"
)

// parseID reads a numeric path parameter. Malformed ids are reported as not found.
func parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		response.NotFound(c)
		return 0, false
	}
	return uint(id), true
}

func currentUser(c *gin.Context) (*model.User, bool) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
	}
	return user, ok
}

// ownedTask loads the :taskId task of the current user, replying 404 when it
// does not exist or belongs to someone else.
func ownedTask(c *gin.Context, tasks *store.TaskStore) (*model.Task, bool) {
	user, ok := currentUser(c)
	if !ok {
		return nil, false
	}
	id, ok := parseID(c, "taskId")
	if !ok {
		return nil, false
	}
	task, err := tasks.GetByIDAndUser(c.Request.Context(), id, user.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			response.NotFoundMsg(c, "task not found")
		} else {
			response.ServerError(c, err)
		}
		return nil, false
	}
	return task, true
}

var timeLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

// resultFilter binds the result query string.
func resultFilter(c *gin.Context) (store.ResultFilter, bool) {
	var q dto.ResultQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, "invalid query parameters", err)
		return store.ResultFilter{}, false
	}
	from, err := parseTime(q.From)
	if err != nil {
		response.BadRequest(c, "from must be an ISO 8601 date", err)
		return store.ResultFilter{}, false
	}
	to, err := parseTime(q.To)
	if err != nil {
		response.BadRequest(c, "to must be an ISO 8601 date", err)
		return store.ResultFilter{}, false
	}
	return store.ResultFilter{From: from, To: to, Full: q.Full, Limit: q.Limit}, true
}
