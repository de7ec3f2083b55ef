package dto

import (
	"encoding/json"
	"time"

	"github.com/wcag-monitor/internal/model"
)

// CreateTaskRequest accepts headers as an object or a JSON string and actions
// as an array or a JSON string; both are normalized before storage.
type CreateTaskRequest struct {
	Name         string          `json:"name" binding:"required"`
	URL          string          `json:"url" binding:"required,http_url"`
	Standard     string          `json:"standard" binding:"required,wcag_standard"`
	Timeout      int             `json:"timeout" binding:"omitempty,min=0"`
	Wait         int             `json:"wait" binding:"omitempty,min=0"`
	Username     string          `json:"username"`
	Password     string          `json:"password"`
	HideElements string          `json:"hideElements"`
	Headers      json.RawMessage `json:"headers"`
	Actions      json.RawMessage `json:"actions"`
	Ignore       []string        `json:"ignore"`
}

// UpdateTaskRequest has no url or standard: both are fixed at creation and
// silently ignored when sent.
type UpdateTaskRequest struct {
	Name         *string         `json:"name" binding:"omitempty,min=1"`
	Timeout      *int            `json:"timeout" binding:"omitempty,min=0"`
	Wait         *int            `json:"wait" binding:"omitempty,min=0"`
	Username     *string         `json:"username"`
	Password     *string         `json:"password"`
	HideElements *string         `json:"hideElements"`
	Headers      json.RawMessage `json:"headers"`
	Actions      json.RawMessage `json:"actions"`
	Ignore       *[]string       `json:"ignore"`
	Comment      string          `json:"comment"`
}

type ListTasksQuery struct {
	LastResult bool `form:"lastres"`
}

type RunTaskQuery struct {
	Async bool `form:"async"`
}

type AnnotationResponse struct {
	Type    string    `json:"type"`
	Date    time.Time `json:"date"`
	Comment string    `json:"comment"`
}

// TaskResponse is the public view of a task. The password is never returned.
type TaskResponse struct {
	ID           uint                 `json:"id"`
	UserID       uint                 `json:"userId"`
	Name         string               `json:"name"`
	URL          string               `json:"url"`
	Standard     string               `json:"standard"`
	Timeout      int                  `json:"timeout"`
	Wait         int                  `json:"wait"`
	Username     string               `json:"username,omitempty"`
	HasPassword  bool                 `json:"hasPassword"`
	HideElements string               `json:"hideElements,omitempty"`
	Headers      map[string]string    `json:"headers,omitempty"`
	Actions      []string             `json:"actions"`
	Ignore       []string             `json:"ignore"`
	PageLimit    int                  `json:"pageLimit"`
	LastRun      *time.Time           `json:"lastRun"`
	CreatedAt    time.Time            `json:"createdAt"`
	UpdatedAt    time.Time            `json:"updatedAt"`
	Annotations  []AnnotationResponse `json:"annotations,omitempty"`
	LastResult   *ResultResponse      `json:"lastResult,omitempty"`
}

func NewTaskResponse(t *model.Task) TaskResponse {
	timeout := t.Timeout
	if timeout <= 0 {
		timeout = model.DefaultTimeoutMS
	}
	pageLimit := t.PageLimit
	if pageLimit <= 0 {
		pageLimit = model.DefaultPageLimit
	}
	resp := TaskResponse{
		ID:           t.ID,
		UserID:       t.UserID,
		Name:         t.Name,
		URL:          t.URL,
		Standard:     t.Standard,
		Timeout:      timeout,
		Wait:         t.Wait,
		Username:     t.Username,
		HasPassword:  t.Password != "",
		HideElements: t.HideElements,
		Headers:      t.Headers,
		Actions:      nonNil(t.Actions),
		Ignore:       nonNil(t.Ignore),
		PageLimit:    pageLimit,
		LastRun:      t.LastRun,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
	for _, a := range t.Annotations {
		resp.Annotations = append(resp.Annotations, AnnotationResponse{Type: a.Type, Date: a.Date, Comment: a.Comment})
	}
	return resp
}

func nonNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}

type QuotaExceededData struct {
	CurrentCount int64 `json:"currentCount"`
	Limit        int   `json:"limit"`
}

type StatsResponse struct {
	URLCount      int    `json:"urlCount"`
	URLLimit      int    `json:"urlLimit"`
	URLsRemaining int    `json:"urlsRemaining"`
	TotalErrors   int    `json:"totalErrors"`
	TotalWarnings int    `json:"totalWarnings"`
	TotalNotices  int    `json:"totalNotices"`
	AverageScore  int    `json:"averageScore"`
	Plan          string `json:"plan"`
	PaidURLCount  int    `json:"paidUrlCount"`
}
