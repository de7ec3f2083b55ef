package dto

import (
	"time"

	"github.com/wcag-monitor/internal/model"
)

// ResultQuery bounds are RFC 3339 timestamps or plain dates.
type ResultQuery struct {
	From  string `form:"from"`
	To    string `form:"to"`
	Full  bool   `form:"full"`
	Limit int    `form:"limit" binding:"omitempty,min=0"`
}

type ResultResponse struct {
	ID      uint              `json:"id"`
	Task    uint              `json:"task"`
	Date    time.Time         `json:"date"`
	Count   model.ResultCount `json:"count"`
	Score   int               `json:"score"`
	Ignore  []string          `json:"ignore"`
	Results []model.Issue     `json:"results,omitempty"`
}

// NewResultResponse includes the issue list only when full is set.
func NewResultResponse(r *model.Result, full bool) *ResultResponse {
	resp := &ResultResponse{
		ID:     r.ID,
		Task:   r.TaskID,
		Date:   r.Date.UTC(),
		Count:  r.Count,
		Score:  r.Score,
		Ignore: nonNil(r.Ignore),
	}
	if full {
		resp.Results = r.Issues
	}
	return resp
}

func NewResultResponses(results []model.Result, full bool) []*ResultResponse {
	out := make([]*ResultResponse, 0, len(results))
	for i := range results {
		out = append(out, NewResultResponse(&results[i], full))
	}
	return out
}
