package handler

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wcag-monitor/internal/api/response"
	"github.com/wcag-monitor/internal/model"
	"github.com/wcag-monitor/internal/report"
	"github.com/wcag-monitor/internal/store"
)

type ReportHandler struct {
	tasks   *store.TaskStore
	results *store.ResultStore
	pdf     *report.PDFRenderer
	Now     func() time.Time
}

func NewReportHandler(tasks *store.TaskStore, results *store.ResultStore, pdf *report.PDFRenderer) *ReportHandler {
	return &ReportHandler{tasks: tasks, results: results, pdf: pdf, Now: time.Now}
}

// Report renders the latest full result of a task as PDF (default) or
// markdown (?format=markdown).
func (h *ReportHandler) Report(c *gin.Context) {
	task, ok := ownedTask(c, h.tasks)
	if !ok {
		return
	}
	format := c.DefaultQuery("format", "pdf")
	if format != "pdf" && format != "markdown" {
		response.BadRequest(c, "format must be pdf or markdown", nil)
		return
	}
	if format == "pdf" && !h.pdf.Enabled() {
		response.Unavailable(c, "PDF reports are not configured", nil)
		return
	}

	var result *model.Result
	latest, err := h.results.Latest(c.Request.Context(), task.ID, true)
	switch {
	case err == nil:
		result = latest
	case !errors.Is(err, store.ErrNotFound):
		response.ServerErrorMsg(c, "failed to load result", err)
		return
	}

	now := h.Now().UTC()
	if format == "markdown" {
		body := report.Markdown(task, result, now)
		attachment(c, report.FileName(task.Name, "md"))
		c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(body))
		return
	}

	var buf bytes.Buffer
	if err := h.pdf.Render(&buf, task, result, now); err != nil {
		response.ServerErrorMsg(c, "failed to render report", err)
		return
	}
	attachment(c, report.FileName(task.Name, "pdf"))
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}

func attachment(c *gin.Context, name string) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
}
