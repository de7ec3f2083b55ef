// Package scanner drives the headless browser that evaluates a page against an
// accessibility standard.
package scanner

import (
	"context"
	"strings"
	"time"

	"github.com/wcag-monitor/internal/model"
	"go.uber.org/zap"
)

// Options configures a single scan.
type Options struct {
	Standard string
	Timeout  time.Duration
	Wait     time.Duration
	Headers  map[string]string
	Actions  []Action
	// HideElements is a CSS selector list whose matches are excluded from the report.
	HideElements string
	// Ignore holds rule codes or issue types dropped from the report.
	Ignore []string
	Log    *zap.Logger
}

// Report is the engine output for one page.
type Report struct {
	DocumentTitle string
	PageURL       string
	Issues        []model.Issue
}

// Engine runs one scan. Implementations must honour ctx cancellation.
type Engine interface {
	Scan(ctx context.Context, url string, opts Options) (*Report, error)
}

// FilterIgnored drops issues whose code or type appears in ignore.
// Matching is case-insensitive.
func FilterIgnored(issues []model.Issue, ignore []string) []model.Issue {
	if len(ignore) == 0 {
		return issues
	}
	skip := make(map[string]struct{}, len(ignore))
	for _, rule := range ignore {
		skip[strings.ToLower(strings.TrimSpace(rule))] = struct{}{}
	}
	kept := make([]model.Issue, 0, len(issues))
	for _, issue := range issues {
		if _, ok := skip[strings.ToLower(issue.Code)]; ok {
			continue
		}
		if _, ok := skip[strings.ToLower(issue.Type)]; ok {
			continue
		}
		kept = append(kept, issue)
	}
	return kept
}

// issueType maps the numeric message types of the rule runner.
func issueType(code int) string {
	switch code {
	case 1:
		return model.IssueError
	case 2:
		return model.IssueWarning
	default:
		return model.IssueNotice
	}
}
