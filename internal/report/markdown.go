// Package report renders a task's latest result for download.
package report

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/wcag-monitor/internal/model"
)

const timeLayout = "January 2, 2006 15:04:05 MST"

var unsafeFileChars = regexp.MustCompile(`(?i)[^a-z0-9]`)

// FileName builds a download name such as "my-site-report.pdf".
func FileName(taskName, ext string) string {
	return unsafeFileChars.ReplaceAllString(taskName, "-") + "-report." + ext
}

// Markdown renders the task and its result. A nil result yields a report
// stating that the task has not been scanned yet.
func Markdown(task *model.Task, result *model.Result, now time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Accessibility Report: %s\n\n", task.Name)
	fmt.Fprintf(&b, "**URL:** %s  \n", task.URL)
	fmt.Fprintf(&b, "**Standard:** %s  \n", task.Standard)
	fmt.Fprintf(&b, "**Generated:** %s  \n\n", now.UTC().Format(timeLayout))

	if result == nil {
		b.WriteString("This task has not been scanned yet.\n")
		return b.String()
	}

	b.WriteString("## Summary\n\n")
	fmt.Fprintf(&b, "Scanned on %s with a score of **%d/100**.\n\n", result.Date.UTC().Format(timeLayout), result.Score)
	b.WriteString("| Type | Count |\n|---|---|\n")
	fmt.Fprintf(&b, "| Errors | %d |\n", result.Count.Error)
	fmt.Fprintf(&b, "| Warnings | %d |\n", result.Count.Warning)
	fmt.Fprintf(&b, "| Notices | %d |\n", result.Count.Notice)
	fmt.Fprintf(&b, "| Total | %d |\n\n", result.Count.Total)

	if len(result.Ignore) > 0 {
		b.WriteString("Ignored rules: ")
		for i, rule := range result.Ignore {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "`%s`", rule)
		}
		b.WriteString("\n\n")
	}

	for _, group := range groupIssues(result.Issues) {
		fmt.Fprintf(&b, "## %s (%d)\n\n", group.title, len(group.issues))
		for _, issue := range group.issues {
			fmt.Fprintf(&b, "### %s\n\n", issue.Message)
			fmt.Fprintf(&b, "- **Rule:** `%s`\n", issue.Code)
			if issue.Selector != "" {
				fmt.Fprintf(&b, "- **Selector:** `%s`\n", issue.Selector)
			}
			if issue.Context != "" {
				fmt.Fprintf(&b, "\n```html\n%s\n```\n", issue.Context)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

type issueGroup struct {
	title  string
	issues []model.Issue
}

// groupIssues orders issues by severity and code. Empty groups are dropped.
func groupIssues(issues []model.Issue) []issueGroup {
	groups := []issueGroup{
		{title: "Errors"},
		{title: "Warnings"},
		{title: "Notices"},
	}
	index := map[string]int{model.IssueError: 0, model.IssueWarning: 1, model.IssueNotice: 2}
	for _, issue := range issues {
		if i, ok := index[issue.Type]; ok {
			groups[i].issues = append(groups[i].issues, issue)
		}
	}

	kept := groups[:0]
	for _, g := range groups {
		if len(g.issues) == 0 {
			continue
		}
		sort.SliceStable(g.issues, func(i, j int) bool { return g.issues[i].Code < g.issues[j].Code })
		kept = append(kept, g)
	}
	return kept
}
