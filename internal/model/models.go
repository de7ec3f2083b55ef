package model

import (
	"time"

	"gorm.io/gorm"
)

// Accessibility standards a task can be scanned against.
const (
	StandardSection508 = "Section508"
	StandardWCAG2A     = "WCAG2A"
	StandardWCAG2AA    = "WCAG2AA"
	StandardWCAG2AAA   = "WCAG2AAA"
)

// Standards lists every accepted standard.
var Standards = []string{StandardSection508, StandardWCAG2A, StandardWCAG2AA, StandardWCAG2AAA}

// IsValidStandard reports whether s is one of Standards.
func IsValidStandard(s string) bool {
	for _, std := range Standards {
		if std == s {
			return true
		}
	}
	return false
}

const (
	PlanFree = "free"
	PlanPro  = "pro"
)

// Task defaults applied when a stored field is zero.
const (
	DefaultTimeoutMS = 30000
	DefaultWaitMS    = 0
	DefaultPageLimit = 100
)

type NotificationSettings struct {
	Email        bool   `gorm:"default:true"`
	Frequency    string `gorm:"size:20;default:'weekly'"`
	AlertOnError bool   `gorm:"default:true"`
}

type User struct {
	gorm.Model
	Email         string `gorm:"uniqueIndex;size:255;not null"`
	PasswordHash  string `gorm:"size:255;not null"`
	Name          string `gorm:"size:255"`
	Plan          string `gorm:"size:20;default:'free';index"`
	PaidURLCount  int    `gorm:"default:0"`
	EmailVerified bool
	Notifications NotificationSettings `gorm:"embedded;embeddedPrefix:notify_"`
}

// URLLimit is the number of tasks the user may own.
func (u *User) URLLimit(freeLimit int) int {
	return freeLimit + u.PaidURLCount
}

// Task is a monitored URL together with its scan configuration.
// URL and Standard are fixed at creation.
type Task struct {
	gorm.Model
	UserID       uint       `gorm:"index;not null"`
	Name         string     `gorm:"size:255;index:idx_task_sort,priority:1"`
	URL          string     `gorm:"size:2048;not null;index:idx_task_sort,priority:3"`
	Standard     string     `gorm:"size:20;not null;index:idx_task_sort,priority:2"`
	Timeout      int        `gorm:"comment:milliseconds"`
	Wait         int        `gorm:"comment:milliseconds"`
	Username     string     `gorm:"size:255"`
	Password     string     `gorm:"size:255"`
	HideElements string     `gorm:"type:text"`
	Headers      Headers    `gorm:"type:jsonb"`
	Actions      StringList `gorm:"type:jsonb"`
	Ignore       StringList `gorm:"type:jsonb"`
	PageLimit    int
	LastRun      *time.Time
	Annotations  []TaskAnnotation `gorm:"foreignKey:TaskID"`
}

// EffectiveTimeout returns the scan timeout with the default applied.
func (t *Task) EffectiveTimeout() time.Duration {
	ms := t.Timeout
	if ms <= 0 {
		ms = DefaultTimeoutMS
	}
	return time.Duration(ms) * time.Millisecond
}

// EffectiveWait returns the post-load wait with the default applied.
func (t *Task) EffectiveWait() time.Duration {
	ms := t.Wait
	if ms < 0 {
		ms = DefaultWaitMS
	}
	return time.Duration(ms) * time.Millisecond
}

// TaskAnnotation is one entry of a task's append-only change log.
type TaskAnnotation struct {
	ID      uint      `gorm:"primarykey"`
	TaskID  uint      `gorm:"index;not null"`
	Type    string    `gorm:"size:50;not null"`
	Date    time.Time `gorm:"column:annotated_at;not null"`
	Comment string    `gorm:"type:text"`
}

// Result is one immutable scan outcome of a task.
type Result struct {
	ID        uint        `gorm:"primarykey"`
	CreatedAt time.Time
	TaskID    uint        `gorm:"index;not null"`
	Date      time.Time   `gorm:"column:scanned_at;index;not null"`
	Count     ResultCount `gorm:"embedded;embeddedPrefix:count_"`
	Score     int
	Ignore    StringList `gorm:"type:jsonb"`
	Issues    IssueList  `gorm:"type:jsonb"`
}

type ResultCount struct {
	Total   int `json:"total"`
	Error   int `json:"error"`
	Warning int `json:"warning"`
	Notice  int `json:"notice"`
}

// Issue types reported by the scanning engine.
const (
	IssueError   = "error"
	IssueWarning = "warning"
	IssueNotice  = "notice"
)

// Issue is a single accessibility finding.
type Issue struct {
	Type     string `json:"type"`
	Code     string `json:"code"`
	Message  string `json:"message"`
	Selector string `json:"selector"`
	Context  string `json:"context"`
}

// CountIssues classifies issues by type.
func CountIssues(issues []Issue) ResultCount {
	count := ResultCount{Total: len(issues)}
	for _, issue := range issues {
		switch issue.Type {
		case IssueError:
			count.Error++
		case IssueWarning:
			count.Warning++
		case IssueNotice:
			count.Notice++
		}
	}
	return count
}
