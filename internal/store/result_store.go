package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/wcag-monitor/internal/model"
	"github.com/wcag-monitor/internal/score"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultResultWindow = 30 * 24 * time.Hour
	trendWindow         = 12 * 7 * 24 * time.Hour
	weekKeyLayout       = "2006-01-02"
)

// ResultFilter narrows result listings. Zero From/To fall back to the last
// 30 days; both bounds are exclusive. Limit 0 returns every match.
type ResultFilter struct {
	From  time.Time
	To    time.Time
	Limit int
	Full  bool
}

// WeekTrend is the per-week average of a task's results.
type WeekTrend struct {
	Week     string `json:"week"`
	Errors   int    `json:"errors"`
	Warnings int    `json:"warnings"`
	Notices  int    `json:"notices"`
	Score    int    `json:"score"`
}

type ResultStore struct {
	db  *gorm.DB
	log *zap.Logger
	Now func() time.Time
}

func NewResultStore(db *gorm.DB, log *zap.Logger) *ResultStore {
	return &ResultStore{db: db, log: log, Now: time.Now}
}

// Create persists a new result. The score is always derived from the counts.
func (s *ResultStore) Create(ctx context.Context, result *model.Result) error {
	if result.Date.IsZero() {
		result.Date = s.Now().UTC()
	}
	result.Score = score.Calculate(&result.Count)
	if result.Ignore == nil {
		result.Ignore = model.StringList{}
	}
	if err := s.db.WithContext(ctx).Create(result).Error; err != nil {
		s.log.Error("create result failed", zap.Uint("task_id", result.TaskID), zap.Error(err))
		return fmt.Errorf("create result: %w", translate(err))
	}
	return nil
}

func (s *ResultStore) filtered(ctx context.Context, filter ResultFilter) *gorm.DB {
	now := s.Now()
	from, to := filter.From, filter.To
	if from.IsZero() {
		from = now.Add(-defaultResultWindow)
	}
	if to.IsZero() {
		to = now
	}
	query := s.db.WithContext(ctx).
		Where("scanned_at > ? AND scanned_at < ?", from.UTC(), to.UTC()).
		Order("scanned_at desc, id desc")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if !filter.Full {
		query = query.Omit("issues")
	}
	return query
}

// List returns results of all tasks matching filter, newest first.
func (s *ResultStore) List(ctx context.Context, filter ResultFilter) ([]model.Result, error) {
	var results []model.Result
	if err := s.filtered(ctx, filter).Find(&results).Error; err != nil {
		s.log.Error("list results failed", zap.Error(err))
		return nil, fmt.Errorf("list results: %w", err)
	}
	return results, nil
}

// ListByTask returns the results of one task matching filter, newest first.
func (s *ResultStore) ListByTask(ctx context.Context, taskID uint, filter ResultFilter) ([]model.Result, error) {
	var results []model.Result
	if err := s.filtered(ctx, filter).Where("task_id = ?", taskID).Find(&results).Error; err != nil {
		s.log.Error("list task results failed", zap.Uint("task_id", taskID), zap.Error(err))
		return nil, fmt.Errorf("list task results: %w", err)
	}
	return results, nil
}

// ListForTasks returns the results of the given tasks matching filter, newest first.
func (s *ResultStore) ListForTasks(ctx context.Context, taskIDs []uint, filter ResultFilter) ([]model.Result, error) {
	if len(taskIDs) == 0 {
		return []model.Result{}, nil
	}
	var results []model.Result
	if err := s.filtered(ctx, filter).Where("task_id IN ?", taskIDs).Find(&results).Error; err != nil {
		s.log.Error("list results for tasks failed", zap.Int("tasks", len(taskIDs)), zap.Error(err))
		return nil, fmt.Errorf("list results for tasks: %w", err)
	}
	return results, nil
}

// LatestForTasks maps each task id to its newest result inside the default
// window. Tasks without a result are absent from the map.
func (s *ResultStore) LatestForTasks(ctx context.Context, taskIDs []uint) (map[uint]model.Result, error) {
	results, err := s.ListForTasks(ctx, taskIDs, ResultFilter{})
	if err != nil {
		return nil, err
	}
	latest := make(map[uint]model.Result, len(taskIDs))
	for _, r := range results {
		if _, ok := latest[r.TaskID]; !ok {
			latest[r.TaskID] = r
		}
	}
	return latest, nil
}

// Latest returns the newest result of a task regardless of age.
func (s *ResultStore) Latest(ctx context.Context, taskID uint, full bool) (*model.Result, error) {
	query := s.db.WithContext(ctx).Where("task_id = ?", taskID).Order("scanned_at desc, id desc")
	if !full {
		query = query.Omit("issues")
	}
	return s.first(query, zap.Uint("task_id", taskID))
}

// GetByIDAndTask loads a result only if it belongs to taskID.
func (s *ResultStore) GetByIDAndTask(ctx context.Context, id, taskID uint, full bool) (*model.Result, error) {
	query := s.db.WithContext(ctx).Where("id = ? AND task_id = ?", id, taskID)
	if !full {
		query = query.Omit("issues")
	}
	return s.first(query, zap.Uint("result_id", id))
}

func (s *ResultStore) first(query *gorm.DB, field zap.Field) (*model.Result, error) {
	var result model.Result
	if err := query.First(&result).Error; err != nil {
		err = translate(err)
		if err == ErrNotFound {
			return nil, ErrNotFound
		}
		s.log.Error("get result failed", field, zap.Error(err))
		return nil, fmt.Errorf("get result: %w", err)
	}
	return &result, nil
}

// WeeklyTrend averages a task's results of the trailing 12 weeks per
// Sunday-started UTC week. Weeks without results produce no row.
func (s *ResultStore) WeeklyTrend(ctx context.Context, taskID uint) ([]WeekTrend, error) {
	since := s.Now().Add(-trendWindow).UTC()

	var results []model.Result
	err := s.db.WithContext(ctx).
		Omit("issues").
		Where("task_id = ? AND scanned_at >= ?", taskID, since).
		Order("scanned_at asc, id asc").
		Find(&results).Error
	if err != nil {
		s.log.Error("weekly trend failed", zap.Uint("task_id", taskID), zap.Error(err))
		return nil, fmt.Errorf("weekly trend: %w", err)
	}

	type bucket struct {
		errors, warnings, notices, score, n int
	}
	buckets := make(map[string]*bucket)
	for _, r := range results {
		key := WeekStart(r.Date).Format(weekKeyLayout)
		b, ok := buckets[key]
		if !ok {
			b = &bucket{}
			buckets[key] = b
		}
		b.errors += r.Count.Error
		b.warnings += r.Count.Warning
		b.notices += r.Count.Notice
		b.score += r.Score
		b.n++
	}

	weeks := make([]string, 0, len(buckets))
	for key := range buckets {
		weeks = append(weeks, key)
	}
	sort.Strings(weeks)

	trend := make([]WeekTrend, 0, len(weeks))
	for _, week := range weeks {
		b := buckets[week]
		trend = append(trend, WeekTrend{
			Week:     week,
			Errors:   mean(b.errors, b.n),
			Warnings: mean(b.warnings, b.n),
			Notices:  mean(b.notices, b.n),
			Score:    mean(b.score, b.n),
		})
	}
	return trend, nil
}

// WeekStart returns midnight UTC of the Sunday on or before t.
func WeekStart(t time.Time) time.Time {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return day.AddDate(0, 0, -int(day.Weekday()))
}

func mean(sum, n int) int {
	return int(math.Round(float64(sum) / float64(n)))
}
