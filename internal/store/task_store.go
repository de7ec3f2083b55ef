package store

import (
	"context"
	"fmt"
	"time"

	"github.com/wcag-monitor/internal/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// NewTask carries the fields accepted when a task is created.
type NewTask struct {
	Name         string
	URL          string
	Standard     string
	Timeout      int
	Wait         int
	Username     string
	Password     string
	HideElements string
	Headers      model.Headers
	Actions      model.StringList
	Ignore       model.StringList
	PageLimit    int
}

// TaskEdit lists the editable fields; nil means unchanged. URL and Standard
// are deliberately absent.
type TaskEdit struct {
	Name         *string
	Timeout      *int
	Wait         *int
	Username     *string
	Password     *string
	HideElements *string
	Headers      *model.Headers
	Actions      *model.StringList
	Ignore       *model.StringList
	Comment      string
}

const defaultEditComment = "Edited task"

type TaskStore struct {
	db  *gorm.DB
	log *zap.Logger
	Now func() time.Time
}

func NewTaskStore(db *gorm.DB, log *zap.Logger) *TaskStore {
	return &TaskStore{db: db, log: log, Now: time.Now}
}

// Create stores a new task owned by userID.
func (s *TaskStore) Create(ctx context.Context, userID uint, in NewTask) (*model.Task, error) {
	task := model.Task{
		UserID:       userID,
		Name:         in.Name,
		URL:          in.URL,
		Standard:     in.Standard,
		Timeout:      in.Timeout,
		Wait:         in.Wait,
		Username:     in.Username,
		Password:     in.Password,
		HideElements: in.HideElements,
		Headers:      in.Headers,
		Actions:      in.Actions,
		Ignore:       in.Ignore,
		PageLimit:    in.PageLimit,
	}
	if task.PageLimit <= 0 {
		task.PageLimit = model.DefaultPageLimit
	}
	if err := s.db.WithContext(ctx).Create(&task).Error; err != nil {
		s.log.Error("create task failed", zap.Uint("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("create task: %w", translate(err))
	}
	return &task, nil
}

func (s *TaskStore) sorted(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Preload("Annotations", func(db *gorm.DB) *gorm.DB { return db.Order("annotated_at asc, id asc") }).
		Order("name asc, standard asc, url asc, id asc")
}

// ListAll returns every task in the system. Used by the scheduler only.
func (s *TaskStore) ListAll(ctx context.Context) ([]model.Task, error) {
	var tasks []model.Task
	if err := s.sorted(ctx).Find(&tasks).Error; err != nil {
		s.log.Error("list tasks failed", zap.Error(err))
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// ListByUser returns the tasks owned by userID.
func (s *TaskStore) ListByUser(ctx context.Context, userID uint) ([]model.Task, error) {
	var tasks []model.Task
	if err := s.sorted(ctx).Where("user_id = ?", userID).Find(&tasks).Error; err != nil {
		s.log.Error("list user tasks failed", zap.Uint("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("list user tasks: %w", err)
	}
	return tasks, nil
}

func (s *TaskStore) CountByUser(ctx context.Context, userID uint) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.Task{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		s.log.Error("count user tasks failed", zap.Uint("user_id", userID), zap.Error(err))
		return 0, fmt.Errorf("count user tasks: %w", err)
	}
	return count, nil
}

// GetByID loads a task without an ownership check.
func (s *TaskStore) GetByID(ctx context.Context, id uint) (*model.Task, error) {
	return s.first(s.db.WithContext(ctx).Where("id = ?", id))
}

// GetByIDAndUser loads a task only if userID owns it.
func (s *TaskStore) GetByIDAndUser(ctx context.Context, id, userID uint) (*model.Task, error) {
	return s.first(s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID))
}

func (s *TaskStore) first(query *gorm.DB) (*model.Task, error) {
	var task model.Task
	err := query.
		Preload("Annotations", func(db *gorm.DB) *gorm.DB { return db.Order("annotated_at asc, id asc") }).
		First(&task).Error
	if err != nil {
		err = translate(err)
		if err != ErrNotFound {
			s.log.Error("get task failed", zap.Error(err))
			return nil, fmt.Errorf("get task: %w", err)
		}
		return nil, ErrNotFound
	}
	return &task, nil
}

// Edit applies edits to a task owned by userID and appends an "edit" annotation.
func (s *TaskStore) Edit(ctx context.Context, id, userID uint, edits TaskEdit) (*model.Task, error) {
	now := s.Now().UTC()
	updates := map[string]interface{}{"updated_at": now}
	if edits.Name != nil {
		updates["name"] = *edits.Name
	}
	if edits.Timeout != nil {
		updates["timeout"] = *edits.Timeout
	}
	if edits.Wait != nil {
		updates["wait"] = *edits.Wait
	}
	if edits.Username != nil {
		updates["username"] = *edits.Username
	}
	if edits.Password != nil {
		updates["password"] = *edits.Password
	}
	if edits.HideElements != nil {
		updates["hide_elements"] = *edits.HideElements
	}
	if edits.Headers != nil {
		updates["headers"] = *edits.Headers
	}
	if edits.Actions != nil {
		updates["actions"] = *edits.Actions
	}
	if edits.Ignore != nil {
		updates["ignore"] = *edits.Ignore
	}

	comment := edits.Comment
	if comment == "" {
		comment = defaultEditComment
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.Task{}).Where("id = ? AND user_id = ?", id, userID).Updates(updates)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Create(&model.TaskAnnotation{TaskID: id, Type: "edit", Date: now, Comment: comment}).Error
	})
	if err != nil {
		if err == ErrNotFound {
			return nil, ErrNotFound
		}
		s.log.Error("edit task failed", zap.Uint("task_id", id), zap.Error(err))
		return nil, fmt.Errorf("edit task: %w", err)
	}
	return s.GetByID(ctx, id)
}

// Delete removes a task owned by userID together with its results and annotations.
func (s *TaskStore) Delete(ctx context.Context, id, userID uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Unscoped().Where("id = ? AND user_id = ?", id, userID).Delete(&model.Task{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		if err := tx.Where("task_id = ?", id).Delete(&model.Result{}).Error; err != nil {
			return err
		}
		return tx.Where("task_id = ?", id).Delete(&model.TaskAnnotation{}).Error
	})
	if err != nil {
		if err == ErrNotFound {
			return ErrNotFound
		}
		s.log.Error("delete task failed", zap.Uint("task_id", id), zap.Error(err))
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

// MarkRun records the time of the last successful scan.
func (s *TaskStore) MarkRun(ctx context.Context, id uint, at time.Time) error {
	result := s.db.WithContext(ctx).Model(&model.Task{}).Where("id = ?", id).UpdateColumn("last_run", at)
	if result.Error != nil {
		s.log.Error("update last run failed", zap.Uint("task_id", id), zap.Error(result.Error))
		return fmt.Errorf("update last run: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
