package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/wcag-monitor/internal/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type UserStore struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewUserStore(db *gorm.DB, log *zap.Logger) *UserStore {
	return &UserStore{db: db, log: log}
}

// NormalizeEmail lower-cases and trims an address before it is stored or looked up.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Create inserts a free-plan user. A taken email yields ErrAlreadyExists.
func (s *UserStore) Create(ctx context.Context, email, passwordHash, name string) (*model.User, error) {
	user := model.User{
		Email:        NormalizeEmail(email),
		PasswordHash: passwordHash,
		Name:         name,
		Plan:         model.PlanFree,
		Notifications: model.NotificationSettings{
			Email:        true,
			Frequency:    "weekly",
			AlertOnError: true,
		},
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		err = translate(err)
		if err == ErrAlreadyExists {
			return nil, ErrAlreadyExists
		}
		s.log.Error("create user failed", zap.Error(err))
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &user, nil
}

func (s *UserStore) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.first(s.db.WithContext(ctx).Where("email = ?", NormalizeEmail(email)))
}

func (s *UserStore) FindByID(ctx context.Context, id uint) (*model.User, error) {
	return s.first(s.db.WithContext(ctx).Where("id = ?", id))
}

func (s *UserStore) first(query *gorm.DB) (*model.User, error) {
	var user model.User
	if err := query.First(&user).Error; err != nil {
		err = translate(err)
		if err == ErrNotFound {
			return nil, ErrNotFound
		}
		s.log.Error("get user failed", zap.Error(err))
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

// ProfileUpdate lists the user editable profile fields; nil means unchanged.
type ProfileUpdate struct {
	Name               *string
	NotifyEmail        *bool
	NotifyFrequency    *string
	NotifyAlertOnError *bool
}

func (s *UserStore) UpdateProfile(ctx context.Context, id uint, in ProfileUpdate) (*model.User, error) {
	updates := map[string]interface{}{}
	if in.Name != nil {
		updates["name"] = *in.Name
	}
	if in.NotifyEmail != nil {
		updates["notify_email"] = *in.NotifyEmail
	}
	if in.NotifyFrequency != nil {
		updates["notify_frequency"] = *in.NotifyFrequency
	}
	if in.NotifyAlertOnError != nil {
		updates["notify_alert_on_error"] = *in.NotifyAlertOnError
	}
	if len(updates) > 0 {
		if err := s.update(ctx, id, updates); err != nil {
			return nil, err
		}
	}
	return s.FindByID(ctx, id)
}

func (s *UserStore) UpdatePassword(ctx context.Context, id uint, passwordHash string) error {
	return s.update(ctx, id, map[string]interface{}{"password_hash": passwordHash})
}

func (s *UserStore) update(ctx context.Context, id uint, updates map[string]interface{}) error {
	result := s.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		s.log.Error("update user failed", zap.Uint("user_id", id), zap.Error(result.Error))
		return fmt.Errorf("update user: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
