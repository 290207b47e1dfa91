package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/trailmate-chat/internal/models"
)

// ActivityLogFilter narrows a page of the membership log. Zero fields match
// everything; PageSize 0 returns every matching row.
type ActivityLogFilter struct {
	ActivityID string
	Action     string
	ActorID    string
	Since      time.Time
	Page       int
	PageSize   int
}

// ActivityLogRepository appends and pages membership events, newest first.
type ActivityLogRepository interface {
	Create(ctx context.Context, entry *models.ActivityLog) error
	List(ctx context.Context, filter ActivityLogFilter) ([]models.ActivityLog, int64, error)
}

type activityLogRepository struct {
	db *gorm.DB
}

// NewActivityLogRepository constructs the membership log repository.
func NewActivityLogRepository(db *gorm.DB) ActivityLogRepository {
	return &activityLogRepository{db: db}
}

func (r *activityLogRepository) Create(ctx context.Context, entry *models.ActivityLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *activityLogRepository) List(ctx context.Context, filter ActivityLogFilter) ([]models.ActivityLog, int64, error) {
	scoped := r.db.WithContext(ctx).Model(&models.ActivityLog{}).Scopes(filter.scope)

	var total int64
	if err := scoped.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []models.ActivityLog{}, 0, nil
	}

	var entries []models.ActivityLog
	err := scoped.Scopes(filter.paginate).
		Order("created_at DESC").
		Order("id DESC").
		Find(&entries).Error
	return entries, total, err
}

func (f ActivityLogFilter) scope(db *gorm.DB) *gorm.DB {
	if f.ActivityID != "" {
		db = db.Where("activity_id = ?", f.ActivityID)
	}
	if f.Action != "" {
		db = db.Where("action = ?", f.Action)
	}
	if f.ActorID != "" {
		db = db.Where("actor_id = ?", f.ActorID)
	}
	if !f.Since.IsZero() {
		db = db.Where("created_at >= ?", f.Since)
	}
	return db
}

func (f ActivityLogFilter) paginate(db *gorm.DB) *gorm.DB {
	if f.PageSize <= 0 {
		return db
	}
	page := f.Page
	if page < 1 {
		page = 1
	}
	return db.Offset((page - 1) * f.PageSize).Limit(f.PageSize)
}
