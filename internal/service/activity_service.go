package service

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"github.com/noah-isme/trailmate-chat/internal/dto"
	"github.com/noah-isme/trailmate-chat/internal/models"
	"github.com/noah-isme/trailmate-chat/internal/repository"
)

// ActivityEntry captures the details required to persist a membership event.
type ActivityEntry struct {
	ActivityID string
	ActorID    string
	Action     string
	Metadata   map[string]interface{}
}

// ActivityRecorder defines behaviour for recording membership events.
type ActivityRecorder interface {
	Record(ctx context.Context, entry ActivityEntry) error
}

// ActivityService records and lists the membership log of activity chats.
type ActivityService interface {
	ActivityRecorder
	List(ctx context.Context, activityID string, req dto.ActivityLogListRequest) (dto.ActivityLogListResponse, error)
}

type activityService struct {
	repo      repository.ActivityLogRepository
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewActivityService constructs the activity log service.
func NewActivityService(repo repository.ActivityLogRepository, validator *validator.Validate, logger zerolog.Logger) ActivityService {
	return &activityService{
		repo:      repo,
		validator: validator,
		logger:    logger.With().Str("component", "activity_service").Logger(),
	}
}

func (s *activityService) Record(ctx context.Context, entry ActivityEntry) error {
	if strings.TrimSpace(entry.Action) == "" {
		return fmt.Errorf("action is required")
	}
	if strings.TrimSpace(entry.ActivityID) == "" {
		return fmt.Errorf("activity id is required")
	}

	model := models.ActivityLog{
		ActivityID: strings.TrimSpace(entry.ActivityID),
		ActorID:    strings.TrimSpace(entry.ActorID),
		Action:     strings.ToLower(strings.TrimSpace(entry.Action)),
		Metadata:   sanitizeMetadata(entry.Metadata),
	}
	if model.ActorID == "" {
		model.ActorID = "system"
	}

	if err := s.repo.Create(ctx, &model); err != nil {
		s.logger.Error().Err(err).Str("action", model.Action).Msg("failed to persist activity log")
		return err
	}
	return nil
}

func (s *activityService) List(ctx context.Context, activityID string, req dto.ActivityLogListRequest) (dto.ActivityLogListResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.ActivityLogListResponse{}, err
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	page := maxInt(req.Page, 1)

	entries, total, err := s.repo.List(ctx, repository.ActivityLogFilter{
		ActivityID: strings.TrimSpace(activityID),
		Action:     strings.TrimSpace(req.Action),
		Page:       page,
		PageSize:   pageSize,
	})
	if err != nil {
		return dto.ActivityLogListResponse{}, err
	}

	items := make([]dto.ActivityLogResponse, 0, len(entries))
	for _, entry := range entries {
		items = append(items, dto.NewActivityLogResponse(entry))
	}

	return dto.ActivityLogListResponse{
		Items: items,
		Pagination: dto.PaginationMeta{
			Page:       page,
			PageSize:   pageSize,
			TotalItems: total,
			TotalPages: int(math.Ceil(float64(total) / float64(pageSize))),
		},
	}, nil
}

func sanitizeMetadata(metadata map[string]interface{}) datatypes.JSONMap {
	sanitized := datatypes.JSONMap{}
	for key, value := range metadata {
		lower := strings.ToLower(key)
		if strings.Contains(lower, "email") || strings.Contains(lower, "token") {
			sanitized[key] = "***"
			continue
		}
		sanitized[key] = value
	}
	return sanitized
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
