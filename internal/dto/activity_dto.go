package dto

import (
	"time"

	"github.com/noah-isme/trailmate-chat/internal/models"
)

// PaginationMeta describes pagination state for list responses.
type PaginationMeta struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
}

// ActivityLogListRequest pages through the membership log of an activity.
type ActivityLogListRequest struct {
	Action   string `query:"action" validate:"omitempty,oneof=chat.created chat.joined chat.invited"`
	Page     int    `query:"page" validate:"omitempty,min=1"`
	PageSize int    `query:"page_size" validate:"omitempty,min=1,max=100"`
}

// ActivityLogResponse is one chat membership event.
type ActivityLogResponse struct {
	ID         uint                   `json:"id"`
	ActivityID string                 `json:"activity_id"`
	ActorID    string                 `json:"actor_id"`
	Action     string                 `json:"action"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
}

// ActivityLogListResponse is a page of membership events.
type ActivityLogListResponse struct {
	Items      []ActivityLogResponse `json:"items"`
	Pagination PaginationMeta        `json:"pagination"`
}

// NewActivityLogResponse converts a model into a DTO.
func NewActivityLogResponse(entry models.ActivityLog) ActivityLogResponse {
	var metadata map[string]interface{}
	if len(entry.Metadata) > 0 {
		metadata = make(map[string]interface{}, len(entry.Metadata))
		for key, value := range entry.Metadata {
			metadata[key] = value
		}
	}
	return ActivityLogResponse{
		ID:         entry.ID,
		ActivityID: entry.ActivityID,
		ActorID:    entry.ActorID,
		Action:     entry.Action,
		Metadata:   metadata,
		CreatedAt:  entry.CreatedAt,
	}
}
