package models

import (
	"time"

	"gorm.io/datatypes"
)

// Membership log actions.
const (
	ActionChatCreated = "chat.created"
	ActionChatJoined  = "chat.joined"
	ActionChatInvited = "chat.invited"
)

// ActivityLog is one membership event of an activity chat. Rows are append
// only; the actor is "system" when no user triggered the event.
type ActivityLog struct {
	ID         uint              `gorm:"primaryKey" json:"id"`
	ActivityID string            `gorm:"size:64;index:idx_activity_log_action,priority:1;not null" json:"activity_id"`
	Action     string            `gorm:"size:32;index:idx_activity_log_action,priority:2;not null" json:"action"`
	ActorID    string            `gorm:"size:64;index;not null" json:"actor_id"`
	Metadata   datatypes.JSONMap `gorm:"type:json" json:"metadata"`
	CreatedAt  time.Time         `gorm:"index" json:"created_at"`
}
