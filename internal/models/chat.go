package models

import (
	"time"

	"gorm.io/datatypes"
)

// ChatSession is the single chat bound to an activity.
type ChatSession struct {
	ID             uint                        `gorm:"primaryKey" json:"id"`
	ActivityID     string                      `gorm:"size:64;uniqueIndex;not null" json:"activity_id"`
	CreatorID      string                      `gorm:"size:64;index;not null" json:"creator_id"`
	DisplayName    string                      `gorm:"size:255" json:"display_name"`
	ParticipantIDs datatypes.JSONSlice[string] `gorm:"type:json" json:"participant_ids"`
	CreatedAt      time.Time                   `json:"created_at"`
	UpdatedAt      time.Time                   `json:"updated_at"`
}

// HasParticipant reports whether userID may read and post in the chat.
func (s ChatSession) HasParticipant(userID string) bool {
	if userID == "" {
		return false
	}
	if s.CreatorID == userID {
		return true
	}
	for _, id := range s.ParticipantIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// ChatMessage is one stored message. Body carries plain text or a tagged
// structured payload; media kinds carry AttachmentURL.
type ChatMessage struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	ChatID        uint      `gorm:"index;not null" json:"chat_id"`
	SenderID      string    `gorm:"size:64;index;not null" json:"sender_id"`
	SenderName    string    `gorm:"size:255" json:"sender_name"`
	Kind          string    `gorm:"size:16;not null;default:text" json:"kind"`
	Body          string    `gorm:"type:text" json:"body"`
	AttachmentURL string    `gorm:"size:512" json:"attachment_url"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
