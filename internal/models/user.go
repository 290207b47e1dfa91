package models

import "time"

// User is a searchable member of the platform.
type User struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	Name      string    `gorm:"size:255;index;not null" json:"name"`
	AvatarURL string    `gorm:"size:512" json:"avatar_url"`
	Latitude  *float64  `json:"latitude"`
	Longitude *float64  `json:"longitude"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Friendship links two users. Rows are stored in both directions.
type Friendship struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    string    `gorm:"size:64;uniqueIndex:idx_friend_pair;not null" json:"user_id"`
	FriendID  string    `gorm:"size:64;uniqueIndex:idx_friend_pair;not null" json:"friend_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Invitation records that a user was invited to an activity.
type Invitation struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ActivityID string    `gorm:"size:64;uniqueIndex:idx_invitation;not null" json:"activity_id"`
	InviteeID  string    `gorm:"size:64;uniqueIndex:idx_invitation;not null" json:"invitee_id"`
	InviterID  string    `gorm:"size:64;index;not null" json:"inviter_id"`
	Status     string    `gorm:"size:32;not null;default:pending" json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
