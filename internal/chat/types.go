// Package chat is the client side group chat engine for an activity: session
// loading and sending, voice recording, attachments, invites and the entry
// gate. Remote collaborators are reached through the interfaces in ports.go.
package chat

import (
	"time"
)

// Kind is the transport shape of a message.
type Kind string

const (
	KindText     Kind = "text"
	KindImage    Kind = "image"
	KindAudio    Kind = "audio"
	KindDocument Kind = "document"
)

// Valid reports whether k is one of the four transport kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindText, KindImage, KindAudio, KindDocument:
		return true
	default:
		return false
	}
}

// IsMedia reports whether messages of this kind carry an attachment.
func (k Kind) IsMedia() bool {
	return k == KindImage || k == KindAudio || k == KindDocument
}

// Session is a chat bound 1:1 to an activity.
type Session struct {
	ID             string   `json:"id"`
	ActivityID     string   `json:"activity_id"`
	ParticipantIDs []string `json:"participant_ids"`
	CreatorID      string   `json:"creator_id"`
	DisplayName    string   `json:"display_name"`
}

// HasParticipant reports whether userID is bound to the session.
func (s Session) HasParticipant(userID string) bool {
	for _, id := range s.ParticipantIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// Message is a chat message as returned by the store.
type Message struct {
	ID            string    `json:"id"`
	ChatID        string    `json:"chat_id"`
	SenderID      string    `json:"sender_id"`
	SenderName    string    `json:"sender_name"`
	CreatedAt     time.Time `json:"created_at"`
	Kind          Kind      `json:"kind"`
	Body          string    `json:"body"`
	AttachmentURL string    `json:"attachment_url,omitempty"`
}

// Draft is the client side request to create a message.
type Draft struct {
	Text          string
	Kind          Kind
	AttachmentURL string
}

// File is a single picked or generated file.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Size is the file length in bytes.
func (f File) Size() int64 { return int64(len(f.Data)) }

// Candidate is a user that can be offered an invitation.
type Candidate struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	AvatarURL  string   `json:"avatar_url"`
	DistanceKm *float64 `json:"distance_km,omitempty"`
}

// Identity is the signed-in user the engine acts for.
type Identity struct {
	UserID string
	Name   string
}
