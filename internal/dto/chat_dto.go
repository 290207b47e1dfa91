package dto

import (
	"strconv"
	"time"

	"github.com/noah-isme/trailmate-chat/internal/models"
)

// EnsureChatRequest creates the chat for an activity when none exists.
type EnsureChatRequest struct {
	DisplayName string `json:"display_name" validate:"omitempty,max=255"`
}

// CreateMessageRequest is the JSON form of a new message. Media kinds need
// an attachment URL; text needs a body.
type CreateMessageRequest struct {
	Text          string `json:"text" form:"text" validate:"max=8000"`
	Kind          string `json:"kind" form:"kind" validate:"omitempty,oneof=text image audio document"`
	AttachmentURL string `json:"attachment_url" form:"attachment_url" validate:"omitempty,url,max=512"`
}

// UpdateMessageRequest replaces the body of an event message.
type UpdateMessageRequest struct {
	Text string `json:"text" validate:"required,max=8000"`
}

// ChatSessionResponse is the wire shape of a chat session.
type ChatSessionResponse struct {
	ID             string   `json:"id"`
	ActivityID     string   `json:"activity_id"`
	ParticipantIDs []string `json:"participant_ids"`
	CreatorID      string   `json:"creator_id"`
	DisplayName    string   `json:"display_name"`
}

// ChatMessageResponse is the wire shape of a chat message.
type ChatMessageResponse struct {
	ID            string    `json:"id"`
	ChatID        string    `json:"chat_id"`
	SenderID      string    `json:"sender_id"`
	SenderName    string    `json:"sender_name"`
	CreatedAt     time.Time `json:"created_at"`
	Kind          string    `json:"kind"`
	Body          string    `json:"body"`
	AttachmentURL string    `json:"attachment_url,omitempty"`
}

// ChatStreamEvent is pushed over the chat websocket.
type ChatStreamEvent struct {
	Type    string              `json:"type"`
	Message ChatMessageResponse `json:"message"`
}

// NewChatSessionResponse converts a model into a DTO.
func NewChatSessionResponse(session models.ChatSession) ChatSessionResponse {
	participants := make([]string, 0, len(session.ParticipantIDs))
	participants = append(participants, session.ParticipantIDs...)
	return ChatSessionResponse{
		ID:             strconv.FormatUint(uint64(session.ID), 10),
		ActivityID:     session.ActivityID,
		ParticipantIDs: participants,
		CreatorID:      session.CreatorID,
		DisplayName:    session.DisplayName,
	}
}

// NewChatMessageResponse converts a model into a DTO.
func NewChatMessageResponse(message models.ChatMessage) ChatMessageResponse {
	return ChatMessageResponse{
		ID:            strconv.FormatUint(uint64(message.ID), 10),
		ChatID:        strconv.FormatUint(uint64(message.ChatID), 10),
		SenderID:      message.SenderID,
		SenderName:    message.SenderName,
		CreatedAt:     message.CreatedAt,
		Kind:          message.Kind,
		Body:          message.Body,
		AttachmentURL: message.AttachmentURL,
	}
}

// NewChatMessageResponseSlice converts a slice of models into DTOs.
func NewChatMessageResponseSlice(messages []models.ChatMessage) []ChatMessageResponse {
	out := make([]ChatMessageResponse, 0, len(messages))
	for _, message := range messages {
		out = append(out, NewChatMessageResponse(message))
	}
	return out
}

// UploadResponse describes the stored asset metadata returned to the client.
type UploadResponse struct {
	URL       string `json:"url"`
	SizeBytes int64  `json:"size_bytes"`
	MimeType  string `json:"mime_type"`
	Kind      string `json:"kind"`
	Checksum  string `json:"checksum"`
	FileName  string `json:"file_name"`
}
