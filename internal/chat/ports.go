package chat

import (
	"context"
	"time"
)

// Store is the remote chat store. Returned values are authoritative.
type Store interface {
	GetSession(ctx context.Context, activityID string) (Session, error)
	ListMessages(ctx context.Context, chatID string) ([]Message, error)
	CreateMessage(ctx context.Context, chatID string, draft Draft) (Message, error)
	UpdateMessage(ctx context.Context, messageID, text string) (Message, error)
}

// Joiner adds the caller to an activity's chat.
type Joiner interface {
	JoinSession(ctx context.Context, activityID string) (Session, error)
}

// StreamEvent is a message change pushed by the store.
type StreamEvent struct {
	Type    string  `json:"type"`
	Message Message `json:"message"`
}

const (
	StreamMessageCreated = "message.created"
	StreamMessageUpdated = "message.updated"
)

// Stream delivers live message changes for a chat until ctx is done.
type Stream interface {
	Watch(ctx context.Context, chatID string, fn func(StreamEvent)) error
}

// FileStorage stores attachment bytes and returns a public URL.
type FileStorage interface {
	Upload(ctx context.Context, file File, kind Kind) (string, error)
}

// UserDirectory searches users and lists the caller's friends.
type UserDirectory interface {
	Search(ctx context.Context, query string) ([]Candidate, error)
	Friends(ctx context.Context) ([]Candidate, error)
}

// ActivityInviter invites users to an activity.
type ActivityInviter interface {
	Invite(ctx context.Context, activityID string, userIDs []string) error
}

// JoinMarkers remembers locally which activity chats the user joined.
type JoinMarkers interface {
	HasJoined(ctx context.Context, activityID string) (bool, error)
	MarkJoined(ctx context.Context, activityID string) error
}

// AudioChunk is a slice of captured audio.
type AudioChunk struct {
	Data     []byte
	Duration time.Duration
}

// Capture is an open microphone. Close releases the device.
type Capture interface {
	Chunks() <-chan AudioChunk
	MimeType() string
	Close() error
}

// Microphone is the platform audio device.
type Microphone interface {
	Open(ctx context.Context) (Capture, error)
}

// TokenProvider supplies the caller's signed token for store calls.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}
