package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AttachmentState is the lifecycle position of one attachment.
type AttachmentState string

const (
	AttachmentSelected  AttachmentState = "selected"
	AttachmentUploading AttachmentState = "uploading"
	AttachmentSent      AttachmentState = "sent"
	AttachmentFailed    AttachmentState = "failed"
)

// Attachment is a snapshot of one file moving through the lifecycle.
type Attachment struct {
	ID        string
	Name      string
	Kind      Kind
	MimeType  string
	Size      int64
	State     AttachmentState
	URL       string
	MessageID string
	Err       error
	UpdatedAt time.Time
}

type attachmentEntry struct {
	Attachment
	data []byte
}

// Attachments tracks files from selection until the store acknowledges the
// message that carries them. A file whose upload fails never produces a send.
type Attachments struct {
	storage  FileStorage
	notifier Notifier
	logger   zerolog.Logger
	now      func() time.Time

	mu    sync.Mutex
	items map[string]*attachmentEntry
	order []string
}

// NewAttachments constructs the lifecycle around a file storage.
func NewAttachments(storage FileStorage, notifier Notifier, logger zerolog.Logger) *Attachments {
	return &Attachments{
		storage:  storage,
		notifier: notifierOrNop(notifier),
		logger:   logger.With().Str("component", "chat_attachments").Logger(),
		now:      time.Now,
		items:    make(map[string]*attachmentEntry),
	}
}

// Select registers one file. An empty kind is derived from the file bytes.
func (a *Attachments) Select(file File, kind Kind) Attachment {
	detected := mimetype.Detect(file.Data)
	mime := strings.TrimSpace(file.ContentType)
	if mime == "" {
		mime = detected.String()
	}
	if kind == "" {
		kind = KindForMime(mime)
	}

	name := strings.TrimSpace(file.Name)
	if name == "" {
		name = fmt.Sprintf("%s-%d%s", kind, a.now().Unix(), detected.Extension())
	}

	entry := &attachmentEntry{
		Attachment: Attachment{
			ID:        uuid.NewString(),
			Name:      name,
			Kind:      kind,
			MimeType:  mime,
			Size:      file.Size(),
			State:     AttachmentSelected,
			UpdatedAt: a.now(),
		},
		data: file.Data,
	}

	a.mu.Lock()
	a.items[entry.ID] = entry
	a.order = append(a.order, entry.ID)
	a.mu.Unlock()

	return entry.Attachment
}

// Upload stores the selected file and returns its public URL. On failure the
// attachment ends FAILED and the user is notified.
func (a *Attachments) Upload(ctx context.Context, id string) (string, error) {
	a.mu.Lock()
	entry, ok := a.items[id]
	if !ok {
		a.mu.Unlock()
		return "", fmt.Errorf("%w: unknown attachment %s", ErrValidation, id)
	}
	if entry.State != AttachmentSelected {
		a.mu.Unlock()
		return "", fmt.Errorf("%w: attachment %s is %s", ErrValidation, id, entry.State)
	}
	entry.State = AttachmentUploading
	entry.UpdatedAt = a.now()
	file := File{Name: entry.Name, ContentType: entry.MimeType, Data: entry.data}
	kind := entry.Kind
	a.mu.Unlock()

	if a.storage == nil {
		err := fmt.Errorf("%w: no file storage configured", ErrUploadFailed)
		a.fail(id, err)
		return "", err
	}

	url, err := a.storage.Upload(ctx, file, kind)
	if err != nil {
		wrapped := fmt.Errorf("%w: %w", ErrUploadFailed, err)
		a.fail(id, wrapped)
		return "", wrapped
	}

	a.mu.Lock()
	entry.URL = url
	entry.UpdatedAt = a.now()
	a.mu.Unlock()

	a.logger.Debug().Str("attachment_id", id).Str("kind", string(kind)).Int64("size", file.Size()).Msg("attachment uploaded")
	return url, nil
}

// MarkSent records the message that now carries the attachment.
func (a *Attachments) MarkSent(id string, msg Message) {
	a.mu.Lock()
	defer a.mu.Unlock()
	entry, ok := a.items[id]
	if !ok {
		return
	}
	entry.State = AttachmentSent
	entry.MessageID = msg.ID
	entry.UpdatedAt = a.now()
	entry.data = nil
}

// MarkFailed ends the attachment after the store refused its message.
func (a *Attachments) MarkFailed(id string, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	entry, ok := a.items[id]
	if !ok {
		return
	}
	entry.State = AttachmentFailed
	entry.Err = err
	entry.UpdatedAt = a.now()
	entry.data = nil
}

// Get returns a snapshot of one attachment.
func (a *Attachments) Get(id string) (Attachment, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	entry, ok := a.items[id]
	if !ok {
		return Attachment{}, false
	}
	return entry.Attachment, true
}

// List returns snapshots in selection order.
func (a *Attachments) List() []Attachment {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Attachment, 0, len(a.order))
	for _, id := range a.order {
		out = append(out, a.items[id].Attachment)
	}
	return out
}

func (a *Attachments) fail(id string, err error) {
	a.MarkFailed(id, err)
	a.logger.Warn().Err(err).Str("attachment_id", id).Msg("attachment upload failed")
	a.notifier.Notify(Notice{Code: NoticeUploadFailed, Message: "attachment could not be uploaded", Err: err})
}

// KindForMime maps a MIME type onto a transport kind.
func KindForMime(mime string) Kind {
	lower := strings.ToLower(strings.TrimSpace(mime))
	switch {
	case strings.HasPrefix(lower, "image/"):
		return KindImage
	case strings.HasPrefix(lower, "audio/"):
		return KindAudio
	default:
		return KindDocument
	}
}
