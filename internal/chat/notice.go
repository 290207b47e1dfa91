package chat

import (
	"sync"

	"github.com/rs/zerolog"
)

// NoticeCode identifies a user-visible, non-fatal notice.
type NoticeCode string

const (
	NoticeMaxLengthReached NoticeCode = "recording.max_length"
	NoticeRecordingShort   NoticeCode = "recording.too_short"
	NoticePermissionDenied NoticeCode = "recording.permission_denied"
	NoticeUploadFailed     NoticeCode = "attachment.upload_failed"
	NoticeSendFailed       NoticeCode = "message.send_failed"
	NoticeInviteFailed     NoticeCode = "invite.failed"
	NoticeInviteSent       NoticeCode = "invite.sent"
)

// Notice is surfaced to the user as a toast or inline error.
type Notice struct {
	Code    NoticeCode
	Message string
	Err     error
}

// Notifier receives notices. Implementations must not block.
type Notifier interface {
	Notify(Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notice)

func (f NotifierFunc) Notify(n Notice) { f(n) }

// LogNotifier writes notices to a logger.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier constructs a notifier that only logs.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "chat_notices").Logger()}
}

func (n *LogNotifier) Notify(notice Notice) {
	event := n.logger.Info()
	if notice.Err != nil {
		event = n.logger.Warn().Err(notice.Err)
	}
	event.Str("code", string(notice.Code)).Msg(notice.Message)
}

// NoticeRecorder keeps every notice in memory.
type NoticeRecorder struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *NoticeRecorder) Notify(n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

// Notices returns a copy of the recorded notices.
func (r *NoticeRecorder) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notice, len(r.notices))
	copy(out, r.notices)
	return out
}

// Has reports whether a notice with code was recorded.
func (r *NoticeRecorder) Has(code NoticeCode) bool {
	for _, n := range r.Notices() {
		if n.Code == code {
			return true
		}
	}
	return false
}

type nopNotifier struct{}

func (nopNotifier) Notify(Notice) {}

func notifierOrNop(n Notifier) Notifier {
	if n == nil {
		return nopNotifier{}
	}
	return n
}
