package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/noah-isme/trailmate-chat/internal/auth"
)

type storeStub struct {
	mu       sync.Mutex
	session  Session
	messages []Message
	getErr   error
	listErr  error
	createFn func(ctx context.Context, chatID string, draft Draft) (Message, error)
	updateFn func(ctx context.Context, messageID, text string) (Message, error)
	creates  []Draft
	updates  []string
	tokens   []string
	nextID   int
}

func newStoreStub(session Session, messages ...Message) *storeStub {
	return &storeStub{session: session, messages: messages}
}

func (s *storeStub) GetSession(ctx context.Context, activityID string) (Session, error) {
	s.recordToken(ctx)
	if s.getErr != nil {
		return Session{}, s.getErr
	}
	if activityID != s.session.ActivityID {
		return Session{}, ErrSessionNotFound
	}
	return s.session, nil
}

func (s *storeStub) ListMessages(ctx context.Context, chatID string) ([]Message, error) {
	s.recordToken(ctx)
	if s.listErr != nil {
		return nil, s.listErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.messages...), nil
}

func (s *storeStub) CreateMessage(ctx context.Context, chatID string, draft Draft) (Message, error) {
	s.recordToken(ctx)
	s.mu.Lock()
	s.creates = append(s.creates, draft)
	fn := s.createFn
	s.nextID++
	id := fmt.Sprintf("m-%d", s.nextID)
	s.mu.Unlock()

	if fn != nil {
		return fn(ctx, chatID, draft)
	}

	msg := Message{
		ID:            id,
		ChatID:        chatID,
		SenderID:      "u-1",
		SenderName:    "Ana",
		CreatedAt:     time.Now(),
		Kind:          draft.Kind,
		Body:          draft.Text,
		AttachmentURL: draft.AttachmentURL,
	}
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()
	return msg, nil
}

func (s *storeStub) UpdateMessage(ctx context.Context, messageID, text string) (Message, error) {
	s.recordToken(ctx)
	s.mu.Lock()
	s.updates = append(s.updates, text)
	fn := s.updateFn
	s.mu.Unlock()

	if fn != nil {
		return fn(ctx, messageID, text)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.messages {
		if s.messages[i].ID == messageID {
			s.messages[i].Body = text
			return s.messages[i], nil
		}
	}
	return Message{}, errors.New("message not found")
}

func (s *storeStub) createCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.creates)
}

func (s *storeStub) recordToken(ctx context.Context) {
	token, _ := auth.TokenFromContext(ctx)
	s.mu.Lock()
	s.tokens = append(s.tokens, token)
	s.mu.Unlock()
}

type storageStub struct {
	mu      sync.Mutex
	url     string
	err     error
	uploads []File
	entered chan struct{}
	release chan struct{}
}

func (s *storageStub) Upload(_ context.Context, file File, kind Kind) (string, error) {
	s.mu.Lock()
	s.uploads = append(s.uploads, file)
	entered, release := s.entered, s.release
	s.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if release != nil {
		<-release
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	if s.url != "" {
		return s.url, nil
	}
	return "https://files.example.com/" + string(kind) + "/" + file.Name, nil
}

func (s *storageStub) uploadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.uploads)
}

type captureStub struct {
	ch     chan AudioChunk
	mime   string
	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

func newCaptureStub() *captureStub {
	return &captureStub{ch: make(chan AudioChunk), mime: "audio/webm", done: make(chan struct{})}
}

func (c *captureStub) Chunks() <-chan AudioChunk { return c.ch }
func (c *captureStub) MimeType() string          { return c.mime }

func (c *captureStub) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.done)
	}
	return nil
}

func (c *captureStub) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// push delivers a chunk unless the capture was released first.
func (c *captureStub) push(chunk AudioChunk) bool {
	select {
	case c.ch <- chunk:
		return true
	case <-c.done:
		return false
	}
}

type micStub struct {
	capture *captureStub
	err     error
	opens   int
}

func (m *micStub) Open(context.Context) (Capture, error) {
	m.opens++
	if m.err != nil {
		return nil, m.err
	}
	return m.capture, nil
}

type sinkStub struct {
	mu    sync.Mutex
	files []File
	kinds []Kind
	err   error
}

func (s *sinkStub) SendAttachment(_ context.Context, file File, kind Kind) (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files = append(s.files, file)
	s.kinds = append(s.kinds, kind)
	if s.err != nil {
		return Message{}, s.err
	}
	return Message{ID: "voice", Kind: kind}, nil
}

func (s *sinkStub) sent() []File {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]File(nil), s.files...)
}

type directoryStub struct {
	mu       sync.Mutex
	friends  []Candidate
	users    []Candidate
	searches []string
	err      error
}

func (d *directoryStub) Search(_ context.Context, query string) ([]Candidate, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.searches = append(d.searches, query)
	if d.err != nil {
		return nil, d.err
	}
	var out []Candidate
	for _, user := range d.users {
		if strings.Contains(strings.ToLower(user.Name), strings.ToLower(query)) {
			out = append(out, user)
		}
	}
	return out, nil
}

func (d *directoryStub) Friends(context.Context) ([]Candidate, error) {
	if d.err != nil {
		return nil, d.err
	}
	return append([]Candidate(nil), d.friends...), nil
}

func (d *directoryStub) searchCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.searches)
}

type inviterStub struct {
	mu      sync.Mutex
	calls   [][]string
	err     error
	release chan struct{}
	entered chan struct{}
}

func (i *inviterStub) Invite(_ context.Context, activityID string, userIDs []string) error {
	i.mu.Lock()
	i.calls = append(i.calls, append([]string{activityID}, userIDs...))
	release, entered := i.release, i.entered
	i.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if release != nil {
		<-release
	}
	return i.err
}

func (i *inviterStub) callCount() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.calls)
}

type joinerStub struct {
	session Session
	err     error
	joins   []string
}

func (j *joinerStub) JoinSession(_ context.Context, activityID string) (Session, error) {
	j.joins = append(j.joins, activityID)
	if j.err != nil {
		return Session{}, j.err
	}
	return j.session, nil
}

type markersStub struct {
	mu     sync.Mutex
	joined map[string]bool
	err    error
}

func (m *markersStub) HasJoined(_ context.Context, activityID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	return m.joined[activityID], nil
}

func (m *markersStub) MarkJoined(_ context.Context, activityID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.joined == nil {
		m.joined = make(map[string]bool)
	}
	m.joined[activityID] = true
	return nil
}

type participantsStub []string

func (p participantsStub) Participants() []string { return p }
