package cli

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/noah-isme/trailmate-chat/internal/chat"
)

const fileChunkSize = 16 << 10

// fileMicrophone replays an audio file as if it were captured live. Chunk
// durations are spread evenly over the declared clip length.
type fileMicrophone struct {
	path     string
	duration time.Duration
}

func (m fileMicrophone) Open(ctx context.Context) (chat.Capture, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", chat.ErrPermissionDenied, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", chat.ErrPermissionDenied, m.path)
	}

	capture := &fileCapture{
		mime:   mimetype.Detect(data).String(),
		chunks: make(chan chat.AudioChunk),
		done:   make(chan struct{}),
	}
	go capture.feed(ctx, data, m.duration)
	return capture, nil
}

type fileCapture struct {
	mime   string
	chunks chan chat.AudioChunk
	done   chan struct{}
	once   sync.Once
}

func (c *fileCapture) Chunks() <-chan chat.AudioChunk { return c.chunks }

func (c *fileCapture) MimeType() string { return c.mime }

func (c *fileCapture) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

func (c *fileCapture) feed(ctx context.Context, data []byte, total time.Duration) {
	defer close(c.chunks)

	count := (len(data) + fileChunkSize - 1) / fileChunkSize
	for i := 0; i < count; i++ {
		end := (i + 1) * fileChunkSize
		if end > len(data) {
			end = len(data)
		}
		chunk := chat.AudioChunk{Data: data[i*fileChunkSize : end]}
		if total > 0 {
			chunk.Duration = total * time.Duration(end-i*fileChunkSize) / time.Duration(len(data))
		}
		select {
		case c.chunks <- chunk:
		case <-c.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

// sentAudio forwards finalized recordings to the session and remembers the
// resulting message.
type sentAudio struct {
	controller *chat.SessionController
	result     chan sentResult
}

type sentResult struct {
	msg chat.Message
	err error
}

func (s sentAudio) SendAttachment(ctx context.Context, file chat.File, kind chat.Kind) (chat.Message, error) {
	msg, err := s.controller.SendAttachment(ctx, file, kind)
	s.result <- sentResult{msg: msg, err: err}
	return msg, err
}
