package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/noah-isme/trailmate-chat/internal/chat"
)

// Watch streams created and updated messages of chatID into fn until ctx is
// done or the store closes the stream. fn runs on the reading goroutine.
func (c *Client) Watch(ctx context.Context, chatID string, fn func(chat.StreamEvent)) error {
	if ctx == nil {
		ctx = context.Background()
	}
	token, err := c.token(ctx)
	if err != nil {
		return err
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, resp, err := c.dialer.DialContext(ctx, c.streamURL(chatID), header)
	if err != nil {
		if resp != nil && resp.StatusCode != http.StatusSwitchingProtocols {
			return statusError(resp.StatusCode, "stream refused")
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %v", chat.ErrNetwork, err)
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			_ = conn.Close()
		case <-done:
		}
	}()

	c.logger.Debug().Str("chat_id", chatID).Msg("chat stream opened")

	for {
		var event chat.StreamEvent
		if err := conn.ReadJSON(&event); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
				c.logger.Warn().Err(err).Msg("skipping unreadable stream frame")
				continue
			}
			return fmt.Errorf("%w: %v", chat.ErrNetwork, err)
		}
		if event.Type == "" || event.Message.ID == "" {
			continue
		}
		fn(event)
	}
}

func (c *Client) streamURL(chatID string) string {
	base := c.baseURL
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + "/chats/" + url.PathEscape(chatID) + "/ws"
}
