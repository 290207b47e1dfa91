package service

import (
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/trailmate-chat/internal/dto"
)

const chatPingInterval = 30 * time.Second

// chatHub keeps track of websocket clients per chat and fans events out.
type chatHub struct {
	mu    sync.RWMutex
	rooms map[string]map[*chatClient]struct{}
	log   zerolog.Logger
}

type chatClient struct {
	conn    *websocket.Conn
	send    chan dto.ChatStreamEvent
	room    string
	userID  string
	service *chatService
	closed  chan struct{}
	once    sync.Once
}

func newChatHub(logger zerolog.Logger) *chatHub {
	return &chatHub{
		rooms: make(map[string]map[*chatClient]struct{}),
		log:   logger.With().Str("component", "chat_hub").Logger(),
	}
}

func newChatClient(conn *websocket.Conn, service *chatService, room, userID string) *chatClient {
	return &chatClient{
		conn:    conn,
		send:    make(chan dto.ChatStreamEvent, chatSendBufferSize),
		room:    room,
		userID:  userID,
		service: service,
		closed:  make(chan struct{}),
	}
}

func (h *chatHub) register(client *chatClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.rooms[client.room]; !exists {
		h.rooms[client.room] = make(map[*chatClient]struct{})
	}
	h.rooms[client.room][client] = struct{}{}
	h.log.Debug().Str("chat_id", client.room).Str("user_id", client.userID).Msg("chat client connected")
}

func (h *chatHub) unregister(client *chatClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.rooms[client.room]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.rooms, client.room)
		}
	}
	h.log.Debug().Str("chat_id", client.room).Str("user_id", client.userID).Msg("chat client disconnected")
}

func (h *chatHub) broadcast(room string, event dto.ChatStreamEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.rooms[room] {
		if !client.enqueue(event) {
			h.log.Warn().Str("chat_id", room).Str("user_id", client.userID).Msg("dropping chat event for slow client")
		}
	}
}

func (h *chatHub) size(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

func (c *chatClient) enqueue(event dto.ChatStreamEvent) bool {
	select {
	case c.send <- event:
		return true
	default:
		return false
	}
}

// reader drains inbound frames; the stream is server to client only.
func (c *chatClient) reader() {
	defer c.close()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			c.service.logger.Debug().Err(err).Msg("chat read loop ended")
			return
		}
	}
}

func (c *chatClient) writer() {
	defer c.close()

	ticker := time.NewTicker(chatPingInterval)
	defer ticker.Stop()

	for {
		select {
		case event := <-c.send:
			if err := c.conn.WriteJSON(event); err != nil {
				c.service.logger.Debug().Err(err).Msg("chat write loop terminated")
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteMessage(websocket.PingMessage, []byte("keepalive")); err != nil {
				c.service.logger.Debug().Err(err).Msg("chat ping failed")
				return
			}
		case <-c.closed:
			return
		}
	}
}

func (c *chatClient) close() {
	c.once.Do(func() {
		close(c.closed)
		c.service.hub.unregister(c)
		_ = c.conn.Close()
	})
}
