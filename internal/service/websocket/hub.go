package websocket

import (
	"context"
	"sync"

	"github.com/gorilla/websocket"

	"privacyblur/internal/logger"
)

// broadcastBacklog bounds rendered frames waiting for viewers.
const broadcastBacklog = 16

type message struct {
	camera  string
	payload []byte
}

// HubService fans rendered frames out to connected viewers.
type HubService struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan message
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	done       chan struct{}
	mutex      sync.RWMutex
	logger     *logger.Logger
	dropped    int64
}

func NewHubService(logger *logger.Logger) *HubService {
	return &HubService{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan message, broadcastBacklog),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run serves register, unregister and broadcast requests until ctx ends,
// then closes every viewer connection.
func (h *HubService) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mutex.Lock()
			for client := range h.clients {
				client.Close()
				delete(h.clients, client)
			}
			h.mutex.Unlock()
			return

		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("Viewer connected. Total: %d", total)

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}
			total := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("Viewer disconnected. Total: %d", total)

		case msg := <-h.broadcast:
			h.mutex.Lock()
			for client := range h.clients {
				if err := client.WriteMessage(websocket.TextMessage, msg.payload); err != nil {
					h.logger.Error("Error sending frame from %s: %v", msg.camera, err)
					delete(h.clients, client)
					client.Close()
				}
			}
			h.mutex.Unlock()
		}
	}
}

func (h *HubService) Register(client *websocket.Conn) {
	select {
	case h.register <- client:
	case <-h.done:
		client.Close()
	}
}

func (h *HubService) Unregister(client *websocket.Conn) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Publish queues a rendered frame for every viewer. It never blocks the
// stream: when viewers are behind, the frame is dropped.
func (h *HubService) Publish(camera string, payload []byte) {
	select {
	case h.broadcast <- message{camera: camera, payload: payload}:
	default:
		h.mutex.Lock()
		h.dropped++
		h.mutex.Unlock()
	}
}

// Dropped reports frames discarded because viewers were behind.
func (h *HubService) Dropped() int64 {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.dropped
}

func (h *HubService) GetClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}
