package services

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// WorkspaceEvent 推送给前端的工作区事件
type WorkspaceEvent struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// EventsHub fans workspace events out to connected WebSocket clients.
// Slow clients are dropped rather than allowed to block the broadcast.
type EventsHub struct {
	logger *logrus.Logger

	mu      sync.RWMutex
	clients map[string]map[*eventClient]struct{} // workspaceID -> clients
}

type eventClient struct {
	conn *websocket.Conn
	send chan WorkspaceEvent
}

func NewEventsHub(logger *logrus.Logger) *EventsHub {
	return &EventsHub{
		logger:  logger,
		clients: make(map[string]map[*eventClient]struct{}),
	}
}

// Subscribe 将一条 WebSocket 连接挂到工作区，连接关闭时自动清理。
// 调用方（handler）负责升级连接；本方法阻塞直到连接断开。
func (h *EventsHub) Subscribe(workspaceID string, conn *websocket.Conn) {
	client := &eventClient{
		conn: conn,
		send: make(chan WorkspaceEvent, 32),
	}

	h.mu.Lock()
	if h.clients[workspaceID] == nil {
		h.clients[workspaceID] = make(map[*eventClient]struct{})
	}
	h.clients[workspaceID][client] = struct{}{}
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients[workspaceID], client)
		if len(h.clients[workspaceID]) == 0 {
			delete(h.clients, workspaceID)
		}
		h.mu.Unlock()
		conn.Close()
	}()

	// writer
	done := make(chan struct{})
	go func() {
		defer close(done)
		for event := range client.send {
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		}
	}()

	// reader：只消费控制帧/丢弃入站消息，出错即断开
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	close(client.send)
	<-done
}

// Broadcast 向工作区所有在线连接投递事件。无人订阅时为空操作。
func (h *EventsHub) Broadcast(workspaceID string, event WorkspaceEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[workspaceID] {
		select {
		case client.send <- event:
		default:
			// 客户端积压，丢弃本条事件
			h.logger.WithField("workspace_id", workspaceID).
				Debug("Dropping workspace event for slow client")
		}
	}
}

// SubscriberCount 当前工作区在线连接数
func (h *EventsHub) SubscriberCount(workspaceID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[workspaceID])
}
