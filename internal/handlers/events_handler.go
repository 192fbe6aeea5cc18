package handlers

import (
	"net/http"

	"craftcrm/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// EventsHandler 工作区事件 WebSocket 接口
type EventsHandler struct {
	hub      *services.EventsHub
	upgrader websocket.Upgrader
}

func NewEventsHandler(hub *services.EventsHub) *EventsHandler {
	return &EventsHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Subscribe 升级连接并订阅工作区事件流
func (h *EventsHandler) Subscribe(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "WebSocket upgrade failed", Message: err.Error()})
		return
	}
	h.hub.Subscribe(c.Param("id"), conn)
}
