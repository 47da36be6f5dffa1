package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/olvesh/airsportslivetracking/internal/metrics"
)

const (
	// writeWait дедлайн записи одного сообщения
	writeWait = 10 * time.Second
	// pongWait дедлайн ожидания pong от клиента
	pongWait = 60 * time.Second
	// pingPeriod период ping, меньше pongWait
	pingPeriod = 30 * time.Second
	// sendBufferSize емкость канала отправки клиента
	sendBufferSize = 256
)

// WebSocketHandler обрабатывает WebSocket соединения живой трансляции
type WebSocketHandler struct {
	upgrader  websocket.Upgrader
	broadcast *BroadcastManager
	logger    *logrus.Entry
}

// Client представляет одно WebSocket соединение зрителя
type Client struct {
	conn    *websocket.Conn
	send    chan []byte
	taskID  int
	handler *WebSocketHandler
}

// NewWebSocketHandler создает WebSocket handler поверх менеджера рассылки
func NewWebSocketHandler(broadcast *BroadcastManager) *WebSocketHandler {
	return &WebSocketHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// Трансляция публичная, Origin не ограничиваем
				return true
			},
		},
		broadcast: broadcast,
		logger:    logrus.WithField("component", "websocket"),
	}
}

// HandleWebSocket обрабатывает подключение к /ws/v1/tracking/:task
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	taskID, err := strconv.Atoi(c.Param("task"))
	if err != nil || taskID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    "invalid_task",
			"message": "Task ID must be a positive integer",
		})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.WithError(err).Error("Failed to upgrade to WebSocket")
		return
	}

	client := &Client{
		conn:    conn,
		send:    make(chan []byte, sendBufferSize),
		taskID:  taskID,
		handler: h,
	}

	h.broadcast.Register(client)
	metrics.WebSocketConnections.Inc()

	h.logger.WithFields(logrus.Fields{
		"client_ip": c.ClientIP(),
		"task":      taskID,
	}).Info("WebSocket client connected")

	// Приветствие уходит до старта readPump, пока канал клиента
	// гарантированно не закрыт отпиской
	go client.writePump()
	client.sendWelcome()
	go client.readPump()
}

// sendWelcome отправляет приветственный кадр
func (c *Client) sendWelcome() {
	welcome := []*Frame{{
		Type:   FrameWelcome,
		TaskID: c.taskID,
		Data: map[string]interface{}{
			"server_time": time.Now().UTC().Format(time.RFC3339),
		},
	}}

	data, err := json.Marshal(welcome)
	if err != nil {
		c.handler.logger.WithError(err).Error("Failed to marshal welcome frame")
		return
	}

	select {
	case c.send <- data:
	case <-time.After(5 * time.Second):
		c.handler.logger.Warn("Welcome frame send timeout")
	}
}

// readPump читает входящие сообщения и следит за живостью соединения
func (c *Client) readPump() {
	defer func() {
		c.handler.broadcast.Unregister(c)
		c.conn.Close()
		metrics.WebSocketConnections.Dec()
	}()

	c.conn.SetReadLimit(1024)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.handler.logger.WithError(err).Debug("WebSocket read error")
			}
			break
		}

		c.handleMessage(message)
	}
}

// writePump пишет кадры рассылки и периодические ping
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.handler.logger.WithError(err).Debug("WebSocket write error")
				metrics.WebSocketErrors.Inc()
				return
			}

			metrics.WebSocketMessagesOut.WithLabelValues("update").Inc()

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				metrics.WebSocketErrors.Inc()
				return
			}

			metrics.WebSocketMessagesOut.WithLabelValues("ping").Inc()
		}
	}
}

// handleMessage обрабатывает входящее сообщение клиента
func (c *Client) handleMessage(message []byte) {
	var msg struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(message, &msg); err != nil {
		return
	}

	switch msg.Type {
	case "pong":
		c.handler.logger.Debug("Received pong frame from client")
	}
}
