package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"agenticflow/backend/internal/domain"
)

// Topic 订阅主题。
type Topic string

const (
	// TopicRuns 流水线运行完成事件
	TopicRuns Topic = "runs"
	// TopicPosts 社交发布事件
	TopicPosts Topic = "posts"
	// TopicMessages 新邮件入库事件
	TopicMessages Topic = "messages"
)

// validTopics 可订阅主题集合。
var validTopics = map[Topic]bool{
	TopicRuns:     true,
	TopicPosts:    true,
	TopicMessages: true,
}

// JWTClaims JWT声明
type JWTClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// upgraderFactory 创建带有 Origin 验证的 WebSocket 升级器
func upgraderFactory(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			for _, origin := range allowedOrigins {
				if origin == "*" {
					return true
				}
			}

			requestOrigin := r.Header.Get("Origin")
			if requestOrigin == "" {
				// 没有 Origin 时视为同源请求
				return true
			}

			for _, origin := range allowedOrigins {
				if requestOrigin == origin {
					return true
				}
			}
			return false
		},
	}
}

// MessageType 定义WebSocket消息类型
type MessageType string

const (
	MessageTypeRunCompleted  MessageType = "run_completed"
	MessageTypePostPublished MessageType = "post_published"
	MessageTypeNewMessage    MessageType = "new_message"
	MessageTypePing          MessageType = "ping"
	MessageTypePong          MessageType = "pong"
	MessageTypeSubscribe     MessageType = "subscribe"
	MessageTypeUnsubscribe   MessageType = "unsubscribe"
	MessageTypeSubscribed    MessageType = "subscribed"
	MessageTypeError         MessageType = "error"
)

// Message 定义WebSocket消息结构
type Message struct {
	Type      MessageType     `json:"type"`
	Topic     Topic           `json:"topic,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Client 代表一个WebSocket客户端连接
type Client struct {
	ID       string
	Username string
	conn     *websocket.Conn
	send     chan []byte
	hub      *Hub
	topics   map[Topic]bool
	mu       sync.RWMutex
	log      *zap.Logger
}

// Hub 管理所有WebSocket连接并向订阅者广播流水线事件
type Hub struct {
	clients        map[string]*Client
	topics         map[Topic]map[string]*Client
	register       chan *Client
	unregister     chan *Client
	broadcast      chan *BroadcastMessage
	mu             sync.RWMutex
	log            *zap.Logger
	allowedOrigins []string
	jwtSecret      string
}

// BroadcastMessage 广播消息
type BroadcastMessage struct {
	Topic   Topic
	Message *Message
}

// NewHub 创建WebSocket Hub
//
// 参数:
//   - allowedOrigins: 允许的 Origin 列表，用于 WebSocket 连接验证
//   - jwtSecret: JWT密钥，用于验证客户端token
func NewHub(allowedOrigins []string, jwtSecret string, log *zap.Logger) *Hub {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	return &Hub{
		clients:        make(map[string]*Client),
		topics:         make(map[Topic]map[string]*Client),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		broadcast:      make(chan *BroadcastMessage, 256),
		log:            log,
		allowedOrigins: allowedOrigins,
		jwtSecret:      jwtSecret,
	}
}

// Run 启动Hub
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.log.Info("websocket hub stopped")
			h.closeAllClients()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.mu.Unlock()
			h.log.Info("client registered", zap.String("id", client.ID))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				for topic := range client.topics {
					if clients, exists := h.topics[topic]; exists {
						delete(clients, client.ID)
						if len(clients) == 0 {
							delete(h.topics, topic)
						}
					}
				}
				delete(h.clients, client.ID)
				close(client.send)
				h.log.Info("client unregistered", zap.String("id", client.ID))
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.broadcastToTopic(msg.Topic, msg.Message)

		case <-ticker.C:
			h.pingAllClients()
		}
	}
}

// RunEventData 运行完成通知数据
type RunEventData struct {
	RunID        string   `json:"runId"`
	MessageID    string   `json:"messageId"`
	Subject      string   `json:"subject"`
	Status       string   `json:"status"`
	IsNewsletter bool     `json:"isNewsletter"`
	ActionsTaken []string `json:"actionsTaken"`
	FinishedAt   string   `json:"finishedAt"`
}

// NotifyRunCompleted 通知流水线运行完成
func (h *Hub) NotifyRunCompleted(run *domain.PipelineRun) {
	data, err := json.Marshal(RunEventData{
		RunID:        run.ID,
		MessageID:    run.MessageID,
		Subject:      run.Subject,
		Status:       string(run.Status),
		IsNewsletter: run.IsNewsletter,
		ActionsTaken: run.ActionsTaken,
		FinishedAt:   run.FinishedAt.Format(time.RFC3339),
	})
	if err != nil {
		h.log.Error("failed to marshal run event", zap.Error(err))
		return
	}

	h.broadcast <- &BroadcastMessage{
		Topic: TopicRuns,
		Message: &Message{
			Type:      MessageTypeRunCompleted,
			Topic:     TopicRuns,
			Data:      data,
			Timestamp: time.Now(),
		},
	}
}

// PostEventData 发布事件通知数据
type PostEventData struct {
	ResultID string `json:"resultId"`
	Platform string `json:"platform"`
	Status   string `json:"status"`
	PostID   string `json:"postId,omitempty"`
	URL      string `json:"url,omitempty"`
	Error    string `json:"error,omitempty"`
}

// NotifyPostPublished 通知社交发布结果
func (h *Hub) NotifyPostPublished(result *domain.PublishResult) {
	data, err := json.Marshal(PostEventData{
		ResultID: result.ID,
		Platform: result.Platform,
		Status:   string(result.Status),
		PostID:   result.PostID,
		URL:      result.URL,
		Error:    result.Error,
	})
	if err != nil {
		h.log.Error("failed to marshal post event", zap.Error(err))
		return
	}

	h.broadcast <- &BroadcastMessage{
		Topic: TopicPosts,
		Message: &Message{
			Type:      MessageTypePostPublished,
			Topic:     TopicPosts,
			Data:      data,
			Timestamp: time.Now(),
		},
	}
}

// MessageEventData 新邮件通知数据
type MessageEventData struct {
	MessageID string `json:"messageId"`
	From      string `json:"from"`
	Subject   string `json:"subject"`
	Preview   string `json:"preview,omitempty"`
	Source    string `json:"source"`
}

// NotifyNewMessage 通知新邮件入库
func (h *Hub) NotifyNewMessage(message *domain.Message) {
	preview := message.Text
	if len(preview) > 100 {
		preview = preview[:100]
	}

	data, err := json.Marshal(MessageEventData{
		MessageID: message.ID,
		From:      message.From,
		Subject:   message.Subject,
		Preview:   preview,
		Source:    message.Source,
	})
	if err != nil {
		h.log.Error("failed to marshal message event", zap.Error(err))
		return
	}

	h.broadcast <- &BroadcastMessage{
		Topic: TopicMessages,
		Message: &Message{
			Type:      MessageTypeNewMessage,
			Topic:     TopicMessages,
			Data:      data,
			Timestamp: time.Now(),
		},
	}
}

// broadcastToTopic 向订阅特定主题的客户端广播消息
func (h *Hub) broadcastToTopic(topic Topic, msg *Message) {
	h.mu.RLock()
	clients := h.topics[topic]
	h.mu.RUnlock()

	if len(clients) == 0 {
		return
	}

	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("failed to marshal message", zap.Error(err))
		return
	}

	for _, client := range clients {
		select {
		case client.send <- data:
		default:
			// 客户端阻塞，跳过
			h.log.Warn("client channel blocked, skipping", zap.String("clientID", client.ID))
		}
	}
}

// pingAllClients 向所有客户端发送ping
func (h *Hub) pingAllClients() {
	data, err := json.Marshal(&Message{
		Type:      MessageTypePing,
		Timestamp: time.Now(),
	})
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients {
		select {
		case client.send <- data:
		default:
		}
	}
}

// closeAllClients 关闭所有客户端连接
func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.clients {
		close(client.send)
	}
	h.clients = make(map[string]*Client)
	h.topics = make(map[Topic]map[string]*Client)
}

// authenticateClient 认证客户端
func (h *Hub) authenticateClient(c *gin.Context) (*Client, error) {
	token := c.Query("token")
	if token == "" {
		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) == 2 && parts[0] == "Bearer" {
				token = parts[1]
			}
		}
	}

	if token == "" {
		return nil, errors.New("missing authentication token")
	}

	username, err := h.validateJWT(token)
	if err != nil {
		return nil, errors.New("invalid authentication token")
	}

	return &Client{
		ID:       uuid.NewString(),
		Username: username,
		topics:   make(map[Topic]bool),
		log:      h.log,
	}, nil
}

// validateJWT 验证JWT token
func (h *Hub) validateJWT(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(h.jwtSecret), nil
	})
	if err != nil {
		return "", err
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		return claims.Username, nil
	}
	return "", errors.New("invalid token claims")
}

// HandleWebSocket 处理WebSocket连接
func HandleWebSocket(hub *Hub) gin.HandlerFunc {
	upgrader := upgraderFactory(hub.allowedOrigins)

	return func(c *gin.Context) {
		client, err := hub.authenticateClient(c)
		if err != nil {
			hub.log.Warn("websocket authentication failed",
				zap.Error(err),
				zap.String("remote_addr", c.ClientIP()))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			hub.log.Error("failed to upgrade connection",
				zap.Error(err),
				zap.String("origin", c.Request.Header.Get("Origin")),
				zap.String("remote_addr", c.ClientIP()))
			return
		}

		client.conn = conn
		client.hub = hub
		client.send = make(chan []byte, 256)

		hub.register <- client

		go client.writePump()
		go client.readPump()
	}
}

// readPump 处理客户端消息
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		var msg Message
		err := c.conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Error("websocket error", zap.Error(err))
			}
			break
		}
		c.handleMessage(&msg)
	}
}

// writePump 发送消息给客户端
func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			c.conn.WriteMessage(websocket.TextMessage, message)

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage 处理接收到的消息
func (c *Client) handleMessage(msg *Message) {
	switch msg.Type {
	case MessageTypeSubscribe:
		c.subscribe(msg.Topic)
	case MessageTypeUnsubscribe:
		c.unsubscribe(msg.Topic)
	case MessageTypePong:
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	default:
		c.log.Warn("unknown message type", zap.String("type", string(msg.Type)))
	}
}

// subscribe 订阅主题
func (c *Client) subscribe(topic Topic) {
	if !validTopics[topic] {
		c.sendError(fmt.Sprintf("unknown topic: %s", topic))
		return
	}

	c.mu.Lock()
	c.topics[topic] = true
	c.mu.Unlock()

	c.hub.mu.Lock()
	if c.hub.topics[topic] == nil {
		c.hub.topics[topic] = make(map[string]*Client)
	}
	c.hub.topics[topic][c.ID] = c
	c.hub.mu.Unlock()

	c.log.Info("subscribed to topic",
		zap.String("clientID", c.ID),
		zap.String("topic", string(topic)),
		zap.String("username", c.Username))

	c.sendMessage(&Message{
		Type:      MessageTypeSubscribed,
		Topic:     topic,
		Timestamp: time.Now(),
	})
}

// unsubscribe 取消订阅主题
func (c *Client) unsubscribe(topic Topic) {
	c.mu.Lock()
	delete(c.topics, topic)
	c.mu.Unlock()

	c.hub.mu.Lock()
	if clients, exists := c.hub.topics[topic]; exists {
		delete(clients, c.ID)
		if len(clients) == 0 {
			delete(c.hub.topics, topic)
		}
	}
	c.hub.mu.Unlock()

	c.log.Info("unsubscribed from topic",
		zap.String("clientID", c.ID),
		zap.String("topic", string(topic)))
}

// sendError 发送错误消息给客户端
func (c *Client) sendError(errMsg string) {
	c.sendMessage(&Message{
		Type:      MessageTypeError,
		Error:     errMsg,
		Timestamp: time.Now(),
	})
}

// sendMessage 发送消息给客户端
func (c *Client) sendMessage(msg *Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.log.Error("failed to marshal message", zap.Error(err))
		return
	}

	select {
	case c.send <- data:
	default:
		c.log.Warn("client channel blocked", zap.String("clientID", c.ID))
	}
}
