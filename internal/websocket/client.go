package websocket

import (
	"log"
	"net/http"
	"time"

	"dreamjournal/internal/auth"
	"dreamjournal/internal/config"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Client is a middleman between a websocket connection and the hub.
// 通知连接是单向的：服务端推送，客户端只回应 ping/pong。
type Client struct {
	hub  *Hub
	conn *websocket.Conn

	// Buffered channel of outbound notifications.
	send chan []byte

	// Authenticated User ID for this client.
	UserID uint
}

// readPump 只负责消费控制帧并在连接断开时注销客户端。
// 客户端发来的任何数据帧都被丢弃。
func (c *Client) readPump(wsCfg config.WebSocketConfig) {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(int64(wsCfg.MaxMessageSizeBytes))
	c.conn.SetReadDeadline(time.Now().Add(time.Duration(wsCfg.PongWaitSeconds) * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(time.Duration(wsCfg.PongWaitSeconds) * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket 错误 (客户端: %d): %v", c.UserID, err)
			}
			break
		}
	}
}

// writePump pumps notifications from the hub to the websocket connection.
func (c *Client) writePump(wsCfg config.WebSocketConfig) {
	pingPeriod := time.Duration(wsCfg.PingPeriodSeconds) * time.Second
	writeWait := time.Duration(wsCfg.WriteWaitSeconds) * time.Second

	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub 已关闭此客户端的发送通道
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				log.Printf("WebSocket 写入失败 (客户端: %d): %v", c.UserID, err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWS 处理 GET /ws?token= 的升级请求。
// 令牌通过查询参数传递，因为浏览器的 WebSocket API 无法设置请求头。
func ServeWS(hub *Hub, cfg config.Config, blacklist auth.TokenBlacklist) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokenString := r.URL.Query().Get("token")
		if tokenString == "" {
			http.Error(w, "缺少令牌", http.StatusUnauthorized)
			return
		}

		claims, err := auth.ValidateToken(r.Context(), tokenString, cfg.Auth.JWTSecretKey, blacklist)
		if err != nil || claims.TokenType != auth.TokenTypeUser {
			http.Error(w, "令牌无效", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("WebSocket 升级失败 (用户 %d): %v", claims.SubjectID, err)
			return
		}

		client := &Client{
			hub:    hub,
			conn:   conn,
			send:   make(chan []byte, 16),
			UserID: claims.SubjectID,
		}
		hub.register <- client

		go client.writePump(cfg.WebSocket)
		go client.readPump(cfg.WebSocket)
	}
}
