package websocket

import (
	"log"
)

// pushMessage 是一条待投递给特定用户的序列化通知。
type pushMessage struct {
	userID  uint
	payload []byte
}

// Hub maintains the set of connected notification clients and routes
// pushes to them. 每个用户只保留一条连接；新连接会替换旧连接。
type Hub struct {
	clients map[uint]*Client

	register   chan *Client
	unregister chan *Client
	direct     chan pushMessage
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[uint]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		direct:     make(chan pushMessage, 256),
	}
}

// Push 将 payload 投递给在线的 userID。非阻塞：
// 用户不在线或 Hub 繁忙时静默丢弃（通知是尽力而为的）。
func (h *Hub) Push(userID uint, payload []byte) {
	select {
	case h.direct <- pushMessage{userID: userID, payload: payload}:
	default:
		log.Printf("警告: Hub direct channel is full. Dropping notification for user %d", userID)
	}
}

// Run starts the hub and listens for messages on its channels.
func (h *Hub) Run() {
	log.Println("Notification Hub Run loop started.")
	for {
		select {
		case client := <-h.register:
			if existing, ok := h.clients[client.UserID]; ok {
				log.Printf("警告: 用户 %d 已有连接，关闭旧连接并注册新连接。", client.UserID)
				close(existing.send)
			}
			h.clients[client.UserID] = client
			log.Printf("通知客户端已注册: UserID %d", client.UserID)

		case client := <-h.unregister:
			// 只有当被注销的连接仍然是当前存储的那条时才移除，
			// 避免误关同一用户新建立的连接。
			if stored, ok := h.clients[client.UserID]; ok && stored == client {
				delete(h.clients, client.UserID)
				close(client.send)
				log.Printf("通知客户端已注销: UserID %d", client.UserID)
			}

		case msg := <-h.direct:
			client, ok := h.clients[msg.userID]
			if !ok {
				continue // 用户不在线，丢弃
			}
			select {
			case client.send <- msg.payload:
			default:
				// 发送缓冲已满，认为客户端已失联
				log.Printf("警告: UserID %d 的发送通道已满，移除客户端。", msg.userID)
				close(client.send)
				delete(h.clients, msg.userID)
			}
		}
	}
}
