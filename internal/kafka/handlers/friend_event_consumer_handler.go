package kafkahandlers

import (
	"context"
	"encoding/json"
	"log"

	"dreamjournal/internal/email"
	"dreamjournal/internal/services"
	"dreamjournal/internal/websocket"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// FriendEventConsumerLogic 消费好友协议产生的通知事件，
// 负责两条尽力而为的投递通道：通知邮件和在线 WebSocket 推送。
// 任何一条通道的失败都只记录日志并提交 offset，绝不重试。
type FriendEventConsumerLogic struct {
	sender      email.Sender // 可以为 nil（邮件通道关闭）
	hub         *websocket.Hub
	frontendURL string
}

// NewFriendEventConsumerLogic creates a new FriendEventConsumerLogic instance.
func NewFriendEventConsumerLogic(sender email.Sender, hub *websocket.Hub, frontendURL string) *FriendEventConsumerLogic {
	return &FriendEventConsumerLogic{
		sender:      sender,
		hub:         hub,
		frontendURL: frontendURL,
	}
}

// HandleFriendEvent is the MessageHandler passed to the Kafka consumer.
func (h *FriendEventConsumerLogic) HandleFriendEvent(ctx context.Context, msg *kafka.Message) error {
	var event services.FriendEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		log.Printf("Error unmarshalling friend event (Value: '%s'): %v. This message will be skipped.", string(msg.Value), err)
		return nil // 坏消息直接跳过，提交 offset
	}

	h.deliverEmail(event)
	h.deliverPush(event)
	return nil
}

func (h *FriendEventConsumerLogic) deliverEmail(event services.FriendEvent) {
	if h.sender == nil || event.ToEmail == "" {
		return
	}

	var subject, body string
	var err error
	switch event.Type {
	case services.FriendEventRequested:
		subject = "New Dream Journal friend request"
		body, err = email.FriendRequestBody(event.FromName, h.frontendURL)
	case services.FriendEventAccepted:
		subject = "Your Dream Journal friend request was accepted"
		body, err = email.RequestAcceptedBody(event.FromName, h.frontendURL)
	default:
		log.Printf("未知的好友事件类型 %q，跳过邮件投递", event.Type)
		return
	}
	if err != nil {
		log.Printf("警告: 渲染好友通知邮件失败 (%d -> %d): %v", event.FromUserID, event.ToUserID, err)
		return
	}

	if err := h.sender.Send(event.ToEmail, subject, body); err != nil {
		log.Printf("警告: 发送好友通知邮件失败 (%d -> %d): %v", event.FromUserID, event.ToUserID, err)
	}
}

func (h *FriendEventConsumerLogic) deliverPush(event services.FriendEvent) {
	if h.hub == nil {
		return
	}

	payload, err := json.Marshal(map[string]interface{}{
		"type":       event.Type,
		"fromUserId": event.FromUserID,
		"fromName":   event.FromName,
		"timestamp":  event.Timestamp,
	})
	if err != nil {
		log.Printf("警告: 序列化推送通知失败 (%d -> %d): %v", event.FromUserID, event.ToUserID, err)
		return
	}
	h.hub.Push(event.ToUserID, payload)
}
