package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
)

const DefaultChannel = "generation_status"

const TypeGenerationStatus = "generation_status"

// StatusMessage 生成记录状态变化
type StatusMessage struct {
	Type             string   `json:"type"`
	UserID           string   `json:"userId"`
	GenerationID     string   `json:"generationId"`
	Status           string   `json:"status"`
	Images           []string `json:"images,omitempty"`
	CreditsUsed      int      `json:"creditsUsed"`
	RemainingCredits *int     `json:"remainingCredits,omitempty"`
	ErrorCode        string   `json:"errorCode,omitempty"`
	Error            string   `json:"error,omitempty"`
}

// Publisher Redis 发布者
type Publisher struct {
	client  *redis.Client
	channel string
}

func NewPublisher(client *redis.Client, channel string) *Publisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Publisher{client: client, channel: channel}
}

// PublishStatus 发布状态消息
func (p *Publisher) PublishStatus(ctx context.Context, msg *StatusMessage) error {
	msg.Type = TypeGenerationStatus

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal status message: %w", err)
	}

	return p.client.Publish(ctx, p.channel, data).Err()
}

// Subscriber Redis 订阅者
type Subscriber struct {
	client  *redis.Client
	channel string
}

func NewSubscriber(client *redis.Client, channel string) *Subscriber {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Subscriber{client: client, channel: channel}
}

// Subscribe 阻塞直到 ctx 结束，ready 在订阅确认后关闭（可为 nil）
func (s *Subscriber) Subscribe(ctx context.Context, ready chan<- struct{}, handler func(*StatusMessage)) error {
	sub := s.client.Subscribe(ctx, s.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", s.channel, err)
	}
	if ready != nil {
		close(ready)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			var statusMsg StatusMessage
			if err := json.Unmarshal([]byte(msg.Payload), &statusMsg); err != nil {
				continue // 忽略解析错误
			}

			handler(&statusMsg)
		}
	}
}
