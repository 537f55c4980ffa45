package pubsub

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestStatusMessage_JSON(t *testing.T) {
	remaining := 7
	msg := &StatusMessage{
		Type:             TypeGenerationStatus,
		UserID:           "user-1",
		GenerationID:     "gen-1",
		Status:           "completed",
		Images:           []string{"https://img/1.png"},
		CreditsUsed:      3,
		RemainingCredits: &remaining,
	}

	data, err := json.Marshal(msg)
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "gen-1", raw["generationId"])
	assert.Equal(t, float64(7), raw["remainingCredits"])
	_, hasError := raw["error"]
	assert.False(t, hasError, "empty error should be omitted")
}

func TestPublisherSubscriber(t *testing.T) {
	client := setupRedis(t)

	publisher := NewPublisher(client, "test_status")
	subscriber := NewSubscriber(client, "test_status")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ready := make(chan struct{})
	received := make(chan *StatusMessage, 1)
	go func() {
		_ = subscriber.Subscribe(ctx, ready, func(msg *StatusMessage) {
			received <- msg
		})
	}()

	select {
	case <-ready:
	case <-ctx.Done():
		t.Fatal("timeout waiting for subscription")
	}

	err := publisher.PublishStatus(ctx, &StatusMessage{
		UserID:       "user-1",
		GenerationID: "gen-1",
		Status:       "failed",
		ErrorCode:    "rate_limited",
		Error:        "slow down",
	})
	require.NoError(t, err)

	select {
	case msg := <-received:
		assert.Equal(t, TypeGenerationStatus, msg.Type)
		assert.Equal(t, "user-1", msg.UserID)
		assert.Equal(t, "gen-1", msg.GenerationID)
		assert.Equal(t, "failed", msg.Status)
		assert.Equal(t, "rate_limited", msg.ErrorCode)
	case <-ctx.Done():
		t.Fatal("timeout waiting for message")
	}
}

func TestSubscriber_StopsOnCancel(t *testing.T) {
	client := setupRedis(t)
	subscriber := NewSubscriber(client, "")

	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- subscriber.Subscribe(ctx, ready, func(*StatusMessage) {})
	}()

	<-ready
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber did not stop")
	}
}
