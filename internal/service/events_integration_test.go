//go:build integration

package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/rabbitmq"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/vispark/vispark-api/internal/config"
)

func setupTestRabbitMQ(t *testing.T) config.RabbitMQConfig {
	t.Helper()

	ctx := context.Background()

	container, err := rabbitmq.Run(ctx,
		"rabbitmq:3.13-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Server startup complete").
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	})

	url, err := container.AmqpURL(ctx)
	require.NoError(t, err)

	return config.RabbitMQConfig{
		URL:        url,
		Exchange:   "test.exchange",
		RoutingKey: "test.key",
	}
}

func TestMessagePublisher_Publish(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	cfg := setupTestRabbitMQ(t)

	mp, err := NewMessagePublisher(cfg, nil)
	require.NoError(t, err)
	defer mp.Close()

	conn, err := amqp.Dial(cfg.URL)
	require.NoError(t, err)
	defer conn.Close()

	ch, err := conn.Channel()
	require.NoError(t, err)
	defer ch.Close()

	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	require.NoError(t, err)
	require.NoError(t, ch.QueueBind(q.Name, EventNotificationCreated, cfg.Exchange, false, nil))

	deliveries, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	require.NoError(t, err)

	event := NewEvent(EventNotificationCreated, "UCtest", "dQw4w9WgXcQ", "New upload", 3)
	require.NoError(t, mp.Publish(context.Background(), event))

	select {
	case d := <-deliveries:
		var got Event
		require.NoError(t, json.Unmarshal(d.Body, &got))
		assert.Equal(t, event.ID, got.ID)
		assert.Equal(t, "dQw4w9WgXcQ", got.VideoID)
		assert.Equal(t, 3, got.Recipients)
		assert.Equal(t, EventNotificationCreated, d.Type)
	case <-time.After(10 * time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestMessagePublisher_IsHealthy(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	cfg := setupTestRabbitMQ(t)

	mp, err := NewMessagePublisher(cfg, nil)
	require.NoError(t, err)

	assert.True(t, mp.IsHealthy())

	require.NoError(t, mp.Close())
	assert.False(t, mp.IsHealthy())

	err = mp.Publish(context.Background(), NewEvent(EventSummaryGenerated, "", "dQw4w9WgXcQ", "", 1))
	assert.Error(t, err)
}

func TestMessagePublisher_PublishMany(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	cfg := setupTestRabbitMQ(t)

	mp, err := NewMessagePublisher(cfg, nil)
	require.NoError(t, err)
	defer mp.Close()

	conn, err := amqp.Dial(cfg.URL)
	require.NoError(t, err)
	defer conn.Close()

	ch, err := conn.Channel()
	require.NoError(t, err)
	defer ch.Close()

	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	require.NoError(t, err)
	require.NoError(t, ch.QueueBind(q.Name, EventSummaryGenerated, cfg.Exchange, false, nil))

	deliveries, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	require.NoError(t, err)

	const count = 8
	want := make(map[string]bool, count)
	for i := 0; i < count; i++ {
		event := NewEvent(EventSummaryGenerated, "UCtest", "dQw4w9WgXcQ", "", i)
		require.NoError(t, mp.Publish(context.Background(), event), "publish %d", i)
		want[event.ID.String()] = true
	}

	for len(want) > 0 {
		select {
		case d := <-deliveries:
			delete(want, d.MessageId)
		case <-time.After(10 * time.Second):
			t.Fatalf("%d events were not delivered", len(want))
		}
	}
}

func TestMessagePublisher_ReconnectsAfterChannelClose(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	cfg := setupTestRabbitMQ(t)

	mp, err := NewMessagePublisher(cfg, nil)
	require.NoError(t, err)
	defer mp.Close()

	mp.mu.Lock()
	mp.minReconnect = 50 * time.Millisecond
	ch := mp.channel
	mp.mu.Unlock()

	// A passive declare of a missing exchange makes the broker close the channel.
	err = ch.ExchangeDeclarePassive("does.not.exist", "topic", true, false, false, false, nil)
	require.Error(t, err)

	require.Eventually(t, func() bool {
		mp.mu.RLock()
		defer mp.mu.RUnlock()
		return mp.channel != nil && mp.channel != ch
	}, 10*time.Second, 50*time.Millisecond)

	assert.True(t, mp.IsHealthy())
	require.NoError(t, mp.Publish(context.Background(), NewEvent(EventSummaryGenerated, "", "dQw4w9WgXcQ", "", 1)))
}
