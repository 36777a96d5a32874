package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/vispark/vispark-api/internal/config"
	"github.com/vispark/vispark-api/pkg/logger"
)

// Event types published to the exchange.
const (
	EventNotificationCreated = "notification.created"
	EventSummaryGenerated    = "summary.generated"
)

// Event is a domain event broadcast to downstream consumers.
type Event struct {
	ID         uuid.UUID `json:"id"`
	Type       string    `json:"type"`
	ChannelID  string    `json:"channelId,omitempty"`
	VideoID    string    `json:"videoId"`
	Title      string    `json:"title,omitempty"`
	Recipients int       `json:"recipients"`
	OccurredAt time.Time `json:"occurredAt"`
}

// NewEvent creates an event with a fresh id and timestamp.
func NewEvent(eventType, channelID, videoID, title string, recipients int) *Event {
	return &Event{
		ID:         uuid.New(),
		Type:       eventType,
		ChannelID:  channelID,
		VideoID:    videoID,
		Title:      title,
		Recipients: recipients,
		OccurredAt: time.Now().UTC(),
	}
}

// EventPublisher publishes domain events.
type EventPublisher interface {
	Publish(ctx context.Context, event *Event) error
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, *Event) error { return nil }

// confirmTimeout bounds the wait for a broker ack.
const confirmTimeout = 5 * time.Second

// MessagePublisher publishes events to a RabbitMQ topic exchange with
// publisher confirms. When the broker closes the connection or channel it
// reconnects in the background with exponential backoff.
type MessagePublisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	config  config.RabbitMQConfig
	logger  *zap.Logger
	mu      sync.RWMutex

	closed       bool
	done         chan struct{}
	minReconnect time.Duration
	maxReconnect time.Duration
}

// NewMessagePublisher dials the broker and declares the exchange.
func NewMessagePublisher(cfg config.RabbitMQConfig, log *zap.Logger) (*MessagePublisher, error) {
	if cfg.URL == "" {
		return nil, errors.New("rabbitmq url is required")
	}

	mp := &MessagePublisher{
		config:       cfg,
		logger:       logger.OrNop(log),
		done:         make(chan struct{}),
		minReconnect: time.Second,
		maxReconnect: 30 * time.Second,
	}

	if err := mp.connect(); err != nil {
		return nil, err
	}

	return mp, nil
}

func (mp *MessagePublisher) connect() error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.closed {
		return errors.New("publisher is closed")
	}

	conn, err := amqp.Dial(mp.config.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}

	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("failed to enable publisher confirms: %w", err)
	}

	if err := ch.ExchangeDeclare(
		mp.config.Exchange, // name
		"topic",            // type
		true,               // durable
		false,              // auto-deleted
		false,              // internal
		false,              // no-wait
		nil,                // arguments
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	mp.conn = conn
	mp.channel = ch

	go mp.watch(conn, conn.NotifyClose(make(chan *amqp.Error, 1)), ch.NotifyClose(make(chan *amqp.Error, 1)))

	mp.logger.Info("Connected to RabbitMQ", zap.String("exchange", mp.config.Exchange))

	return nil
}

// watch waits for conn or its channel to close. A close without an error is
// a local Close and ends the watch; anything else triggers a reconnect.
func (mp *MessagePublisher) watch(conn *amqp.Connection, connClosed, chanClosed <-chan *amqp.Error) {
	var amqpErr *amqp.Error
	select {
	case amqpErr = <-connClosed:
	case amqpErr = <-chanClosed:
	case <-mp.done:
		return
	}
	if amqpErr == nil {
		return
	}

	mp.logger.Warn("RabbitMQ connection lost, reconnecting", zap.Error(amqpErr))

	mp.mu.Lock()
	if mp.conn == conn {
		mp.channel = nil
		mp.conn = nil
	}
	delay, maxDelay := mp.minReconnect, mp.maxReconnect
	mp.mu.Unlock()
	_ = conn.Close()

	for {
		select {
		case <-mp.done:
			return
		case <-time.After(delay):
		}

		err := mp.connect()
		if err == nil {
			mp.logger.Info("Reconnected to RabbitMQ")
			return
		}
		mp.logger.Warn("RabbitMQ reconnect failed", zap.Duration("retry_in", delay), zap.Error(err))

		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}

// Publish sends event to the exchange and waits for the broker to confirm
// it. The routing key is the event type, falling back to the configured key.
func (mp *MessagePublisher) Publish(ctx context.Context, event *Event) error {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	if mp.channel == nil {
		return errors.New("channel is not initialized")
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	routingKey := event.Type
	if routingKey == "" {
		routingKey = mp.config.RoutingKey
	}

	confirm, err := mp.channel.PublishWithDeferredConfirmWithContext(
		ctx,
		mp.config.Exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    event.OccurredAt,
			MessageId:    event.ID.String(),
			Type:         event.Type,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, confirmTimeout)
	defer cancel()

	acked, err := confirm.WaitContext(waitCtx)
	if err != nil {
		return fmt.Errorf("waiting for publish confirmation: %w", err)
	}
	if !acked {
		return errors.New("message was not acknowledged by broker")
	}

	mp.logger.Debug("Published event to RabbitMQ",
		zap.String("eventId", event.ID.String()),
		zap.String("routingKey", routingKey),
	)

	return nil
}

// Close closes the channel and connection and stops reconnecting.
func (mp *MessagePublisher) Close() error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if !mp.closed {
		mp.closed = true
		close(mp.done)
	}

	var errList []error
	if mp.channel != nil {
		if err := mp.channel.Close(); err != nil {
			errList = append(errList, err)
		}
		mp.channel = nil
	}
	if mp.conn != nil {
		if err := mp.conn.Close(); err != nil {
			errList = append(errList, err)
		}
		mp.conn = nil
	}

	if len(errList) > 0 {
		return fmt.Errorf("errors closing publisher: %w", errors.Join(errList...))
	}

	mp.logger.Info("RabbitMQ publisher closed")
	return nil
}

// IsHealthy reports whether the connection and channel are open.
func (mp *MessagePublisher) IsHealthy() bool {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	return mp.conn != nil && !mp.conn.IsClosed() && mp.channel != nil
}
