// Package bridge propagates newly created messages and typing transitions
// to the secondary broadcast channel. Publishing is best-effort: the durable
// write has already committed by the time the bridge runs, so retry
// exhaustion is logged and counted but never reaches the sending client.
package bridge

import (
	"context"
	"fmt"
	"log"
	"time"

	"quix-messaging/internal/models"
	"quix-messaging/internal/observability"
	"quix-messaging/internal/rabbitmq"
)

const (
	publishAttempts  = 3
	messageBaseDelay = 200 * time.Millisecond
	typingBaseDelay  = 150 * time.Millisecond
)

// Bridge is the realtime fan-out interface. Implementations never report
// failure to callers.
type Bridge interface {
	PublishMessage(ctx context.Context, msg models.Message)
	PublishTyping(ctx context.Context, userID, groupID int, isTyping bool)
}

// Envelope is the wire format on the broadcast exchange.
type Envelope struct {
	EventType  string `json:"event_type"`
	EventName  string `json:"event_name"`
	OccurredAt string `json:"occurred_at"`
	Payload    any    `json:"payload"`
}

// AMQPBridge publishes snapshots to a RabbitMQ topic exchange.
type AMQPBridge struct {
	publisher rabbitmq.Publisher
}

// NewAMQPBridge constructs an AMQPBridge over a connected publisher.
func NewAMQPBridge(publisher rabbitmq.Publisher) *AMQPBridge {
	return &AMQPBridge{publisher: publisher}
}

// PublishMessage fans out a stored message snapshot, detached from the
// caller so a slow broker never blocks the send acknowledgment.
func (b *AMQPBridge) PublishMessage(ctx context.Context, msg models.Message) {
	envelope := Envelope{
		EventType:  "realtime",
		EventName:  "new_message",
		OccurredAt: time.Now().UTC().Format(time.RFC3339Nano),
		Payload:    msg,
	}
	key := fmt.Sprintf("realtime.messages.%d", msg.GroupID)
	go b.publishWithRetry(context.WithoutCancel(ctx), key, envelope, messageBaseDelay)
}

// PublishTyping fans out a typing transition.
func (b *AMQPBridge) PublishTyping(ctx context.Context, userID, groupID int, isTyping bool) {
	envelope := Envelope{
		EventType:  "realtime",
		EventName:  "user_typing",
		OccurredAt: time.Now().UTC().Format(time.RFC3339Nano),
		Payload:    models.TypingEvent{GroupID: groupID, UserID: userID, IsTyping: isTyping},
	}
	key := fmt.Sprintf("realtime.typing.%d", groupID)
	go b.publishWithRetry(context.WithoutCancel(ctx), key, envelope, typingBaseDelay)
}

// publishWithRetry makes a fixed number of attempts with exponential
// backoff. On exhaustion it logs and gives up.
func (b *AMQPBridge) publishWithRetry(ctx context.Context, routingKey string, event any, baseDelay time.Duration) {
	delay := baseDelay
	var err error
	for attempt := 1; attempt <= publishAttempts; attempt++ {
		if err = b.publisher.Publish(ctx, routingKey, event); err == nil {
			return
		}
		observability.IncBridgeRetry(routingKey)
		if attempt == publishAttempts {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			observability.IncBridgeFailure(routingKey)
			return
		}
		delay *= 2
	}
	observability.IncBridgeFailure(routingKey)
	log.Printf("bridge publish exhausted retries routing_key=%s err=%v", routingKey, err)
}

// NoopBridge drops everything; used when the broadcast channel is disabled.
type NoopBridge struct{}

func (NoopBridge) PublishMessage(ctx context.Context, msg models.Message) {}

func (NoopBridge) PublishTyping(ctx context.Context, userID, groupID int, isTyping bool) {}
