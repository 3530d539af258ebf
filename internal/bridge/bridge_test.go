package bridge

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"quix-messaging/internal/mocks"
	"quix-messaging/internal/models"
)

func TestPublishWithRetrySucceedsFirstAttempt(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	b := NewAMQPBridge(publisher)

	publisher.On("Publish", mock.Anything, "realtime.messages.5", mock.Anything).Return(nil).Once()

	b.publishWithRetry(context.Background(), "realtime.messages.5", Envelope{}, time.Millisecond)

	publisher.AssertExpectations(t)
}

func TestPublishWithRetryRecoversAfterFailure(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	b := NewAMQPBridge(publisher)

	publisher.On("Publish", mock.Anything, "realtime.typing.5", mock.Anything).Return(assert.AnError).Once()
	publisher.On("Publish", mock.Anything, "realtime.typing.5", mock.Anything).Return(nil).Once()

	b.publishWithRetry(context.Background(), "realtime.typing.5", Envelope{}, time.Millisecond)

	publisher.AssertExpectations(t)
}

func TestPublishWithRetryExhaustsWithoutPanic(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	b := NewAMQPBridge(publisher)

	publisher.On("Publish", mock.Anything, "realtime.messages.5", mock.Anything).Return(assert.AnError).Times(3)

	// exhaustion is terminal for the publish only; nothing propagates
	b.publishWithRetry(context.Background(), "realtime.messages.5", Envelope{}, time.Millisecond)

	publisher.AssertExpectations(t)
	publisher.AssertNumberOfCalls(t, "Publish", 3)
}

func TestPublishMessageDetachesFromCaller(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	b := NewAMQPBridge(publisher)

	done := make(chan struct{})
	publisher.On("Publish", mock.Anything, "realtime.messages.9", mock.Anything).
		Run(func(mock.Arguments) { close(done) }).
		Return(nil).Once()

	// canceled caller context must not stop the broadcast
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b.PublishMessage(ctx, models.Message{ID: 1, GroupID: 9})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish never happened")
	}
	publisher.AssertExpectations(t)
}

func TestPublishTypingRoutingKey(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	b := NewAMQPBridge(publisher)

	done := make(chan struct{})
	publisher.On("Publish", mock.Anything, "realtime.typing.7", mock.Anything).
		Run(func(args mock.Arguments) {
			envelope, ok := args.Get(2).(Envelope)
			require.True(t, ok)
			require.Equal(t, "user_typing", envelope.EventName)
			close(done)
		}).
		Return(nil).Once()

	b.PublishTyping(context.Background(), 3, 7, true)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish never happened")
	}
	publisher.AssertExpectations(t)
}
