package mail

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatermillSender_Send(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer pubSub.Close()

	messages, err := pubSub.Subscribe(ctx, Topic)
	require.NoError(t, err)

	sender := NewWatermillSender(pubSub, "no-reply@example.com")
	require.NoError(t, sender.Send(ctx, "alice@example.com", "Reset your password", "https://example.com/reset?token=abc"))

	select {
	case msg := <-messages:
		msg.Ack()

		var got Message
		require.NoError(t, json.Unmarshal(msg.Payload, &got))
		assert.Equal(t, "no-reply@example.com", got.From)
		assert.Equal(t, "alice@example.com", got.To)
		assert.Equal(t, "Reset your password", got.Subject)
		assert.Equal(t, "https://example.com/reset?token=abc", got.Body)
		assert.False(t, got.QueuedAt.IsZero())
		assert.NotEmpty(t, msg.UUID)
	case <-ctx.Done():
		t.Fatal("no message published")
	}
}

type failingPublisher struct{}

func (failingPublisher) Publish(topic string, messages ...*message.Message) error {
	return errors.New("stream unavailable")
}

func (failingPublisher) Close() error { return nil }

func TestWatermillSender_PublishError(t *testing.T) {
	sender := NewWatermillSender(failingPublisher{}, "no-reply@example.com")

	err := sender.Send(context.Background(), "alice@example.com", "subject", "body")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stream unavailable")
}
