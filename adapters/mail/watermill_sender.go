package mail

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/layer-3/warden/ports"
	"github.com/samber/oops"
)

// Topic is the watermill topic outbound mail is published on.
const Topic = "warden.mail"

// WatermillSender publishes mail to a watermill topic
type WatermillSender struct {
	publisher message.Publisher
	topic     string
	from      string
}

// NewWatermillSender creates a sender publishing on Topic
func NewWatermillSender(publisher message.Publisher, from string) ports.MailSender {
	return &WatermillSender{
		publisher: publisher,
		topic:     Topic,
		from:      from,
	}
}

func (s *WatermillSender) Send(ctx context.Context, to, subject, body string) error {
	payload, err := newMessage(s.from, to, subject, body).marshal()
	if err != nil {
		return err
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)

	if err := s.publisher.Publish(s.topic, msg); err != nil {
		return oops.Code("MAIL_PUBLISH_FAILED").
			With("topic", s.topic).
			Wrap(err)
	}

	return nil
}
