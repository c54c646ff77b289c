package mail

import (
	"context"
	"time"

	"github.com/layer-3/warden/ports"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/samber/oops"
)

const (
	// Exchange is the durable topic exchange mail is published to.
	Exchange   = "warden.mail"
	RoutingKey = "mail.send"
)

// Publisher is the part of *amqp.Channel the sender uses
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPSender publishes mail to a RabbitMQ exchange
type AMQPSender struct {
	ch   Publisher
	from string
}

// NewAMQPSender creates a sender over an open channel
func NewAMQPSender(ch Publisher, from string) ports.MailSender {
	return &AMQPSender{ch: ch, from: from}
}

func (s *AMQPSender) Send(ctx context.Context, to, subject, body string) error {
	payload, err := newMessage(s.from, to, subject, body).marshal()
	if err != nil {
		return err
	}

	err = s.ch.PublishWithContext(
		ctx,
		Exchange,
		RoutingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         payload,
		},
	)
	if err != nil {
		return oops.Code("MAIL_PUBLISH_FAILED").
			With("exchange", Exchange).
			Wrap(err)
	}

	return nil
}

// DialAMQP connects, opens a channel and declares the mail exchange
func DialAMQP(url string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.DialConfig(url, amqp.Config{
		Locale: "en_US",
		Dial:   amqp.DefaultDial(10 * time.Second),
	})
	if err != nil {
		return nil, nil, oops.Code("AMQP_CONNECT_FAILED").Wrap(err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, oops.Code("AMQP_CHANNEL_FAILED").Wrap(err)
	}

	if err := ch.ExchangeDeclare(
		Exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, oops.Code("AMQP_DECLARE_FAILED").With("exchange", Exchange).Wrap(err)
	}

	return conn, ch, nil
}
