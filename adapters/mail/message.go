// Package mail hands outbound messages to a delivery pipeline. None of the
// senders talk SMTP themselves; a downstream worker owns delivery.
package mail

import (
	"encoding/json"
	"time"

	"github.com/samber/oops"
)

// Message is the payload every transport carries
type Message struct {
	From     string    `json:"from"`
	To       string    `json:"to"`
	Subject  string    `json:"subject"`
	Body     string    `json:"body"`
	QueuedAt time.Time `json:"queued_at"`
}

func newMessage(from, to, subject, body string) Message {
	return Message{
		From:     from,
		To:       to,
		Subject:  subject,
		Body:     body,
		QueuedAt: time.Now().UTC(),
	}
}

func (m Message) marshal() ([]byte, error) {
	payload, err := json.Marshal(m)
	if err != nil {
		return nil, oops.Code("MAIL_ENCODE_FAILED").Wrap(err)
	}
	return payload, nil
}
