package mail

import (
	"context"

	"github.com/layer-3/warden/ports"
	"github.com/rs/zerolog"
)

// LogSender records that a message would have been sent. The body is not
// logged because it carries a live credential.
type LogSender struct {
	log zerolog.Logger
}

func NewLogSender(log zerolog.Logger) ports.MailSender {
	return &LogSender{log: log.With().Str("component", "mail").Logger()}
}

func (s *LogSender) Send(ctx context.Context, to, subject, body string) error {
	s.log.Info().
		Str("to", to).
		Str("subject", subject).
		Int("body_bytes", len(body)).
		Msg("mail queued on log transport")
	return nil
}
