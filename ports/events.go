package ports

import "context"

// MailSender hands a message to the outbound mail pipeline
type MailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// EventPublisher publishes events to notify other instances
type EventPublisher interface {
	PublishLogout(ctx context.Context, userID string, tokenID string) error
	PublishRotation(ctx context.Context, userID string, oldTokenID, newTokenID string) error
	PublishPasswordReset(ctx context.Context, userID string) error
}
