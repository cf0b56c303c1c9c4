package notifications

import "context"

// Message is a human readable notification addressed to a single recipient.
type Message struct {
	Recipient string
	Title     string
	Body      string
}

// Gateway delivers notifications to customers. Implementations must treat
// delivery as best effort; callers never fail their own work on a send error.
type Gateway interface {
	Send(ctx context.Context, msg Message) error
}

// NoopGateway satisfies Gateway without delivering anything, for environments
// where no channel is configured.
type NoopGateway struct {
	Logger func(ctx context.Context, event string, fields map[string]any)
}

// Send logs the message when a logger is present and discards it.
func (g NoopGateway) Send(ctx context.Context, msg Message) error {
	if g.Logger != nil {
		g.Logger(ctx, "notifications.noop.send", map[string]any{
			"recipient": msg.Recipient,
			"title":     msg.Title,
		})
	}
	return nil
}
