package repository

import "context"

// Notifier sends an outbound message (dunning letters). Implementations
// decide the transport; the dunning engine only produces content.
type Notifier interface {
	Send(ctx context.Context, recipient, subject, body string) error
}
