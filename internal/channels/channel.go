// Package channels defines the outbound messaging abstraction. The
// worker replies through a Sender without knowing which platform sits
// behind it.
package channels

import "context"

// Sender delivers a text reply to one recipient on a platform.
type Sender interface {
	// Name returns the platform identifier (e.g. "messenger").
	Name() string

	// SendText delivers text to the recipient. Implementations apply
	// their own rate limiting; a returned error means the message was
	// not delivered.
	SendText(ctx context.Context, recipientID, text string) error
}

// Discard is a Sender that drops every message. Used when no page token
// is configured and replies should only be logged upstream.
type Discard struct{}

func (Discard) Name() string { return "discard" }

func (Discard) SendText(context.Context, string, string) error { return nil }
