// Package queue abstracts the two durable lists the worker touches:
// the inbound chat queue and the CRM retry queue.
package queue

import (
	"context"
	"time"
)

// Key layout on the shared store. The inbound producer (webhook receiver)
// and the retry consumer agree on these names.
const (
	InboundKey = "chat_queue"
	RetryKey   = "crm_retry_queue"
)

// Consumer pops raw payloads off a queue with a bounded blocking wait,
// so the loop can re-check for shutdown between polls.
type Consumer interface {
	// Pop returns the next element, or ok=false when the wait timed out
	// with nothing queued. A cancelled context is returned as an error.
	Pop(ctx context.Context, timeout time.Duration) (raw []byte, ok bool, err error)
}

// RetryQueue durably stores serialized lead records whose CRM delivery
// failed, for replay by an out-of-process retry consumer.
type RetryQueue interface {
	Enqueue(ctx context.Context, entry []byte) error
}
