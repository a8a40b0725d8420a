package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/nextlevelbuilder/leadflow/internal/crm"
	"github.com/nextlevelbuilder/leadflow/internal/queue"
)

// RetryConsumer drains the CRM retry queue, replaying serialized lead
// records against the CRM. A failed replay is re-enqueued by the
// dispatcher, so the consumer paces itself to avoid spinning on a dead
// upstream.
type RetryConsumer struct {
	retries queue.Consumer
	crm     *crm.Dispatcher
	poll    time.Duration
	pause   time.Duration
	sleep   func(time.Duration)
}

// NewRetryConsumer creates a retry consumer. pause is the delay after a
// failed replay; zero falls back to 5s.
func NewRetryConsumer(retries queue.Consumer, dispatcher *crm.Dispatcher, poll, pause time.Duration) *RetryConsumer {
	if poll <= 0 {
		poll = 5 * time.Second
	}
	if pause <= 0 {
		pause = 5 * time.Second
	}
	return &RetryConsumer{
		retries: retries,
		crm:     dispatcher,
		poll:    poll,
		pause:   pause,
		sleep:   time.Sleep,
	}
}

// Run replays queued leads until ctx is cancelled.
func (r *RetryConsumer) Run(ctx context.Context) error {
	slog.Info("retry consumer started", "poll_timeout", r.poll)
	for {
		raw, ok, err := r.retries.Pop(ctx, r.poll)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				slog.Info("retry consumer stopping")
				return nil
			}
			slog.Error("retry queue pop failed", "error", err)
			r.sleep(r.pause)
			continue
		}
		if !ok {
			continue
		}

		if r.crm.PushRaw(ctx, raw) {
			slog.Info("queued lead replayed")
			continue
		}
		// Re-enqueued by the dispatcher; back off before the next pull so
		// a dead CRM does not turn this loop into a busy spin.
		r.sleep(r.pause)
	}
}
