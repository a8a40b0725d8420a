// Package worker runs the inbound event loop: pop a webhook payload off
// the chat queue, route each messaging event through handoff and the
// qualification engine, reply, and dispatch leads to the CRM.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nextlevelbuilder/leadflow/internal/bus"
	"github.com/nextlevelbuilder/leadflow/internal/channels"
	"github.com/nextlevelbuilder/leadflow/internal/crm"
	"github.com/nextlevelbuilder/leadflow/internal/engine"
	"github.com/nextlevelbuilder/leadflow/internal/handoff"
	"github.com/nextlevelbuilder/leadflow/internal/providers"
	"github.com/nextlevelbuilder/leadflow/internal/queue"
	"github.com/nextlevelbuilder/leadflow/internal/store"
	"github.com/nextlevelbuilder/leadflow/internal/topics"
)

// Deps are the collaborators the worker drives. All are required except
// CRM and Sender, which degrade to log-only when nil.
type Deps struct {
	Sessions store.SessionStore
	Inbound  queue.Consumer
	Provider providers.Provider
	Engine   *engine.Engine
	Handoff  *handoff.Machine
	Topics   *topics.Resolver
	CRM      *crm.Dispatcher
	Sender   channels.Sender
}

// Options tune the loop timing and history window.
type Options struct {
	PollTimeout   time.Duration
	ErrorBackoff  time.Duration
	HistoryWindow int
}

// Worker is the queue-consuming event loop.
type Worker struct {
	deps   Deps
	opts   Options
	tracer trace.Tracer
	sleep  func(time.Duration)
}

// New creates a worker. Zero-valued options fall back to 5s poll, 1s
// backoff and a 10-turn history window.
func New(deps Deps, opts Options) *Worker {
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = 5 * time.Second
	}
	if opts.ErrorBackoff <= 0 {
		opts.ErrorBackoff = time.Second
	}
	if opts.HistoryWindow <= 0 {
		opts.HistoryWindow = 10
	}
	if deps.Sender == nil {
		deps.Sender = channels.Discard{}
	}
	return &Worker{
		deps:   deps,
		opts:   opts,
		tracer: otel.Tracer("leadflow/worker"),
		sleep:  time.Sleep,
	}
}

// Run consumes the inbound queue until ctx is cancelled. A failing
// event never kills the loop: it is logged, the loop backs off briefly
// and moves on.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.deps.Sessions.Ping(ctx); err != nil {
		return fmt.Errorf("session store unreachable: %w", err)
	}
	slog.Info("worker started", "poll_timeout", w.opts.PollTimeout)

	for {
		raw, ok, err := w.deps.Inbound.Pop(ctx, w.opts.PollTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				slog.Info("worker stopping")
				return nil
			}
			slog.Error("queue pop failed", "error", err)
			w.sleep(w.opts.ErrorBackoff)
			continue
		}
		if !ok {
			continue
		}

		w.handlePayload(ctx, raw)
	}
}

// handlePayload processes one queue element. Entries with no resolvable
// topic pack are skipped with a warning. A failing messaging event is
// logged and backed off, then the loop moves to the next event: one
// user's error never blocks another user's event in the same batch.
func (w *Worker) handlePayload(ctx context.Context, raw []byte) {
	ctx, span := w.tracer.Start(ctx, "worker.payload",
		trace.WithAttributes(attribute.String("run_id", uuid.NewString())))
	defer span.End()

	p, err := bus.ParsePayload(raw)
	if err != nil {
		span.SetStatus(codes.Error, "unparseable payload")
		// Malformed element: log and drop, never retry.
		slog.Warn("dropping unparseable payload", "error", err)
		return
	}

	for _, entry := range p.Entry {
		pack, err := w.deps.Topics.Resolve(entry.ID)
		if err != nil {
			slog.Warn("skipping entry, no topic pack", "page", entry.ID, "error", err)
			continue
		}
		for _, ev := range entry.Messaging {
			if err := w.handleEvent(ctx, ev, entry.ID, pack); err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "event failed")
				slog.Error("event processing failed", "page", entry.ID, "error", err)
				w.sleep(w.opts.ErrorBackoff)
			}
		}
	}
}

func (w *Worker) handleEvent(ctx context.Context, ev bus.Messaging, pageID string, pack *topics.Pack) error {
	handled, err := w.deps.Handoff.HandleOperatorEvent(ctx, ev, pageID, pack.Topic())
	if err != nil {
		return err
	}
	if handled {
		return nil
	}

	text := ev.Text()
	if text == "" {
		return nil
	}
	userID := ev.Sender.ID

	sess, err := w.deps.Sessions.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("load session %s: %w", userID, err)
	}

	verdict, silence := w.deps.Handoff.Gate(sess)
	switch verdict {
	case handoff.Drop:
		slog.Info("operator owns conversation, staying silent", "user", userID, "silence", silence)
		return nil
	case handoff.Resume:
		slog.Info("operator silent past timeout, bot resuming", "user", userID, "silence", silence)
	}

	return w.respond(ctx, userID, pageID, text, sess, pack)
}

// respond runs the completion call and the qualification pipeline for
// one customer message.
func (w *Worker) respond(ctx context.Context, userID, pageID, text string, sess *store.Session, pack *topics.Pack) error {
	ctx, span := w.tracer.Start(ctx, "worker.respond",
		trace.WithAttributes(attribute.String("page", pageID)))
	defer span.End()

	history, err := w.deps.Sessions.History(ctx, userID, w.opts.HistoryWindow)
	if err != nil {
		return fmt.Errorf("load history %s: %w", userID, err)
	}
	msgs := make([]providers.Message, 0, len(history)+1)
	for _, h := range history {
		msgs = append(msgs, providers.Message{Role: h.Role, Content: h.Content})
	}
	msgs = append(msgs, providers.Message{Role: "user", Content: text})

	var sessionData string
	if len(sess.Data) > 0 {
		if b, err := json.Marshal(sess.Data); err == nil {
			sessionData = string(b)
		}
	}

	comp, err := w.deps.Provider.Generate(ctx, providers.Request{
		History:      msgs,
		SystemPrompt: pack.SystemPrompt,
		SessionData:  sessionData,
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("completion for %s: %w", userID, err)
	}

	out, err := w.deps.Engine.Process(ctx, userID, text, comp, pack)
	if err != nil {
		return fmt.Errorf("process %s: %w", userID, err)
	}
	span.SetAttributes(
		attribute.String("stage", string(out.Stage)),
		attribute.String("action", string(out.Action)),
		attribute.Int("score", out.Lead.Score),
	)

	// Always return to bot mode and clear operator activity: either we
	// were already in bot mode, or the gate just decided to resume.
	var clear int64
	data := map[string]any{"last_intent": out.Lead.Intent}
	if comp.Classification != "" {
		data["classification"] = comp.Classification
	}
	if st := comp.SubTopic(); st != "" {
		data["sub_topic"] = st
	}
	if err := w.deps.Sessions.Update(ctx, userID, store.Update{
		PageID:            pageID,
		Topic:             pack.Topic(),
		Data:              data,
		Mode:              store.ModeBot,
		LastHumanActivity: &clear,
	}); err != nil {
		return fmt.Errorf("update session %s: %w", userID, err)
	}

	if err := w.deps.Sessions.AppendHistory(ctx, userID,
		store.HistoryEntry{Role: "user", Content: text},
		store.HistoryEntry{Role: "model", Content: out.Reply},
	); err != nil {
		return fmt.Errorf("append history %s: %w", userID, err)
	}

	// Reply delivery is best effort: the session already advanced, and
	// the lead push below must not be lost to a send hiccup.
	if err := w.deps.Sender.SendText(ctx, userID, out.Reply); err != nil {
		slog.Error("reply send failed", "user", userID, "channel", w.deps.Sender.Name(), "error", err)
	}

	if out.Action == engine.ActionPushCRM && w.deps.CRM != nil {
		delivered := w.deps.CRM.Push(ctx, out.Lead)
		slog.Info("lead dispatched", "user", userID, "score", out.Lead.Score,
			"stage", out.Stage, "delivered", delivered)
	}
	return nil
}
