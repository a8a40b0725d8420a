// Package handoff decides who owns a conversation: the automated
// responder or a human operator typing from the page inbox.
//
// There is no background timer. Human mode is entered when an operator
// event arrives and left lazily on the next customer message once the
// operator has been silent longer than the configured timeout. Bounded
// staleness is fine: while the bot is muted, silence has no observable
// effect anyway.
package handoff

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nextlevelbuilder/leadflow/internal/bus"
	"github.com/nextlevelbuilder/leadflow/internal/store"
)

// Verdict is the gate decision for a customer message.
type Verdict int

const (
	// Proceed: bot mode, process normally.
	Proceed Verdict = iota
	// Drop: human mode and the operator is still active; stay silent.
	Drop
	// Resume: operator went quiet past the timeout; process this message
	// and persist bot mode with the final session update.
	Resume
)

// Machine evaluates handoff transitions against the session store.
type Machine struct {
	sessions store.SessionStore
	botAppID string
	timeout  time.Duration
	now      func() time.Time
}

// New creates a handoff machine. botAppID identifies the bot's own
// echoes; empty disables that filter.
func New(sessions store.SessionStore, botAppID string, timeout time.Duration) *Machine {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Machine{
		sessions: sessions,
		botAppID: botAppID,
		timeout:  timeout,
		now:      time.Now,
	}
}

// HandleOperatorEvent consumes page-side events. Returns true when the
// event belonged to the page (echo or page-sent) and is fully handled;
// the caller must not process it further.
//
// The bot's own echo (app_id matches the configured bot application) is
// ignored entirely — zero session mutations — so the bot's replies can
// never re-trigger human mode in a feedback loop.
func (m *Machine) HandleOperatorEvent(ctx context.Context, ev bus.Messaging, pageID, topic string) (bool, error) {
	if !ev.FromPage(pageID) {
		return false, nil
	}

	appID := ev.AppID()
	if m.botAppID != "" && appID == m.botAppID {
		slog.Debug("ignoring own echo", "app_id", appID)
		return true, nil
	}

	// A real human typed from the page inbox: the customer is the
	// recipient of the echoed message.
	customerID := ev.Recipient.ID
	ts := m.now().Unix()
	err := m.sessions.Update(ctx, customerID, store.Update{
		PageID:            pageID,
		Topic:             topic,
		Mode:              store.ModeHuman,
		LastHumanActivity: &ts,
	})
	if err != nil {
		return true, fmt.Errorf("activate human mode for %s: %w", customerID, err)
	}
	slog.Info("operator detected, human mode on", "user", customerID, "app_id", appID)
	return true, nil
}

// Gate decides whether a customer message may be processed while the
// session might be operator-owned. Pure with respect to the store; the
// Resume mode flip is persisted by the caller's final session update.
func (m *Machine) Gate(sess *store.Session) (Verdict, time.Duration) {
	if sess.Mode != store.ModeHuman {
		return Proceed, 0
	}

	silence := m.now().Sub(time.Unix(sess.LastHumanActivity, 0))
	if silence > m.timeout {
		return Resume, silence
	}
	return Drop, silence
}

// Timeout returns the configured operator-silence timeout.
func (m *Machine) Timeout() time.Duration { return m.timeout }
