// Package engine turns a raw customer message plus the completion
// service's analysis into a reply, a lead record and an action signal.
package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nextlevelbuilder/leadflow/internal/providers"
	"github.com/nextlevelbuilder/leadflow/internal/store"
	"github.com/nextlevelbuilder/leadflow/internal/topics"
)

// Action says what the worker does with a processed message.
type Action string

const (
	// ActionReplyOnly: answer the customer, leave the CRM alone.
	ActionReplyOnly Action = "REPLY"
	// ActionPushCRM: answer and forward the lead record to the CRM.
	ActionPushCRM Action = "PUSH_CRM"
)

// crmScoreThreshold pushes very hot prospects to the CRM even before any
// contact info is captured, so a salesperson can step into the chat.
const crmScoreThreshold = 80

// Engine computes lead qualification for customer messages.
type Engine struct {
	sessions store.SessionStore
}

// New creates an engine over the session store.
func New(sessions store.SessionStore) *Engine {
	return &Engine{sessions: sessions}
}

// Outcome is the result of processing one customer message.
type Outcome struct {
	Reply  string
	Action Action
	Lead   *LeadRecord
	Stage  Stage
}

// Process derives stage, score, lead record and action for one message.
// Side effects on the session store: a completion-proposed next state is
// persisted, and returned tags are appended to the user's tag list.
func (e *Engine) Process(ctx context.Context, userID, text string, comp *providers.Completion, pack *topics.Pack) (*Outcome, error) {
	// Pattern extraction first; the completion service's own detection
	// is the fallback when the regex finds nothing.
	phone := ExtractPhone(text)
	if phone == "" {
		phone = comp.DetectedPhone()
	}
	email := ExtractEmail(text)
	if email == "" {
		email = comp.DetectedEmail()
	}

	intent := comp.ResolvedIntent()
	stage := DeriveStage(comp.Classification, intent, phone, email)
	score := Score(phone, email, stage, comp.Classification)

	lead := &LeadRecord{
		FullName:    "User " + userID,
		Phone:       phone,
		Email:       email,
		PlatformUID: userID,
		ProfileLink: "https://facebook.com/" + userID,

		Topic:          pack.Topic(),
		SubTopic:       comp.SubTopic(),
		Tags:           comp.Tags,
		Intent:         intent,
		Classification: comp.Classification,

		LeadSource: "facebook_chatbot",
		SourcePage: pack.Brand(),
		Channel:    "facebook",

		RawMessage: text,
		Score:      score,
		Notes:      fmt.Sprintf("[AI]: %s | Stage: %s | Class: %s", comp.BehaviorNotes(), stage, comp.Classification),
	}

	// The sole gate controlling CRM traffic: contact info, or a score
	// hot enough that sales should join the chat by hand.
	action := ActionReplyOnly
	switch {
	case phone != "" || email != "":
		action = ActionPushCRM
		slog.Info("contact captured, pushing lead", "user", userID, "phone", phone != "", "email", email != "")
	case score >= crmScoreThreshold:
		action = ActionPushCRM
		slog.Info("high-potential lead, pushing without contact", "user", userID, "score", score)
	}

	if next := comp.ProposedState(); next != "" {
		if err := e.sessions.SetState(ctx, userID, next); err != nil {
			return nil, fmt.Errorf("persist next state: %w", err)
		}
	}
	if len(comp.Tags) > 0 {
		if err := e.sessions.AppendTags(ctx, userID, comp.Tags...); err != nil {
			return nil, fmt.Errorf("append tags: %w", err)
		}
	}

	return &Outcome{
		Reply:  comp.Reply(),
		Action: action,
		Lead:   lead,
		Stage:  stage,
	}, nil
}
