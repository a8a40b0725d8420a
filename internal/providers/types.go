package providers

import "context"

// Provider is the completion-service interface: one shot in, one
// structured analysis out.
type Provider interface {
	// Generate runs the topic-pack prompt over the recent history and
	// returns the service's structured analysis of the latest message.
	Generate(ctx context.Context, req Request) (*Completion, error)

	// Name returns the provider identifier (e.g. "openai").
	Name() string
}

// Request carries the conversation context for one Generate call.
type Request struct {
	History      []Message `json:"history"`
	SystemPrompt string    `json:"system_prompt"`
	SessionData  string    `json:"session_data,omitempty"` // JSON-encoded accumulated context
}

// Message is one conversation turn.
type Message struct {
	Role    string `json:"role"` // "user" or "model"
	Content string `json:"content"`
}

// Completion is the completion service's structured response. Every field
// is optional on the wire; all fallback chains live in the accessor
// methods below so callers never touch raw fields defensively.
type Completion struct {
	ReplyText      string        `json:"reply_text,omitempty"`
	ReplyToUser    string        `json:"reply_to_user,omitempty"` // legacy field name
	Analysis       *Analysis     `json:"analysis,omitempty"`
	DetectedInfo   *DetectedInfo `json:"detected_info,omitempty"`
	Tags           []string      `json:"tags,omitempty"`
	Classification string        `json:"classification,omitempty"`
	NeedPhone      bool          `json:"need_phone,omitempty"`
	NextState      string        `json:"next_state,omitempty"`
	Intent         string        `json:"intent,omitempty"`
}

// Analysis is the service's qualitative read of the conversation.
type Analysis struct {
	SubTopic              string `json:"sub_topic,omitempty"`
	CustomerBehaviorNotes string `json:"customer_behavior_notes,omitempty"`
}

// DetectedInfo carries contact details the service extracted itself,
// used as a fallback when local pattern extraction finds nothing.
type DetectedInfo struct {
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

// Reply returns the text to send: reply_text, else the legacy
// reply_to_user, else a placeholder.
func (c *Completion) Reply() string {
	if c.ReplyText != "" {
		return c.ReplyText
	}
	if c.ReplyToUser != "" {
		return c.ReplyToUser
	}
	return "..."
}

// SubTopic returns analysis.sub_topic or "".
func (c *Completion) SubTopic() string {
	if c.Analysis == nil {
		return ""
	}
	return c.Analysis.SubTopic
}

// BehaviorNotes returns analysis.customer_behavior_notes or "".
func (c *Completion) BehaviorNotes() string {
	if c.Analysis == nil {
		return ""
	}
	return c.Analysis.CustomerBehaviorNotes
}

// ResolvedIntent returns the intent: the explicit field, else the
// analysis sub-topic, else "general_inquiry".
func (c *Completion) ResolvedIntent() string {
	if c.Intent != "" {
		return c.Intent
	}
	if st := c.SubTopic(); st != "" {
		return st
	}
	return "general_inquiry"
}

// DetectedPhone returns detected_info.phone or "".
func (c *Completion) DetectedPhone() string {
	if c.DetectedInfo == nil {
		return ""
	}
	return c.DetectedInfo.Phone
}

// DetectedEmail returns detected_info.email or "".
func (c *Completion) DetectedEmail() string {
	if c.DetectedInfo == nil {
		return ""
	}
	return c.DetectedInfo.Email
}

// ProposedState returns the next pipeline state the service wants the
// session moved to, or "" when it proposed nothing ("DEFAULT" is the
// wire value for "no transition").
func (c *Completion) ProposedState() string {
	if c.NextState == "" || c.NextState == "DEFAULT" {
		return ""
	}
	return c.NextState
}
