package bus

import "encoding/json"

// Payload is one inbound queue element: a messaging-platform webhook body.
// Each entry carries the page (channel) ID and a batch of messaging events.
type Payload struct {
	Object string  `json:"object,omitempty"`
	Entry  []Entry `json:"entry"`
}

// Entry groups the events delivered for one page.
type Entry struct {
	ID        string      `json:"id"`
	Time      int64       `json:"time,omitempty"`
	Messaging []Messaging `json:"messaging"`
}

// Messaging is a single sender→recipient event.
type Messaging struct {
	Sender    Party    `json:"sender"`
	Recipient Party    `json:"recipient"`
	Timestamp int64    `json:"timestamp,omitempty"`
	Message   *Message `json:"message,omitempty"`
}

// Party identifies one side of a messaging event.
type Party struct {
	ID string `json:"id"`
}

// Message is the message body of a messaging event. IsEcho marks outbound
// messages mirrored back by the platform; AppID identifies the application
// that produced an echoed message.
type Message struct {
	MID    string          `json:"mid,omitempty"`
	Text   string          `json:"text,omitempty"`
	IsEcho bool            `json:"is_echo,omitempty"`
	AppID  json.Number     `json:"app_id,omitempty"`
	Quick  json.RawMessage `json:"quick_reply,omitempty"`
}

// Text returns the message text, or "" when the event has no message body
// (delivery receipts, reactions, attachments-only events).
func (m Messaging) Text() string {
	if m.Message == nil {
		return ""
	}
	return m.Message.Text
}

// FromPage reports whether the event originated from the page side:
// either flagged as an echo of an outbound message, or sent by the page
// identity itself.
func (m Messaging) FromPage(pageID string) bool {
	if m.Message != nil && m.Message.IsEcho {
		return true
	}
	return m.Sender.ID == pageID
}

// AppID returns the originating application ID of an echoed message,
// or "" when absent.
func (m Messaging) AppID() string {
	if m.Message == nil {
		return ""
	}
	return m.Message.AppID.String()
}

// ParsePayload decodes a raw queue element into a Payload.
func ParsePayload(raw []byte) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
