package engine

// LeadRecord is the immutable snapshot forwarded to the CRM for one
// qualified customer message. Transient: built, delivered (or enqueued
// for retry) and discarded — never persisted as its own entity.
type LeadRecord struct {
	FullName    string `json:"full_name"`
	Phone       string `json:"phone,omitempty"`
	Email       string `json:"email,omitempty"`
	PlatformUID string `json:"facebook_uid"`
	ProfileLink string `json:"profile_link,omitempty"`

	Topic          string   `json:"topic"`
	SubTopic       string   `json:"subtopic,omitempty"`
	Tags           []string `json:"tags,omitempty"`
	Intent         string   `json:"intent,omitempty"`
	Classification string   `json:"classification,omitempty"`

	LeadSource string `json:"lead_source"`
	SourcePage string `json:"source_page"`
	Channel    string `json:"channel"`

	RawMessage string `json:"data_raw,omitempty"`
	Score      int    `json:"score"`
	Notes      string `json:"notes,omitempty"`
}
