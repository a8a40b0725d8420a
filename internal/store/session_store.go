package store

import "context"

// Mode says who owns a conversation: the automated responder or a human
// operator. Exactly one mode is in effect at any time.
type Mode string

const (
	ModeBot   Mode = "BOT"
	ModeHuman Mode = "HUMAN"
)

// StateNew is the pipeline state of a session that has never advanced.
const StateNew = "START"

// Session is the durable per-user conversation state.
type Session struct {
	UserID string
	PageID string
	Topic  string

	// State is a free-form pipeline tag. It only advances by explicit
	// transition; the worker never rolls it back.
	State string

	// Data is accumulated key/value context, merged (not replaced) on
	// every update.
	Data map[string]any

	Mode Mode

	// LastHumanActivity is epoch seconds of the operator's last message.
	// Meaningful only while Mode is ModeHuman; zeroed on return to bot.
	LastHumanActivity int64
}

// Update describes a session mutation. Zero-valued fields are left
// untouched except Data, which is merged into the stored map.
type Update struct {
	PageID string
	Topic  string
	State  string
	Data   map[string]any

	// Mode, when non-empty, switches conversation ownership.
	Mode Mode

	// LastHumanActivity, when non-nil, overwrites the operator activity
	// timestamp (pass a pointer to 0 to clear it).
	LastHumanActivity *int64
}

// HistoryEntry is one chat turn kept in the rolling per-user history.
type HistoryEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SessionStore is the shared per-user state store. Implementations must
// use atomic per-field operations where the backend supports them; the
// Data merge is read-modify-write and may lose a merge when two workers
// race on the same user (documented eventual-consistency hazard).
type SessionStore interface {
	// Get loads a session, decoding defaults for absent fields: a user
	// never seen before comes back in ModeBot with State StateNew.
	Get(ctx context.Context, userID string) (*Session, error)

	// Update merges an Update into the session and refreshes its TTL.
	Update(ctx context.Context, userID string, up Update) error

	// SetState overwrites the pipeline state field alone. Used when the
	// completion service proposes a non-default next state.
	SetState(ctx context.Context, userID, state string) error

	// AppendHistory appends chat turns, trimming to the sliding window.
	AppendHistory(ctx context.Context, userID string, entries ...HistoryEntry) error

	// History returns the most recent n entries, oldest first.
	History(ctx context.Context, userID string, n int) ([]HistoryEntry, error)

	// AppendTags appends classification tags to the per-user tag list.
	AppendTags(ctx context.Context, userID string, tags ...string) error

	// Ping verifies the store is reachable. Store unavailability at
	// startup is fatal to the worker.
	Ping(ctx context.Context) error
}
