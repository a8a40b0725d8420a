// Package memory implements the session store in process memory.
// Used by tests and the interactive chat harness; it mirrors the Redis
// backend's decoding defaults but enforces no TTL.
package memory

import (
	"context"
	"sync"

	"github.com/nextlevelbuilder/leadflow/internal/store"
)

// Store is an in-memory SessionStore.
type Store struct {
	mu         sync.Mutex
	sessions   map[string]*store.Session
	history    map[string][]store.HistoryEntry
	tags       map[string][]string
	historyMax int
}

// New creates an in-memory session store with the given history window.
func New(historyMax int) *Store {
	if historyMax <= 0 {
		historyMax = 50
	}
	return &Store{
		sessions:   make(map[string]*store.Session),
		history:    make(map[string][]store.HistoryEntry),
		tags:       make(map[string][]string),
		historyMax: historyMax,
	}
}

func (s *Store) Get(ctx context.Context, userID string) (*store.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[userID]
	if !ok {
		return &store.Session{
			UserID: userID,
			State:  store.StateNew,
			Data:   map[string]any{},
			Mode:   store.ModeBot,
		}, nil
	}

	cp := *sess
	cp.Data = make(map[string]any, len(sess.Data))
	for k, v := range sess.Data {
		cp.Data[k] = v
	}
	return &cp, nil
}

func (s *Store) Update(ctx context.Context, userID string, up store.Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[userID]
	if !ok {
		sess = &store.Session{
			UserID: userID,
			State:  store.StateNew,
			Data:   map[string]any{},
			Mode:   store.ModeBot,
		}
		s.sessions[userID] = sess
	}

	if up.PageID != "" {
		sess.PageID = up.PageID
	}
	if up.Topic != "" {
		sess.Topic = up.Topic
	}
	if up.State != "" {
		sess.State = up.State
	}
	for k, v := range up.Data {
		sess.Data[k] = v
	}
	if up.Mode != "" {
		sess.Mode = up.Mode
	}
	if up.LastHumanActivity != nil {
		sess.LastHumanActivity = *up.LastHumanActivity
	}
	return nil
}

func (s *Store) SetState(ctx context.Context, userID, state string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[userID]
	if !ok {
		sess = &store.Session{
			UserID: userID,
			Data:   map[string]any{},
			Mode:   store.ModeBot,
		}
		s.sessions[userID] = sess
	}
	sess.State = state
	return nil
}

func (s *Store) AppendHistory(ctx context.Context, userID string, entries ...store.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := append(s.history[userID], entries...)
	if len(h) > s.historyMax {
		h = h[len(h)-s.historyMax:]
	}
	s.history[userID] = h
	return nil
}

func (s *Store) History(ctx context.Context, userID string, n int) ([]store.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := s.history[userID]
	if n > 0 && len(h) > n {
		h = h[len(h)-n:]
	}
	out := make([]store.HistoryEntry, len(h))
	copy(out, h)
	return out, nil
}

func (s *Store) AppendTags(ctx context.Context, userID string, tags ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tags[userID] = append(s.tags[userID], tags...)
	return nil
}

// Tags returns the accumulated tag list for a user. Test helper.
func (s *Store) Tags(userID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.tags[userID]))
	copy(out, s.tags[userID])
	return out
}

func (s *Store) Ping(ctx context.Context) error { return nil }
