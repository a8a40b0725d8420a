// Package redis implements the session store on a shared Redis instance.
// This is the production backend: multiple worker processes rely on its
// per-field hash operations for consistency.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nextlevelbuilder/leadflow/internal/store"
)

// Options tunes the Redis session backend.
type Options struct {
	TTL        time.Duration // session hash expiry, refreshed on write
	HistoryMax int           // sliding window kept per user
}

// Store is a Redis-backed SessionStore.
type Store struct {
	rdb  *redis.Client
	opts Options
}

// New creates a Redis session store on an existing client.
func New(rdb *redis.Client, opts Options) *Store {
	if opts.TTL <= 0 {
		opts.TTL = 72 * time.Hour
	}
	if opts.HistoryMax <= 0 {
		opts.HistoryMax = 50
	}
	return &Store{rdb: rdb, opts: opts}
}

func sessionKey(userID string) string { return "session:" + userID }
func historyKey(userID string) string { return "history:" + userID }
func tagsKey(userID string) string    { return "tags:" + userID }

func (s *Store) Get(ctx context.Context, userID string) (*store.Session, error) {
	fields, err := s.rdb.HGetAll(ctx, sessionKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("session get %s: %w", userID, err)
	}
	return decodeSession(userID, fields), nil
}

// decodeSession applies all defaulting in one place: absent hash → new
// session in bot mode, undecodable data → empty map.
func decodeSession(userID string, fields map[string]string) *store.Session {
	sess := &store.Session{
		UserID: userID,
		PageID: fields["page_id"],
		Topic:  fields["topic"],
		State:  fields["state"],
		Data:   map[string]any{},
		Mode:   store.ModeBot,
	}
	if sess.State == "" {
		sess.State = store.StateNew
	}
	if raw := fields["data"]; raw != "" {
		var data map[string]any
		if err := json.Unmarshal([]byte(raw), &data); err == nil {
			sess.Data = data
		}
	}
	if fields["conversation_mode"] == string(store.ModeHuman) {
		sess.Mode = store.ModeHuman
	}
	if raw := fields["last_human_activity"]; raw != "" {
		// stored as seconds; tolerate a fractional legacy value
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			sess.LastHumanActivity = int64(f)
		}
	}
	return sess
}

func (s *Store) Update(ctx context.Context, userID string, up store.Update) error {
	key := sessionKey(userID)

	// Read-modify-write of the data field. Two workers racing on the
	// same user can lose one merge; see SessionStore doc.
	merged := map[string]any{}
	if raw, err := s.rdb.HGet(ctx, key, "data").Result(); err == nil && raw != "" {
		_ = json.Unmarshal([]byte(raw), &merged)
	} else if err != nil && err != redis.Nil {
		return fmt.Errorf("session data read %s: %w", userID, err)
	}
	for k, v := range up.Data {
		merged[k] = v
	}
	dataJSON, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("session data encode %s: %w", userID, err)
	}

	payload := map[string]any{
		"user_id":    userID,
		"data":       string(dataJSON),
		"updated_at": time.Now().Format(time.RFC3339),
	}
	if up.PageID != "" {
		payload["page_id"] = up.PageID
	}
	if up.Topic != "" {
		payload["topic"] = up.Topic
	}
	if up.State != "" {
		payload["state"] = up.State
	}
	if up.Mode != "" {
		payload["conversation_mode"] = string(up.Mode)
	}
	if up.LastHumanActivity != nil {
		payload["last_human_activity"] = strconv.FormatInt(*up.LastHumanActivity, 10)
	}

	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, key, payload)
	pipe.Expire(ctx, key, s.opts.TTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("session update %s: %w", userID, err)
	}
	return nil
}

func (s *Store) SetState(ctx context.Context, userID, state string) error {
	if err := s.rdb.HSet(ctx, sessionKey(userID), "state", state).Err(); err != nil {
		return fmt.Errorf("session state %s: %w", userID, err)
	}
	return nil
}

func (s *Store) AppendHistory(ctx context.Context, userID string, entries ...store.HistoryEntry) error {
	if len(entries) == 0 {
		return nil
	}
	key := historyKey(userID)
	values := make([]any, 0, len(entries))
	for _, e := range entries {
		b, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("history encode %s: %w", userID, err)
		}
		values = append(values, string(b))
	}

	pipe := s.rdb.TxPipeline()
	pipe.RPush(ctx, key, values...)
	pipe.LTrim(ctx, key, int64(-s.opts.HistoryMax), -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("history append %s: %w", userID, err)
	}
	return nil
}

func (s *Store) History(ctx context.Context, userID string, n int) ([]store.HistoryEntry, error) {
	raw, err := s.rdb.LRange(ctx, historyKey(userID), int64(-n), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("history read %s: %w", userID, err)
	}
	entries := make([]store.HistoryEntry, 0, len(raw))
	for _, item := range raw {
		var e store.HistoryEntry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			continue // skip undecodable turns rather than fail the read
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (s *Store) AppendTags(ctx context.Context, userID string, tags ...string) error {
	if len(tags) == 0 {
		return nil
	}
	values := make([]any, 0, len(tags))
	for _, tag := range tags {
		values = append(values, tag)
	}
	if err := s.rdb.RPush(ctx, tagsKey(userID), values...).Err(); err != nil {
		return fmt.Errorf("tags append %s: %w", userID, err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}
