// Package topics loads per-page topic packs: the prompt, taxonomy and
// branding bundle that tells the bot which persona a page speaks with.
package topics

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Pack is one page's configuration bundle.
type Pack struct {
	TopicID      string          `json:"topic_id,omitempty"`
	SystemPrompt string          `json:"system_prompt"`
	PageName     string          `json:"page_name,omitempty"`
	MetaData     PackMeta        `json:"meta_data,omitempty"`
	Taxonomy     map[string]any  `json:"taxonomy,omitempty"`
	Extra        json.RawMessage `json:"extra,omitempty"`
}

// PackMeta carries optional branding metadata for older pack files.
type PackMeta struct {
	BrandDefault string `json:"brand_default,omitempty"`
}

// Brand returns the display name for the page. Fallback chain:
// page_name → meta_data.brand_default → "Unknown Page".
func (p *Pack) Brand() string {
	if p.PageName != "" {
		return p.PageName
	}
	if p.MetaData.BrandDefault != "" {
		return p.MetaData.BrandDefault
	}
	return "Unknown Page"
}

// Topic returns the taxonomy topic, defaulting to "general".
func (p *Pack) Topic() string {
	if p.TopicID != "" {
		return p.TopicID
	}
	return "general"
}

// Resolver maps page IDs to cached topic packs.
type Resolver struct {
	dir   string
	pages map[string]string // page id → pack filename

	mu    sync.RWMutex
	cache map[string]*Pack
}

// NewResolver creates a resolver over the pack directory.
func NewResolver(dir string, pages map[string]string) *Resolver {
	return &Resolver{
		dir:   dir,
		pages: pages,
		cache: make(map[string]*Pack),
	}
}

// Resolve returns the topic pack for a page ID. Unmapped pages and
// unreadable pack files are errors: operator-fixable, never retried.
func (r *Resolver) Resolve(pageID string) (*Pack, error) {
	r.mu.RLock()
	cached, ok := r.cache[pageID]
	r.mu.RUnlock()
	if ok {
		return cached, nil
	}

	filename, ok := r.pages[pageID]
	if !ok {
		return nil, fmt.Errorf("no topic pack mapped for page %s", pageID)
	}

	data, err := os.ReadFile(filepath.Join(r.dir, filename))
	if err != nil {
		return nil, fmt.Errorf("read topic pack %s: %w", filename, err)
	}

	var pack Pack
	if err := json.Unmarshal(data, &pack); err != nil {
		return nil, fmt.Errorf("parse topic pack %s: %w", filename, err)
	}

	r.mu.Lock()
	r.cache[pageID] = &pack
	r.mu.Unlock()
	return &pack, nil
}

// Invalidate drops all cached packs. The next Resolve re-reads from disk.
func (r *Resolver) Invalidate() {
	r.mu.Lock()
	r.cache = make(map[string]*Pack)
	r.mu.Unlock()
}

// Watch invalidates the cache whenever a pack file changes on disk.
// Blocks until the watcher fails or closes; run it in its own goroutine.
func (r *Resolver) Watch(done <-chan struct{}) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("topic pack watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(r.dir); err != nil {
		return fmt.Errorf("watch %s: %w", r.dir, err)
	}
	slog.Info("topic pack hot reload enabled", "dir", r.dir)

	for {
		select {
		case <-done:
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				slog.Debug("topic pack changed, cache invalidated", "file", ev.Name)
				r.Invalidate()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("topic pack watcher error", "error", err)
		}
	}
}
