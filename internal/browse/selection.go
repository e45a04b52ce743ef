package browse

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/Napageneral/bubble/internal/logger"
)

// SelectionKey stores the selected tag names.
const SelectionKey = "tagSelection:selected"

type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// Selection is the persisted set of tags the list is filtered by.
type Selection struct {
	kv     KV
	logger *slog.Logger

	mu        sync.Mutex
	selected  []string
	loaded    bool
	nextID    int
	listeners map[int]func([]string)
}

func NewSelection(kv KV, log *slog.Logger) *Selection {
	return &Selection{
		kv:        kv,
		logger:    logger.OrDefault(log, "selection"),
		listeners: map[int]func([]string){},
	}
}

// Load returns the selected tags, reading storage on first use.
// Non-string entries in storage are ignored.
func (s *Selection) Load(ctx context.Context) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.loadLocked(ctx)...)
}

func (s *Selection) loadLocked(ctx context.Context) []string {
	if s.loaded {
		return s.selected
	}
	s.loaded = true
	s.selected = []string{}
	raw, ok, err := s.kv.Get(ctx, SelectionKey)
	if err != nil {
		s.logger.Warn("failed to read tag selection", slog.Any("error", err))
		return s.selected
	}
	if !ok {
		return s.selected
	}
	var arr []any
	if err := json.Unmarshal([]byte(raw), &arr); err != nil {
		s.logger.Warn("ignoring unreadable tag selection", slog.Any("error", err))
		return s.selected
	}
	for _, v := range arr {
		if t, ok := v.(string); ok {
			s.selected = append(s.selected, t)
		}
	}
	return s.selected
}

// Set replaces the selection (deduplicated, order kept), persists it and
// notifies subscribers.
func (s *Selection) Set(ctx context.Context, tags []string) []string {
	s.mu.Lock()
	s.loaded = true
	s.selected = dedupe(tags)
	if b, err := json.Marshal(s.selected); err == nil {
		if err := s.kv.Set(ctx, SelectionKey, string(b)); err != nil {
			s.logger.Warn("failed to persist tag selection", slog.Any("error", err))
		}
	}
	snapshot := append([]string{}, s.selected...)
	listeners := make([]func([]string), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(append([]string{}, snapshot...))
	}
	return snapshot
}

// Toggle adds name when absent and removes it otherwise.
func (s *Selection) Toggle(ctx context.Context, name string) []string {
	current := s.Load(ctx)
	next := make([]string, 0, len(current)+1)
	found := false
	for _, t := range current {
		if t == name {
			found = true
			continue
		}
		next = append(next, t)
	}
	if !found {
		next = append(next, name)
	}
	return s.Set(ctx, next)
}

// Remove drops name from the selection if present.
func (s *Selection) Remove(ctx context.Context, name string) []string {
	current := s.Load(ctx)
	next := current[:0]
	for _, t := range current {
		if t != name {
			next = append(next, t)
		}
	}
	return s.Set(ctx, next)
}

func (s *Selection) Clear(ctx context.Context) {
	s.Set(ctx, nil)
}

// Subscribe registers fn for future changes and calls it at once with the
// current selection when it has already been loaded.
func (s *Selection) Subscribe(fn func([]string)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	loaded := s.loaded
	snapshot := append([]string{}, s.selected...)
	s.mu.Unlock()

	if loaded {
		fn(snapshot)
	}
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

func dedupe(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := map[string]struct{}{}
	for _, t := range tags {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
