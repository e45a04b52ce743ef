// Package settings holds the user-facing preferences and notifies
// subscribers when they change.
package settings

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/Napageneral/bubble/internal/callapp"
	"github.com/Napageneral/bubble/internal/logger"
	"github.com/Napageneral/bubble/internal/names"
)

// Key is the persisted settings key.
const Key = "settings"

type Settings struct {
	LikelyPopupEnabled bool           `json:"likelyPopupEnabled"`
	HeadsUpEnabled     bool           `json:"headsUpEnabled"`
	NameOrder          names.Order    `json:"nameOrder"`
	CallMethod         callapp.Method `json:"callMethod"`
}

func Defaults() Settings {
	return Settings{
		LikelyPopupEnabled: true,
		HeadsUpEnabled:     true,
		NameOrder:          names.FirstLast,
		CallMethod:         callapp.Ask,
	}
}

// Patch is a partial update; nil fields are left alone.
type Patch struct {
	LikelyPopupEnabled *bool           `json:"likelyPopupEnabled,omitempty"`
	HeadsUpEnabled     *bool           `json:"headsUpEnabled,omitempty"`
	NameOrder          *names.Order    `json:"nameOrder,omitempty"`
	CallMethod         *callapp.Method `json:"callMethod,omitempty"`
}

func (p Patch) apply(s Settings) Settings {
	if p.LikelyPopupEnabled != nil {
		s.LikelyPopupEnabled = *p.LikelyPopupEnabled
	}
	if p.HeadsUpEnabled != nil {
		s.HeadsUpEnabled = *p.HeadsUpEnabled
	}
	if p.NameOrder != nil {
		s.NameOrder = names.ParseOrder(string(*p.NameOrder))
	}
	if p.CallMethod != nil {
		s.CallMethod = callapp.ParseMethod(string(*p.CallMethod))
	}
	return s
}

// KV is the storage the service persists to.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

type Service struct {
	kv     KV
	logger *slog.Logger

	mu        sync.Mutex
	cached    *Settings
	nextID    int
	listeners map[int]func(Settings)
}

func New(kv KV, log *slog.Logger) *Service {
	return &Service{
		kv:        kv,
		logger:    logger.OrDefault(log, "settings"),
		listeners: make(map[int]func(Settings)),
	}
}

// Load returns the cached settings, reading storage on first use. Stored
// values are layered over the defaults; unreadable storage yields defaults.
func (s *Service) Load(ctx context.Context) Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(ctx)
}

func (s *Service) loadLocked(ctx context.Context) Settings {
	if s.cached != nil {
		return *s.cached
	}
	out := Defaults()
	raw, ok, err := s.kv.Get(ctx, Key)
	switch {
	case err != nil:
		s.logger.Warn("failed to read settings", slog.Any("error", err))
	case ok:
		if err := json.Unmarshal([]byte(raw), &out); err != nil {
			s.logger.Warn("ignoring unreadable settings", slog.Any("error", err))
			out = Defaults()
		}
		out.NameOrder = names.ParseOrder(string(out.NameOrder))
		out.CallMethod = callapp.ParseMethod(string(out.CallMethod))
	}
	s.cached = &out
	return out
}

// Save merges p into the current settings, persists them and notifies
// every subscriber before returning. A failed write is logged; the new
// settings still take effect for this process.
func (s *Service) Save(ctx context.Context, p Patch) Settings {
	s.mu.Lock()
	next := p.apply(s.loadLocked(ctx))
	s.cached = &next
	if b, err := json.Marshal(next); err != nil {
		s.logger.Warn("failed to encode settings", slog.Any("error", err))
	} else if err := s.kv.Set(ctx, Key, string(b)); err != nil {
		s.logger.Warn("failed to persist settings", slog.Any("error", err))
	}
	listeners := make([]func(Settings), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(next)
	}
	return next
}

// Subscribe registers fn for every future Save. The returned func removes
// it.
func (s *Service) Subscribe(fn func(Settings)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}
