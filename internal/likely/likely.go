// Package likely turns incoming-call events into the list of contacts the
// caller probably is, and clears that list again after a short delay.
package likely

import (
	"context"
	"database/sql"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Napageneral/bubble/internal/bus"
	"github.com/Napageneral/bubble/internal/contact"
	"github.com/Napageneral/bubble/internal/logger"
	"github.com/Napageneral/bubble/internal/names"
	"github.com/Napageneral/bubble/internal/phone"
	"github.com/Napageneral/bubble/internal/settings"
)

// DefaultHideAfter is how long matched names stay visible.
const DefaultHideAfter = 8 * time.Second

const (
	EventIncoming = "incoming"
	EventEnded    = "ended"
)

// CallEvent is what the platform reports about a call.
type CallEvent struct {
	Type       string `json:"type"`
	Number     string `json:"number,omitempty"`
	Source     string `json:"source,omitempty"`
	AppPackage string `json:"appPackage,omitempty"`
	RawText    string `json:"rawText,omitempty"`
}

type ContactLoader interface {
	Load(ctx context.Context) []contact.Contact
}

type SettingsLoader interface {
	Load(ctx context.Context) settings.Settings
}

// Notifier posts the system heads-up notification.
type Notifier interface {
	PostLikelyNotification(ctx context.Context, names []string) error
}

type Timer interface {
	Stop() bool
}

type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

type Options struct {
	HideAfter time.Duration
	Notifier  Notifier
	Clock     Clock
	// DB receives likely.matched bus events when set.
	DB     *sql.DB
	Logger *slog.Logger
}

type Matcher struct {
	contacts  ContactLoader
	settings  SettingsLoader
	notifier  Notifier
	clock     Clock
	db        *sql.DB
	logger    *slog.Logger
	hideAfter time.Duration

	mu         sync.Mutex
	names      []string
	timer      Timer
	gen        uint64
	foreground bool
	streams    map[string]chan []string
}

func New(contacts ContactLoader, st SettingsLoader, opts Options) *Matcher {
	m := &Matcher{
		contacts:  contacts,
		settings:  st,
		notifier:  opts.Notifier,
		clock:     opts.Clock,
		db:        opts.DB,
		logger:    logger.OrDefault(opts.Logger, "likely"),
		hideAfter: opts.HideAfter,
		streams:   map[string]chan []string{},
	}
	if m.clock == nil {
		m.clock = realClock{}
	}
	if m.hideAfter <= 0 {
		m.hideAfter = DefaultHideAfter
	}
	return m
}

// Names returns the currently shown names.
func (m *Matcher) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.names...)
}

// SetForeground records whether a UI is showing the names itself. System
// notifications are only posted while backgrounded.
func (m *Matcher) SetForeground(fg bool) {
	m.mu.Lock()
	m.foreground = fg
	m.mu.Unlock()
}

// Subscribe streams every change of the shown names. Slow subscribers miss
// updates rather than block the matcher.
func (m *Matcher) Subscribe(buffer int) (<-chan []string, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	id := uuid.NewString()
	ch := make(chan []string, buffer)
	m.mu.Lock()
	m.streams[id] = ch
	m.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			if cur, ok := m.streams[id]; ok {
				delete(m.streams, id)
				close(cur)
			}
			m.mu.Unlock()
		})
	}
}

// publishLocked must be called with m.mu held.
func (m *Matcher) publishLocked() {
	for _, ch := range m.streams {
		snapshot := append([]string{}, m.names...)
		select {
		case ch <- snapshot:
		default:
		}
	}
}

// Handle processes one call event and returns the names matched for an
// incoming call (nil when nothing matched or both outputs are disabled).
func (m *Matcher) Handle(ctx context.Context, ev CallEvent) []string {
	switch ev.Type {
	case EventIncoming:
		return m.incoming(ctx, ev)
	case EventEnded:
		m.mu.Lock()
		m.cancelTimerLocked()
		m.names = nil
		m.publishLocked()
		m.mu.Unlock()
	default:
		m.logger.Debug("ignoring call event", slog.String("type", ev.Type))
	}
	return nil
}

func (m *Matcher) incoming(ctx context.Context, ev CallEvent) []string {
	number := strings.TrimSpace(ev.Number)
	if number == "" {
		number = phone.Extract(ev.RawText)
	}
	if number == "" {
		return nil
	}

	cfg := m.settings.Load(ctx)
	if !cfg.LikelyPopupEnabled && !cfg.HeadsUpEnabled {
		return nil
	}

	matched := Match(m.contacts.Load(ctx), number)
	if len(matched) == 0 {
		return nil
	}

	m.mu.Lock()
	fg := m.foreground
	m.mu.Unlock()

	if !fg && cfg.HeadsUpEnabled && m.notifier != nil {
		if err := m.notifier.PostLikelyNotification(ctx, matched); err != nil {
			m.logger.Warn("failed to post notification", slog.Any("error", err))
		}
	}

	if cfg.LikelyPopupEnabled {
		m.mu.Lock()
		m.cancelTimerLocked()
		m.names = append([]string(nil), matched...)
		m.publishLocked()
		gen := m.gen
		m.timer = m.clock.AfterFunc(m.hideAfter, func() { m.expire(gen) })
		m.mu.Unlock()
	}

	m.logger.Info("likely callers", slog.String("number", number), slog.Int("matches", len(matched)))
	if m.db != nil {
		payload := map[string]any{"number": number, "names": matched, "source": ev.Source}
		if err := bus.Emit(ctx, m.db, bus.TypeLikelyMatched, payload); err != nil {
			m.logger.Warn("failed to emit match event", slog.Any("error", err))
		}
	}
	return matched
}

// cancelTimerLocked stops the pending hide timer and invalidates any
// callback already in flight.
func (m *Matcher) cancelTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.gen++
}

func (m *Matcher) expire(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen {
		return
	}
	m.timer = nil
	m.names = nil
	m.publishLocked()
}

// Run feeds events to Handle until ctx is done or events is closed.
func (m *Matcher) Run(ctx context.Context, events <-chan CallEvent) error {
	defer func() {
		m.mu.Lock()
		m.cancelTimerLocked()
		m.mu.Unlock()
	}()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			m.Handle(ctx, ev)
		}
	}
}

// Match returns "First Last" for every contact whose phone matches number,
// ordered by first name.
func Match(contacts []contact.Contact, number string) []string {
	var hits []contact.Contact
	for _, c := range contacts {
		if phone.Match(c.Phone, number) {
			hits = append(hits, c)
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return names.CompareStrings(hits[i].FirstName, hits[j].FirstName) < 0
	})
	out := make([]string, 0, len(hits))
	for _, c := range hits {
		out = append(out, strings.TrimSpace(c.FirstName+" "+c.LastName))
	}
	return out
}
