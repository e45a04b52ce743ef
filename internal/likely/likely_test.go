package likely

import (
	"context"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/Napageneral/bubble/internal/bus"
	"github.com/Napageneral/bubble/internal/contact"
	"github.com/Napageneral/bubble/internal/logger"
	"github.com/Napageneral/bubble/internal/settings"
	"github.com/Napageneral/bubble/internal/testutil"
)

type staticContacts []contact.Contact

func (s staticContacts) Load(context.Context) []contact.Contact { return s }

type staticSettings struct{ s settings.Settings }

func (s *staticSettings) Load(context.Context) settings.Settings { return s.s }

type recordingNotifier struct {
	mu    sync.Mutex
	posts [][]string
}

func (r *recordingNotifier) PostLikelyNotification(_ context.Context, names []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.posts = append(r.posts, names)
	return nil
}

type fakeTimer struct {
	d       time.Duration
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

type fakeClock struct{ timers []*fakeTimer }

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	t := &fakeTimer{d: d, f: f}
	c.timers = append(c.timers, t)
	return t
}

var book = staticContacts{
	{ID: "1", FirstName: "Zed", LastName: "Zane", Phone: "+1-555-123-4567"},
	{ID: "2", FirstName: "Amy", LastName: "Adams", Phone: "5551234567"},
	{ID: "3", FirstName: "Other", Phone: "5559999999"},
	{ID: "4", FirstName: "Solo", Phone: "555-123-4567"},
}

func newMatcher(t *testing.T, s settings.Settings) (*Matcher, *fakeClock, *recordingNotifier) {
	t.Helper()
	clock := &fakeClock{}
	n := &recordingNotifier{}
	m := New(book, &staticSettings{s: s}, Options{Notifier: n, Clock: clock, Logger: logger.Discard()})
	return m, clock, n
}

func TestCallMatchLifecycle(t *testing.T) {
	m, clock, n := newMatcher(t, settings.Defaults())
	ctx := context.Background()
	updates, cancel := m.Subscribe(8)
	defer cancel()

	m.SetForeground(true)
	got := m.Handle(ctx, CallEvent{Type: EventIncoming, Number: "(555) 123-4567"})
	want := []string{"Amy Adams", "Solo", "Zed Zane"}
	if !reflect.DeepEqual(got, want) || !reflect.DeepEqual(m.Names(), want) {
		t.Fatalf("Handle=%v Names=%v want %v", got, m.Names(), want)
	}
	if len(n.posts) != 0 {
		t.Fatalf("no system notification while foregrounded, got %v", n.posts)
	}
	if u := <-updates; !reflect.DeepEqual(u, want) {
		t.Fatalf("update=%v", u)
	}

	if len(clock.timers) != 1 || clock.timers[0].d != DefaultHideAfter {
		t.Fatalf("expected one %s timer, got %+v", DefaultHideAfter, clock.timers)
	}
	clock.timers[0].f()
	if len(m.Names()) != 0 {
		t.Fatalf("names should clear after the timer, got %v", m.Names())
	}
	if u := <-updates; len(u) != 0 {
		t.Fatalf("expected empty update, got %v", u)
	}
}

func TestBackgroundPostsNotification(t *testing.T) {
	m, _, n := newMatcher(t, settings.Defaults())
	m.Handle(context.Background(), CallEvent{Type: EventIncoming, Number: "5551234567"})
	if len(n.posts) != 1 || len(n.posts[0]) != 3 {
		t.Fatalf("posts=%v", n.posts)
	}
}

func TestNewMatchReplacesTimer(t *testing.T) {
	m, clock, _ := newMatcher(t, settings.Defaults())
	ctx := context.Background()
	m.Handle(ctx, CallEvent{Type: EventIncoming, Number: "5551234567"})
	m.Handle(ctx, CallEvent{Type: EventIncoming, Number: "5559999999"})

	if len(clock.timers) != 2 || !clock.timers[0].stopped || clock.timers[1].stopped {
		t.Fatalf("first timer should be cancelled: %+v", clock.timers)
	}
	// A stale callback that already fired must not clear the newer list.
	clock.timers[0].f()
	if !reflect.DeepEqual(m.Names(), []string{"Other"}) {
		t.Fatalf("Names=%v", m.Names())
	}
	clock.timers[1].f()
	if len(m.Names()) != 0 {
		t.Fatalf("Names=%v", m.Names())
	}
}

func TestEndedClears(t *testing.T) {
	m, clock, _ := newMatcher(t, settings.Defaults())
	ctx := context.Background()
	m.Handle(ctx, CallEvent{Type: EventIncoming, Number: "5551234567"})
	m.Handle(ctx, CallEvent{Type: EventEnded})
	if len(m.Names()) != 0 || !clock.timers[0].stopped {
		t.Fatalf("ended should clear names and cancel the timer")
	}
}

func TestDisabledAndNoMatch(t *testing.T) {
	off := settings.Defaults()
	off.LikelyPopupEnabled = false
	off.HeadsUpEnabled = false
	m, clock, n := newMatcher(t, off)
	ctx := context.Background()
	if got := m.Handle(ctx, CallEvent{Type: EventIncoming, Number: "5551234567"}); got != nil {
		t.Fatalf("disabled matcher returned %v", got)
	}

	m, clock, n = newMatcher(t, settings.Defaults())
	m.Handle(ctx, CallEvent{Type: EventIncoming, Number: "5550000000"})
	if len(m.Names()) != 0 || len(clock.timers) != 0 || len(n.posts) != 0 {
		t.Fatal("no match must be a no-op")
	}
	m.Handle(ctx, CallEvent{Type: EventIncoming})
	if len(clock.timers) != 0 {
		t.Fatal("missing number must be a no-op")
	}
}

func TestHeadsUpOnly(t *testing.T) {
	s := settings.Defaults()
	s.LikelyPopupEnabled = false
	m, clock, n := newMatcher(t, s)
	m.Handle(context.Background(), CallEvent{Type: EventIncoming, Number: "5559999999"})
	if len(n.posts) != 1 || len(m.Names()) != 0 || len(clock.timers) != 0 {
		t.Fatalf("posts=%v names=%v timers=%d", n.posts, m.Names(), len(clock.timers))
	}
}

func TestNumberFromRawText(t *testing.T) {
	m, _, _ := newMatcher(t, settings.Defaults())
	got := m.Handle(context.Background(), CallEvent{Type: EventIncoming, Source: "notification", RawText: "Incoming call from +1 555 999 9999"})
	if !reflect.DeepEqual(got, []string{"Other"}) {
		t.Fatalf("got %v", got)
	}
}

func TestMatchEmitsBusEvent(t *testing.T) {
	db := testutil.OpenTestDB(t)
	m := New(book, &staticSettings{s: settings.Defaults()}, Options{Clock: &fakeClock{}, DB: db, Logger: logger.Discard()})
	ctx := context.Background()
	m.Handle(ctx, CallEvent{Type: EventIncoming, Number: "5559999999"})
	events, err := bus.List(ctx, db, 0, 10, bus.TypeLikelyMatched)
	if err != nil || len(events) != 1 {
		t.Fatalf("events=%+v err=%v", events, err)
	}
}

func TestRunStopsOnClose(t *testing.T) {
	m, _, _ := newMatcher(t, settings.Defaults())
	events := make(chan CallEvent, 2)
	events <- CallEvent{Type: EventIncoming, Number: "5559999999"}
	close(events)
	if err := m.Run(context.Background(), events); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !reflect.DeepEqual(m.Names(), []string{"Other"}) {
		t.Fatalf("Names=%v", m.Names())
	}
}
