// Package live runs the long-lived watchers behind `bubble watch`: the
// call-event spool reader and the optional platform bridge process.
package live

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Napageneral/bubble/internal/logger"
)

type WatcherSpec struct {
	Name string
	Run  func(ctx context.Context, beat func()) error
}

type Manager struct {
	KV                KV
	Specs             []WatcherSpec
	HeartbeatInterval time.Duration
	RestartBackoff    time.Duration
	MaxBackoff        time.Duration
	Logger            *slog.Logger
}

func NewManager(kv KV, log *slog.Logger, specs ...WatcherSpec) *Manager {
	return &Manager{
		KV:                kv,
		Specs:             specs,
		HeartbeatInterval: 10 * time.Second,
		RestartBackoff:    2 * time.Second,
		MaxBackoff:        30 * time.Second,
		Logger:            logger.OrDefault(log, "live"),
	}
}

// Run starts every watcher and blocks until ctx is done. Watchers that
// return are restarted with exponential backoff.
func (m *Manager) Run(ctx context.Context) error {
	if len(m.Specs) == 0 {
		return fmt.Errorf("no live watchers configured")
	}
	done := make(chan struct{}, len(m.Specs))
	for _, spec := range m.Specs {
		go func(spec WatcherSpec) {
			m.runWatcher(ctx, spec)
			done <- struct{}{}
		}(spec)
	}

	<-ctx.Done()
	for range m.Specs {
		<-done
	}
	return nil
}

func (m *Manager) runWatcher(ctx context.Context, spec WatcherSpec) {
	backoff := m.RestartBackoff
	if backoff <= 0 {
		backoff = 2 * time.Second
	}
	maxBackoff := m.MaxBackoff
	if maxBackoff <= 0 {
		maxBackoff = 30 * time.Second
	}
	// Status writes use a fresh context so "stopped" lands after cancel.
	bg := context.WithoutCancel(ctx)

	for {
		if ctx.Err() != nil {
			setLiveStatus(bg, m.KV, spec.Name, statusStopped)
			return
		}

		setLiveStatus(bg, m.KV, spec.Name, statusRunning)
		setLiveError(bg, m.KV, spec.Name, nil)
		setLiveHeartbeat(bg, m.KV, spec.Name, time.Now())

		beat := func() {
			setLiveHeartbeat(bg, m.KV, spec.Name, time.Now())
		}

		err := spec.Run(ctx, beat)
		if ctx.Err() != nil {
			setLiveStatus(bg, m.KV, spec.Name, statusStopped)
			return
		}

		setLiveStatus(bg, m.KV, spec.Name, statusError)
		setLiveError(bg, m.KV, spec.Name, err)
		incrementLiveRestarts(bg, m.KV, spec.Name)
		m.Logger.Warn("live watcher stopped",
			slog.String("watcher", spec.Name),
			slog.Any("error", err),
			slog.Duration("restart_in", backoff))

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			setLiveStatus(bg, m.KV, spec.Name, statusStopped)
			return
		}
		backoff = nextBackoff(backoff, maxBackoff)
	}
}

func nextBackoff(current, max time.Duration) time.Duration {
	next := current * 2
	if next > max {
		return max
	}
	return next
}
