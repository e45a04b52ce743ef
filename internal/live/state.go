package live

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// KV is the live-scope key/value store (state.KV with state.ScopeLive).
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

const (
	statusRunning = "running"
	statusStopped = "stopped"
	statusError   = "error"
)

const (
	keyLiveStatus        = "status"
	keyLiveLastHeartbeat = "last_heartbeat"
	keyLiveLastError     = "last_error"
	keyLiveRestarts      = "restarts"
)

func liveKey(watcher, key string) string {
	return watcher + ":" + key
}

func setLiveStatus(ctx context.Context, kv KV, watcher string, status string) {
	_ = kv.Set(ctx, liveKey(watcher, keyLiveStatus), status)
}

func setLiveHeartbeat(ctx context.Context, kv KV, watcher string, t time.Time) {
	_ = kv.Set(ctx, liveKey(watcher, keyLiveLastHeartbeat), fmt.Sprintf("%d", t.Unix()))
}

func setLiveError(ctx context.Context, kv KV, watcher string, err error) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	_ = kv.Set(ctx, liveKey(watcher, keyLiveLastError), msg)
}

func incrementLiveRestarts(ctx context.Context, kv KV, watcher string) {
	v, ok, err := kv.Get(ctx, liveKey(watcher, keyLiveRestarts))
	if err != nil {
		return
	}
	cur := 0
	if ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cur = n
		}
	}
	_ = kv.Set(ctx, liveKey(watcher, keyLiveRestarts), fmt.Sprintf("%d", cur+1))
}

func readLiveStatus(ctx context.Context, kv KV, watcher string) (status string, lastHeartbeat *int64, lastError string, restarts int) {
	if v, ok, _ := kv.Get(ctx, liveKey(watcher, keyLiveStatus)); ok {
		status = v
	}
	if v, ok, _ := kv.Get(ctx, liveKey(watcher, keyLiveLastHeartbeat)); ok && v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			lastHeartbeat = &n
		}
	}
	if v, ok, _ := kv.Get(ctx, liveKey(watcher, keyLiveLastError)); ok {
		lastError = v
	}
	if v, ok, _ := kv.Get(ctx, liveKey(watcher, keyLiveRestarts)); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			restarts = n
		}
	}
	return status, lastHeartbeat, lastError, restarts
}
