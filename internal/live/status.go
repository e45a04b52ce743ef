package live

import "context"

// Watcher names recorded in the live scope.
const (
	WatcherSpool  = "spool"
	WatcherBridge = "bridge"
)

type WatcherStatus struct {
	Watcher       string `json:"watcher"`
	Status        string `json:"status,omitempty"`
	LastHeartbeat *int64 `json:"last_heartbeat,omitempty"`
	LastError     string `json:"last_error,omitempty"`
	Restarts      int    `json:"restarts,omitempty"`
	SpoolOffset   int64  `json:"spool_offset,omitempty"`
}

// GetStatuses reports what the last watch run recorded for each watcher.
func GetStatuses(ctx context.Context, kv KV) []WatcherStatus {
	var out []WatcherStatus
	for _, name := range []string{WatcherSpool, WatcherBridge} {
		status, lastHeartbeat, lastError, restarts := readLiveStatus(ctx, kv, name)
		ws := WatcherStatus{
			Watcher:       name,
			Status:        status,
			LastHeartbeat: lastHeartbeat,
			LastError:     lastError,
			Restarts:      restarts,
		}
		if name == WatcherSpool {
			ws.SpoolOffset, _ = loadOffset(ctx, kv)
		}
		out = append(out, ws)
	}
	return out
}
