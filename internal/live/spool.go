package live

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Napageneral/bubble/internal/likely"
	"github.com/Napageneral/bubble/internal/logger"
)

const (
	keySpoolPath   = "spool:path"
	keySpoolOffset = "spool:offset"
)

// SpoolOptions configures the call-event spool watcher.
type SpoolOptions struct {
	Path              string
	Debounce          time.Duration
	HeartbeatInterval time.Duration
}

// spoolReader returns the complete JSON lines appended since the last
// read. A partial trailing line is left for the next read; a file that
// shrank is read again from the start.
type spoolReader struct {
	path   string
	offset int64
	logger *slog.Logger
}

// spooledEvent is a parsed call event and the file offset just past its line.
type spooledEvent struct {
	event likely.CallEvent
	end   int64
}

func (r *spoolReader) readNew() ([]spooledEvent, error) {
	f, err := os.Open(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			r.offset = 0
			return nil, nil
		}
		return nil, fmt.Errorf("open spool: %w", err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat spool: %w", err)
	}
	if st.Size() < r.offset {
		r.logger.Info("spool truncated, rereading", slog.Int64("size", st.Size()), slog.Int64("offset", r.offset))
		r.offset = 0
	}
	if _, err := f.Seek(r.offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek spool: %w", err)
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read spool: %w", err)
	}
	end := bytes.LastIndexByte(data, '\n')
	if end < 0 {
		return nil, nil
	}
	start := r.offset
	r.offset += int64(end + 1)

	var out []spooledEvent
	for pos := 0; pos <= end; {
		nl := bytes.IndexByte(data[pos:], '\n')
		line := bytes.TrimSpace(data[pos : pos+nl])
		pos += nl + 1
		if len(line) == 0 {
			continue
		}
		var ev likely.CallEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			r.logger.Warn("skipping malformed call event", slog.String("line", string(line)), slog.Any("error", err))
			continue
		}
		out = append(out, spooledEvent{event: ev, end: start + int64(pos)})
	}
	return out, nil
}

func loadOffset(ctx context.Context, kv KV) (int64, string) {
	path, _, _ := kv.Get(ctx, keySpoolPath)
	v, ok, err := kv.Get(ctx, keySpoolOffset)
	if err != nil || !ok {
		return -1, path
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return -1, path
	}
	return n, path
}

func saveOffset(ctx context.Context, kv KV, path string, offset int64) error {
	if err := kv.Set(ctx, keySpoolPath, path); err != nil {
		return fmt.Errorf("save spool path: %w", err)
	}
	if err := kv.Set(ctx, keySpoolOffset, strconv.FormatInt(offset, 10)); err != nil {
		return fmt.Errorf("save spool offset: %w", err)
	}
	return nil
}

// initialOffset resumes where the previous run stopped. A first run (or a
// new spool path) skips whatever the file already holds.
func initialOffset(ctx context.Context, kv KV, path string) int64 {
	if off, stored := loadOffset(ctx, kv); off >= 0 && stored == path {
		return off
	}
	if st, err := os.Stat(path); err == nil {
		return st.Size()
	}
	return 0
}

// NewSpoolWatcher tails the spool file and forwards each appended call
// event to out.
func NewSpoolWatcher(kv KV, opts SpoolOptions, out chan<- likely.CallEvent, log *slog.Logger) WatcherSpec {
	log = logger.OrDefault(log, "spool")
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = 100 * time.Millisecond
	}
	path := filepath.Clean(opts.Path)

	return WatcherSpec{
		Name: WatcherSpool,
		Run: func(ctx context.Context, beat func()) error {
			dir := filepath.Dir(path)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create spool dir: %w", err)
			}
			watcher, err := fsnotify.NewWatcher()
			if err != nil {
				return fmt.Errorf("create watcher: %w", err)
			}
			defer watcher.Close()
			if err := watcher.Add(dir); err != nil {
				return fmt.Errorf("watch %s: %w", dir, err)
			}

			reader := &spoolReader{path: path, offset: initialOffset(ctx, kv, path), logger: log}
			log.Info("watching call-event spool", slog.String("path", path), slog.Int64("offset", reader.offset))

			stopHeartbeat := startHeartbeat(ctx, opts.HeartbeatInterval, beat)
			defer stopHeartbeat()

			persist := func(offset int64) {
				if err := saveOffset(context.WithoutCancel(ctx), kv, path, offset); err != nil {
					log.Warn("failed to persist spool offset", slog.Int64("offset", offset), slog.Any("error", err))
				}
			}
			// The stored offset only moves past events that were delivered.
			drain := func() error {
				events, err := reader.readNew()
				if err != nil {
					return err
				}
				for _, se := range events {
					select {
					case out <- se.event:
						persist(se.end)
					case <-ctx.Done():
						return nil
					}
				}
				persist(reader.offset)
				return nil
			}
			if err := drain(); err != nil {
				return err
			}

			var timer *time.Timer
			var fire <-chan time.Time
			defer func() {
				if timer != nil {
					timer.Stop()
				}
			}()

			for {
				select {
				case <-ctx.Done():
					return nil
				case event, ok := <-watcher.Events:
					if !ok {
						return fmt.Errorf("watcher closed")
					}
					if filepath.Clean(event.Name) != path {
						continue
					}
					if timer == nil {
						timer = time.NewTimer(debounce)
					} else {
						timer.Reset(debounce)
					}
					fire = timer.C
				case <-fire:
					fire = nil
					beat()
					if err := drain(); err != nil {
						return err
					}
				case err, ok := <-watcher.Errors:
					if !ok {
						return fmt.Errorf("watcher closed")
					}
					log.Warn("spool watch error", slog.Any("error", err))
				}
			}
		},
	}
}
