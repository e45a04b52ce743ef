package live

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"

	"github.com/Napageneral/bubble/internal/logger"
)

// NewBridgeWatcher keeps the platform bridge (the process that appends
// call events to the spool) running. The spool path is passed to it as
// BUBBLE_SPOOL. Restarts and backoff come from the Manager.
func NewBridgeWatcher(argv []string, spoolPath string, log *slog.Logger) WatcherSpec {
	log = logger.OrDefault(log, "bridge")
	return WatcherSpec{
		Name: WatcherBridge,
		Run: func(ctx context.Context, beat func()) error {
			if len(argv) == 0 {
				return fmt.Errorf("bridge command is empty")
			}
			cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
			cmd.Env = append(os.Environ(), "BUBBLE_SPOOL="+spoolPath)
			cmd.Stdout = os.Stderr
			cmd.Stderr = os.Stderr

			if err := cmd.Start(); err != nil {
				return fmt.Errorf("bridge failed to start: %w", err)
			}
			beat()
			log.Info("bridge started", slog.String("command", argv[0]), slog.Int("pid", cmd.Process.Pid))

			err := cmd.Wait()
			if ctx.Err() != nil {
				return nil
			}
			if err == nil {
				return fmt.Errorf("bridge %s exited", argv[0])
			}
			return fmt.Errorf("bridge %s exited (code %d): %w", argv[0], exitCodeFromErr(err), err)
		},
	}
}

func exitCodeFromErr(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
