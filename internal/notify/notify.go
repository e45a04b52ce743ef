// Package notify delivers the "likely caller" heads-up outside the process.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/Napageneral/bubble/internal/logger"
)

// Title heads every likely-caller notification.
const Title = "Likely:"

const commandTimeout = 5 * time.Second

// Command runs an external program (notify-send, terminal-notifier, ...)
// with the configured arguments followed by the title and one line per
// name.
type Command struct {
	Argv   []string
	Logger *slog.Logger
}

func (c Command) PostLikelyNotification(ctx context.Context, names []string) error {
	if len(c.Argv) == 0 {
		return fmt.Errorf("notify command is empty")
	}
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	args := append(append([]string{}, c.Argv[1:]...), Title, strings.Join(names, "\n"))
	cmd := exec.CommandContext(ctx, c.Argv[0], args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("notify command failed: %w (output: %s)", err, strings.TrimSpace(string(out)))
	}
	logger.OrDefault(c.Logger, "notify").Debug("notification posted", slog.Int("names", len(names)))
	return nil
}

// Log writes the notification to the logger. It is the fallback when no
// command is configured.
type Log struct {
	Logger *slog.Logger
}

func (l Log) PostLikelyNotification(_ context.Context, names []string) error {
	logger.OrDefault(l.Logger, "notify").Info(Title, slog.Any("names", names))
	return nil
}

type Notifier interface {
	PostLikelyNotification(ctx context.Context, names []string) error
}

// New picks Command when argv is set and Log otherwise.
func New(argv []string, log *slog.Logger) Notifier {
	if len(argv) > 0 {
		return Command{Argv: argv, Logger: log}
	}
	return Log{Logger: log}
}
