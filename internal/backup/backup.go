// Package backup writes periodic CSV snapshots of the contact store.
package backup

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Napageneral/bubble/internal/bus"
	"github.com/Napageneral/bubble/internal/logger"
)

type Exporter interface {
	ExportCSV(ctx context.Context, w io.Writer, full bool) (int, error)
}

type Options struct {
	Dir string
	// Full selects the complete Outlook header set.
	Full   bool
	DB     *sql.DB
	Logger *slog.Logger
	Now    func() time.Time
}

type Service struct {
	exporter Exporter
	opts     Options
	logger   *slog.Logger
	parser   cron.Parser
	cron     *cron.Cron
}

func New(exporter Exporter, opts Options) *Service {
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		exporter: exporter,
		opts:     opts,
		logger:   logger.OrDefault(opts.Logger, "backup"),
		parser:   parser,
		cron:     cron.New(cron.WithParser(parser)),
	}
}

// Start schedules a snapshot for every tick of pattern and starts the cron
// runner. Call Stop to end it.
func (s *Service) Start(pattern string) error {
	pattern = strings.TrimSpace(pattern)
	if _, err := s.parser.Parse(pattern); err != nil {
		return fmt.Errorf("invalid backup schedule %q: %w", pattern, err)
	}
	if _, err := s.cron.AddFunc(pattern, func() {
		if _, _, err := s.WriteNow(context.Background()); err != nil {
			s.logger.Error("backup failed", slog.Any("error", err))
		}
	}); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("backup scheduled", slog.String("pattern", pattern), slog.String("dir", s.opts.Dir))
	return nil
}

// Stop halts the scheduler and waits for a running snapshot to finish.
func (s *Service) Stop() {
	<-s.cron.Stop().Done()
}

// WriteNow exports the store to contacts-<timestamp>.csv in the backup
// directory and returns the file path and contact count.
func (s *Service) WriteNow(ctx context.Context) (string, int, error) {
	if err := os.MkdirAll(s.opts.Dir, 0o755); err != nil {
		return "", 0, fmt.Errorf("failed to create backup dir: %w", err)
	}
	name := fmt.Sprintf("contacts-%s.csv", s.opts.Now().UTC().Format("20060102-150405"))
	path := filepath.Join(s.opts.Dir, name)

	tmp, err := os.CreateTemp(s.opts.Dir, ".contacts-*.csv")
	if err != nil {
		return "", 0, fmt.Errorf("failed to create backup file: %w", err)
	}
	n, err := s.exporter.ExportCSV(ctx, tmp, s.opts.Full)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return "", 0, fmt.Errorf("failed to write backup: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", 0, fmt.Errorf("failed to finalize backup: %w", err)
	}

	s.logger.Info("backup written", slog.String("path", path), slog.Int("contacts", n))
	if s.opts.DB != nil {
		if err := bus.Emit(ctx, s.opts.DB, bus.TypeBackupWritten, map[string]any{"path": path, "contacts": n}); err != nil {
			s.logger.Warn("failed to emit backup event", slog.Any("error", err))
		}
	}
	return path, n, nil
}
