package transfer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/Napageneral/bubble/internal/bus"
	"github.com/Napageneral/bubble/internal/contact"
	"github.com/Napageneral/bubble/internal/logger"
	"github.com/Napageneral/bubble/internal/outlookcsv"
)

// ErrPermissionDenied is returned when a device source refuses access.
var ErrPermissionDenied = errors.New("enable contacts permission to import")

// Store is the slice of the contact store the transfer service needs.
type Store interface {
	Load(ctx context.Context) []contact.Contact
	Save(ctx context.Context, contacts []contact.Contact) error
}

type Summary struct {
	Added   int    `json:"added"`
	Updated int    `json:"updated"`
	Total   int    `json:"total"`
	Source  string `json:"source,omitempty"`
}

type Service struct {
	store  Store
	db     *sql.DB
	logger *slog.Logger
	opts   MergeOptions
}

// NewService wires the transfer service. db is used for bus events and may
// be nil.
func NewService(st Store, db *sql.DB, log *slog.Logger, opts MergeOptions) *Service {
	return &Service{
		store:  st,
		db:     db,
		logger: logger.OrDefault(log, "transfer"),
		opts:   opts,
	}
}

func (s *Service) now() time.Time {
	if s.opts.Now != nil {
		return s.opts.Now()
	}
	return time.Now()
}

// ImportCSV merges the CSV read from r into the store. A nil reader, empty
// content or a read failure imports nothing.
func (s *Service) ImportCSV(ctx context.Context, r io.Reader) (Summary, error) {
	if r == nil {
		return Summary{}, nil
	}
	b, err := io.ReadAll(r)
	if err != nil {
		s.logger.Warn("import source unreadable", slog.Any("error", err))
		return Summary{}, nil
	}
	if strings.TrimSpace(string(b)) == "" {
		return Summary{}, nil
	}
	records := outlookcsv.Decode(string(b))
	sum, err := s.merge(ctx, records)
	if err != nil {
		return Summary{}, err
	}
	sum.Total = len(records)
	sum.Source = "csv"
	s.emit(ctx, sum)
	return sum, nil
}

// ImportCSVFile imports the file at path. An empty path means the user
// cancelled the picker; a missing or unreadable file is treated the same way.
func (s *Service) ImportCSVFile(ctx context.Context, path string) (Summary, error) {
	if strings.TrimSpace(path) == "" {
		return Summary{}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		s.logger.Warn("import file unreadable", slog.String("path", path), slog.Any("error", err))
		return Summary{}, nil
	}
	defer f.Close()
	return s.ImportCSV(ctx, f)
}

// ImportDevice merges every contact src exposes. Denied permission and a
// failed save are the only errors; a source that cannot be read imports
// nothing.
func (s *Service) ImportDevice(ctx context.Context, src DeviceSource) (Summary, error) {
	ok, err := src.RequestPermission(ctx)
	if err != nil {
		s.logger.Warn("contacts permission request failed", slog.Any("error", err))
		return Summary{}, nil
	}
	if !ok {
		return Summary{}, ErrPermissionDenied
	}
	device, err := src.Contacts(ctx)
	if err != nil {
		s.logger.Warn("device contacts unreadable", slog.Any("error", err))
		return Summary{}, nil
	}
	now := s.now()
	records := make([]outlookcsv.Record, 0, len(device))
	for _, dc := range device {
		records = append(records, deviceRecord(dc, now))
	}
	sum, err := s.merge(ctx, records)
	if err != nil {
		return Summary{}, err
	}
	sum.Total = sum.Added + sum.Updated
	sum.Source = "device"
	s.emit(ctx, sum)
	return sum, nil
}

func (s *Service) merge(ctx context.Context, records []outlookcsv.Record) (Summary, error) {
	res := MergeImport(s.store.Load(ctx), records, s.opts)
	if err := s.store.Save(ctx, res.Merged); err != nil {
		return Summary{}, fmt.Errorf("failed to save imported contacts: %w", err)
	}
	s.logger.Info("import merged",
		slog.Int("added", res.Added),
		slog.Int("updated", res.Updated),
		slog.Int("total", len(res.Merged)))
	return Summary{Added: res.Added, Updated: res.Updated}, nil
}

func (s *Service) emit(ctx context.Context, sum Summary) {
	if s.db == nil {
		return
	}
	if err := bus.Emit(ctx, s.db, bus.TypeImportCompleted, sum); err != nil {
		s.logger.Warn("failed to emit import event", slog.Any("error", err))
	}
}

// ExportCSV writes every stored contact to w and returns how many were
// written. full selects the complete Outlook header set.
func (s *Service) ExportCSV(ctx context.Context, w io.Writer, full bool) (int, error) {
	contacts := s.store.Load(ctx)
	headers := outlookcsv.CuratedHeaders
	if full {
		headers = outlookcsv.FullHeaders
	}
	if _, err := io.WriteString(w, outlookcsv.Encode(contacts, headers)); err != nil {
		return 0, fmt.Errorf("failed to write csv: %w", err)
	}
	return len(contacts), nil
}
