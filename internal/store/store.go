// Package store persists the contact collection in a key/value backend,
// migrating older generations to the canonical schema on first access and
// quarantining anything it cannot safely keep.
//
// The store favours availability: read failures degrade to an empty list and
// corrupt payloads are set aside rather than surfaced, because losing the
// address book is worse than showing a stale one.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Napageneral/bubble/internal/contact"
	"github.com/Napageneral/bubble/internal/logger"
)

// Storage keys.
const (
	KeyContacts       = "bc:contacts"
	KeyLegacyContacts = "contacts"
	KeySchemaVersion  = "bc:schemaVersion"
	QuarantinePrefix  = "bc:quarantine:"

	invalidSuffix = ":invalid"
)

// SchemaVersion is the current on-disk generation.
//
//	v0: no version key, tags may be a comma string, fields may be missing
//	v1: partially normalized, tags and ids still inconsistent
//	v2: canonical contact schema
const SchemaVersion = 2

var (
	ErrNotFound    = errors.New("contact not found")
	ErrDuplicateID = errors.New("contact id already exists")
)

// KV is the persistence boundary. Get reports a missing key with ok=false.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// Store is the contact collection.
type Store struct {
	kv     KV
	logger *slog.Logger
	now    func() time.Time

	migrateMu sync.Mutex
}

// New returns a Store over kv. A nil logger uses the process logger.
func New(kv KV, log *slog.Logger) *Store {
	return &Store{
		kv:     kv,
		logger: logger.OrDefault(log, "store"),
		now:    time.Now,
	}
}

// InvalidRecord is one quarantined record with the reasons it was rejected.
type InvalidRecord struct {
	Record any             `json:"record"`
	Issues []contact.Issue `json:"issues"`
}

// MigrationReport summarizes a MigrateIfNeeded call.
type MigrationReport struct {
	Ran          bool     `json:"ran"`
	From         int      `json:"from"`
	To           int      `json:"to"`
	Valid        int      `json:"valid"`
	Invalid      int      `json:"invalid"`
	Quarantined  []string `json:"quarantined,omitempty"`
	CorruptReset bool     `json:"corrupt_reset,omitempty"`
}

// SchemaVersion returns the stored version marker; absent or unparsable
// markers read as 0.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	v, ok, err := s.kv.Get(ctx, KeySchemaVersion)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, nil
	}
	return n, nil
}

// MigrateIfNeeded lifts stored records to the canonical schema once. After
// it succeeds the version marker is current and later calls are no-ops.
// Corrupt payloads never make it fail; storage errors do, leaving the marker
// untouched so the next boot retries.
func (s *Store) MigrateIfNeeded(ctx context.Context) (MigrationReport, error) {
	s.migrateMu.Lock()
	defer s.migrateMu.Unlock()

	report := MigrationReport{To: SchemaVersion}
	current, err := s.SchemaVersion(ctx)
	if err != nil {
		return report, fmt.Errorf("read schema version: %w", err)
	}
	report.From = current
	if current >= SchemaVersion {
		report.To = current
		return report, nil
	}
	report.Ran = true

	raw, found, quarantined, err := s.loadRaw(ctx)
	if quarantined != "" {
		report.CorruptReset = true
		report.Quarantined = append(report.Quarantined, quarantined)
	}
	if err != nil {
		return report, err
	}

	if found {
		valid, invalid := partition(raw)
		report.Valid = len(valid)
		report.Invalid = len(invalid)
		if len(invalid) > 0 {
			key, err := s.quarantineInvalid(ctx, invalid)
			if err != nil {
				return report, err
			}
			report.Quarantined = append(report.Quarantined, key)
		}
		if err := s.write(ctx, valid); err != nil {
			return report, err
		}
	}

	if err := s.kv.Set(ctx, KeySchemaVersion, strconv.Itoa(SchemaVersion)); err != nil {
		return report, fmt.Errorf("write schema version: %w", err)
	}
	s.logger.Info("contacts migrated",
		slog.Int("from", report.From),
		slog.Int("to", SchemaVersion),
		slog.Int("valid", report.Valid),
		slog.Int("invalid", report.Invalid),
	)
	return report, nil
}

// Load migrates if needed and returns the canonical contact set. It never
// fails: any unrecoverable condition yields an empty list.
func (s *Store) Load(ctx context.Context) []contact.Contact {
	if _, err := s.MigrateIfNeeded(ctx); err != nil {
		s.logger.Warn("migration failed", slog.Any("error", err))
	}
	raw, found, _, err := s.loadRaw(ctx)
	if err != nil {
		s.logger.Warn("load contacts failed", slog.Any("error", err))
		return []contact.Contact{}
	}
	if !found {
		return []contact.Contact{}
	}
	valid, invalid := partition(raw)
	for _, bad := range invalid {
		s.logger.Warn("skipping invalid stored contact", slog.Any("issues", bad.Issues))
	}
	return valid
}

// Save replaces the stored set with contacts. Records that fail validation
// or repeat an id are quarantined instead of written.
func (s *Store) Save(ctx context.Context, contacts []contact.Contact) error {
	raws := make([]any, 0, len(contacts))
	for _, c := range contacts {
		c.Tags = contact.UniqueTags(c.Tags)
		raws = append(raws, contact.ToMap(c))
	}
	valid, invalid := partition(raws)
	if len(invalid) > 0 {
		if _, err := s.quarantineInvalid(ctx, invalid); err != nil {
			s.logger.Error("quarantine on save failed", slog.Any("error", err))
		}
	}
	if err := s.write(ctx, valid); err != nil {
		s.logger.Error("save contacts failed", slog.Any("error", err))
		return err
	}
	return nil
}

func (s *Store) write(ctx context.Context, contacts []contact.Contact) error {
	if contacts == nil {
		contacts = []contact.Contact{}
	}
	b, err := json.Marshal(contacts)
	if err != nil {
		return fmt.Errorf("encode contacts: %w", err)
	}
	if err := s.kv.Set(ctx, KeyContacts, string(b)); err != nil {
		return fmt.Errorf("write contacts: %w", err)
	}
	return nil
}

// loadRaw reads the current key, falling back to the legacy key. A payload
// that is not a JSON contact list is quarantined verbatim, both keys are
// cleared, and the store reads as empty; the quarantine key is returned in
// that case.
func (s *Store) loadRaw(ctx context.Context) (records []any, found bool, quarantined string, err error) {
	payload, ok, err := s.kv.Get(ctx, KeyContacts)
	if err != nil {
		return nil, false, "", fmt.Errorf("read contacts: %w", err)
	}
	if !ok || payload == "" {
		payload, ok, err = s.kv.Get(ctx, KeyLegacyContacts)
		if err != nil {
			return nil, false, "", fmt.Errorf("read legacy contacts: %w", err)
		}
	}
	if !ok || payload == "" {
		return nil, false, "", nil
	}

	var parsed any
	if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
		return s.quarantineCorrupt(ctx, payload, err.Error())
	}

	switch v := parsed.(type) {
	case []any:
		return v, true, "", nil
	case map[string]any:
		// Legacy wrapper: {"contacts": [...]}.
		if list, ok := v["contacts"].([]any); ok {
			return list, true, "", nil
		}
	}
	return s.quarantineCorrupt(ctx, payload, "payload is not a contact list")
}

// quarantineCorrupt moves an unusable payload into quarantine verbatim and
// clears both contact keys.
func (s *Store) quarantineCorrupt(ctx context.Context, payload, reason string) ([]any, bool, string, error) {
	key, err := s.quarantine(ctx, "", payload)
	if err != nil {
		// Keep the blob in place rather than drop the only copy.
		return nil, false, "", fmt.Errorf("quarantine corrupt payload: %w", err)
	}
	s.logger.Warn("corrupt contacts payload quarantined", slog.String("key", key), slog.String("reason", reason))
	for _, k := range []string{KeyContacts, KeyLegacyContacts} {
		if derr := s.kv.Delete(ctx, k); derr != nil {
			s.logger.Error("clear corrupt payload failed", slog.String("key", k), slog.Any("error", derr))
		}
	}
	return nil, false, key, nil
}

// partition canonicalizes raw records. Invalid records and repeated ids end
// up in the second slice carrying the original record.
func partition(raw []any) ([]contact.Contact, []InvalidRecord) {
	valid := make([]contact.Contact, 0, len(raw))
	var invalid []InvalidRecord
	seen := make(map[string]struct{}, len(raw))
	for _, r := range raw {
		m, ok := r.(map[string]any)
		if !ok {
			invalid = append(invalid, InvalidRecord{Record: r, Issues: []contact.Issue{{Message: "record is not an object"}}})
			continue
		}
		c, issues := contact.Canonicalize(m)
		if len(issues) > 0 {
			invalid = append(invalid, InvalidRecord{Record: r, Issues: issues})
			continue
		}
		if _, dup := seen[c.ID]; dup {
			invalid = append(invalid, InvalidRecord{Record: r, Issues: []contact.Issue{{Message: "duplicate id " + c.ID}}})
			continue
		}
		seen[c.ID] = struct{}{}
		valid = append(valid, c)
	}
	return valid, invalid
}

func (s *Store) quarantineInvalid(ctx context.Context, invalid []InvalidRecord) (string, error) {
	b, err := json.Marshal(invalid)
	if err != nil {
		return "", fmt.Errorf("encode invalid records: %w", err)
	}
	key, err := s.quarantine(ctx, invalidSuffix, string(b))
	if err != nil {
		return "", err
	}
	s.logger.Warn("invalid contacts quarantined", slog.String("key", key), slog.Int("count", len(invalid)))
	return key, nil
}

// quarantine writes value under a timestamped key that never overwrites an
// existing entry.
func (s *Store) quarantine(ctx context.Context, suffix, value string) (string, error) {
	stamp := s.now().UTC().Format("20060102150405")
	key := QuarantinePrefix + stamp + suffix
	for n := 2; ; n++ {
		_, exists, err := s.kv.Get(ctx, key)
		if err != nil {
			return "", fmt.Errorf("check quarantine key: %w", err)
		}
		if !exists {
			break
		}
		key = fmt.Sprintf("%s%s-%d%s", QuarantinePrefix, stamp, n, suffix)
	}
	if err := s.kv.Set(ctx, key, value); err != nil {
		return "", fmt.Errorf("write quarantine: %w", err)
	}
	return key, nil
}

// Quarantined lists quarantine keys, oldest first.
func (s *Store) Quarantined(ctx context.Context) ([]string, error) {
	return s.kv.Keys(ctx, QuarantinePrefix)
}

// QuarantineEntry returns the stored content of one quarantine key.
func (s *Store) QuarantineEntry(ctx context.Context, key string) (string, bool, error) {
	if !strings.HasPrefix(key, QuarantinePrefix) {
		return "", false, nil
	}
	return s.kv.Get(ctx, key)
}

// Get returns the contact with id.
func (s *Store) Get(ctx context.Context, id string) (contact.Contact, bool) {
	for _, c := range s.Load(ctx) {
		if c.ID == id {
			return c, true
		}
	}
	return contact.Contact{}, false
}

// Add stores a new contact, assigning an id and timestamps as needed.
func (s *Store) Add(ctx context.Context, c contact.Contact) (contact.Contact, error) {
	all := s.Load(ctx)
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if _, exists := contact.ByID(all)[c.ID]; exists {
		return contact.Contact{}, fmt.Errorf("%w: %s", ErrDuplicateID, c.ID)
	}
	now := s.now().UnixMilli()
	if c.CreatedAt == 0 {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	c.Tags = contact.UniqueTags(c.Tags)
	if _, issues := contact.Validate(contact.ToMap(c)); len(issues) > 0 {
		return contact.Contact{}, fmt.Errorf("invalid contact: %s", issues[0].Message)
	}
	if err := s.Save(ctx, append(all, c)); err != nil {
		return contact.Contact{}, err
	}
	return c, nil
}

// Update replaces the contact with the same id.
func (s *Store) Update(ctx context.Context, c contact.Contact) (contact.Contact, error) {
	all := s.Load(ctx)
	i, ok := contact.ByID(all)[c.ID]
	if !ok {
		return contact.Contact{}, fmt.Errorf("%w: %s", ErrNotFound, c.ID)
	}
	if c.CreatedAt == 0 {
		c.CreatedAt = all[i].CreatedAt
	}
	c.UpdatedAt = s.now().UnixMilli()
	c.Tags = contact.UniqueTags(c.Tags)
	all[i] = c
	if err := s.Save(ctx, all); err != nil {
		return contact.Contact{}, err
	}
	return c, nil
}

// Delete removes the contact with id.
func (s *Store) Delete(ctx context.Context, id string) error {
	all := s.Load(ctx)
	i, ok := contact.ByID(all)[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	all = append(all[:i], all[i+1:]...)
	return s.Save(ctx, all)
}

// RemoveTag strips tag from every contact and returns how many changed.
// The contacts themselves are kept.
func (s *Store) RemoveTag(ctx context.Context, tag string) (int, error) {
	all := s.Load(ctx)
	changed := 0
	for i := range all {
		if !all[i].HasTag(tag) {
			continue
		}
		kept := make([]string, 0, len(all[i].Tags)-1)
		for _, t := range all[i].Tags {
			if t != tag {
				kept = append(kept, t)
			}
		}
		all[i].Tags = kept
		changed++
	}
	if changed == 0 {
		return 0, nil
	}
	if err := s.Save(ctx, all); err != nil {
		return 0, err
	}
	return changed, nil
}
