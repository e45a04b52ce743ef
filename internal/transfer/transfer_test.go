package transfer

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/Napageneral/bubble/internal/bus"
	"github.com/Napageneral/bubble/internal/contact"
	"github.com/Napageneral/bubble/internal/logger"
	"github.com/Napageneral/bubble/internal/outlookcsv"
	"github.com/Napageneral/bubble/internal/state"
	"github.com/Napageneral/bubble/internal/store"
	"github.com/Napageneral/bubble/internal/testutil"
)

var fixedNow = time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

func fixedOpts() MergeOptions {
	return MergeOptions{Now: func() time.Time { return fixedNow }}
}

func TestMergeEmailBeatsPhone(t *testing.T) {
	existing := []contact.Contact{
		{ID: "a", FirstName: "Ann", Email: "ANN@example.com", Phone: "555-000-1111", Tags: []string{"Work"}},
		{ID: "b", FirstName: "Bob", Phone: "+1 (555) 222-3333"},
	}
	incoming := []outlookcsv.Record{
		// Email points at Ann, phone points at Bob: email wins.
		{FirstName: "Annie", Email: "ann@example.com", Phone: "15552223333", Tags: []string{"Gym", "Work"}},
		// No email, phone digits match Bob.
		{LastName: "Builder", Phone: "1 555 222 3333"},
		{FirstName: "Cy", Phone: "555-999-0000"},
	}
	res := MergeImport(existing, incoming, fixedOpts())
	if res.Added != 1 || res.Updated != 2 || len(res.Merged) != 3 {
		t.Fatalf("unexpected result: added=%d updated=%d merged=%+v", res.Added, res.Updated, res.Merged)
	}
	ann := res.Merged[0]
	if ann.FirstName != "Annie" || ann.Phone != "15552223333" || !reflect.DeepEqual(ann.Tags, []string{"Work", "Gym"}) {
		t.Fatalf("ann not merged: %+v", ann)
	}
	if ann.UpdatedAt != fixedNow.UnixMilli() {
		t.Fatalf("updatedAt=%d", ann.UpdatedAt)
	}
	bob := res.Merged[1]
	if bob.FirstName != "Bob" || bob.LastName != "Builder" {
		t.Fatalf("empty incoming fields must not clobber: %+v", bob)
	}
	cy := res.Merged[2]
	if cy.ID == "" || cy.CreatedAt != fixedNow.UnixMilli() || cy.Tags == nil {
		t.Fatalf("new contact not initialised: %+v", cy)
	}
	if existing[0].FirstName != "Ann" {
		t.Fatal("MergeImport must not mutate its input")
	}
}

func TestMergeDoesNotIndexNewRecords(t *testing.T) {
	incoming := []outlookcsv.Record{
		{FirstName: "Dup", Email: "dup@example.com"},
		{FirstName: "Dup", Email: "dup@example.com"},
	}
	res := MergeImport(nil, incoming, fixedOpts())
	if res.Added != 2 || len(res.Merged) != 2 {
		t.Fatalf("expected two added contacts, got %+v", res)
	}
}

func TestMergeRequireEmailAgreement(t *testing.T) {
	existing := []contact.Contact{{ID: "a", FirstName: "Ann", Email: "ann@example.com", Phone: "5551234567"}}
	incoming := []outlookcsv.Record{{FirstName: "Other", Email: "other@example.com", Phone: "5551234567"}}

	res := MergeImport(existing, incoming, fixedOpts())
	if res.Updated != 1 || res.Merged[0].Email != "other@example.com" {
		t.Fatalf("default should overwrite on phone match: %+v", res)
	}

	opts := fixedOpts()
	opts.RequireEmailAgreement = true
	res = MergeImport(existing, incoming, opts)
	if res.Added != 1 || res.Merged[0].Email != "ann@example.com" {
		t.Fatalf("conflicting email should create a new contact: %+v", res)
	}
}

func newService(t *testing.T) (*Service, *store.Store) {
	t.Helper()
	db := testutil.OpenTestDB(t)
	st := store.New(state.New(db, state.ScopeApp), logger.Discard())
	return NewService(st, db, logger.Discard(), fixedOpts()), st
}

func TestImportCSVPersistsAndEmits(t *testing.T) {
	svc, st := newService(t)
	ctx := context.Background()

	csv := "First Name;Last Name;Mobile Phone;Categories\nAnn;Lee;555-123-4567;Work, Gym\nBo;;;\n"
	sum, err := svc.ImportCSV(ctx, strings.NewReader(csv))
	if err != nil {
		t.Fatalf("ImportCSV: %v", err)
	}
	if sum.Added != 2 || sum.Updated != 0 || sum.Total != 2 {
		t.Fatalf("summary=%+v", sum)
	}
	sum, err = svc.ImportCSV(ctx, strings.NewReader(csv))
	if err != nil || sum.Updated != 1 || sum.Added != 1 {
		t.Fatalf("second import=%+v err=%v", sum, err)
	}
	if got := st.Load(ctx); len(got) != 3 {
		t.Fatalf("stored=%+v", got)
	}

	events, err := bus.List(ctx, svc.db, 0, 10, bus.TypeImportCompleted)
	if err != nil || len(events) != 2 {
		t.Fatalf("events=%+v err=%v", events, err)
	}
}

func TestImportCSVCancelled(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	for name, run := range map[string]func() (Summary, error){
		"nil reader":   func() (Summary, error) { return svc.ImportCSV(ctx, nil) },
		"empty":        func() (Summary, error) { return svc.ImportCSV(ctx, strings.NewReader("  \n")) },
		"no path":      func() (Summary, error) { return svc.ImportCSVFile(ctx, "") },
		"missing file": func() (Summary, error) { return svc.ImportCSVFile(ctx, filepath.Join(t.TempDir(), "nope.csv")) },
		"directory":    func() (Summary, error) { return svc.ImportCSVFile(ctx, t.TempDir()) },
		"read error":   func() (Summary, error) { return svc.ImportCSV(ctx, iotest.ErrReader(errors.New("eio"))) },
	} {
		sum, err := run()
		if err != nil || sum != (Summary{}) {
			t.Fatalf("%s: summary=%+v err=%v", name, sum, err)
		}
	}
}

func TestExportThenImportRoundTrip(t *testing.T) {
	svc, st := newService(t)
	ctx := context.Background()
	if _, err := st.Add(ctx, contact.Contact{FirstName: "Ann", LastName: "Lee", Email: "ann@example.com", Tags: []string{"Work"}}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	var buf bytes.Buffer
	n, err := svc.ExportCSV(ctx, &buf, true)
	if err != nil || n != 1 {
		t.Fatalf("ExportCSV n=%d err=%v", n, err)
	}
	sum, err := svc.ImportCSV(ctx, &buf)
	if err != nil || sum.Updated != 1 || sum.Added != 0 {
		t.Fatalf("re-import should update in place: %+v err=%v", sum, err)
	}
}

type fakeSource struct {
	allow       bool
	permErr     error
	contacts    []DeviceContact
	contactsErr error
}

func (f fakeSource) RequestPermission(context.Context) (bool, error) { return f.allow, f.permErr }
func (f fakeSource) Contacts(context.Context) ([]DeviceContact, error) {
	return f.contacts, f.contactsErr
}

func TestImportDevicePermissionDenied(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.ImportDevice(context.Background(), fakeSource{allow: false})
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
}

func TestImportDeviceUnreadableSource(t *testing.T) {
	svc, st := newService(t)
	ctx := context.Background()
	for name, src := range map[string]fakeSource{
		"contacts fail":   {allow: true, contactsErr: errors.New("provider crashed")},
		"permission fail": {permErr: errors.New("no prompt available")},
	} {
		sum, err := svc.ImportDevice(ctx, src)
		if err != nil || sum != (Summary{}) {
			t.Fatalf("%s: summary=%+v err=%v", name, sum, err)
		}
	}
	if got := st.Load(ctx); len(got) != 0 {
		t.Fatalf("nothing should be stored, got %+v", got)
	}
}

func TestImportDevice(t *testing.T) {
	svc, st := newService(t)
	ctx := context.Background()
	src := fakeSource{allow: true, contacts: []DeviceContact{
		{FirstName: "Ann", PhoneNumbers: []string{"555-123-4567", "555-000-0000"}, Birthday: &DeviceBirthday{Month: 5, Day: 1}},
		{FirstName: "Bo", Emails: []string{"bo@example.com"}, Company: "Acme", Birthday: &DeviceBirthday{Year: 1980}},
	}}
	sum, err := svc.ImportDevice(ctx, src)
	if err != nil || sum.Added != 2 || sum.Total != 2 {
		t.Fatalf("ImportDevice=%+v err=%v", sum, err)
	}
	got := st.Load(ctx)
	if got[0].Phone != "555-123-4567" || got[0].Birthday != "2026-05-01" {
		t.Fatalf("first device contact: %+v", got[0])
	}
	if got[1].Birthday != "1980-01-01" || got[1].Company != "Acme" {
		t.Fatalf("second device contact: %+v", got[1])
	}
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	missing := FileSource{Path: filepath.Join(dir, "none.json")}
	if ok, err := missing.RequestPermission(context.Background()); ok || err != nil {
		t.Fatalf("missing file should deny: ok=%v err=%v", ok, err)
	}
}

func TestGogContactSplitsName(t *testing.T) {
	dc := gogContact{Name: "Mary Ann Lee", Phone: " 555 ", Email: ""}.device()
	if dc.FirstName != "Mary Ann" || dc.LastName != "Lee" || len(dc.PhoneNumbers) != 1 || dc.Emails != nil {
		t.Fatalf("device()=%+v", dc)
	}
}

type failingStore struct{}

func (failingStore) Load(context.Context) []contact.Contact { return []contact.Contact{} }
func (failingStore) Save(context.Context, []contact.Contact) error {
	return errors.New("disk full")
}

func TestImportSurfacesSaveFailure(t *testing.T) {
	svc := NewService(failingStore{}, nil, logger.Discard(), fixedOpts())
	if _, err := svc.ImportCSV(context.Background(), strings.NewReader("First Name\nAnn\n")); err == nil {
		t.Fatal("expected save failure to surface")
	}
}
