package transfer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/Napageneral/bubble/internal/outlookcsv"
)

// DeviceBirthday carries whichever date parts the address book knows.
type DeviceBirthday struct {
	Day   int `json:"day,omitempty"`
	Month int `json:"month,omitempty"`
	Year  int `json:"year,omitempty"`
}

// DeviceContact is one address-book entry as a device source reports it.
type DeviceContact struct {
	FirstName    string          `json:"firstName"`
	LastName     string          `json:"lastName"`
	PhoneNumbers []string        `json:"phoneNumbers"`
	Emails       []string        `json:"emails"`
	Company      string          `json:"company"`
	Birthday     *DeviceBirthday `json:"birthday,omitempty"`
}

// DeviceSource is a platform address book.
type DeviceSource interface {
	// RequestPermission reports whether the source may be read.
	RequestPermission(ctx context.Context) (bool, error)
	Contacts(ctx context.Context) ([]DeviceContact, error)
}

func deviceRecord(dc DeviceContact, now time.Time) outlookcsv.Record {
	rec := outlookcsv.Record{
		FirstName: strings.TrimSpace(dc.FirstName),
		LastName:  strings.TrimSpace(dc.LastName),
		Company:   strings.TrimSpace(dc.Company),
		Tags:      []string{},
	}
	if len(dc.PhoneNumbers) > 0 {
		rec.Phone = strings.TrimSpace(dc.PhoneNumbers[0])
	}
	if len(dc.Emails) > 0 {
		rec.Email = strings.TrimSpace(dc.Emails[0])
	}
	if b := dc.Birthday; b != nil && (b.Day != 0 || b.Month != 0 || b.Year != 0) {
		year, month, day := b.Year, b.Month, b.Day
		if year == 0 {
			year = now.Year()
		}
		if month == 0 {
			month = 1
		}
		if day == 0 {
			day = 1
		}
		rec.Birthday = time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC).Format("2006-01-02")
	}
	return rec
}

// FileSource reads a JSON array of DeviceContact from disk, as written by a
// phone-side export. A missing file denies permission.
type FileSource struct {
	Path string
}

func (f FileSource) RequestPermission(ctx context.Context) (bool, error) {
	if strings.TrimSpace(f.Path) == "" {
		return false, nil
	}
	if _, err := os.Stat(f.Path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat %s: %w", f.Path, err)
	}
	return true, nil
}

func (f FileSource) Contacts(ctx context.Context) ([]DeviceContact, error) {
	b, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", f.Path, err)
	}
	var out []DeviceContact
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("failed to parse device contacts: %w", err)
	}
	return out, nil
}

// GogSource lists Google Contacts through the gogcli binary.
type GogSource struct {
	Account string
	// Binary defaults to "gog" on PATH.
	Binary string
}

func (g GogSource) binary() string {
	if g.Binary != "" {
		return g.Binary
	}
	return "gog"
}

func (g GogSource) RequestPermission(ctx context.Context) (bool, error) {
	if strings.TrimSpace(g.Account) == "" {
		return false, nil
	}
	if _, err := exec.LookPath(g.binary()); err != nil {
		return false, nil
	}
	return true, nil
}

type gogContactsListResponse struct {
	Contacts      []gogContact `json:"contacts"`
	NextPageToken string       `json:"nextPageToken"`
}

type gogContact struct {
	Resource string `json:"resource"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
}

func (g GogSource) Contacts(ctx context.Context) ([]DeviceContact, error) {
	var out []DeviceContact
	page := ""
	for {
		args := []string{"contacts", "list", "--json", "--max", "500", "--account", g.Account}
		if page != "" {
			args = append(args, "--page", page)
		}
		cmd := exec.CommandContext(ctx, g.binary(), args...)
		b, err := cmd.Output()
		if err != nil {
			return nil, fmt.Errorf("gog contacts list failed: %w", err)
		}
		var resp gogContactsListResponse
		if err := json.Unmarshal(b, &resp); err != nil {
			return nil, fmt.Errorf("failed to parse contacts json: %w", err)
		}
		for _, c := range resp.Contacts {
			out = append(out, c.device())
		}
		if resp.NextPageToken == "" || len(resp.Contacts) == 0 {
			break
		}
		page = resp.NextPageToken
	}
	return out, nil
}

// device splits the display name on its last space; Google only hands the
// list endpoint a single display name.
func (c gogContact) device() DeviceContact {
	dc := DeviceContact{}
	name := strings.TrimSpace(c.Name)
	if i := strings.LastIndex(name, " "); i > 0 {
		dc.FirstName, dc.LastName = strings.TrimSpace(name[:i]), strings.TrimSpace(name[i+1:])
	} else {
		dc.FirstName = name
	}
	if p := strings.TrimSpace(c.Phone); p != "" {
		dc.PhoneNumbers = []string{p}
	}
	if e := strings.TrimSpace(c.Email); e != "" {
		dc.Emails = []string{e}
	}
	return dc
}
