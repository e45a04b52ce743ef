// Package transfer imports contacts from CSV files and device address
// books, and exports the store as CSV.
package transfer

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Napageneral/bubble/internal/contact"
	"github.com/Napageneral/bubble/internal/outlookcsv"
	"github.com/Napageneral/bubble/internal/phone"
)

type MergeOptions struct {
	// RequireEmailAgreement turns a phone match into a new contact when both
	// sides carry an email and the emails differ.
	RequireEmailAgreement bool

	Now func() time.Time
}

type MergeResult struct {
	Merged  []contact.Contact
	Added   int
	Updated int
}

func emailKey(email string) string {
	if email == "" {
		return ""
	}
	return "e:" + strings.ToLower(email)
}

func phoneKey(raw string) string {
	d := phone.Digits(raw)
	if d == "" {
		return ""
	}
	return "p:" + d
}

// MergeImport folds incoming records into existing. A record matching an
// existing contact by email (case-insensitive), or failing that by phone
// digits, updates it in place: incoming non-empty fields win and tags are
// unioned. Anything else is appended as a new contact. Only existing
// contacts are indexed, so duplicate incoming rows each become a contact.
func MergeImport(existing []contact.Contact, incoming []outlookcsv.Record, opts MergeOptions) MergeResult {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	merged := make([]contact.Contact, len(existing), len(existing)+len(incoming))
	copy(merged, existing)

	index := make(map[string]int, 2*len(existing))
	for i, c := range existing {
		if k := emailKey(c.Email); k != "" {
			index[k] = i
		}
		if k := phoneKey(c.Phone); k != "" {
			index[k] = i
		}
	}

	res := MergeResult{}
	for _, inc := range incoming {
		idx, ok := -1, false
		if k := emailKey(inc.Email); k != "" {
			idx, ok = index[k]
		}
		if !ok {
			if k := phoneKey(inc.Phone); k != "" {
				idx, ok = index[k]
				if ok && opts.RequireEmailAgreement && inc.Email != "" && merged[idx].Email != "" &&
					!strings.EqualFold(inc.Email, merged[idx].Email) {
					ok = false
				}
			}
		}

		ts := now().UnixMilli()
		if ok {
			merged[idx] = mergeInto(merged[idx], inc, ts)
			res.Updated++
			continue
		}
		merged = append(merged, contact.Contact{
			ID:        uuid.NewString(),
			FirstName: inc.FirstName,
			LastName:  inc.LastName,
			Phone:     inc.Phone,
			Email:     inc.Email,
			Birthday:  inc.Birthday,
			Company:   inc.Company,
			Title:     inc.Title,
			Tags:      contact.UniqueTags(inc.Tags),
			CreatedAt: ts,
			UpdatedAt: ts,
		})
		res.Added++
	}
	res.Merged = merged
	return res
}

func mergeInto(cur contact.Contact, inc outlookcsv.Record, ts int64) contact.Contact {
	pick := func(incoming, current string) string {
		if incoming != "" {
			return incoming
		}
		return current
	}
	cur.FirstName = pick(inc.FirstName, cur.FirstName)
	cur.LastName = pick(inc.LastName, cur.LastName)
	cur.Phone = pick(inc.Phone, cur.Phone)
	cur.Email = pick(inc.Email, cur.Email)
	cur.Birthday = pick(inc.Birthday, cur.Birthday)
	cur.Company = pick(inc.Company, cur.Company)
	cur.Title = pick(inc.Title, cur.Title)
	cur.Tags = contact.UnionTags(cur.Tags, inc.Tags)
	cur.UpdatedAt = ts
	return cur
}
