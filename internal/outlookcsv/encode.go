// Package outlookcsv converts contacts to and from the CSV dialect Outlook
// and most address books exchange.
package outlookcsv

import (
	"strings"
	"time"

	"github.com/Napageneral/bubble/internal/contact"
)

const tagJoiner = "; "

// Encode renders contacts as CSV with the given header vocabulary
// (FullHeaders or CuratedHeaders). Columns the record has no value for are
// left empty. Rows are separated by '\n' and always comma delimited.
func Encode(contacts []contact.Contact, headers []string) string {
	if len(headers) == 0 {
		headers = CuratedHeaders
	}
	index := make(map[string]int, len(headers))
	for i, h := range headers {
		index[h] = i
	}

	lines := make([]string, 0, len(contacts)+1)
	lines = append(lines, joinRow(headers))
	for _, c := range contacts {
		row := make([]string, len(headers))
		set := func(col, value string) {
			if i, ok := index[col]; ok {
				row[i] = value
			}
		}
		set(colFirstName, c.FirstName)
		set(colLastName, c.LastName)
		set(colCompany, c.Company)
		set(colJobTitle, c.Title)
		set(colMobile, c.Phone)
		set(colEmail, c.Email)
		set(colBirthday, formatBirthday(c.Birthday))
		set(colTags, joinTags(c.Tags))
		lines = append(lines, joinRow(row))
	}
	return strings.Join(lines, "\n")
}

// joinTags writes tags to one Categories cell. Tag delimiters inside a tag
// become spaces so the cell splits back into the same number of tags.
func joinTags(tags []string) string {
	cleaned := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.Join(strings.Fields(strings.NewReplacer(";", " ", ",", " ").Replace(t)), " ")
		if t != "" {
			cleaned = append(cleaned, t)
		}
	}
	return strings.Join(cleaned, tagJoiner)
}

func joinRow(cells []string) string {
	escaped := make([]string, len(cells))
	for i, v := range cells {
		escaped[i] = Escape(v)
	}
	return strings.Join(escaped, ",")
}

// Escape quotes v when it contains a comma, quote, CR or LF, doubling any
// embedded quotes.
func Escape(v string) string {
	if !strings.ContainsAny(v, ",\"\r\n") {
		return v
	}
	return `"` + strings.ReplaceAll(v, `"`, `""`) + `"`
}

// formatBirthday renders a stored ISO date as MM/DD/YYYY, or "" when it
// cannot be read.
func formatBirthday(iso string) string {
	iso = strings.TrimSpace(iso)
	if iso == "" {
		return ""
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339Nano, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, iso); err == nil {
			return t.Format("01/02/2006")
		}
	}
	return ""
}
