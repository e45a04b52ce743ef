package outlookcsv

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// Record is one decoded CSV row in contact shape. Birthday is an ISO date
// (YYYY-MM-DD) or empty.
type Record struct {
	FirstName string   `json:"firstName"`
	LastName  string   `json:"lastName"`
	Phone     string   `json:"phone"`
	Email     string   `json:"email,omitempty"`
	Birthday  string   `json:"birthday,omitempty"`
	Company   string   `json:"company,omitempty"`
	Title     string   `json:"title,omitempty"`
	Tags      []string `json:"tags"`
}

type field int

const (
	fieldIgnored field = iota
	fieldFirstName
	fieldLastName
	fieldEmail
	fieldEmailAlt
	fieldPhone
	fieldCompany
	fieldTitle
	fieldBirthday
	fieldTags
)

// Phone columns compete by rank; lower wins regardless of column order.
const (
	rankMobile = iota + 1
	rankPrimary
	rankBusiness
	rankHome
	rankOther
	rankGeneric
	rankNone = 99
)

type column struct {
	field field
	rank  int
}

// classifyHeader maps a free-form header cell onto a record field. Checks
// run in order, so "Company Main Phone" lands on the business phone slot
// rather than company.
func classifyHeader(h string) column {
	s := strings.ToLower(strings.TrimSpace(h))
	has := func(parts ...string) bool {
		for _, p := range parts {
			if !strings.Contains(s, p) {
				return false
			}
		}
		return true
	}

	switch {
	case has("first", "name"):
		return column{field: fieldFirstName}
	case has("last", "name"):
		return column{field: fieldLastName}
	case (has("e-mail") || has("email")) && has("address"):
		if has("2") || has("3") {
			return column{field: fieldEmailAlt}
		}
		return column{field: fieldEmail}
	case s == "email" || s == "e-mail":
		return column{field: fieldEmail}
	case has("mobile", "phone"):
		return column{field: fieldPhone, rank: rankMobile}
	case has("primary", "phone"):
		return column{field: fieldPhone, rank: rankPrimary}
	case has("business", "phone"):
		return column{field: fieldPhone, rank: rankBusiness}
	case has("home", "phone"):
		return column{field: fieldPhone, rank: rankHome}
	case has("other", "phone"), has("car", "phone"):
		return column{field: fieldPhone, rank: rankOther}
	case has("company main", "phone"):
		return column{field: fieldPhone, rank: rankBusiness}
	case s == "phone" || s == "mobile":
		return column{field: fieldPhone, rank: rankGeneric}
	case has("company"):
		return column{field: fieldCompany}
	case has("job", "title"):
		return column{field: fieldTitle}
	case has("birth"):
		return column{field: fieldBirthday}
	case has("categor"):
		return column{field: fieldTags}
	}
	return column{field: fieldIgnored}
}

// Decode parses CSV text into records. The first row is the header; rows
// without a first name, last name, email or phone are skipped.
func Decode(text string) []Record {
	rows := Parse(text)
	if len(rows) == 0 {
		return nil
	}
	cols := make([]column, len(rows[0]))
	for i, h := range rows[0] {
		cols[i] = classifyHeader(h)
	}

	var out []Record
	for _, row := range rows[1:] {
		rec := Record{Tags: []string{}}
		phoneRank := rankNone
		for i, raw := range row {
			if i >= len(cols) {
				break
			}
			val := strings.TrimSpace(raw)
			switch col := cols[i]; col.field {
			case fieldFirstName:
				rec.FirstName = val
			case fieldLastName:
				rec.LastName = val
			case fieldEmail:
				if val != "" {
					rec.Email = val
				}
			case fieldEmailAlt:
				if rec.Email == "" {
					rec.Email = val
				}
			case fieldPhone:
				if val != "" && col.rank < phoneRank {
					rec.Phone = val
					phoneRank = col.rank
				}
			case fieldCompany:
				rec.Company = val
			case fieldTitle:
				rec.Title = val
			case fieldBirthday:
				rec.Birthday = ParseBirthday(val)
			case fieldTags:
				rec.Tags = splitTags(val)
			}
		}
		if rec.FirstName == "" && rec.LastName == "" && rec.Email == "" && rec.Phone == "" {
			continue
		}
		out = append(out, rec)
	}
	return out
}

func splitTags(v string) []string {
	parts := strings.FieldsFunc(v, func(r rune) bool { return r == ';' || r == ',' })
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			tags = append(tags, p)
		}
	}
	return tags
}

var slashDate = regexp.MustCompile(`^(\d{1,2})[/-](\d{1,2})[/-](\d{2,4})$`)

// ParseBirthday reads M/D/YYYY (or M-D-YY, two-digit years land in the
// 2000s) and falls back to free-form date parsing. Unreadable input yields
// "".
func ParseBirthday(v string) string {
	t := strings.TrimSpace(v)
	if t == "" {
		return ""
	}
	if m := slashDate.FindStringSubmatch(t); m != nil {
		month, _ := strconv.Atoi(m[1])
		day, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		if year < 100 {
			year += 2000
		}
		d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
		if int(d.Month()) == month && d.Day() == day {
			return d.Format("2006-01-02")
		}
	}
	d, err := parseAny(t)
	if err != nil {
		return ""
	}
	return d.Format("2006-01-02")
}

func parseAny(t string) (d time.Time, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parse date %q: %v", t, r)
		}
	}()
	return dateparse.ParseIn(t, time.UTC)
}
