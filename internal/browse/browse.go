// Package browse filters and orders the contact list the way the home and
// tag screens show it.
package browse

import (
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/Napageneral/bubble/internal/contact"
	"github.com/Napageneral/bubble/internal/names"
	"github.com/Napageneral/bubble/internal/phone"
)

func indexText(c contact.Contact) string {
	fields := []string{c.FirstName, c.LastName, c.Phone, phone.Digits(c.Phone), c.Email, c.Company, c.Title, c.Birthday}
	fields = append(fields, c.Tags...)
	parts := fields[:0]
	for _, f := range fields {
		if f != "" {
			parts = append(parts, f)
		}
	}
	return strings.ToLower(strings.Join(parts, " "))
}

// Search returns the contacts whose name, phone, email, company, title,
// birthday or tags fuzzily contain term, closest first. A blank term
// returns contacts unchanged.
func Search(contacts []contact.Contact, term string) []contact.Contact {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return contacts
	}
	targets := make([]string, len(contacts))
	for i, c := range contacts {
		targets[i] = indexText(c)
	}
	matches := fuzzy.Find(term, targets)
	out := make([]contact.Contact, 0, len(matches))
	for _, m := range matches {
		out = append(out, contacts[m.Index])
	}
	return out
}

type Match string

const (
	MatchFull    Match = "full"
	MatchPartial Match = "partial"
	MatchNone    Match = "none"
)

// MatchStatus grades a contact against the selected tags. Full means the
// contact carries exactly the selected set. With nothing selected every
// contact is partial.
func MatchStatus(c contact.Contact, selected []string) Match {
	if len(selected) == 0 {
		return MatchPartial
	}
	all, some := true, false
	for _, t := range selected {
		if c.HasTag(t) {
			some = true
		} else {
			all = false
		}
	}
	switch {
	case all && len(c.Tags) == len(selected):
		return MatchFull
	case some:
		return MatchPartial
	}
	return MatchNone
}

// Arrange orders contacts full matches first, then partial, then none,
// each group sorted by name.
func Arrange(contacts []contact.Contact, selected []string, order names.Order) []contact.Contact {
	groups := map[Match][]contact.Contact{}
	for _, c := range contacts {
		m := MatchStatus(c, selected)
		groups[m] = append(groups[m], c)
	}
	out := make([]contact.Contact, 0, len(contacts))
	for _, m := range []Match{MatchFull, MatchPartial, MatchNone} {
		g := groups[m]
		names.Sort(g, order)
		out = append(out, g...)
	}
	return out
}
