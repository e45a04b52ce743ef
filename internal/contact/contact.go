// Package contact defines the canonical Contact record, its schema and the
// coercion rules that lift older stored shapes into it.
package contact

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Contact is the canonical, persisted contact record.
type Contact struct {
	ID        string   `json:"id"`
	FirstName string   `json:"firstName"`
	LastName  string   `json:"lastName"`
	Phone     string   `json:"phone"`
	Email     string   `json:"email"`
	Birthday  string   `json:"birthday"`
	Company   string   `json:"company"`
	Title     string   `json:"title"`
	Tags      []string `json:"tags"`
	Color     string   `json:"color"`
	CreatedAt int64    `json:"createdAt"`
	UpdatedAt int64    `json:"updatedAt"`
}

func (c Contact) GivenName() string  { return c.FirstName }
func (c Contact) FamilyName() string { return c.LastName }

// HasTag reports whether tag is in c.Tags.
func (c Contact) HasTag(tag string) bool {
	for _, t := range c.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// New returns a contact with a fresh id and both timestamps set to now.
func New() Contact {
	now := NowMillis()
	return Contact{ID: uuid.NewString(), Tags: []string{}, CreatedAt: now, UpdatedAt: now}
}

// NowMillis is the current time in epoch milliseconds.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}

// UniqueTags trims tags, drops blanks and collapses duplicates, keeping the
// first occurrence of each.
func UniqueTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// UnionTags appends the tags of b missing from a.
func UnionTags(a, b []string) []string {
	merged := make([]string, 0, len(a)+len(b))
	merged = append(merged, a...)
	merged = append(merged, b...)
	return UniqueTags(merged)
}

// ByID indexes contacts by id; later duplicates win.
func ByID(contacts []Contact) map[string]int {
	idx := make(map[string]int, len(contacts))
	for i, c := range contacts {
		idx[c.ID] = i
	}
	return idx
}
