package browse

import (
	"sort"
	"strings"

	"github.com/Napageneral/bubble/internal/contact"
	"github.com/Napageneral/bubble/internal/names"
)

type TagStatus string

const (
	TagSelected   TagStatus = "selected"
	TagRelevant   TagStatus = "relevant"
	TagIrrelevant TagStatus = "irrelevant"
)

type TagInfo struct {
	Name   string    `json:"name"`
	Count  int       `json:"count"`
	Status TagStatus `json:"status"`
}

// TagCounts returns how many contacts carry each tag.
func TagCounts(contacts []contact.Contact) map[string]int {
	counts := map[string]int{}
	for _, c := range contacts {
		for _, t := range c.Tags {
			counts[t]++
		}
	}
	return counts
}

// tagStatus: selected tags are selected; a tag is relevant when some
// contact carries it together with every selected tag.
func tagStatus(contacts []contact.Contact, name string, selected []string) TagStatus {
	for _, s := range selected {
		if s == name {
			return TagSelected
		}
	}
	for _, c := range contacts {
		if !c.HasTag(name) {
			continue
		}
		ok := true
		for _, s := range selected {
			if !c.HasTag(s) {
				ok = false
				break
			}
		}
		if ok {
			return TagRelevant
		}
	}
	return TagIrrelevant
}

func statusRank(s TagStatus) int {
	switch s {
	case TagSelected:
		return 0
	case TagRelevant:
		return 1
	}
	return 2
}

// TagSummary lists every tag in use whose name contains query
// (case-insensitive), ordered selected, relevant, irrelevant. Within a
// status tags are sorted by descending count when byCount is set, then by
// name.
func TagSummary(contacts []contact.Contact, selected []string, query string, byCount bool) []TagInfo {
	counts := TagCounts(contacts)
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]TagInfo, 0, len(counts))
	for name, n := range counts {
		if q != "" && !strings.Contains(strings.ToLower(name), q) {
			continue
		}
		out = append(out, TagInfo{Name: name, Count: n, Status: tagStatus(contacts, name, selected)})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if ra, rb := statusRank(a.Status), statusRank(b.Status); ra != rb {
			return ra < rb
		}
		if byCount && a.Count != b.Count {
			return a.Count > b.Count
		}
		if c := names.CompareStrings(a.Name, b.Name); c != 0 {
			return c < 0
		}
		return a.Name < b.Name
	})
	return out
}
