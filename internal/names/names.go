// Package names renders and orders people by given and family name,
// using locale-aware collation.
package names

import (
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Order controls how a first/last name pair is rendered and sorted.
type Order string

const (
	FirstLast Order = "firstLast"
	LastFirst Order = "lastFirst"
)

// ParseOrder maps a stored value to an Order, defaulting to FirstLast.
func ParseOrder(s string) Order {
	if Order(strings.TrimSpace(s)) == LastFirst {
		return LastFirst
	}
	return FirstLast
}

// Valid reports whether o is a known order.
func (o Order) Valid() bool {
	return o == FirstLast || o == LastFirst
}

// Named is anything with a first and last name.
type Named interface {
	GivenName() string
	FamilyName() string
}

// Display renders a name pair. When one half is empty the other is
// returned on its own.
func Display(first, last string, order Order) string {
	first = strings.TrimSpace(first)
	last = strings.TrimSpace(last)
	if order == LastFirst {
		if first != "" && last != "" {
			return last + ", " + first
		}
		if last != "" {
			return last
		}
		return first
	}
	if first != "" && last != "" {
		return first + " " + last
	}
	if first != "" {
		return first
	}
	return last
}

// DisplayName renders n according to order.
func DisplayName(n Named, order Order) string {
	return Display(n.GivenName(), n.FamilyName(), order)
}

var (
	collMu sync.Mutex
	coll   = collate.New(language.Und)
)

// CompareStrings is a locale-aware three-way comparison.
func CompareStrings(a, b string) int {
	collMu.Lock()
	defer collMu.Unlock()
	return coll.CompareString(a, b)
}

// Compare orders two names: first then last for FirstLast, last then
// first for LastFirst. The result is -1, 0 or 1.
func Compare(a, b Named, order Order) int {
	af, al := strings.TrimSpace(a.GivenName()), strings.TrimSpace(a.FamilyName())
	bf, bl := strings.TrimSpace(b.GivenName()), strings.TrimSpace(b.FamilyName())
	if order == LastFirst {
		if c := CompareStrings(al, bl); c != 0 {
			return c
		}
		return CompareStrings(af, bf)
	}
	if c := CompareStrings(af, bf); c != 0 {
		return c
	}
	return CompareStrings(al, bl)
}

// Sort orders items in place, stable with respect to equal names.
func Sort[T Named](items []T, order Order) {
	sort.SliceStable(items, func(i, j int) bool {
		return Compare(items[i], items[j], order) < 0
	})
}
