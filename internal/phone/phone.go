// Package phone canonicalizes phone numbers and compares them with a
// tail-tolerant equality so "+1 (555) 123-4567" and "5551234567" match.
package phone

import (
	"regexp"
	"strings"
)

const (
	shortTail = 7
	longTail  = 10
)

var candidateRe = regexp.MustCompile(`\+?\d[\d\s().-]{5,}`)

// Normalize strips everything but digits, keeping a single leading '+'.
func Normalize(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	hasPlus := strings.HasPrefix(s, "+")
	digits := Digits(s)
	if digits == "" {
		return ""
	}
	if hasPlus {
		return "+" + digits
	}
	return digits
}

// Digits returns only the ASCII digits of raw.
func Digits(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Match reports whether two raw numbers denote the same line. Exact
// normalized equality wins; otherwise the last 7, then the last 10 digits
// are compared when both numbers are long enough.
func Match(a, b string) bool {
	na := Normalize(a)
	nb := Normalize(b)
	if na == "" || nb == "" {
		return false
	}
	if na == nb {
		return true
	}
	da := Digits(na)
	db := Digits(nb)
	if tail(da, shortTail) != "" && tail(da, shortTail) == tail(db, shortTail) {
		return true
	}
	return tail(da, longTail) != "" && tail(da, longTail) == tail(db, longTail)
}

func tail(digits string, n int) string {
	if len(digits) < n {
		return ""
	}
	return digits[len(digits)-n:]
}

// Extract finds the first phone-looking run in free text (a notification
// title or body) with at least 7 digits and returns it normalized.
func Extract(text string) string {
	for _, m := range candidateRe.FindAllString(text, -1) {
		if len(Digits(m)) >= shortTail {
			return Normalize(m)
		}
	}
	return ""
}
