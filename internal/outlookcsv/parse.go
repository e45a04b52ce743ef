package outlookcsv

import "strings"

// encoding/csv is not used here: it cannot sniff the delimiter, treats a
// lone '\r' as field data and rejects the loose quoting address-book
// exports produce.

var delimiterCandidates = []rune{',', ';', '\t'}

// DetectDelimiter inspects the first non-empty line and returns the most
// frequent unquoted delimiter among comma, semicolon and tab. Ties and
// lines without any candidate fall back to comma.
func DetectDelimiter(text string) rune {
	line := firstNonEmptyLine(text)
	if line == "" {
		return ','
	}
	counts := make(map[rune]int, len(delimiterCandidates))
	inQuotes := false
	runes := []rune(line)
	for i := 0; i < len(runes); i++ {
		ch := runes[i]
		if ch == '"' {
			if inQuotes && i+1 < len(runes) && runes[i+1] == '"' {
				i++
				continue
			}
			inQuotes = !inQuotes
			continue
		}
		if !inQuotes {
			counts[ch]++
		}
	}

	best, bestCount, tied := ',', 0, false
	for _, d := range delimiterCandidates {
		switch n := counts[d]; {
		case n > bestCount:
			best, bestCount, tied = d, n, false
		case n == bestCount && n > 0:
			tied = true
		}
	}
	if bestCount == 0 || tied {
		return ','
	}
	return best
}

func firstNonEmptyLine(text string) string {
	for _, line := range strings.FieldsFunc(text, func(r rune) bool { return r == '\n' || r == '\r' }) {
		if strings.TrimSpace(line) != "" {
			return line
		}
	}
	return ""
}

// Parse tokenizes text into rows using the sniffed delimiter. Quoted fields
// may contain delimiters, newlines and doubled quotes. "\n", "\r" and
// "\r\n" all end a row; rows whose cells are all blank are dropped.
func Parse(text string) [][]string {
	text = strings.TrimPrefix(text, "\ufeff")
	delim := DetectDelimiter(text)

	var (
		rows     [][]string
		row      []string
		cur      strings.Builder
		inQuotes bool
	)
	endCell := func() {
		row = append(row, cur.String())
		cur.Reset()
	}
	endRow := func() {
		endCell()
		rows = append(rows, row)
		row = nil
	}

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		ch := runes[i]
		if inQuotes {
			if ch == '"' {
				if i+1 < len(runes) && runes[i+1] == '"' {
					cur.WriteRune('"')
					i++
				} else {
					inQuotes = false
				}
				continue
			}
			cur.WriteRune(ch)
			continue
		}
		switch ch {
		case '"':
			inQuotes = true
		case delim:
			endCell()
		case '\n':
			endRow()
		case '\r':
			if i+1 < len(runes) && runes[i+1] == '\n' {
				i++
			}
			endRow()
		default:
			cur.WriteRune(ch)
		}
	}
	if cur.Len() > 0 || len(row) > 0 {
		endRow()
	}

	out := rows[:0]
	for _, r := range rows {
		if !blankRow(r) {
			out = append(out, r)
		}
	}
	return out
}

func blankRow(r []string) bool {
	for _, c := range r {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
