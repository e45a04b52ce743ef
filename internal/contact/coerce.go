package contact

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// rule lifts one field of a legacy record into canonical shape.
type rule struct {
	field   string
	extract func(raw map[string]any) (any, bool)
	def     func() any
}

var legacyIDKeys = []string{"uuid", "_id", "key"}

var stringFields = []string{"firstName", "lastName", "phone", "email", "birthday", "company", "title", "color"}

func rules(now int64) []rule {
	rs := []rule{
		{field: "id", extract: extractID, def: func() any { return uuid.NewString() }},
		{field: "tags", extract: extractTags, def: func() any { return []any{} }},
	}
	for _, f := range stringFields {
		rs = append(rs, rule{field: f, extract: extractString(f), def: func() any { return "" }})
	}
	for _, f := range []string{"createdAt", "updatedAt"} {
		rs = append(rs, rule{field: f, extract: extractNumber(f), def: func() any { return float64(now) }})
	}
	return rs
}

// Coerce adapts a record from an older store generation into a candidate
// for Validate. It never fails; fields it does not know are carried
// through untouched.
func Coerce(raw map[string]any) map[string]any {
	out := make(map[string]any, len(raw)+4)
	for k, v := range raw {
		out[k] = v
	}
	for _, r := range rules(NowMillis()) {
		if v, ok := r.extract(raw); ok {
			out[r.field] = v
		} else {
			out[r.field] = r.def()
		}
	}
	return out
}

func extractID(raw map[string]any) (any, bool) {
	if v, ok := raw["id"]; ok && v != nil {
		return stringify(v), true
	}
	for _, k := range legacyIDKeys {
		if v, ok := raw[k]; ok && v != nil {
			return stringify(v), true
		}
	}
	return nil, false
}

func extractTags(raw map[string]any) (any, bool) {
	switch v := raw["tags"].(type) {
	case string:
		out := []any{}
		for _, t := range UniqueTags(strings.Split(v, ",")) {
			out = append(out, t)
		}
		return out, true
	case []any:
		// Non-string entries are kept so validation can reject the record.
		out := make([]any, 0, len(v))
		seen := map[string]struct{}{}
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				out = append(out, item)
				continue
			}
			if _, dup := seen[s]; dup {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
		return out, true
	case []string:
		out := []any{}
		for _, t := range UniqueTags(v) {
			out = append(out, t)
		}
		return out, true
	}
	return nil, false
}

func extractString(field string) func(map[string]any) (any, bool) {
	return func(raw map[string]any) (any, bool) {
		v, ok := raw[field]
		if !ok || v == nil {
			return nil, false
		}
		return stringify(v), true
	}
}

func extractNumber(field string) func(map[string]any) (any, bool) {
	return func(raw map[string]any) (any, bool) {
		switch v := raw[field].(type) {
		case float64:
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, false
			}
			return v, true
		case int64:
			return float64(v), true
		case int:
			return float64(v), true
		case json.Number:
			f, err := v.Float64()
			if err != nil || math.IsInf(f, 0) {
				return nil, false
			}
			return f, true
		}
		return nil, false
	}
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case json.Number:
		return t.String()
	case int, int64:
		return fmt.Sprint(t)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
