package contact

import (
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// Issue describes why a candidate record failed canonical validation.
type Issue struct {
	Message string `json:"message"`
}

func stringField() *jsonschema.Schema {
	return &jsonschema.Schema{Type: "string", Default: json.RawMessage(`""`)}
}

func timestampField() *jsonschema.Schema {
	return &jsonschema.Schema{Type: "integer", Default: json.RawMessage(`0`)}
}

// Schema is the canonical Contact schema. Every field but id is optional
// and defaults to its zero value.
var Schema = &jsonschema.Schema{
	Type:     "object",
	Required: []string{"id"},
	Properties: map[string]*jsonschema.Schema{
		"id":        {Type: "string"},
		"firstName": stringField(),
		"lastName":  stringField(),
		"phone":     stringField(),
		"email":     stringField(),
		"birthday":  stringField(),
		"company":   stringField(),
		"title":     stringField(),
		"color":     stringField(),
		"tags": {
			Type:        "array",
			Items:       &jsonschema.Schema{Type: "string"},
			UniqueItems: true,
			Default:     json.RawMessage(`[]`),
		},
		"createdAt": timestampField(),
		"updatedAt": timestampField(),
	},
}

var resolved = mustResolve(Schema)

func mustResolve(s *jsonschema.Schema) *jsonschema.Resolved {
	r, err := s.Resolve(nil)
	if err != nil {
		panic(fmt.Sprintf("contact schema: %v", err))
	}
	return r
}

// Validate applies schema defaults to raw and checks it against the
// canonical schema. On success the decoded Contact is returned; otherwise
// the issues explain the rejection. raw is not modified.
func Validate(raw map[string]any) (Contact, []Issue) {
	if raw == nil {
		return Contact{}, []Issue{{Message: "record is not an object"}}
	}
	candidate := make(map[string]any, len(raw))
	for k, v := range raw {
		candidate[k] = v
	}
	if err := resolved.ApplyDefaults(&candidate); err != nil {
		return Contact{}, []Issue{{Message: fmt.Sprintf("apply defaults: %v", err)}}
	}
	if err := resolved.Validate(candidate); err != nil {
		return Contact{}, []Issue{{Message: err.Error()}}
	}

	b, err := json.Marshal(candidate)
	if err != nil {
		return Contact{}, []Issue{{Message: fmt.Sprintf("encode candidate: %v", err)}}
	}
	var c Contact
	if err := json.Unmarshal(b, &c); err != nil {
		return Contact{}, []Issue{{Message: fmt.Sprintf("decode candidate: %v", err)}}
	}
	if c.Tags == nil {
		c.Tags = []string{}
	}
	return c, nil
}

// Canonicalize runs the legacy coercion rules and then validates the result.
func Canonicalize(raw map[string]any) (Contact, []Issue) {
	return Validate(Coerce(raw))
}

// ToMap converts a Contact into the untyped form the schema validates.
func ToMap(c Contact) map[string]any {
	b, err := json.Marshal(c)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil
	}
	return m
}
