// Package domain contains the Singer data structures (catalog, schema, state
// and messages) shared by the rest of the application.
package domain

import (
	"encoding/json"
	"fmt"
)

// TypeList is the JSON schema "type" keyword. It is written as a bare string
// when it holds a single type and as an array otherwise.
type TypeList []string

func (t TypeList) MarshalJSON() ([]byte, error) {
	if len(t) == 1 {
		return json.Marshal(t[0])
	}
	return json.Marshal([]string(t))
}

func (t *TypeList) UnmarshalJSON(b []byte) error {
	var single string
	if err := json.Unmarshal(b, &single); err == nil {
		*t = TypeList{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return fmt.Errorf("schema type must be a string or a list of strings: %w", err)
	}
	*t = many
	return nil
}

// Has reports whether the list contains the given type.
func (t TypeList) Has(name string) bool {
	for _, v := range t {
		if v == name {
			return true
		}
	}
	return false
}

// Schema is the subset of JSON schema used to describe streams. Numeric
// bounds are decimal literals so wide SQL Server types keep every digit.
type Schema struct {
	Type                 TypeList           `json:"type,omitempty"`
	Format               string             `json:"format,omitempty"`
	ContentEncoding      string             `json:"contentEncoding,omitempty"`
	Properties           map[string]*Schema `json:"properties,omitempty"`
	Required             []string           `json:"required,omitempty"`
	MaxLength            *int               `json:"maxLength,omitempty"`
	Minimum              *json.Number       `json:"minimum,omitempty"`
	Maximum              *json.Number       `json:"maximum,omitempty"`
	MultipleOf           *json.Number       `json:"multipleOf,omitempty"`
	AdditionalProperties any                `json:"additionalProperties,omitempty"`
}

// Nullable reports whether null is an accepted value.
func (s *Schema) Nullable() bool {
	return s != nil && s.Type.Has("null")
}

// Select returns a copy of the object schema holding only the named
// properties. Required entries that were dropped are removed as well.
func (s *Schema) Select(names []string) *Schema {
	out := *s
	out.Properties = make(map[string]*Schema, len(names))
	keep := make(map[string]bool, len(names))
	for _, name := range names {
		if prop, ok := s.Properties[name]; ok {
			out.Properties[name] = prop
			keep[name] = true
		}
	}
	out.Required = nil
	for _, name := range s.Required {
		if keep[name] {
			out.Required = append(out.Required, name)
		}
	}
	return &out
}
