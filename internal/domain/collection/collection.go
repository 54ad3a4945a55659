package collection

import (
	"fmt"
	"regexp"

	"github.com/himanshuraimau/rag-movie-agent/internal/domain/collection/field"
)

var nameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Collection is a logical corpus of embedded documents plus its filterable metadata schema
// (immutable value object).
type Collection struct {
	name   string
	fields []field.Field
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("collection name is required")
	}
	if len(name) > 64 {
		return fmt.Errorf("collection name too long (max 64)")
	}
	if !nameRegex.MatchString(name) {
		return fmt.Errorf("collection name must be alphanumeric with underscores and hyphens")
	}
	return nil
}

func validateFields(fields []field.Field) error {
	if len(fields) > 64 {
		return fmt.Errorf("too many fields (max 64)")
	}
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if seen[f.Name()] {
			return fmt.Errorf("duplicate field name: %s", f.Name())
		}
		seen[f.Name()] = true
	}
	return nil
}

// New validates and creates a Collection.
func New(name string, fields []field.Field) (Collection, error) {
	if err := validateName(name); err != nil {
		return Collection{}, err
	}
	if err := validateFields(fields); err != nil {
		return Collection{}, err
	}
	cp := make([]field.Field, len(fields))
	copy(cp, fields)
	return Collection{name: name, fields: cp}, nil
}

// Name returns the collection name.
func (c Collection) Name() string { return c.name }

// Fields returns the declared metadata fields.
func (c Collection) Fields() []field.Field { return c.fields }

// FieldByName looks up a metadata field by name.
func (c Collection) FieldByName(name string) (field.Field, bool) {
	for _, f := range c.fields {
		if f.Name() == name {
			return f, true
		}
	}
	return field.Field{}, false
}
