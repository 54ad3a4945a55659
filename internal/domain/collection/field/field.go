package field

import (
	"fmt"
	"regexp"
	"strings"
)

// Type is the indexing type of a metadata field.
type Type string

// Field type constants.
const (
	// Tag is an exact-match string attribute.
	Tag     Type = "tag"
	Numeric Type = "numeric"
)

var nameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Field is an immutable value object describing a filterable metadata attribute.
type Field struct {
	name      string
	fieldType Type
}

// New validates and creates a Field.
// Names starting with "__" are reserved for content and vector storage.
func New(name string, ft Type) (Field, error) {
	if name == "" {
		return Field{}, fmt.Errorf("field name is required")
	}
	if len(name) > 64 {
		return Field{}, fmt.Errorf("field name %q too long (max 64)", name)
	}
	if strings.HasPrefix(name, "__") {
		return Field{}, fmt.Errorf("field name %q is reserved", name)
	}
	if !nameRegex.MatchString(name) {
		return Field{}, fmt.Errorf("field name %q must be alphanumeric with underscores and hyphens", name)
	}
	switch ft {
	case "":
		ft = Tag
	case Tag, Numeric:
	default:
		return Field{}, fmt.Errorf("invalid field type %q for %q", ft, name)
	}
	return Field{name: name, fieldType: ft}, nil
}

// Name returns the field name.
func (f Field) Name() string { return f.name }

// FieldType returns the field's indexing type.
func (f Field) FieldType() Type { return f.fieldType }
