package ragmovie

import (
	"fmt"

	"github.com/himanshuraimau/rag-movie-agent/internal/domain"
	"github.com/himanshuraimau/rag-movie-agent/internal/domain/collection"
	"github.com/himanshuraimau/rag-movie-agent/internal/domain/collection/field"
)

// FieldType is the indexing type of a metadata field.
type FieldType string

// Field types.
const (
	FieldTag     FieldType = "tag"
	FieldNumeric FieldType = "numeric"
)

// Field declares a filterable metadata attribute of a collection.
type Field struct {
	Name string
	Type FieldType
}

// Tag declares an exact-match string field.
func Tag(name string) Field { return Field{Name: name, Type: FieldTag} }

// Numeric declares a float field. Equality filters on it match by value.
func Numeric(name string) Field { return Field{Name: name, Type: FieldNumeric} }

func buildCollection(name string, fields []Field) (collection.Collection, error) {
	domFields := make([]field.Field, 0, len(fields))
	for _, f := range fields {
		df, err := field.New(f.Name, field.Type(f.Type))
		if err != nil {
			return collection.Collection{}, fmt.Errorf("%w: %w", domain.ErrConfiguration, err)
		}
		domFields = append(domFields, df)
	}
	col, err := collection.New(name, domFields)
	if err != nil {
		return collection.Collection{}, fmt.Errorf("%w: %w", domain.ErrConfiguration, err)
	}
	return col, nil
}
