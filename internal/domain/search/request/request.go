package request

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/himanshuraimau/rag-movie-agent/internal/domain"
)

// MaxQueryLength is the maximum query size in bytes.
const MaxQueryLength = 4096

// Request is a validated search request: a non-empty query and an optional
// single field/value metadata filter (immutable value object).
type Request struct {
	query       string
	filterField string
	filterValue string
}

// New validates and normalizes a search request.
// The filter is applied only when both field and value are non-empty after trimming;
// a half-specified filter yields an unfiltered request.
func New(query, filterField, filterValue string) (Request, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return Request{}, fmt.Errorf("%w: query is required", domain.ErrValidation)
	}
	if len(q) > MaxQueryLength {
		return Request{}, fmt.Errorf("%w: query too long (max %d bytes)", domain.ErrValidation, MaxQueryLength)
	}

	f := strings.TrimSpace(filterField)
	v := strings.TrimSpace(filterValue)
	if f == "" || v == "" {
		f, v = "", ""
	}
	return Request{query: q, filterField: f, filterValue: v}, nil
}

// Query returns the trimmed query text.
func (r Request) Query() string { return r.query }

// Filter returns the metadata filter, if present.
func (r Request) Filter() (field, value string, ok bool) {
	return r.filterField, r.filterValue, r.filterField != ""
}

// HasFilter reports whether the request restricts results by metadata.
func (r Request) HasFilter() bool { return r.filterField != "" }

// Arguments is the wire shape of a tool invocation.
type Arguments struct {
	Query       scalar `json:"query"`
	FilterBy    scalar `json:"filter_by"`
	FilterValue scalar `json:"filter_value"`
}

// FromToolArguments decodes tool-call arguments and builds a Request.
// Unknown keys are ignored; null or missing filter arguments mean "no filter".
func FromToolArguments(raw string) (Request, error) {
	var args Arguments
	if strings.TrimSpace(raw) == "" {
		return Request{}, fmt.Errorf("%w: arguments are required", domain.ErrValidation)
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return Request{}, fmt.Errorf("%w: decode arguments: %v", domain.ErrValidation, err)
	}
	return New(string(args.Query), string(args.FilterBy), string(args.FilterValue))
}

// scalar accepts a JSON string, number, or boolean and keeps its text form.
// Models occasionally emit release_year as a bare number.
type scalar string

func (s *scalar) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case nil:
		*s = ""
	case string:
		*s = scalar(t)
	case float64:
		*s = scalar(strconv.FormatFloat(t, 'f', -1, 64))
	case bool:
		*s = scalar(strconv.FormatBool(t))
	default:
		return fmt.Errorf("expected a scalar, got %T", v)
	}
	return nil
}
