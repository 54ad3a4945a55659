package request

import (
	"errors"
	"strings"
	"testing"

	"github.com/himanshuraimau/rag-movie-agent/internal/domain"
)

func TestNew_TrimsQuery(t *testing.T) {
	r, err := New("  space adventure  ", "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Query() != "space adventure" {
		t.Errorf("Query() = %q", r.Query())
	}
	if r.HasFilter() {
		t.Error("expected no filter")
	}
}

func TestNew_EmptyQuery(t *testing.T) {
	for _, q := range []string{"", "   ", "\t\n"} {
		_, err := New(q, "genre", "drama")
		if !errors.Is(err, domain.ErrValidation) {
			t.Errorf("New(%q): err = %v, want ErrValidation", q, err)
		}
	}
}

func TestNew_QueryTooLong(t *testing.T) {
	_, err := New(strings.Repeat("a", MaxQueryLength+1), "", "")
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestNew_FilterNormalization(t *testing.T) {
	tests := []struct {
		name             string
		field, value     string
		wantOK           bool
		wantField, wantV string
	}{
		{"both present", "type", "Movie", true, "type", "Movie"},
		{"trimmed", " type ", " Movie ", true, "type", "Movie"},
		{"field only", "type", "", false, "", ""},
		{"value only", "", "Movie", false, "", ""},
		{"blank value", "type", "   ", false, "", ""},
		{"neither", "", "", false, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := New("q", tt.field, tt.value)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			f, v, ok := r.Filter()
			if ok != tt.wantOK || f != tt.wantField || v != tt.wantV {
				t.Errorf("Filter() = (%q, %q, %v), want (%q, %q, %v)",
					f, v, ok, tt.wantField, tt.wantV, tt.wantOK)
			}
			if r.HasFilter() != tt.wantOK {
				t.Errorf("HasFilter() = %v", r.HasFilter())
			}
		})
	}
}

func TestFromToolArguments(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantQuery string
		wantField string
		wantValue string
		wantOK    bool
	}{
		{"query only", `{"query":"heist"}`, "heist", "", "", false},
		{"with filter", `{"query":"heist","filter_by":"type","filter_value":"Movie"}`, "heist", "type", "Movie", true},
		{"null filter", `{"query":"heist","filter_by":null,"filter_value":null}`, "heist", "", "", false},
		{"numeric value", `{"query":"heist","filter_by":"release_year","filter_value":2021}`, "heist", "release_year", "2021", true},
		{"unknown keys", `{"query":"heist","k":5}`, "heist", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := FromToolArguments(tt.raw)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if r.Query() != tt.wantQuery {
				t.Errorf("Query() = %q, want %q", r.Query(), tt.wantQuery)
			}
			f, v, ok := r.Filter()
			if f != tt.wantField || v != tt.wantValue || ok != tt.wantOK {
				t.Errorf("Filter() = (%q, %q, %v)", f, v, ok)
			}
		})
	}
}

func TestFromToolArguments_Invalid(t *testing.T) {
	for _, raw := range []string{"", "not json", `{"query":""}`, `{"filter_by":"type"}`, `{"query":["a"]}`} {
		if _, err := FromToolArguments(raw); !errors.Is(err, domain.ErrValidation) {
			t.Errorf("FromToolArguments(%q): err = %v, want ErrValidation", raw, err)
		}
	}
}
