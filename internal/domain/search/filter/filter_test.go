package filter

import (
	"strings"
	"testing"
)

func floatPtr(f float64) *float64 { return &f }

// --- Range tests ---

func TestNewRangeFilter_Valid(t *testing.T) {
	tests := []struct {
		name             string
		gt, gte, lt, lte *float64
	}{
		{"gt only", floatPtr(1), nil, nil, nil},
		{"gte only", nil, floatPtr(0), nil, nil},
		{"lt only", nil, nil, floatPtr(10), nil},
		{"lte only", nil, nil, nil, floatPtr(100)},
		{"gte+lte", nil, floatPtr(0), nil, floatPtr(10)},
		{"gt+lt", floatPtr(0), nil, floatPtr(10), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewRangeFilter(tt.gt, tt.gte, tt.lt, tt.lte)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if (r.GT() == nil) != (tt.gt == nil) {
				t.Error("GT() mismatch")
			}
			if (r.GTE() == nil) != (tt.gte == nil) {
				t.Error("GTE() mismatch")
			}
			if (r.LT() == nil) != (tt.lt == nil) {
				t.Error("LT() mismatch")
			}
			if (r.LTE() == nil) != (tt.lte == nil) {
				t.Error("LTE() mismatch")
			}
		})
	}
}

func TestNewRangeFilter_Invalid(t *testing.T) {
	tests := []struct {
		name             string
		gt, gte, lt, lte *float64
		wantMsg          string
	}{
		{"no boundary", nil, nil, nil, nil, "at least one"},
		{"gt and gte", floatPtr(1), floatPtr(1), nil, nil, "gt and gte"},
		{"lt and lte", nil, nil, floatPtr(1), floatPtr(1), "lt and lte"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRangeFilter(tt.gt, tt.gte, tt.lt, tt.lte)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error = %q, want substring %q", err, tt.wantMsg)
			}
		})
	}
}

func TestRange_Contains(t *testing.T) {
	r, _ := NewRangeFilter(floatPtr(1), nil, nil, floatPtr(5))
	cases := map[float64]bool{0: false, 1: false, 1.5: true, 5: true, 5.1: false}
	for v, want := range cases {
		if got := r.Contains(v); got != want {
			t.Errorf("Contains(%g) = %v, want %v", v, got, want)
		}
	}
}

// --- Condition tests ---

func TestNewMatch(t *testing.T) {
	c, err := NewMatch("genre", "drama")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !c.IsMatch() || c.IsRange() {
		t.Error("expected a match condition")
	}
	if c.Key() != "genre" || c.Match() != "drama" {
		t.Errorf("unexpected condition: %+v", c)
	}

	if _, err := NewMatch("", "drama"); err == nil {
		t.Error("expected error for empty key")
	}
	if _, err := NewMatch("genre", ""); err == nil {
		t.Error("expected error for empty value")
	}
}

func TestNewEquals(t *testing.T) {
	c, err := NewEquals("release_year", 2021)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !c.IsRange() {
		t.Fatal("expected range condition")
	}
	if *c.Range().GTE() != 2021 || *c.Range().LTE() != 2021 {
		t.Errorf("expected [2021, 2021], got [%v, %v]", *c.Range().GTE(), *c.Range().LTE())
	}
}

func TestCondition_Accepts(t *testing.T) {
	match, _ := NewMatch("genre", "comedy")
	year, _ := NewEquals("release_year", 2021)

	tests := []struct {
		name string
		cond Condition
		raw  string
		want bool
	}{
		{"match equal", match, "comedy", true},
		{"match differs", match, "drama", false},
		{"match is case sensitive", match, "Comedy", false},
		{"range equal", year, "2021", true},
		{"range float form", year, "2021.0", true},
		{"range differs", year, "2020", false},
		{"range not a number", year, "twenty", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cond.Accepts(tt.raw); got != tt.want {
				t.Errorf("Accepts(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

// --- Expression tests ---

func TestNewExpression(t *testing.T) {
	c, _ := NewMatch("genre", "drama")
	e, err := NewExpression(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.IsEmpty() {
		t.Error("expected non-empty expression")
	}
	if len(e.Must()) != 1 {
		t.Errorf("expected 1 condition, got %d", len(e.Must()))
	}
	if !(Expression{}).IsEmpty() {
		t.Error("zero Expression must be empty")
	}
}

func TestNewExpression_TooMany(t *testing.T) {
	conds := make([]Condition, MaxConditions+1)
	for i := range conds {
		conds[i], _ = NewMatch("genre", "drama")
	}
	if _, err := NewExpression(conds...); err == nil {
		t.Fatal("expected error for too many conditions")
	}
}
