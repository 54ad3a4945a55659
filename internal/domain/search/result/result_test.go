package result

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestSet_Marshal_Empty(t *testing.T) {
	for _, s := range []Set{nil, {}} {
		got, err := s.Marshal()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "[]" {
			t.Errorf("Marshal() = %q, want []", got)
		}
	}
}

func TestSet_Marshal_Shape(t *testing.T) {
	s := Set{
		{Content: "Show A: space & friendship", Metadata: map[string]any{"type": "Movie", "release_year": float64(2019)}},
		{Content: "Show B"},
	}
	got, err := s.Marshal()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(got, "\n  {") {
		t.Errorf("expected two-space indentation, got:\n%s", got)
	}
	if !strings.Contains(got, "space & friendship") {
		t.Error("ampersand must not be HTML-escaped")
	}

	var decoded []map[string]any
	if err := json.Unmarshal([]byte(got), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if len(decoded) != 2 {
		t.Fatalf("decoded %d entries, want 2", len(decoded))
	}
	if decoded[0]["page_content"] != "Show A: space & friendship" {
		t.Errorf("page_content = %v", decoded[0]["page_content"])
	}
	md, ok := decoded[0]["metadata"].(map[string]any)
	if !ok || md["type"] != "Movie" || md["release_year"] != float64(2019) {
		t.Errorf("metadata = %v", decoded[0]["metadata"])
	}
	if md2, ok := decoded[1]["metadata"].(map[string]any); !ok || len(md2) != 0 {
		t.Errorf("nil metadata must render as {}, got %v", decoded[1]["metadata"])
	}
}

func TestSet_Marshal_PreservesOrder(t *testing.T) {
	s := Set{{Content: "first"}, {Content: "second"}, {Content: "third"}}
	got, err := s.Marshal()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var decoded []Match
	if err := json.Unmarshal([]byte(got), &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for i, want := range []string{"first", "second", "third"} {
		if decoded[i].Content != want {
			t.Errorf("[%d] = %q, want %q", i, decoded[i].Content, want)
		}
	}
	if s.Len() != 3 {
		t.Errorf("Len() = %d", s.Len())
	}
}
