package result

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Match is one retrieved document: its text and the metadata stored alongside it.
type Match struct {
	Content  string         `json:"page_content"`
	Metadata map[string]any `json:"metadata"`
}

// Set is an ordered list of matches, most similar first.
type Set []Match

// Marshal renders the set as an indented JSON array.
// An empty set renders as "[]".
func (s Set) Marshal() (string, error) {
	out := make(Set, len(s))
	for i, m := range s {
		if m.Metadata == nil {
			m.Metadata = map[string]any{}
		}
		out[i] = m
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return "", fmt.Errorf("marshal result set: %w", err)
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

// Len returns the number of matches.
func (s Set) Len() int { return len(s) }
