package types

import "strings"

// ScoringText returns the text a relevance judgment is made over.
func (c Chunk) ScoringText() string {
	return c.Content
}

// ScoringText returns the text a relevance judgment is made over: the
// name and description combined when a description exists, else the name.
func (e Entity) ScoringText() string {
	if e.Description != "" {
		return strings.TrimSpace(e.Name + ": " + e.Description)
	}
	return e.Name
}
