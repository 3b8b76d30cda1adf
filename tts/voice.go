// Package tts holds the text-to-speech domain model and the service that
// orchestrates voice listing, searching, and streamed audio generation.
package tts

import "fmt"

// Voice is a synthetic voice profile hosted by the remote API. Values are
// constructed from API responses and never mutated.
type Voice struct {
	ID       string            `json:"voice_id"`
	Name     string            `json:"name"`
	Category string            `json:"category,omitempty"`
	Labels   map[string]string `json:"labels,omitempty"`
}

// String renders a single-line human-readable form for CLI display.
func (v Voice) String() string {
	s := fmt.Sprintf("%s (%s)", v.Name, v.ID)
	if v.Category != "" {
		s += " [" + v.Category + "]"
	}
	return s
}
