package tts

import "strings"

// Request describes one synthesis invocation: what to say, with which
// voice, and where the audio goes. Construct with NewRequest; a Request is
// never mutated after construction.
type Request struct {
	Text       string
	VoiceID    string
	OutputPath string
}

// NewRequest validates that every field is non-empty after trimming and
// returns a ValidationError naming the first offending field otherwise.
// VoiceID is only checked for emptiness here; whether it exists is decided
// by the remote API.
func NewRequest(text, voiceID, outputPath string) (Request, error) {
	if strings.TrimSpace(text) == "" {
		return Request{}, &ValidationError{Field: "text"}
	}
	if strings.TrimSpace(voiceID) == "" {
		return Request{}, &ValidationError{Field: "voice_id"}
	}
	if strings.TrimSpace(outputPath) == "" {
		return Request{}, &ValidationError{Field: "output_path"}
	}
	return Request{Text: text, VoiceID: voiceID, OutputPath: outputPath}, nil
}
