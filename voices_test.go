package main

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/dgnsrekt/vox/tts"
)

// stubAPI feeds canned voices into a tts.Service for command-level tests.
type stubAPI struct {
	voices []tts.Voice
}

func (s *stubAPI) Voices(context.Context) ([]tts.Voice, error) {
	return s.voices, nil
}

func (s *stubAPI) Synthesize(context.Context, string, string, string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("")), nil
}

func testVoices() []tts.Voice {
	return []tts.Voice{
		{ID: "voice-1", Name: "Alice", Category: "premade"},
		{ID: "voice-2", Name: "Bob", Labels: map[string]string{"accent": "british", "age": "young"}},
		{ID: "voice-3", Name: "Charlie"},
	}
}

func TestResolveVoice(t *testing.T) {
	svc := tts.NewService(&stubAPI{voices: testVoices()})
	ctx := context.Background()

	tests := []struct {
		name    string
		query   string
		want    string
		wantErr bool
	}{
		{"exact id", "voice-2", "voice-2", false},
		{"unique name match", "alice", "voice-1", false},
		{"unique partial match", "harli", "voice-3", false},
		// Unmatched values pass through so the API decides existence.
		{"no match passes through", "mystery-id", "mystery-id", false},
		{"ambiguous match", "voice", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveVoice(ctx, svc, tt.query)
			if tt.wantErr {
				if err == nil {
					t.Fatal("resolveVoice() error = nil, want ambiguity error")
				}
				return
			}
			if err != nil {
				t.Fatalf("resolveVoice() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("resolveVoice(%q) = %q, want %q", tt.query, got, tt.want)
			}
		})
	}
}

func TestVoiceDetails(t *testing.T) {
	voices := testVoices()

	if got := voiceDetails(voices[0]); got != "premade" {
		t.Errorf("voiceDetails() = %q, want %q", got, "premade")
	}
	// Label keys render sorted so output is stable between runs.
	if got := voiceDetails(voices[1]); got != "accent=british, age=young" {
		t.Errorf("voiceDetails() = %q, want sorted labels", got)
	}
	if got := voiceDetails(voices[2]); got != "" {
		t.Errorf("voiceDetails() = %q, want empty", got)
	}
}

func TestPrintVoicesTruncatesToWidth(t *testing.T) {
	var buf bytes.Buffer
	printVoices(&buf, testVoices(), 20)

	for _, line := range strings.Split(strings.TrimRight(buf.String(), "\n"), "\n") {
		if w := len([]rune(stripANSI(line))); w > 20 {
			t.Errorf("line width = %d, want <= 20: %q", w, line)
		}
	}
}

// stripANSI removes color escape sequences for width assertions.
func stripANSI(s string) string {
	var b strings.Builder
	inEscape := false
	for _, r := range s {
		switch {
		case inEscape:
			if r == 'm' {
				inEscape = false
			}
		case r == '\x1b':
			inEscape = true
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
