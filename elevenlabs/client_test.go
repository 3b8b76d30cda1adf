package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dgnsrekt/vox/tts"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient("test-key", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(client.Close)
	return client
}

func TestNewClientRequiresCredential(t *testing.T) {
	t.Setenv(EnvAPIKey, "")

	_, err := NewClient("")
	var authErr *tts.AuthenticationError
	if !errors.As(err, &authErr) {
		t.Fatalf("NewClient() error = %v, want *tts.AuthenticationError", err)
	}
}

func TestNewClientEnvFallback(t *testing.T) {
	t.Setenv(EnvAPIKey, "env-key")

	client, err := NewClient("")
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	if client.apiKey != "env-key" {
		t.Errorf("apiKey = %q, want %q", client.apiKey, "env-key")
	}
}

func TestNewClientParameterWinsOverEnv(t *testing.T) {
	t.Setenv(EnvAPIKey, "env-key")

	client, err := NewClient("param-key")
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	if client.apiKey != "param-key" {
		t.Errorf("apiKey = %q, want %q", client.apiKey, "param-key")
	}
}

func TestVoicesPreservesWireOrder(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/voices" {
			t.Errorf("path = %q, want /voices", r.URL.Path)
		}
		if got := r.Header.Get("xi-api-key"); got != "test-key" {
			t.Errorf("xi-api-key = %q, want %q", got, "test-key")
		}
		if got := r.Header.Get("Accept"); got != "application/json" {
			t.Errorf("Accept = %q, want application/json", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"voices": [
			{"voice_id": "voice-3", "name": "Charlie", "category": "premade"},
			{"voice_id": "voice-1", "name": "Alice", "labels": {"accent": "american"}},
			{"voice_id": "voice-2", "name": "Bob"}
		]}`))
	}))

	voices, err := client.Voices(context.Background())
	if err != nil {
		t.Fatalf("Voices() error = %v", err)
	}

	wantIDs := []string{"voice-3", "voice-1", "voice-2"}
	if len(voices) != len(wantIDs) {
		t.Fatalf("got %d voices, want %d", len(voices), len(wantIDs))
	}
	for i, id := range wantIDs {
		if voices[i].ID != id {
			t.Errorf("voices[%d].ID = %q, want %q (adapter must not reorder)", i, voices[i].ID, id)
		}
	}
	if voices[0].Category != "premade" {
		t.Errorf("Category = %q, want premade", voices[0].Category)
	}
	if voices[1].Labels["accent"] != "american" {
		t.Errorf("Labels = %v, want accent=american", voices[1].Labels)
	}
}

func TestVoicesStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "401 authentication",
			status: http.StatusUnauthorized,
			check: func(t *testing.T, err error) {
				var authErr *tts.AuthenticationError
				if !errors.As(err, &authErr) {
					t.Fatalf("error = %v, want *tts.AuthenticationError", err)
				}
			},
		},
		{
			name:   "429 rate limit",
			status: http.StatusTooManyRequests,
			check: func(t *testing.T, err error) {
				var rateErr *tts.RateLimitError
				if !errors.As(err, &rateErr) {
					t.Fatalf("error = %v, want *tts.RateLimitError", err)
				}
				if rateErr.Message == "" {
					t.Error("rate limit message should default to non-empty")
				}
			},
		},
		{
			name:   "500 generic API",
			status: http.StatusInternalServerError,
			body:   "upstream exploded",
			check: func(t *testing.T, err error) {
				var apiErr *tts.APIError
				if !errors.As(err, &apiErr) {
					t.Fatalf("error = %v, want *tts.APIError", err)
				}
				if apiErr.StatusCode != http.StatusInternalServerError {
					t.Errorf("StatusCode = %d, want 500", apiErr.StatusCode)
				}
				if apiErr.Body != "upstream exploded" {
					t.Errorf("Body = %q, want the raw response body", apiErr.Body)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))

			_, err := client.Voices(context.Background())
			tt.check(t, err)
		})
	}
}

func TestVoicesNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	client, err := NewClient("test-key", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatal(err)
	}
	srv.Close() // nothing is listening anymore

	_, err = client.Voices(context.Background())
	var netErr *tts.NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("Voices() error = %v, want *tts.NetworkError", err)
	}
}

func TestSynthesizeStreamsBody(t *testing.T) {
	audio := bytes.Repeat([]byte("mp3-data"), 512)

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %q, want POST", r.Method)
		}
		if r.URL.Path != "/text-to-speech/voice-1" {
			t.Errorf("path = %q, want /text-to-speech/voice-1", r.URL.Path)
		}
		if got := r.Header.Get("Accept"); got != "audio/mpeg" {
			t.Errorf("Accept = %q, want audio/mpeg", got)
		}

		var payload struct {
			Text          string `json:"text"`
			ModelID       string `json:"model_id"`
			VoiceSettings struct {
				Stability       float64 `json:"stability"`
				SimilarityBoost float64 `json:"similarity_boost"`
			} `json:"voice_settings"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("unable to decode request body: %v", err)
		}
		if payload.Text != "hello world" {
			t.Errorf("text = %q, want %q", payload.Text, "hello world")
		}
		if payload.ModelID != DefaultModel {
			t.Errorf("model_id = %q, want default %q", payload.ModelID, DefaultModel)
		}
		if payload.VoiceSettings.Stability != 0.5 {
			t.Errorf("stability = %v, want 0.5", payload.VoiceSettings.Stability)
		}
		if payload.VoiceSettings.SimilarityBoost != 0.75 {
			t.Errorf("similarity_boost = %v, want 0.75", payload.VoiceSettings.SimilarityBoost)
		}

		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write(audio)
	}))

	stream, err := client.Synthesize(context.Background(), "hello world", "voice-1", "")
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	defer stream.Close() //nolint:errcheck

	got, err := io.ReadAll(stream)
	if err != nil {
		t.Fatalf("reading stream: %v", err)
	}
	if !bytes.Equal(got, audio) {
		t.Errorf("stream delivered %d bytes, want %d identical bytes", len(got), len(audio))
	}
	if err := stream.Close(); err != nil {
		t.Errorf("second Close() error = %v, want nil", err)
	}
}

func TestSynthesizeVoiceNotFound(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := client.Synthesize(context.Background(), "hello", "voice-404", "")
	var notFound *tts.VoiceNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("Synthesize() error = %v, want *tts.VoiceNotFoundError", err)
	}
	if notFound.VoiceID != "voice-404" {
		t.Errorf("VoiceID = %q, want %q", notFound.VoiceID, "voice-404")
	}
}

func TestSynthesizeRateLimited(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	_, err := client.Synthesize(context.Background(), "hello", "voice-1", "")
	var rateErr *tts.RateLimitError
	if !errors.As(err, &rateErr) {
		t.Fatalf("Synthesize() error = %v, want *tts.RateLimitError", err)
	}
}

func TestSynthesizeEscapesVoiceID(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.EscapedPath(); got != "/text-to-speech/voice%2Fwith%2Fslashes" {
			t.Errorf("escaped path = %q, want the voice id path-escaped", got)
		}
		_, _ = w.Write([]byte("ok"))
	}))

	stream, err := client.Synthesize(context.Background(), "hello", "voice/with/slashes", "")
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	_ = stream.Close()
}

func TestRateLimiterHonorsContextCancellation(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"voices": []}`))
	}))
	// One request per minute with the burst spent: the second call has to
	// wait, so a cancelled context must surface immediately.
	WithRequestsPerMinute(1)(client)

	if _, err := client.Voices(context.Background()); err != nil {
		t.Fatalf("first Voices() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.Voices(ctx)
	var netErr *tts.NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("Voices() with cancelled context error = %v, want *tts.NetworkError", err)
	}
}

func TestClientCloseIsIdempotent(t *testing.T) {
	client, err := NewClient("test-key")
	if err != nil {
		t.Fatal(err)
	}
	client.Close()
	client.Close()
}
