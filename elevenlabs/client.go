// Package elevenlabs is the HTTP adapter for the ElevenLabs
// text-to-speech API. All transport and status-code knowledge lives here;
// callers only ever see the tts error taxonomy.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/dgnsrekt/vox/tts"
)

const (
	// BaseURL is the fixed production endpoint.
	BaseURL = "https://api.elevenlabs.io/v1"

	// DefaultModel is used when the caller does not pick a model.
	DefaultModel = "eleven_monolingual_v1"

	// EnvAPIKey is the environment fallback for the credential.
	EnvAPIKey = "ELEVENLABS_API_KEY"

	// maxErrorBody bounds how much of a failed response body is kept
	// for diagnostics.
	maxErrorBody = 16 * 1024

	// defaultRequestsPerMinute is the client-side request budget.
	defaultRequestsPerMinute = 60
)

// Fixed voice settings sent with every synthesis request.
const (
	voiceStability       = 0.5
	voiceSimilarityBoost = 0.75
)

// Client talks to the ElevenLabs API. One Client serves one CLI
// invocation; it is not designed for concurrent callers.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a different endpoint. Used by tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRequestsPerMinute adjusts the client-side rate limit.
func WithRequestsPerMinute(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), 1)
		}
	}
}

// WithLogger replaces the default logger.
func WithLogger(logger *log.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// NewClient builds a Client. The credential comes from apiKey, falling
// back to the ELEVENLABS_API_KEY environment variable; with neither set
// it fails with an authentication error before any network use.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		apiKey = os.Getenv(EnvAPIKey)
	}
	if apiKey == "" {
		return nil, &tts.AuthenticationError{
			Reason: EnvAPIKey + " not found; set the environment variable or pass an API key",
		}
	}

	c := &Client{
		baseURL: BaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			// Overall budget covers the whole streamed download.
			Timeout: 2 * time.Minute,
			Transport: &http.Transport{
				DialContext:         (&net.Dialer{Timeout: 10 * time.Second}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Every(time.Minute/defaultRequestsPerMinute), 1),
		logger:  log.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Voices fetches the available voices, in the order the API returns them.
func (c *Client) Voices(ctx context.Context) ([]tts.Voice, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &tts.NetworkError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/voices", nil)
	if err != nil {
		return nil, fmt.Errorf("unable to build voices request: %w", err)
	}
	req.Header.Set("xi-api-key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("fetching voices")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &tts.NetworkError{Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, c.statusError(resp)
	}

	var payload struct {
		Voices []tts.Voice `json:"voices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("unable to decode voices response: %w", err)
	}
	c.logger.Debug("fetched voices", "count", len(payload.Voices))
	return payload.Voices, nil
}

type synthesisPayload struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// Synthesize starts a streamed synthesis and returns the audio as a
// lazily-read byte stream. The connection stays open for the lifetime of
// the stream; Close releases it on every path, including early
// abandonment. A 404 maps to VoiceNotFoundError carrying voiceID.
func (c *Client) Synthesize(ctx context.Context, text, voiceID, modelID string) (io.ReadCloser, error) {
	if modelID == "" {
		modelID = DefaultModel
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &tts.NetworkError{Err: err}
	}

	body, err := json.Marshal(synthesisPayload{
		Text:    text,
		ModelID: modelID,
		VoiceSettings: voiceSettings{
			Stability:       voiceStability,
			SimilarityBoost: voiceSimilarityBoost,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("unable to encode synthesis payload: %w", err)
	}

	endpoint := c.baseURL + "/text-to-speech/" + url.PathEscape(voiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("unable to build synthesis request: %w", err)
	}
	req.Header.Set("xi-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	c.logger.Debug("starting synthesis", "voice", voiceID, "model", modelID, "text_length", len(text))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &tts.NetworkError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close() //nolint:errcheck
		if resp.StatusCode == http.StatusNotFound {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
			return nil, &tts.VoiceNotFoundError{VoiceID: voiceID}
		}
		return nil, c.statusError(resp)
	}

	return &stream{body: resp.Body}, nil
}

// Close releases the underlying connection pool. Idempotent; safe to
// call after already closed.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

// statusError maps a non-2xx response to the error taxonomy. The body is
// consumed (bounded) so the connection can be reused.
func (c *Client) statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return &tts.AuthenticationError{Reason: "invalid API key"}
	case http.StatusTooManyRequests:
		return tts.NewRateLimitError("")
	default:
		c.logger.Error("API error", "status", resp.StatusCode)
		return &tts.APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}
}

// stream wraps the response body so mid-stream transport failures surface
// as the network failure kind instead of raw transport errors.
type stream struct {
	body   io.ReadCloser
	closed bool
}

func (s *stream) Read(p []byte) (int, error) {
	n, err := s.body.Read(p)
	if err != nil && err != io.EOF {
		err = &tts.NetworkError{Err: err}
	}
	return n, err
}

func (s *stream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.body.Close()
}

// Ensure Client satisfies the service's API surface.
var _ tts.API = (*Client)(nil)
