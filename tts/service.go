package tts

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/vox/internal/cache"
)

// API is the surface of the remote synthesis service the Service drives.
// Implementations own all transport details and report failures using the
// taxonomy in this package.
type API interface {
	// Voices returns the available voices in the order the remote
	// service sent them.
	Voices(ctx context.Context) ([]Voice, error)

	// Synthesize starts a streamed synthesis and returns the encoded
	// audio as a finite, non-restartable byte stream. The caller must
	// Close the stream on every path, including early abandonment. An
	// empty modelID selects the implementation's default model.
	Synthesize(ctx context.Context, text, voiceID, modelID string) (io.ReadCloser, error)
}

const (
	// writeChunkSize is the read granularity for the download-to-file
	// pipeline. Memory stays bounded to this regardless of audio length.
	writeChunkSize = 8 * 1024

	// maxCacheablePayload bounds what the write-through cache will hold
	// in memory. Larger syntheses still stream to disk, just uncached.
	maxCacheablePayload = 8 << 20
)

// Service orchestrates adapter calls with the business rules of the CLI:
// sorted listings, substring search, and streamed file writes. It knows
// nothing about HTTP and nothing about audio formats beyond "write bytes
// as they arrive".
type Service struct {
	api    API
	cache  *cache.Cache
	logger *log.Logger
	model  string
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithCache enables the write-through audio cache.
func WithCache(c *cache.Cache) ServiceOption {
	return func(s *Service) { s.cache = c }
}

// WithModel selects the synthesis model passed to the adapter. Empty
// means the adapter's default.
func WithModel(modelID string) ServiceOption {
	return func(s *Service) { s.model = modelID }
}

// WithLogger replaces the default logger.
func WithLogger(logger *log.Logger) ServiceOption {
	return func(s *Service) { s.logger = logger }
}

// NewService creates a Service around the given API.
func NewService(api API, opts ...ServiceOption) *Service {
	s := &Service{
		api:    api,
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListVoices fetches the available voices and returns them sorted
// ascending by name, case-insensitive, ties keeping the remote order.
// Adapter failures propagate unchanged.
func (s *Service) ListVoices(ctx context.Context) ([]Voice, error) {
	voices, err := s.api.Voices(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(voices, func(i, j int) bool {
		return strings.ToLower(voices[i].Name) < strings.ToLower(voices[j].Name)
	})
	s.logger.Debug("listed voices", "count", len(voices))
	return voices, nil
}

// SearchVoices filters voices whose name or id contains query as a
// case-insensitive substring. A blank query matches everything and
// returns the input unchanged. Pure; never touches the network.
func (s *Service) SearchVoices(query string, voices []Voice) []Voice {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return voices
	}
	matched := make([]Voice, 0, len(voices))
	for _, v := range voices {
		if strings.Contains(strings.ToLower(v.Name), q) ||
			strings.Contains(strings.ToLower(v.ID), q) {
			matched = append(matched, v)
		}
	}
	return matched
}

// GenerateAudio synthesizes req.Text with req.VoiceID and streams the
// audio to req.OutputPath, chunk by chunk. Local filesystem preconditions
// are checked before any network call: the parent directory must already
// exist (it is never created), and an existing output entry must be a
// regular file. Write failures become FileSystemError; adapter failures
// propagate unchanged. Success is the absence of failure.
func (s *Service) GenerateAudio(ctx context.Context, req Request) error {
	dir := filepath.Dir(req.OutputPath)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return &FileSystemError{Path: dir, Reason: "output directory does not exist"}
	}
	if info, err := os.Stat(req.OutputPath); err == nil && !info.Mode().IsRegular() {
		return &FileSystemError{Path: req.OutputPath, Reason: "output path exists but is not a file"}
	}

	var key string
	if s.cache != nil {
		key = cache.Key(s.model, req.VoiceID, req.Text)
		if data, ok := s.cache.Get(key); ok {
			s.logger.Debug("audio cache hit", "voice", req.VoiceID, "bytes", len(data))
			if err := os.WriteFile(req.OutputPath, data, 0o644); err != nil {
				return &FileSystemError{Path: req.OutputPath, Err: err}
			}
			return nil
		}
	}

	stream, err := s.api.Synthesize(ctx, req.Text, req.VoiceID, s.model)
	if err != nil {
		return err
	}
	defer stream.Close() //nolint:errcheck

	out, err := os.Create(req.OutputPath)
	if err != nil {
		return &FileSystemError{Path: req.OutputPath, Err: err}
	}

	var (
		written  int64
		cacheBuf *bytes.Buffer
	)
	if s.cache != nil {
		cacheBuf = &bytes.Buffer{}
	}

	buf := make([]byte, writeChunkSize)
	for {
		n, readErr := stream.Read(buf)
		if n > 0 {
			if _, writeErr := out.Write(buf[:n]); writeErr != nil {
				_ = out.Close()
				return &FileSystemError{Path: req.OutputPath, Err: writeErr}
			}
			written += int64(n)
			if cacheBuf != nil {
				if cacheBuf.Len()+n <= maxCacheablePayload {
					cacheBuf.Write(buf[:n])
				} else {
					// Too large to hold; keep memory bounded.
					cacheBuf = nil
				}
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			// The adapter has already typed this failure.
			_ = out.Close()
			return readErr
		}
	}

	if err := out.Close(); err != nil {
		return &FileSystemError{Path: req.OutputPath, Err: err}
	}

	if cacheBuf != nil {
		if err := s.cache.Put(key, cacheBuf.Bytes()); err != nil {
			s.logger.Debug("audio cache write failed", "err", err)
		}
	}

	s.logger.Info("audio saved", "path", req.OutputPath, "bytes", written)
	return nil
}
