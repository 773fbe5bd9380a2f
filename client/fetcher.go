package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// Delimiter separates suggestions within one generated text stream.
const Delimiter = "||"

// SuggestionFetcher requests a batch of suggested messages from a streaming
// text endpoint.
type SuggestionFetcher struct {
	endpoint  string
	client    Doer
	chunkSize int
	prompt    string
	logger    *slog.Logger
}

type suggestRequest struct {
	Prompt string `json:"prompt"`
}

// NewSuggestionFetcher creates a SuggestionFetcher that posts to endpoint.
func NewSuggestionFetcher(endpoint string, opts ...Option) (*SuggestionFetcher, error) {
	endpoint, err := validateEndpoint(endpoint)
	if err != nil {
		return nil, err
	}
	o := buildOptions(opts)
	return &SuggestionFetcher{
		endpoint:  endpoint,
		client:    o.client,
		chunkSize: o.chunkSize,
		prompt:    o.prompt,
		logger:    o.logger,
	}, nil
}

// FetchSuggestions reads the whole stream and returns its text split on
// Delimiter, segments kept verbatim and in order. Any failure is a
// *StreamError; nothing is retried.
func (f *SuggestionFetcher) FetchSuggestions(ctx context.Context) ([]string, error) {
	text, err := f.fetchText(ctx)
	if err != nil {
		f.logger.Debug("suggestion fetch failed", "endpoint", f.endpoint, "err", err)
		return nil, &StreamError{Err: err}
	}
	return SplitSuggestions(text), nil
}

// SplitSuggestions splits text on Delimiter without trimming or dropping
// empty segments, so "A||" yields ["A", ""].
func SplitSuggestions(text string) []string {
	return strings.Split(text, Delimiter)
}

func (f *SuggestionFetcher) fetchText(ctx context.Context) (string, error) {
	body, err := json.Marshal(suggestRequest{Prompt: f.prompt})
	if err != nil {
		return "", fmt.Errorf("client: encode suggestion request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("client: build suggestion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/plain")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("client: suggestion request: %w", err)
	}
	if resp.Body == nil {
		return "", errors.New("client: suggestion response has no body")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", &StatusError{StatusCode: resp.StatusCode}
	}
	return readStream(resp.Body, f.chunkSize)
}

// readStream decodes r chunk by chunk and returns the accumulated text.
func readStream(r io.Reader, chunkSize int) (string, error) {
	dec := NewChunkDecoder()
	buf := make([]byte, chunkSize)
	var text strings.Builder
	for {
		n, err := r.Read(buf)
		if n > 0 {
			text.WriteString(dec.Decode(buf[:n]))
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("client: read suggestion stream: %w", err)
		}
	}
	text.WriteString(dec.Flush())
	return text.String(), nil
}

func validateEndpoint(endpoint string) (string, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return "", errors.New("client: endpoint must not be empty")
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("client: parse endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("client: endpoint %q must be http or https", endpoint)
	}
	return endpoint, nil
}
