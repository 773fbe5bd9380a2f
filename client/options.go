package client

import (
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	defaultChunkSize = 512
	defaultTimeout   = 30 * time.Second
)

// Doer sends HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type options struct {
	client    Doer
	chunkSize int
	prompt    string
	logger    *slog.Logger
}

type Option func(*options)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(client Doer) Option {
	return func(o *options) {
		o.client = client
	}
}

// WithChunkSize sets the read size used for streamed bodies. Values below 1
// keep the default.
func WithChunkSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.chunkSize = n
		}
	}
}

// WithPrompt sets the prompt sent with suggestion requests.
func WithPrompt(prompt string) Option {
	return func(o *options) {
		o.prompt = prompt
	}
}

// WithLogger sets the logger failures are reported to at debug level.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func buildOptions(opts []Option) options {
	o := options{chunkSize: defaultChunkSize}
	for _, opt := range opts {
		opt(&o)
	}
	if o.client == nil {
		o.client = &http.Client{Timeout: defaultTimeout}
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return o
}
