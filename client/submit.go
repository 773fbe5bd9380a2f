package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
)

// DefaultFailureReason is reported when a failed send carries no server message.
const DefaultFailureReason = "Failed to send message"

const maxResponseBytes = 64 << 10

// SubmitState is the lifecycle position of a Submitter.
type SubmitState int

const (
	StateIdle SubmitState = iota
	StateSubmitting
	StateSucceeded
	StateFailed
)

func (s SubmitState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubmitting:
		return "submitting"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("SubmitState(%d)", int(s))
}

// OutcomeKind tags an Outcome as a success or a failure.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota + 1
	OutcomeFailure
)

// Outcome is the result of one send attempt. Success carries ServerMessage,
// Failure carries a user-facing Reason and, when known, the cause in Err.
type Outcome struct {
	Kind          OutcomeKind
	ServerMessage string
	Reason        string
	StatusCode    int
	Err           error
}

func (o Outcome) Succeeded() bool {
	return o.Kind == OutcomeSuccess
}

// Text returns the message to display for the outcome.
func (o Outcome) Text() string {
	if o.Succeeded() {
		return o.ServerMessage
	}
	return o.Reason
}

func successOutcome(message string, status int) Outcome {
	return Outcome{Kind: OutcomeSuccess, ServerMessage: message, StatusCode: status}
}

func failureOutcome(reason string, status int, err error) Outcome {
	if reason == "" {
		reason = DefaultFailureReason
	}
	return Outcome{Kind: OutcomeFailure, Reason: reason, StatusCode: status, Err: err}
}

// Submitter sends one message at a time to the send endpoint and reports the
// result as an Outcome. It never returns an error or panics on a failed send.
type Submitter struct {
	endpoint string
	client   Doer
	logger   *slog.Logger

	mu    sync.Mutex
	state SubmitState
}

type submission struct {
	Content  string `json:"content"`
	Username string `json:"username"`
}

type envelope struct {
	Message string `json:"message"`
}

// NewSubmitter creates a Submitter that posts to endpoint.
func NewSubmitter(endpoint string, opts ...Option) (*Submitter, error) {
	endpoint, err := validateEndpoint(endpoint)
	if err != nil {
		return nil, err
	}
	o := buildOptions(opts)
	return &Submitter{endpoint: endpoint, client: o.client, logger: o.logger}, nil
}

// State returns the current lifecycle position.
func (s *Submitter) State() SubmitState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Acknowledge returns a settled submitter to Idle. It has no effect while a
// send is in flight.
func (s *Submitter) Acknowledge() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateSubmitting {
		s.state = StateIdle
	}
}

// Submit posts content to recipient. The caller is expected to have
// validated content already.
func (s *Submitter) Submit(ctx context.Context, recipient, content string) Outcome {
	s.mu.Lock()
	if s.state == StateSubmitting {
		s.mu.Unlock()
		return failureOutcome(DefaultFailureReason, 0, ErrSubmissionInFlight)
	}
	s.state = StateSubmitting
	s.mu.Unlock()

	out := s.send(ctx, submission{Content: content, Username: recipient})
	s.logger.Debug("message submission settled", "recipient", recipient, "succeeded", out.Succeeded(), "status", out.StatusCode, "text", out.Text(), "err", out.Err)

	s.mu.Lock()
	if out.Succeeded() {
		s.state = StateSucceeded
	} else {
		s.state = StateFailed
	}
	s.mu.Unlock()
	return out
}

func (s *Submitter) send(ctx context.Context, attempt submission) Outcome {
	body, err := json.Marshal(attempt)
	if err != nil {
		return failureOutcome(DefaultFailureReason, 0, fmt.Errorf("client: encode submission: %w", err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return failureOutcome(DefaultFailureReason, 0, fmt.Errorf("client: build submission request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return failureOutcome(DefaultFailureReason, 0, fmt.Errorf("client: send message: %w", err))
	}
	var raw []byte
	if resp.Body != nil {
		raw, err = io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		_ = resp.Body.Close()
		if err != nil {
			return failureOutcome(DefaultFailureReason, resp.StatusCode, fmt.Errorf("client: read submission response: %w", err))
		}
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		reason := DefaultFailureReason
		if decodeErr == nil && env.Message != "" {
			reason = env.Message
		}
		return failureOutcome(reason, resp.StatusCode, &StatusError{StatusCode: resp.StatusCode})
	}
	if decodeErr != nil {
		return failureOutcome(DefaultFailureReason, resp.StatusCode, fmt.Errorf("client: decode submission response: %w", decodeErr))
	}
	// Any decodable 2xx is a success; the payload's own success flag is not consulted.
	return successOutcome(env.Message, resp.StatusCode)
}
