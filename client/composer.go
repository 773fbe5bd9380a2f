package client

import (
	"context"
	"errors"
	"strings"
	"sync"

	"mystery-message/internal/domain"
)

// DefaultSuggestions is shown until the first fetch completes.
const DefaultSuggestions = "What's your favorite movie?||Do you have any pets?||What's your dream job?"

type SuggestionSource interface {
	FetchSuggestions(ctx context.Context) ([]string, error)
}

type MessageSubmitter interface {
	Submit(ctx context.Context, recipient, content string) Outcome
}

// Composer holds the state behind a message form addressed to one recipient:
// the composed text, the suggestion list, which suggestion was clicked and
// whether a fetch or send is running. The lock is never held across network
// calls.
type Composer struct {
	recipient string
	source    SuggestionSource
	submitter MessageSubmitter
	limits    domain.ContentLimits

	mu            sync.Mutex
	content       string
	selected      string
	hasSelected   bool
	suggestions   []string
	suggestionErr string
	fetched       bool
	fetching      bool
	sending       bool
}

func NewComposer(recipient string, source SuggestionSource, submitter MessageSubmitter, limits domain.ContentLimits) (*Composer, error) {
	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		return nil, errors.New("client: recipient must not be empty")
	}
	if source == nil {
		return nil, errors.New("client: suggestion source must not be nil")
	}
	if submitter == nil {
		return nil, errors.New("client: submitter must not be nil")
	}
	return &Composer{recipient: recipient, source: source, submitter: submitter, limits: limits}, nil
}

func (c *Composer) Recipient() string {
	return c.recipient
}

func (c *Composer) Content() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.content
}

// SetContent records a free-text edit. It always clears the selection, even
// when text happens to equal a suggestion.
func (c *Composer) SetContent(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.content = text
	c.selected = ""
	c.hasSelected = false
}

// Select replaces the content with candidate and marks it as clicked.
func (c *Composer) Select(candidate string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.content = candidate
	c.selected = candidate
	c.hasSelected = true
}

// IsSelected reports whether candidate is the clicked suggestion. Equal
// duplicates in the list all report true.
func (c *Composer) IsSelected(candidate string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasSelected && c.selected == candidate
}

// Suggestions returns a copy of the current list.
func (c *Composer) Suggestions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.fetched {
		return SplitSuggestions(DefaultSuggestions)
	}
	return append([]string(nil), c.suggestions...)
}

// SuggestionError is the message from the last failed fetch, or "".
func (c *Composer) SuggestionError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.suggestionErr
}

func (c *Composer) FetchingSuggestions() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetching
}

func (c *Composer) Sending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sending
}

// RefreshSuggestions replaces the suggestion list with a fresh batch. On
// failure the list is emptied and SuggestionError is set.
func (c *Composer) RefreshSuggestions(ctx context.Context) error {
	c.mu.Lock()
	if c.fetching {
		c.mu.Unlock()
		return ErrSuggestionsInFlight
	}
	c.fetching = true
	c.mu.Unlock()

	got, err := c.source.FetchSuggestions(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetching = false
	c.fetched = true
	if err != nil {
		c.suggestions = nil
		c.suggestionErr = err.Error()
		return err
	}
	c.suggestions = got
	c.suggestionErr = ""
	return nil
}

// Send validates and submits the current content. Content and selection are
// cleared after a success and left untouched after a failure.
func (c *Composer) Send(ctx context.Context) Outcome {
	c.mu.Lock()
	if c.sending {
		c.mu.Unlock()
		return failureOutcome(DefaultFailureReason, 0, ErrSubmissionInFlight)
	}
	content := c.content
	if err := c.limits.Validate(content); err != nil {
		c.mu.Unlock()
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			return failureOutcome(ve.Message, 0, err)
		}
		return failureOutcome(DefaultFailureReason, 0, err)
	}
	c.sending = true
	c.mu.Unlock()

	out := c.submitter.Submit(ctx, c.recipient, content)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.sending = false
	if out.Succeeded() {
		c.content = ""
		c.selected = ""
		c.hasSelected = false
	}
	return out
}
