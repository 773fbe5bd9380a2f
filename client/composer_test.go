package client

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mystery-message/internal/domain"
)

type fakeSource struct {
	batches [][]string
	err     error
	calls   int
	block   chan struct{}
}

func (f *fakeSource) FetchSuggestions(context.Context) ([]string, error) {
	f.calls++
	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.batches[(f.calls-1)%len(f.batches)], nil
}

type fakeSubmitter struct {
	mu       sync.Mutex
	outcome  Outcome
	attempts []submission
	block    chan struct{}
}

func (f *fakeSubmitter) Submit(_ context.Context, recipient, content string) Outcome {
	f.mu.Lock()
	f.attempts = append(f.attempts, submission{Content: content, Username: recipient})
	f.mu.Unlock()
	if f.block != nil {
		<-f.block
	}
	return f.outcome
}

func jsonBody(s string) *strings.Reader {
	return strings.NewReader(s)
}

func newTestComposer(t *testing.T, src SuggestionSource, sub MessageSubmitter) *Composer {
	t.Helper()
	c, err := NewComposer("alice", src, sub, domain.DefaultContentLimits())
	require.NoError(t, err)
	return c
}

func TestNewComposer_Validates(t *testing.T) {
	_, err := NewComposer(" ", &fakeSource{}, &fakeSubmitter{}, domain.DefaultContentLimits())
	require.Error(t, err)
	_, err = NewComposer("alice", nil, &fakeSubmitter{}, domain.DefaultContentLimits())
	require.Error(t, err)
	_, err = NewComposer("alice", &fakeSource{}, nil, domain.DefaultContentLimits())
	require.Error(t, err)
}

func TestComposer_DefaultSuggestionsUntilFetched(t *testing.T) {
	src := &fakeSource{batches: [][]string{{"A", "B"}}}
	c := newTestComposer(t, src, &fakeSubmitter{})

	require.Equal(t, []string{"What's your favorite movie?", "Do you have any pets?", "What's your dream job?"}, c.Suggestions())
	require.NoError(t, c.RefreshSuggestions(context.Background()))
	require.Equal(t, []string{"A", "B"}, c.Suggestions())
	require.Empty(t, c.SuggestionError())
}

func TestComposer_FailedFetchEmptiesListAndSetsError(t *testing.T) {
	src := &fakeSource{err: &StreamError{Err: errors.New("dial")}}
	c := newTestComposer(t, src, &fakeSubmitter{})

	err := c.RefreshSuggestions(context.Background())
	require.Error(t, err)
	require.Empty(t, c.Suggestions())
	require.Equal(t, "failed to fetch suggestions", c.SuggestionError())
	require.False(t, c.FetchingSuggestions())

	src.err = nil
	src.batches = [][]string{{"X"}}
	require.NoError(t, c.RefreshSuggestions(context.Background()))
	require.Equal(t, []string{"X"}, c.Suggestions())
	require.Empty(t, c.SuggestionError())
}

func TestComposer_RefreshRejectedWhileInFlight(t *testing.T) {
	src := &fakeSource{batches: [][]string{{"A"}}, block: make(chan struct{})}
	c := newTestComposer(t, src, &fakeSubmitter{})

	done := make(chan error)
	go func() { done <- c.RefreshSuggestions(context.Background()) }()
	require.Eventually(t, c.FetchingSuggestions, time.Second, time.Millisecond)

	require.ErrorIs(t, c.RefreshSuggestions(context.Background()), ErrSuggestionsInFlight)
	close(src.block)
	require.NoError(t, <-done)
	require.Equal(t, 1, src.calls)
}

func TestComposer_SuggestionsReturnsCopy(t *testing.T) {
	c := newTestComposer(t, &fakeSource{batches: [][]string{{"A", "B"}}}, &fakeSubmitter{})
	require.NoError(t, c.RefreshSuggestions(context.Background()))

	got := c.Suggestions()
	got[0] = "mutated"
	require.Equal(t, []string{"A", "B"}, c.Suggestions())
}

func TestComposer_SelectAndEdit(t *testing.T) {
	c := newTestComposer(t, &fakeSource{}, &fakeSubmitter{})

	c.SetContent("draft")
	c.Select("Do you have any pets?")
	require.Equal(t, "Do you have any pets?", c.Content())
	require.True(t, c.IsSelected("Do you have any pets?"))
	require.False(t, c.IsSelected("What's your dream job?"))

	c.SetContent("Do you have any pets? I do")
	require.False(t, c.IsSelected("Do you have any pets?"))

	// Typing text identical to a suggestion does not re-select it.
	c.SetContent("Do you have any pets?")
	require.False(t, c.IsSelected("Do you have any pets?"))
}

func TestComposer_SendSuccessClearsContent(t *testing.T) {
	sub := &fakeSubmitter{outcome: successOutcome("delivered", 201)}
	c := newTestComposer(t, &fakeSource{}, sub)
	c.Select("hello")

	out := c.Send(context.Background())
	require.True(t, out.Succeeded())
	require.Equal(t, "delivered", out.ServerMessage)
	require.Equal(t, "", c.Content())
	require.False(t, c.IsSelected("hello"))
	require.Equal(t, []submission{{Content: "hello", Username: "alice"}}, sub.attempts)
}

func TestComposer_SendFailurePreservesContent(t *testing.T) {
	sub := &fakeSubmitter{outcome: failureOutcome("User not accepting messages", 403, nil)}
	c := newTestComposer(t, &fakeSource{}, sub)
	c.Select("hello")

	out := c.Send(context.Background())
	require.False(t, out.Succeeded())
	require.Equal(t, "User not accepting messages", out.Reason)
	require.Equal(t, "hello", c.Content())
	require.True(t, c.IsSelected("hello"))
}

func TestComposer_SendValidatesFirst(t *testing.T) {
	sub := &fakeSubmitter{outcome: successOutcome("ok", 201)}
	c, err := NewComposer("alice", &fakeSource{}, sub, domain.ContentLimits{MaxLength: 5})
	require.NoError(t, err)

	out := c.Send(context.Background())
	require.False(t, out.Succeeded())
	require.Equal(t, "Message content is required", out.Reason)

	c.SetContent("far too long")
	out = c.Send(context.Background())
	require.Equal(t, "Content must be no longer than 5 characters", out.Reason)
	var ve *domain.ValidationError
	require.True(t, errors.As(out.Err, &ve))

	require.Empty(t, sub.attempts)
	require.Equal(t, "far too long", c.Content())
}

func TestComposer_SendRejectedWhileInFlight(t *testing.T) {
	sub := &fakeSubmitter{outcome: successOutcome("ok", 201), block: make(chan struct{})}
	c := newTestComposer(t, &fakeSource{}, sub)
	c.SetContent("hello")

	done := make(chan Outcome)
	go func() { done <- c.Send(context.Background()) }()
	require.Eventually(t, c.Sending, time.Second, time.Millisecond)

	second := c.Send(context.Background())
	require.ErrorIs(t, second.Err, ErrSubmissionInFlight)

	close(sub.block)
	require.True(t, (<-done).Succeeded())
	require.False(t, c.Sending())
	require.Len(t, sub.attempts, 1)
}

func TestComposer_SendClearsContentOnAny2xx(t *testing.T) {
	srv, got := jsonServer(t, http.StatusOK, `{"success":false,"message":"queued"}`)
	c := newTestComposer(t, &fakeSource{}, newTestSubmitter(t, srv.URL))
	c.Select("hello")

	out := c.Send(context.Background())
	require.True(t, out.Succeeded())
	require.Equal(t, "queued", out.Text())
	require.Empty(t, c.Content())
	require.False(t, c.IsSelected("hello"))
	require.Equal(t, submission{Content: "hello", Username: "alice"}, *got)
}
