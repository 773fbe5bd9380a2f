package domain

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestContentLimits_Validate(t *testing.T) {
	limits := ContentLimits{MinLength: 2, MaxLength: 5}

	cases := []struct {
		name    string
		content string
		reason  string
	}{
		{name: "ok", content: "hello"},
		{name: "trimmed ok", content: "  hi  "},
		{name: "empty", content: "", reason: "content_empty"},
		{name: "whitespace only", content: " \n\t ", reason: "content_empty"},
		{name: "too short", content: "a", reason: "content_too_short"},
		{name: "too long", content: "hello!", reason: "content_too_long"},
		{name: "runes not bytes", content: "héllo"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := limits.Validate(tc.content)
			if tc.reason == "" {
				require.NoError(t, err)
				return
			}
			var vErr *ValidationError
			require.True(t, errors.As(err, &vErr))
			require.Equal(t, tc.reason, vErr.Reason)
			require.NotEmpty(t, vErr.Message)
		})
	}
}

func TestContentLimits_ZeroValueUsesDefaults(t *testing.T) {
	var limits ContentLimits
	require.NoError(t, limits.Validate("x"))
	require.NoError(t, limits.Validate(strings.Repeat("a", DefaultMaxContentLength)))
	require.Error(t, limits.Validate(strings.Repeat("a", DefaultMaxContentLength+1)))
}
