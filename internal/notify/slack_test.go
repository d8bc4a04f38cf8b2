package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticTokens struct {
	token string
	err   error
}

func (s staticTokens) SlackToken(context.Context, string) (string, error) { return s.token, s.err }

func TestSlackSenderPostsToChannel(t *testing.T) {
	var channel, text string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat.postMessage"))
		require.NoError(t, r.ParseForm())
		channel = r.FormValue("channel")
		text = r.FormValue("text")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"ok": true, "channel": channel, "ts": "1700000000.000100"})
	}))
	defer srv.Close()

	s := NewSlackSender(staticTokens{token: "xoxb-test"}, srv.URL+"/")
	alert := testAlert()
	alert.SlackChannelID = "C123"
	require.True(t, s.Accepts(alert))

	err := s.Send(context.Background(), alert, Content{Subject: Subject(alert.Lead)})
	require.NoError(t, err)
	assert.Equal(t, "C123", channel)
	assert.Contains(t, text, "Hot Lead Alert: Ana")
	assert.Contains(t, text, "• Email: ana@example.com")
	assert.Contains(t, text, "> *Customer:* hi")
}

func TestSlackSenderWithoutTokenIsPermanent(t *testing.T) {
	s := NewSlackSender(staticTokens{}, "")
	alert := testAlert()
	alert.SlackChannelID = "C123"

	err := s.Send(context.Background(), alert, Content{})
	var perm *backoff.PermanentError
	require.True(t, errors.As(err, &perm))
	assert.ErrorIs(t, err, ErrNoSlackToken)

	assert.False(t, s.Accepts(testAlert()))
}
