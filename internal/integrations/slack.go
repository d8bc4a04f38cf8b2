package integrations

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/slack-go/slack"
)

// ErrSlackUnauthorized is returned when Slack rejects the bot token.
var ErrSlackUnauthorized = errors.New("slack rejected the bot token")

// SlackIdentity is the workspace and bot user a token belongs to.
type SlackIdentity struct {
	Team      string
	TeamID    string
	BotName   string
	BotUserID string
}

// SlackVerifier checks tenant Slack bot tokens with auth.test.
type SlackVerifier struct {
	apiURL string // empty for the public Slack API
}

// NewSlackVerifier creates a SlackVerifier. apiURL overrides the Slack API
// base URL and is normally empty.
func NewSlackVerifier(apiURL string) *SlackVerifier {
	return &SlackVerifier{apiURL: apiURL}
}

// Verify calls auth.test with the token.
func (v *SlackVerifier) Verify(ctx context.Context, botToken string) (*SlackIdentity, error) {
	if strings.TrimSpace(botToken) == "" {
		return nil, fmt.Errorf("%w: empty token", ErrSlackUnauthorized)
	}

	var opts []slack.Option
	if v.apiURL != "" {
		opts = append(opts, slack.OptionAPIURL(v.apiURL))
	}
	client := slack.New(botToken, opts...)

	resp, err := client.AuthTestContext(ctx)
	if err != nil {
		// slack-go only exposes the API error code through the message.
		errStr := err.Error()
		for _, code := range []string{"invalid_auth", "not_authed", "account_inactive", "token_revoked"} {
			if strings.Contains(errStr, code) {
				return nil, fmt.Errorf("%w: %s", ErrSlackUnauthorized, code)
			}
		}
		log.Error().Err(err).Msg("[SlackVerifier] Verify: auth.test failed")
		return nil, fmt.Errorf("slack auth.test failed: %w", err)
	}

	return &SlackIdentity{
		Team:      resp.Team,
		TeamID:    resp.TeamID,
		BotName:   resp.User,
		BotUserID: resp.UserID,
	}, nil
}
