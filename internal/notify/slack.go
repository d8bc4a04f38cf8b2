package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"github.com/slack-go/slack"

	"leadpilot-backend/internal/models"
)

// ErrNoSlackToken is returned when a tenant has a channel but no bot token.
var ErrNoSlackToken = errors.New("no slack bot token configured")

// TokenSource resolves a tenant's decrypted Slack bot token.
type TokenSource interface {
	SlackToken(ctx context.Context, tenantID string) (string, error)
}

// SlackSender posts alerts to the tenant's Slack channel.
type SlackSender struct {
	tokens TokenSource
	apiURL string // empty for the public Slack API
}

// NewSlackSender creates a SlackSender. apiURL overrides the Slack API base
// URL and is normally empty.
func NewSlackSender(tokens TokenSource, apiURL string) *SlackSender {
	return &SlackSender{tokens: tokens, apiURL: apiURL}
}

func (s *SlackSender) Name() string { return "slack" }

func (s *SlackSender) Accepts(alert models.HotLeadAlert) bool {
	return alert.SlackChannelID != ""
}

// Send posts one message to the alert's channel.
func (s *SlackSender) Send(ctx context.Context, alert models.HotLeadAlert, content Content) error {
	token, err := s.tokens.SlackToken(ctx, alert.TenantID)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("failed to resolve slack token for tenant %s: %w", alert.TenantID, err))
	}
	if token == "" {
		return backoff.Permanent(ErrNoSlackToken)
	}

	var opts []slack.Option
	if s.apiURL != "" {
		opts = append(opts, slack.OptionAPIURL(s.apiURL))
	}
	apiClient := slack.New(token, opts...)

	text := slackText(alert, content)
	_, _, err = apiClient.PostMessageContext(ctx, alert.SlackChannelID,
		slack.MsgOptionText(text, false),
	)
	if err != nil {
		return fmt.Errorf("failed to post message to Slack channel %s: %w", alert.SlackChannelID, err)
	}
	return nil
}

func slackText(alert models.HotLeadAlert, content Content) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*%s*\n", content.Subject)
	if alert.Lead != nil {
		f := alert.Lead.Fields
		for _, kv := range [][2]string{
			{"Email", f.Email}, {"Phone", f.Phone}, {"Service", f.ServiceInterest},
			{"Budget", f.Budget}, {"Timeline", f.Timeline}, {"Company", f.Company},
		} {
			if models.Has(kv[1]) {
				fmt.Fprintf(&b, "• %s: %s\n", kv[0], kv[1])
			}
		}
	}
	for _, m := range alert.Snippet {
		role := "AI Assistant"
		if m.Role == models.RoleUser {
			role = "Customer"
		}
		fmt.Fprintf(&b, "> *%s:* %s\n", role, m.Content)
	}
	return b.String()
}
