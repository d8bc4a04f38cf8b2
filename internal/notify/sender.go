package notify

import (
	"context"

	"leadpilot-backend/internal/models"
)

// Sender delivers a rendered alert over one channel.
type Sender interface {
	// Name labels the channel in logs and metrics.
	Name() string
	// Accepts reports whether the alert has a destination on this channel.
	Accepts(alert models.HotLeadAlert) bool
	// Send performs one delivery attempt. Errors wrapped with
	// backoff.Permanent are not retried.
	Send(ctx context.Context, alert models.HotLeadAlert, content Content) error
}
