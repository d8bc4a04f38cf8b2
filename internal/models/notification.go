package models

// HotLeadAlert is everything a notifier needs to announce a lead that just
// became HOT. Lead and Snippet are copies owned by the alert.
type HotLeadAlert struct {
	TenantID       string
	TenantName     string
	Recipients     []string
	SlackChannelID string
	Lead           *Lead
	Snippet        []Message // most recent messages, oldest first
}
