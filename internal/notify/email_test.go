package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"
)

func TestBuildMessage(t *testing.T) {
	msg, err := buildMessage("alerts@leadpilot.test", []string{"sales@acme.test", "ceo@acme.test"},
		Content{Subject: "🔥 Hot Lead Alert: Ana (Score: 80/100)", HTML: "<p>hi</p>", Text: "hi"})
	require.NoError(t, err)

	assert.Equal(t, []string{"🔥 Hot Lead Alert: Ana (Score: 80/100)"}, msg.GetGenHeader(mail.HeaderSubject))
	assert.Len(t, msg.GetToString(), 2)
}

func TestBuildMessageRejectsBadAddresses(t *testing.T) {
	_, err := buildMessage("not an address", []string{"sales@acme.test"}, Content{})
	assert.Error(t, err)

	_, err = buildMessage("alerts@leadpilot.test", []string{"@@"}, Content{})
	assert.Error(t, err)
}

func TestEmailSenderAccepts(t *testing.T) {
	s, err := NewEmailSender(SMTPConfig{Host: "smtp.example.com", Port: 587, Username: "u", Password: "p"})
	require.NoError(t, err)

	alert := testAlert()
	assert.True(t, s.Accepts(alert))
	alert.Recipients = nil
	assert.False(t, s.Accepts(alert))

	_, err = NewEmailSender(SMTPConfig{})
	assert.Error(t, err)
}
