package notify

import (
	"bytes"
	"fmt"
	"html"
	"html/template"
	"strings"

	"leadpilot-backend/internal/models"
)

// Content is a rendered notification, shared by all senders of one alert.
type Content struct {
	Subject string
	HTML    string
	Text    string
}

// Subject builds the alert subject line.
func Subject(lead *models.Lead) string {
	name := "New Lead"
	if lead != nil && models.Has(lead.Fields.Name) {
		name = lead.Fields.Name
	}
	score := 0
	if lead != nil {
		score = lead.Score
	}
	return fmt.Sprintf("🔥 Hot Lead Alert: %s (Score: %d/100)", name, score)
}

// FormatSnippet renders messages as HTML paragraphs, one per message, oldest first.
func FormatSnippet(messages []models.Message) string {
	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		role := "AI Assistant"
		if m.Role == models.RoleUser {
			role = "Customer"
		}
		lines = append(lines, fmt.Sprintf("<p><strong>%s:</strong> %s</p>", role, html.EscapeString(m.Content)))
	}
	return strings.Join(lines, "\n")
}

var hotLeadEmail = template.Must(template.New("hot_lead").Parse(`<!DOCTYPE html>
<html>
<head>
<style>
body { font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
.header { background: linear-gradient(135deg, #667eea 0%, #764ba2 100%); color: white; padding: 30px; border-radius: 10px 10px 0 0; text-align: center; }
.badge { display: inline-block; background: #ef4444; color: white; padding: 5px 15px; border-radius: 20px; font-weight: bold; font-size: 12px; margin-top: 10px; }
.content { background: #f9fafb; padding: 30px; border-radius: 0 0 10px 10px; }
.field { background: white; padding: 15px; margin: 10px 0; border-radius: 5px; border-left: 4px solid #667eea; }
.field-label { font-weight: bold; color: #667eea; font-size: 12px; text-transform: uppercase; }
.field-value { font-size: 16px; margin-top: 5px; }
.conversation { background: white; padding: 20px; margin: 20px 0; border-radius: 5px; border: 1px solid #e5e7eb; }
</style>
</head>
<body>
<div class="header">
<h1>🔥 Hot Lead Alert!</h1>
<div class="badge">SCORE: {{.Score}}/100</div>
</div>
<div class="content">
<p>A high-quality lead has been captured on {{.TenantName}}. Here are the details:</p>
{{range .Fields}}<div class="field">
<div class="field-label">{{.Label}}</div>
<div class="field-value">{{.Value}}</div>
</div>
{{end}}<h3>Recent Conversation:</h3>
<div class="conversation">
{{.Snippet}}
</div>
<p style="text-align: center; color: #6b7280; font-size: 14px;">Lead captured at {{.CapturedAt}} UTC</p>
</div>
</body>
</html>
`))

type emailField struct {
	Label string
	Value string
}

type emailData struct {
	TenantName string
	Score      int
	Fields     []emailField
	Snippet    template.HTML
	CapturedAt string
}

func orDefault(v, def string) string {
	if models.Has(v) {
		return v
	}
	return def
}

// Render builds the subject, HTML body and plain-text fallback for an alert.
func Render(alert models.HotLeadAlert) (Content, error) {
	lead := alert.Lead
	if lead == nil {
		return Content{}, fmt.Errorf("alert has no lead")
	}
	f := lead.Fields
	fields := []emailField{
		{"Name", orDefault(f.Name, "Not provided")},
		{"Email", orDefault(f.Email, "Not provided")},
		{"Phone", orDefault(f.Phone, "Not provided")},
		{"Service Interest", orDefault(f.ServiceInterest, "Not specified")},
		{"Budget", orDefault(f.Budget, "Not specified")},
		{"Timeline", orDefault(f.Timeline, "Not specified")},
	}
	if models.Has(f.Company) {
		fields = append(fields, emailField{"Company", f.Company})
	}
	if models.Has(f.Location) {
		fields = append(fields, emailField{"Location", f.Location})
	}

	var buf bytes.Buffer
	err := hotLeadEmail.Execute(&buf, emailData{
		TenantName: alert.TenantName,
		Score:      lead.Score,
		Fields:     fields,
		Snippet:    template.HTML(FormatSnippet(alert.Snippet)), // content already escaped
		CapturedAt: lead.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
	})
	if err != nil {
		return Content{}, fmt.Errorf("render hot lead email: %w", err)
	}

	var text strings.Builder
	fmt.Fprintf(&text, "%s\n", Subject(lead))
	for _, fld := range fields {
		fmt.Fprintf(&text, "%s: %s\n", fld.Label, fld.Value)
	}

	return Content{Subject: Subject(lead), HTML: buf.String(), Text: text.String()}, nil
}
