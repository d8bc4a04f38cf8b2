package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// LeadGrade is the qualification tier derived from a lead score.
type LeadGrade string

const (
	GradeHot         LeadGrade = "HOT"
	GradeWarm        LeadGrade = "WARM"
	GradeCold        LeadGrade = "COLD"
	GradeUnqualified LeadGrade = "UNQUALIFIED"
)

// Valid reports whether g is one of the known grades.
func (g LeadGrade) Valid() bool {
	switch g {
	case GradeHot, GradeWarm, GradeCold, GradeUnqualified:
		return true
	}
	return false
}

// LeadStatus tracks the sales follow-up state of a lead.
type LeadStatus string

const (
	LeadStatusNew       LeadStatus = "new"
	LeadStatusContacted LeadStatus = "contacted"
	LeadStatusQualified LeadStatus = "qualified"
	LeadStatusWon       LeadStatus = "won"
	LeadStatusLost      LeadStatus = "lost"
)

// Valid reports whether s is one of the known statuses.
func (s LeadStatus) Valid() bool {
	switch s {
	case LeadStatusNew, LeadStatusContacted, LeadStatusQualified, LeadStatusWon, LeadStatusLost:
		return true
	}
	return false
}

// LeadFields are the contact and qualification attributes extracted from a
// conversation. An empty string means the attribute is unknown.
//
// The same struct doubles as the extraction tool schema, hence the
// jsonschema descriptions.
type LeadFields struct {
	Name            string `json:"name,omitempty" jsonschema_description:"Full name of the lead"`
	Email           string `json:"email,omitempty" jsonschema_description:"Email address of the lead"`
	Phone           string `json:"phone,omitempty" jsonschema_description:"Phone number of the lead"`
	ServiceInterest string `json:"service_interest,omitempty" jsonschema_description:"Service or product the lead is interested in"`
	Budget          string `json:"budget,omitempty" jsonschema_description:"Budget range or budget indication"`
	Timeline        string `json:"timeline,omitempty" jsonschema_description:"When they want to start or purchase"`
	Location        string `json:"location,omitempty" jsonschema_description:"Location or city of the lead"`
	Company         string `json:"company,omitempty" jsonschema_description:"Company name if mentioned"`
}

// Merge returns the fields obtained by applying an extraction result on top
// of f. An attribute is replaced only when the extracted value is non-empty
// after trimming, so a known value is never cleared. A nil extraction leaves
// f unchanged.
func (f LeadFields) Merge(extracted *LeadFields) LeadFields {
	if extracted == nil {
		return f
	}
	out := f
	pick := func(dst *string, v string) {
		if v = strings.TrimSpace(v); v != "" {
			*dst = v
		}
	}
	pick(&out.Name, extracted.Name)
	pick(&out.Email, extracted.Email)
	pick(&out.Phone, extracted.Phone)
	pick(&out.ServiceInterest, extracted.ServiceInterest)
	pick(&out.Budget, extracted.Budget)
	pick(&out.Timeline, extracted.Timeline)
	pick(&out.Location, extracted.Location)
	pick(&out.Company, extracted.Company)
	return out
}

// IsZero reports whether no attribute is known.
func (f LeadFields) IsZero() bool {
	return f == LeadFields{}
}

// Has reports whether a value is non-blank.
func Has(v string) bool {
	return strings.TrimSpace(v) != ""
}

// ScoreHistoryEntry records one score computation. Entries are only ever appended.
type ScoreHistoryEntry struct {
	Score     int       `json:"score"`
	Grade     LeadGrade `json:"grade"`
	Timestamp time.Time `json:"timestamp"`
	Reason    string    `json:"reason,omitempty"`
}

// LeadNote is a free-form note attached by a sales rep.
type LeadNote struct {
	Note      string    `json:"note"`
	Author    string    `json:"author,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Lead is the qualification record for one chat session.
type Lead struct {
	ID             uuid.UUID           `json:"id"`
	TenantID       string              `json:"tenant_id"`
	ConversationID string              `json:"conversation_id"`
	SessionID      string              `json:"session_id"`
	Fields         LeadFields          `json:"fields"`
	Score          int                 `json:"score"`
	Grade          LeadGrade           `json:"grade"`
	ScoreHistory   []ScoreHistoryEntry `json:"score_history"`
	Status         LeadStatus          `json:"status"`
	AssignedTo     *string             `json:"assigned_to,omitempty"`
	Notes          []LeadNote          `json:"notes"`
	Tags           []string            `json:"tags"`
	Source         string              `json:"source"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
	LastContactAt  *time.Time          `json:"last_contact_at,omitempty"`
}

// Clone returns a copy that shares no slices with the receiver.
func (l *Lead) Clone() *Lead {
	if l == nil {
		return nil
	}
	cp := *l
	cp.ScoreHistory = append([]ScoreHistoryEntry(nil), l.ScoreHistory...)
	cp.Notes = append([]LeadNote(nil), l.Notes...)
	cp.Tags = append([]string(nil), l.Tags...)
	if l.AssignedTo != nil {
		v := *l.AssignedTo
		cp.AssignedTo = &v
	}
	return &cp
}
