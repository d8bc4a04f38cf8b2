package scoring

import "leadpilot-backend/internal/models"

// BecameHot reports whether a lead escalated into the HOT grade. A nil old
// grade means the lead did not exist before this turn.
func BecameHot(old *models.LeadGrade, updated models.LeadGrade) bool {
	if updated != models.GradeHot {
		return false
	}
	return old == nil || *old != models.GradeHot
}
