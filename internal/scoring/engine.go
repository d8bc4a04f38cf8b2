// Package scoring turns extracted lead fields and conversation signals into a
// deterministic 0-100 score and a grade.
package scoring

import (
	"strings"

	"leadpilot-backend/internal/models"
)

// Point weights.
const (
	contactPoints       = 10
	servicePoints       = 10
	engagementHigh      = 10
	engagementMedium    = 5
	highIntentBonus     = 5
	budgetOtherPoints   = 10
	timelineOtherPoints = 5

	maxScore = 100
)

type tier struct {
	points   int
	keywords []string
}

// Tiers are checked in order and the first match wins.
var budgetTiers = []tier{
	{25, []string{"high", "premium", "enterprise", "unlimited"}},
	{15, []string{"medium", "standard", "moderate"}},
	{5, []string{"low", "small", "budget"}},
}

var timelineTiers = []tier{
	{25, []string{"asap", "urgent", "immediately", "now", "today", "this week"}},
	{20, []string{"soon", "next week", "this month", "2 weeks"}},
	{15, []string{"next month", "1 month", "30 days"}},
	{10, []string{"quarter", "3 months", "few months"}},
}

// IntentVocabulary is matched as lowercase substrings of the current user message.
var IntentVocabulary = []string{"pricing", "price", "cost", "quote", "buy", "purchase", "demo", "trial", "signup", "sign up"}

var highIntent = map[string]bool{
	"pricing": true, "quote": true, "cost": true, "buy": true, "purchase": true, "demo": true,
}

// Signals are the conversation-level inputs to scoring.
type Signals struct {
	UserTurns      int
	IntentKeywords []string
}

// Breakdown itemizes how a score was reached.
type Breakdown struct {
	Contact    int `json:"contact"`
	Budget     int `json:"budget"`
	Timeline   int `json:"timeline"`
	Service    int `json:"service"`
	Engagement int `json:"engagement"`
	Intent     int `json:"intent"`
}

// Total is the unclamped sum of all contributions.
func (b Breakdown) Total() int {
	return b.Contact + b.Budget + b.Timeline + b.Service + b.Engagement + b.Intent
}

// Result is the outcome of one score computation.
type Result struct {
	Score     int              `json:"score"`
	Grade     models.LeadGrade `json:"grade"`
	Breakdown Breakdown        `json:"breakdown"`
}

// Engine scores leads against a pair of grade thresholds. It holds no mutable
// state and is safe for concurrent use.
type Engine struct {
	hot  int
	warm int
}

// NewEngine creates an engine. A non-positive hot threshold means the pair is
// unset and both take the defaults. A warm threshold of 0 is honoured.
func NewEngine(hotThreshold, warmThreshold int) *Engine {
	hot, warm := models.ResolveThresholds(hotThreshold, warmThreshold)
	return &Engine{hot: hot, warm: warm}
}

// ForTenant creates an engine using the tenant's configured thresholds.
func ForTenant(t *models.Tenant) *Engine {
	if t == nil {
		return NewEngine(0, 0)
	}
	hot, warm := t.Thresholds()
	return NewEngine(hot, warm)
}

// Score computes the score and grade for the given fields and signals.
func (e *Engine) Score(fields models.LeadFields, signals Signals) Result {
	var b Breakdown

	for _, v := range []string{fields.Name, fields.Email, fields.Phone} {
		if models.Has(v) {
			b.Contact += contactPoints
		}
	}
	b.Budget = tierPoints(fields.Budget, budgetTiers, budgetOtherPoints)
	b.Timeline = tierPoints(fields.Timeline, timelineTiers, timelineOtherPoints)
	if models.Has(fields.ServiceInterest) {
		b.Service = servicePoints
	}

	switch {
	case signals.UserTurns >= 5:
		b.Engagement = engagementHigh
	case signals.UserTurns >= 3:
		b.Engagement = engagementMedium
	}
	for _, kw := range signals.IntentKeywords {
		if highIntent[strings.ToLower(kw)] {
			b.Intent = highIntentBonus
			break
		}
	}

	score := clamp(b.Total())
	return Result{Score: score, Grade: e.Grade(score), Breakdown: b}
}

// Grade maps a score to a grade. Scores equal to a threshold take the higher grade.
func (e *Engine) Grade(score int) models.LeadGrade {
	switch {
	case score >= e.hot:
		return models.GradeHot
	case score >= e.warm:
		return models.GradeWarm
	case score > 0:
		return models.GradeCold
	default:
		return models.GradeUnqualified
	}
}

// MatchIntent returns the vocabulary keywords contained in message, in
// vocabulary order.
func MatchIntent(message string) []string {
	lower := strings.ToLower(message)
	var matched []string
	for _, kw := range IntentVocabulary {
		if strings.Contains(lower, kw) {
			matched = append(matched, kw)
		}
	}
	return matched
}

func tierPoints(text string, tiers []tier, other int) int {
	if !models.Has(text) {
		return 0
	}
	lower := strings.ToLower(text)
	for _, t := range tiers {
		for _, kw := range t.keywords {
			if strings.Contains(lower, kw) {
				return t.points
			}
		}
	}
	return other
}

func clamp(score int) int {
	if score < 0 {
		return 0
	}
	if score > maxScore {
		return maxScore
	}
	return score
}
