package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadpilot-backend/internal/models"
)

func TestScoreContactOnlyIsCold(t *testing.T) {
	e := NewEngine(0, 0)
	res := e.Score(models.LeadFields{Name: "Ana", Email: "ana@example.com", Phone: "+351 555"}, Signals{})

	assert.Equal(t, 30, res.Score)
	assert.Equal(t, models.GradeCold, res.Grade)
	assert.Equal(t, 30, res.Breakdown.Contact)
}

func TestScoreBudgetTiers(t *testing.T) {
	e := NewEngine(70, 40)
	tests := []struct {
		budget string
		want   int
	}{
		{"enterprise level", 25},
		{"Premium plan", 25},
		{"ENTERPRISE", 25},
		{"medium", 15},
		{"standard package", 15},
		{"small", 5},
		{"tight budget", 5},
		{"around $5k", 10},
		{"", 0},
		{"   ", 0},
	}
	for _, tt := range tests {
		t.Run(tt.budget, func(t *testing.T) {
			res := e.Score(models.LeadFields{Budget: tt.budget}, Signals{})
			assert.Equal(t, tt.want, res.Breakdown.Budget)
			assert.Equal(t, tt.want, res.Score)
		})
	}
}

func TestScoreTimelineTiers(t *testing.T) {
	e := NewEngine(70, 40)
	tests := []struct {
		timeline string
		want     int
	}{
		{"asap", 25},
		{"need it today", 25},
		{"this week", 25},
		{"soon", 20},
		{"within 2 weeks", 20},
		{"next month", 15},
		{"in 30 days", 15},
		{"next quarter", 10},
		{"in a few months", 10},
		{"sometime in 2026", 5},
		{"", 0},
	}
	for _, tt := range tests {
		t.Run(tt.timeline, func(t *testing.T) {
			res := e.Score(models.LeadFields{Timeline: tt.timeline}, Signals{})
			assert.Equal(t, tt.want, res.Breakdown.Timeline)
		})
	}
}

func TestScoreTimelineIsolation(t *testing.T) {
	e := NewEngine(70, 40)
	base := models.LeadFields{Name: "Ana", Budget: "medium", ServiceInterest: "SEO", Timeline: "asap"}
	signals := Signals{UserTurns: 3, IntentKeywords: []string{"price"}}

	fast := e.Score(base, signals)
	base.Timeline = "next month"
	slow := e.Score(base, signals)

	assert.Equal(t, 25, fast.Breakdown.Timeline)
	assert.Equal(t, 15, slow.Breakdown.Timeline)
	fast.Breakdown.Timeline, slow.Breakdown.Timeline = 0, 0
	assert.Equal(t, fast.Breakdown, slow.Breakdown)
}

func TestScoreEngagementAndIntent(t *testing.T) {
	e := NewEngine(70, 40)

	assert.Equal(t, 0, e.Score(models.LeadFields{}, Signals{UserTurns: 2}).Score)
	assert.Equal(t, 5, e.Score(models.LeadFields{}, Signals{UserTurns: 3}).Score)
	assert.Equal(t, 5, e.Score(models.LeadFields{}, Signals{UserTurns: 4}).Score)
	assert.Equal(t, 10, e.Score(models.LeadFields{}, Signals{UserTurns: 5}).Score)

	// "trial" is in the vocabulary but carries no bonus.
	assert.Equal(t, 0, e.Score(models.LeadFields{}, Signals{IntentKeywords: []string{"trial", "price"}}).Score)
	assert.Equal(t, 5, e.Score(models.LeadFields{}, Signals{IntentKeywords: []string{"trial", "demo"}}).Score)
	assert.Equal(t, 15, e.Score(models.LeadFields{}, Signals{UserTurns: 9, IntentKeywords: []string{"quote", "buy"}}).Score)
}

func TestScoreIsClamped(t *testing.T) {
	e := NewEngine(70, 40)
	full := models.LeadFields{
		Name: "Ana", Email: "ana@example.com", Phone: "555",
		ServiceInterest: "web design", Budget: "unlimited", Timeline: "urgent",
		Location: "Lisbon", Company: "Acme",
	}
	res := e.Score(full, Signals{UserTurns: 12, IntentKeywords: []string{"pricing"}})

	assert.Equal(t, 105, res.Breakdown.Total())
	assert.Equal(t, 100, res.Score)
	assert.Equal(t, models.GradeHot, res.Grade)

	inputs := []models.LeadFields{{}, full, {Budget: "x"}, {Timeline: "now", Budget: "high"}}
	for _, f := range inputs {
		for turns := 0; turns < 8; turns++ {
			s := e.Score(f, Signals{UserTurns: turns, IntentKeywords: IntentVocabulary}).Score
			require.GreaterOrEqual(t, s, 0)
			require.LessOrEqual(t, s, 100)
		}
	}
}

func TestGradeThresholds(t *testing.T) {
	e := NewEngine(70, 40)
	assert.Equal(t, models.GradeHot, e.Grade(70))
	assert.Equal(t, models.GradeWarm, e.Grade(69))
	assert.Equal(t, models.GradeWarm, e.Grade(40))
	assert.Equal(t, models.GradeCold, e.Grade(39))
	assert.Equal(t, models.GradeCold, e.Grade(1))
	assert.Equal(t, models.GradeUnqualified, e.Grade(0))

	custom := NewEngine(50, 20)
	assert.Equal(t, models.GradeHot, custom.Grade(50))
	assert.Equal(t, models.GradeWarm, custom.Grade(20))
}

func TestForTenantUsesSettings(t *testing.T) {
	tenant := &models.Tenant{Settings: models.TenantSettings{HotThreshold: 60, WarmThreshold: 30}}
	e := ForTenant(tenant)
	assert.Equal(t, models.GradeHot, e.Grade(60))
	assert.Equal(t, models.GradeWarm, e.Grade(30))

	assert.Equal(t, models.GradeWarm, ForTenant(nil).Grade(60))
}

func TestZeroThresholds(t *testing.T) {
	noWarmFloor := NewEngine(60, 0)
	assert.Equal(t, models.GradeWarm, noWarmFloor.Grade(10))
	assert.Equal(t, models.GradeHot, noWarmFloor.Grade(60))

	unset := ForTenant(&models.Tenant{Settings: models.TenantSettings{HotThreshold: 0, WarmThreshold: 30}})
	assert.Equal(t, models.GradeCold, unset.Grade(30))
	assert.Equal(t, models.GradeWarm, unset.Grade(40))
	assert.Equal(t, models.GradeHot, unset.Grade(70))
}

func TestMatchIntent(t *testing.T) {
	assert.Equal(t, []string{"pricing", "price"}, MatchIntent("What is your PRICING?"))
	assert.Equal(t, []string{"signup", "sign up"}, MatchIntent("signup or sign up?"))
	assert.Equal(t, []string{"demo", "trial"}, MatchIntent("Can I get a demo or a trial"))
	assert.Empty(t, MatchIntent("hello there"))
}

func TestEndToEndScores(t *testing.T) {
	e := NewEngine(70, 40)
	first := models.LeadFields{}.Merge(&models.LeadFields{Name: "Ana", Budget: "enterprise level", Timeline: "asap"})
	res := e.Score(first, Signals{UserTurns: 1})
	assert.Equal(t, 60, res.Score)
	assert.Equal(t, models.GradeWarm, res.Grade)

	second := first.Merge(&models.LeadFields{Email: "ana@example.com", Phone: "555-0100"})
	res = e.Score(second, Signals{UserTurns: 2})
	assert.Equal(t, 80, res.Score)
	assert.Equal(t, models.GradeHot, res.Grade)
}
