package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeadFieldsMerge(t *testing.T) {
	current := LeadFields{Name: "Ana", Budget: "medium"}

	tests := []struct {
		name      string
		extracted *LeadFields
		want      LeadFields
	}{
		{
			name:      "nil extraction is a no-op",
			extracted: nil,
			want:      current,
		},
		{
			name:      "new attributes are added",
			extracted: &LeadFields{Email: "ana@example.com", Timeline: "asap"},
			want:      LeadFields{Name: "Ana", Email: "ana@example.com", Budget: "medium", Timeline: "asap"},
		},
		{
			name:      "non-empty value overwrites",
			extracted: &LeadFields{Budget: "enterprise level"},
			want:      LeadFields{Name: "Ana", Budget: "enterprise level"},
		},
		{
			name:      "blank values never clear",
			extracted: &LeadFields{Name: "   ", Budget: ""},
			want:      current,
		},
		{
			name:      "values are trimmed",
			extracted: &LeadFields{Company: "  Acme  "},
			want:      LeadFields{Name: "Ana", Budget: "medium", Company: "Acme"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := current.Merge(tt.extracted)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Equal(t, LeadFields{Name: "Ana", Budget: "medium"}, current, "receiver must not be mutated")
}

func TestLeadFieldsMergeIdempotent(t *testing.T) {
	current := LeadFields{Name: "Ana", Phone: "555"}
	extracted := &LeadFields{Email: "ana@example.com", Phone: "556", Location: "Lisbon"}

	once := current.Merge(extracted)
	twice := once.Merge(extracted)

	assert.Equal(t, once, twice)
}

func TestLeadFieldsMergeMonotonic(t *testing.T) {
	current := LeadFields{
		Name: "Ana", Email: "a@b.c", Phone: "1", ServiceInterest: "seo",
		Budget: "high", Timeline: "asap", Location: "Porto", Company: "Acme",
	}
	empties := []*LeadFields{
		{},
		{Name: " ", Email: "\t", Phone: "\n"},
		{ServiceInterest: "", Budget: "  ", Timeline: "", Location: " ", Company: ""},
	}
	for _, e := range empties {
		assert.Equal(t, current, current.Merge(e))
	}
}

func TestConversationCloneIsIndependent(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	conv := NewConversation("s-1", "t-1", "en", now)
	conv.Append(RoleUser, "hello", now)

	cp := conv.Clone()
	cp.Append(RoleAssistant, "hi!", now.Add(time.Second))

	require.Len(t, conv.Messages, 1)
	require.Len(t, cp.Messages, 2)
	assert.Equal(t, 1, cp.UserTurns())
}

func TestConversationLast(t *testing.T) {
	now := time.Now()
	conv := NewConversation("s-1", "t-1", "en", now)
	for i := 0; i < 12; i++ {
		conv.Append(RoleUser, string(rune('a'+i)), now)
	}

	last := conv.Last(10)
	require.Len(t, last, 10)
	assert.Equal(t, "c", last[0].Content)
	assert.Equal(t, "l", last[9].Content)
	assert.Len(t, conv.Last(50), 12)
	assert.Nil(t, conv.Last(0))
}

func TestLeadCloneSharesNothing(t *testing.T) {
	assigned := "rep@example.com"
	lead := &Lead{
		ScoreHistory: []ScoreHistoryEntry{{Score: 10, Grade: GradeCold}},
		Tags:         []string{"a"},
		AssignedTo:   &assigned,
	}
	cp := lead.Clone()
	cp.ScoreHistory = append(cp.ScoreHistory, ScoreHistoryEntry{Score: 80, Grade: GradeHot})
	cp.Tags[0] = "b"
	*cp.AssignedTo = "other@example.com"

	assert.Len(t, lead.ScoreHistory, 1)
	assert.Equal(t, "a", lead.Tags[0])
	assert.Equal(t, "rep@example.com", *lead.AssignedTo)
}

func TestApplyDefaultsThresholds(t *testing.T) {
	unset := TenantSettings{}
	unset.ApplyDefaults()
	assert.Equal(t, DefaultHotThreshold, unset.HotThreshold)
	assert.Equal(t, DefaultWarmThreshold, unset.WarmThreshold)

	zeroWarm := TenantSettings{HotThreshold: 80}
	zeroWarm.ApplyDefaults()
	assert.Equal(t, 80, zeroWarm.HotThreshold)
	assert.Equal(t, 0, zeroWarm.WarmThreshold)
}
