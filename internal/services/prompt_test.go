package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"leadpilot-backend/internal/models"
)

func TestBuildSystemPromptWithChunks(t *testing.T) {
	chunks := []models.KBChunk{{Text: "first"}, {Text: "second"}, {Text: "third"}}
	prompt := BuildSystemPrompt(chunks, "Acme")

	assert.True(t, strings.HasPrefix(prompt, "You are a helpful AI assistant for Acme."))
	assert.Contains(t, prompt, "ONLY based on the provided context")
	assert.Contains(t, prompt, NotInContextReply)
	assert.Contains(t, prompt, "[Context 1]\nfirst\n\n[Context 2]\nsecond\n\n[Context 3]\nthird\n")
	assert.Less(t, strings.Index(prompt, "first"), strings.Index(prompt, "third"))
}

func TestBuildSystemPromptWithoutChunks(t *testing.T) {
	prompt := BuildSystemPrompt(nil, "Acme")

	assert.Contains(t, prompt, "You are a helpful AI assistant for Acme.")
	assert.Contains(t, prompt, "Collect their contact information")
	assert.NotContains(t, prompt, "CONTEXT:")
	assert.NotContains(t, prompt, "[Context")
	assert.Equal(t, prompt, BuildSystemPrompt([]models.KBChunk{}, "Acme"))
}

func TestMissingFieldsAndNextQuestion(t *testing.T) {
	missing := MissingFields(models.LeadFields{})
	assert.Equal(t, []string{"name", "contact (email or phone)", "service interest", "budget", "timeline"}, missing)
	assert.Equal(t, "May I have your name?", NextQuestion(missing, nil))

	missing = MissingFields(models.LeadFields{Name: "Ana", Phone: "1", ServiceInterest: "seo"})
	assert.Equal(t, []string{"budget", "timeline"}, missing)
	assert.Equal(t, "Do you have a budget range in mind for this project?", NextQuestion(missing, nil))

	full := models.LeadFields{Name: "Ana", Email: "a@b.c", ServiceInterest: "seo", Budget: "high", Timeline: "now"}
	assert.Empty(t, MissingFields(full))
	assert.Equal(t, "", NextQuestion(nil, nil))
	assert.Equal(t, "How many locations do you have?", NextQuestion(nil, []string{"How many locations do you have?"}))
	assert.Equal(t, "Could you tell me about your team size?", NextQuestion([]string{"team size"}, nil))
}
