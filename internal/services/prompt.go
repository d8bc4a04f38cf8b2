package services

import (
	"fmt"
	"strings"

	"leadpilot-backend/internal/models"
)

// NotInContextReply is the sentence the assistant uses when the knowledge base
// does not cover a question.
const NotInContextReply = "I don't have that information right now, but I'd be happy to connect you with our team who can help."

const groundedPromptTemplate = `You are a helpful AI assistant for %s.

IMPORTANT INSTRUCTIONS:
1. Answer questions ONLY based on the provided context below
2. If the answer is not in the context, say "%s"
3. Be conversational and friendly
4. Help qualify the lead by understanding their needs
5. When appropriate, ask for contact information (name, email, phone)
6. Ask about their budget, timeline, and specific service interests

CONTEXT:
%s

Remember: Only use information from the context above. Do not make up information.`

const genericPromptTemplate = `You are a helpful AI assistant for %s.

Your role is to:
1. Have friendly conversations with potential customers
2. Understand their needs and interests
3. Collect their contact information (name, email, phone)
4. Ask about their budget, timeline, and service interests
5. Be helpful and professional

If asked about specific details you don't know, say "I'd be happy to connect you with our team who can provide detailed information about that."`

// BuildContext concatenates chunk texts in the given order, each under a
// 1-based "[Context N]" marker. It returns "" for no chunks.
func BuildContext(chunks []models.KBChunk) string {
	if len(chunks) == 0 {
		return ""
	}
	parts := make([]string, 0, len(chunks))
	for i, c := range chunks {
		parts = append(parts, fmt.Sprintf("[Context %d]\n%s\n", i+1, c.Text))
	}
	return strings.Join(parts, "\n")
}

// BuildSystemPrompt returns the system prompt for the reply model. With
// chunks the model is restricted to the retrieved context; without them it
// gets the generic qualification persona.
func BuildSystemPrompt(chunks []models.KBChunk, tenantName string) string {
	context := BuildContext(chunks)
	if context == "" {
		return fmt.Sprintf(genericPromptTemplate, tenantName)
	}
	return fmt.Sprintf(groundedPromptTemplate, tenantName, NotInContextReply, context)
}

var fieldQuestions = map[string]string{
	"name":                     "May I have your name?",
	"contact (email or phone)": "What's the best way to reach you? Could you share your email or phone number?",
	"service interest":         "What service or solution are you interested in?",
	"budget":                   "Do you have a budget range in mind for this project?",
	"timeline":                 "When are you looking to get started?",
}

// MissingFields lists the qualification details still unknown, most
// important first.
func MissingFields(f models.LeadFields) []string {
	var missing []string
	if !models.Has(f.Name) {
		missing = append(missing, "name")
	}
	if !models.Has(f.Email) && !models.Has(f.Phone) {
		missing = append(missing, "contact (email or phone)")
	}
	if !models.Has(f.ServiceInterest) {
		missing = append(missing, "service interest")
	}
	if !models.Has(f.Budget) {
		missing = append(missing, "budget")
	}
	if !models.Has(f.Timeline) {
		missing = append(missing, "timeline")
	}
	return missing
}

// NextQuestion suggests the follow-up question for the first missing field.
// Once the standard fields are known it falls back to the tenant's first
// custom question, if any.
func NextQuestion(missing []string, tenantQuestions []string) string {
	if len(missing) == 0 {
		if len(tenantQuestions) > 0 {
			return tenantQuestions[0]
		}
		return ""
	}
	if q, ok := fieldQuestions[missing[0]]; ok {
		return q
	}
	return fmt.Sprintf("Could you tell me about your %s?", missing[0])
}
