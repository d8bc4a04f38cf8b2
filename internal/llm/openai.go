// Package llm implements the reply, extraction and embedding collaborators on
// top of an OpenAI-compatible chat completions API.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"

	"leadpilot-backend/internal/models"
)

const (
	extractionToolName        = "update_lead_information"
	extractionToolDescription = "Update lead information with extracted details from the conversation"
	extractionTemperature     = 0.3

	extractionSystemPrompt = `You are a lead information extraction assistant.
Your job is to extract contact and qualification information from conversations.
Only extract information that is explicitly mentioned by the user.
Call the update_lead_information function whenever you find new information.`
)

var (
	ErrEmptyResponse = errors.New("model returned no choices")
	ErrUnavailable   = errors.New("language model temporarily unavailable")
)

// Config configures the OpenAI client.
type Config struct {
	APIKey         string
	BaseURL        string // optional, for compatible gateways
	Model          string
	EmbeddingModel string
	Temperature    float32
	MaxTokens      int
	Timeout        time.Duration // per call; zero means the caller's context only
}

// Client calls the chat completions and embeddings endpoints. All calls share
// one circuit breaker, so a sustained outage fails fast.
type Client struct {
	api     *openai.Client
	cfg     Config
	breaker *gobreaker.CircuitBreaker
	tool    openai.Tool
}

// NewClient creates a new Client.
func NewClient(cfg Config) *Client {
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = string(openai.SmallEmbedding3)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openai",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: breakerSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("[LLMClient] circuit breaker state changed")
		},
	})

	return &Client{
		api:     openai.NewClientWithConfig(apiCfg),
		cfg:     cfg,
		breaker: breaker,
		tool:    extractionTool(),
	}
}

// extractionTool reflects LeadFields into the function-calling tool definition.
func extractionTool() openai.Tool {
	r := &jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}
	schema := r.Reflect(&models.LeadFields{})
	schema.Version = ""
	schema.ID = ""
	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        extractionToolName,
			Description: extractionToolDescription,
			Parameters:  schema,
		},
	}
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.Timeout > 0 {
		return context.WithTimeout(ctx, c.cfg.Timeout)
	}
	return context.WithCancel(ctx)
}

// callerGoneError wraps the error of a call whose caller context ended first.
// Such calls do not count against the breaker.
type callerGoneError struct{ err error }

func (e *callerGoneError) Error() string { return e.err.Error() }
func (e *callerGoneError) Unwrap() error { return e.err }

func breakerSuccess(err error) bool {
	var gone *callerGoneError
	return err == nil || errors.As(err, &gone)
}

// execute runs fn under the per-call timeout and the shared breaker. The
// client's own timeout still counts as a failure.
func (c *Client) execute(ctx context.Context, fn func(context.Context) (interface{}, error)) (interface{}, error) {
	callCtx, cancel := c.withTimeout(ctx)
	defer cancel()

	return c.breaker.Execute(func() (interface{}, error) {
		out, err := fn(callCtx)
		if err != nil && ctx.Err() != nil {
			return nil, &callerGoneError{err: err}
		}
		return out, err
	})
}

func (c *Client) chat(ctx context.Context, req openai.ChatCompletionRequest) (*openai.ChatCompletionResponse, error) {
	out, err := c.execute(ctx, func(ctx context.Context) (interface{}, error) {
		resp, err := c.api.CreateChatCompletion(ctx, req)
		if err != nil {
			return nil, err
		}
		return &resp, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, ErrUnavailable
		}
		return nil, err
	}
	resp := out.(*openai.ChatCompletionResponse)
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyResponse
	}
	return resp, nil
}

func toChatMessages(systemPrompt string, history []models.Message) []openai.ChatCompletionMessage {
	msgs := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: systemPrompt})
	for _, m := range history {
		role := openai.ChatMessageRoleUser
		if m.Role == models.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return msgs
}

// GenerateReply returns the assistant reply for the given prompt and history.
func (c *Client) GenerateReply(ctx context.Context, systemPrompt string, history []models.Message) (string, error) {
	resp, err := c.chat(ctx, openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Messages:    toChatMessages(systemPrompt, history),
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("generate reply: %w", err)
	}
	return resp.Choices[0].Message.Content, nil
}

// ExtractFields asks the model to call the lead extraction tool over the
// recent history. It returns nil when the model found nothing.
func (c *Client) ExtractFields(ctx context.Context, history []models.Message) (*models.LeadFields, error) {
	resp, err := c.chat(ctx, openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Messages:    toChatMessages(extractionSystemPrompt, history),
		Tools:       []openai.Tool{c.tool},
		ToolChoice:  "auto",
		Temperature: extractionTemperature,
	})
	if err != nil {
		return nil, fmt.Errorf("extract fields: %w", err)
	}

	for _, call := range resp.Choices[0].Message.ToolCalls {
		if call.Function.Name != extractionToolName {
			continue
		}
		fields, err := parseToolArguments(call.Function.Arguments)
		if err != nil {
			return nil, fmt.Errorf("extract fields: %w", err)
		}
		if fields.IsZero() {
			return nil, nil
		}
		return fields, nil
	}
	return nil, nil
}

// parseToolArguments decodes the tool call arguments. Models occasionally
// send numbers for phone-like fields, so non-string scalars are stringified.
func parseToolArguments(arguments string) (*models.LeadFields, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(arguments), &raw); err != nil {
		return nil, fmt.Errorf("invalid tool arguments: %w", err)
	}
	str := func(key string) string {
		switch v := raw[key].(type) {
		case nil:
			return ""
		case string:
			return strings.TrimSpace(v)
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			return strconv.FormatBool(v)
		default:
			return ""
		}
	}
	return &models.LeadFields{
		Name:            str("name"),
		Email:           str("email"),
		Phone:           str("phone"),
		ServiceInterest: str("service_interest"),
		Budget:          str("budget"),
		Timeline:        str("timeline"),
		Location:        str("location"),
		Company:         str("company"),
	}, nil
}

// Embed returns one embedding per input text, in input order.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out, err := c.execute(ctx, func(ctx context.Context) (interface{}, error) {
		resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: texts,
			Model: openai.EmbeddingModel(c.cfg.EmbeddingModel),
		})
		if err != nil {
			return nil, err
		}
		return &resp, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = ErrUnavailable
		}
		return nil, fmt.Errorf("embed: %w", err)
	}

	resp := out.(*openai.EmbeddingResponse)
	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index >= 0 && d.Index < len(vectors) {
			vectors[d.Index] = d.Embedding
		}
	}
	return vectors, nil
}
