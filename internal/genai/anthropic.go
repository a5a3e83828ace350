package genai

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bumperbrother/foodmemory/internal/models"
	"github.com/liushuangls/go-anthropic/v2"
)

// DefaultAnthropicModel is the model used unless overridden.
const DefaultAnthropicModel = "claude-sonnet-4-20250514"

// messagesService defines the minimal Anthropic surface, for mocking.
type messagesService interface {
	CreateMessages(ctx context.Context, request anthropic.MessagesRequest) (anthropic.MessagesResponse, error)
}

// AnthropicClient classifies messages through the Anthropic messages API.
type AnthropicClient struct {
	messages   messagesService
	model      anthropic.Model
	maxRetries int
}

// NewAnthropicClient creates an Anthropic-backed classifier. The API key is
// required.
func NewAnthropicClient(opts ...Option) (*AnthropicClient, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewAnthropicClient invoked", "APIKey_set", cfg.APIKey != "", "model", cfg.Model)

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Anthropic API key not set")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultAnthropicModel
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	return &AnthropicClient{
		messages:   anthropic.NewClient(cfg.APIKey),
		model:      anthropic.Model(cfg.Model),
		maxRetries: cfg.MaxRetries,
	}, nil
}

// AnalyzeMessage classifies one user turn with recent history as context.
func (c *AnthropicClient) AnalyzeMessage(ctx context.Context, text string, history []models.Turn) (*models.Analysis, error) {
	messages := make([]anthropic.Message, 0, len(history)+1)
	for _, turn := range history {
		role := anthropic.RoleUser
		if turn.Role == "assistant" {
			role = anthropic.RoleAssistant
		}
		messages = append(messages, textMessage(role, turn.Text))
	}
	messages = append(messages, textMessage(anthropic.RoleUser, analysisUserPrompt(text)))

	return analyzeWithRetry(ctx, c.maxRetries, func(ctx context.Context) (string, error) {
		return c.generate(ctx, anthropic.MessagesRequest{
			Model:     c.model,
			MaxTokens: AnalysisMaxTokens,
			System:    analysisSystemPrompt,
			Messages:  messages,
		})
	})
}

// AnswerQuery answers a question grounded in a food-log digest.
func (c *AnthropicClient) AnswerQuery(ctx context.Context, question, dataContext string) (string, error) {
	text, err := c.generate(ctx, anthropic.MessagesRequest{
		Model:     c.model,
		MaxTokens: AnswerMaxTokens,
		System:    answerSystemPrompt,
		Messages:  []anthropic.Message{textMessage(anthropic.RoleUser, answerUserPrompt(question, dataContext))},
	})
	if err != nil {
		slog.Error("AnthropicClient AnswerQuery failed", "error", err)
		return "", err
	}
	return text, nil
}

func (c *AnthropicClient) generate(ctx context.Context, req anthropic.MessagesRequest) (string, error) {
	resp, err := c.messages.CreateMessages(ctx, req)
	if err != nil {
		return "", err
	}
	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != nil {
			return *block.Text, nil
		}
	}
	return "", ErrNoContent
}

func textMessage(role anthropic.ChatRole, text string) anthropic.Message {
	return anthropic.Message{
		Role:    role,
		Content: []anthropic.MessageContent{{Type: "text", Text: &text}},
	}
}
