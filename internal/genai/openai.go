package genai

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bumperbrother/foodmemory/internal/models"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultOpenAIModel is the model used unless overridden.
const DefaultOpenAIModel = openai.ChatModelGPT4o

// chatService defines the minimal OpenAI surface, for mocking.
type chatService interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// OpenAIClient classifies messages through the OpenAI chat completions API.
type OpenAIClient struct {
	chat       chatService
	model      string
	maxRetries int
}

// NewOpenAIClient creates an OpenAI-backed classifier. The API key is
// required.
func NewOpenAIClient(opts ...Option) (*OpenAIClient, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewOpenAIClient invoked", "APIKey_set", cfg.APIKey != "", "model", cfg.Model)

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key not set")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	client := openai.NewClient(option.WithAPIKey(cfg.APIKey))
	return &OpenAIClient{
		chat:       &client.Chat.Completions,
		model:      cfg.Model,
		maxRetries: cfg.MaxRetries,
	}, nil
}

// AnalyzeMessage classifies one user turn with recent history as context.
func (c *OpenAIClient) AnalyzeMessage(ctx context.Context, text string, history []models.Turn) (*models.Analysis, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+2)
	messages = append(messages, openai.SystemMessage(analysisSystemPrompt))
	for _, turn := range history {
		if turn.Role == "assistant" {
			messages = append(messages, openai.AssistantMessage(turn.Text))
		} else {
			messages = append(messages, openai.UserMessage(turn.Text))
		}
	}
	messages = append(messages, openai.UserMessage(analysisUserPrompt(text)))

	return analyzeWithRetry(ctx, c.maxRetries, func(ctx context.Context) (string, error) {
		return c.generate(ctx, messages)
	})
}

// AnswerQuery answers a question grounded in a food-log digest.
func (c *OpenAIClient) AnswerQuery(ctx context.Context, question, dataContext string) (string, error) {
	text, err := c.generate(ctx, []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(answerSystemPrompt),
		openai.UserMessage(answerUserPrompt(question, dataContext)),
	})
	if err != nil {
		slog.Error("OpenAIClient AnswerQuery failed", "error", err)
		return "", err
	}
	return text, nil
}

func (c *OpenAIClient) generate(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	resp, err := c.chat.New(ctx, openai.ChatCompletionNewParams{
		Model:    c.model,
		Messages: messages,
	})
	if err != nil {
		return "", err
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", ErrNoContent
	}
	return resp.Choices[0].Message.Content, nil
}
