// Package genai classifies chat messages and answers food-history questions
// using a hosted language model. Anthropic and OpenAI backends are supported.
package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bumperbrother/foodmemory/internal/models"
)

// Constants for GenAI client configuration
const (
	// ProviderAnthropic selects the Anthropic Claude backend
	ProviderAnthropic = "anthropic"
	// ProviderOpenAI selects the OpenAI backend
	ProviderOpenAI = "openai"
	// DefaultMaxRetries bounds re-asks after malformed classifier output
	DefaultMaxRetries = 3
	// AnalysisMaxTokens caps a classification response
	AnalysisMaxTokens = 1024
	// AnswerMaxTokens caps a question answer
	AnswerMaxTokens = 512
)

// ErrNoContent indicates the model returned an empty response.
var ErrNoContent = errors.New("no content returned")

// Client analyzes user turns and generates answers from food-log data.
type Client interface {
	// AnalyzeMessage classifies one user message given recent conversation
	// history, returning the intent and any extracted payload. Malformed
	// model output is retried and finally degraded to an unknown-intent
	// analysis asking the user to rephrase.
	AnalyzeMessage(ctx context.Context, text string, history []models.Turn) (*models.Analysis, error)

	// AnswerQuery answers a free-form question grounded in a formatted
	// digest of the user's food log.
	AnswerQuery(ctx context.Context, question, dataContext string) (string, error)
}

// Opts holds configuration options for GenAI clients.
type Opts struct {
	APIKey     string
	Model      string
	MaxRetries int
}

// Option configures a GenAI client.
type Option func(*Opts)

// WithAPIKey sets the API key for the backend.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel overrides the default model identifier.
func WithModel(model string) Option {
	return func(o *Opts) { o.Model = model }
}

// WithMaxRetries overrides the retry budget for malformed output.
func WithMaxRetries(n int) Option {
	return func(o *Opts) { o.MaxRetries = n }
}

// NewClient builds a classifier client for the given provider.
func NewClient(provider string, opts ...Option) (Client, error) {
	switch provider {
	case ProviderAnthropic, "":
		return NewAnthropicClient(opts...)
	case ProviderOpenAI:
		return NewOpenAIClient(opts...)
	default:
		return nil, fmt.Errorf("unsupported GenAI provider %q", provider)
	}
}

const analysisSystemPrompt = `You are an assistant that helps parse messages for a food/restaurant logging bot.

Your job is to analyze messages and extract structured information. The bot is used by a group of friends to log their restaurant experiences.

## Intent Types:

1. **LOG_ENTRY**: User is logging a new restaurant/food experience OR wants to add an order to a SPECIFIC restaurant
   - Examples: "Pad thai at Siam Station, really good", "Had tacos at Casa Maria - meh", "The burger at Five Guys was amazing"
   - Also use this when user wants to add/save something to a specific restaurant: "Can I add my order to Newport Mesa Bento?", "I want to save my usual at Chipotle"
   - Extract: restaurant_name (REQUIRED), dish_name (optional), sentiment, tags, notes

2. **ADD_DETAILS**: User is adding more details to whatever was JUST logged (no restaurant name mentioned)
   - Examples: "The curry was really spicy", "Also got the spring rolls", "Service was slow though"
   - ONLY use this when the user does NOT mention a restaurant name and is clearly referring to the previous entry
   - If user mentions a restaurant name, use LOG_ENTRY or QUERY_RESTAURANT instead
   - Extract: restaurant_name (if mentioned - important for validation), dish_name, notes, tags, sentiment updates

3. **QUERY_RESTAURANT**: User is asking about a specific restaurant or what they usually get there
   - Examples: "What have we had at Siam Station?", "Show me our visits to Five Guys", "What do I normally get at Newport Mesa Bento?", "What's my usual order at Chipotle?"
   - Extract: restaurant_name

4. **QUERY_GENERAL**: User is asking a general question about their food history
   - Examples: "What Thai places do we like?", "Where did we have good tacos?", "Show me all negative reviews"
   - Extract: cuisine, sentiment, search terms

5. **WHAT_TO_EAT**: User wants a restaurant suggestion
   - Examples: "What should we eat?", "Where should we go for dinner?", "I'm hungry, any suggestions?"

6. **GREETING**: User is greeting the bot
   - Examples: "Hi", "Hello", "Hey bot"

7. **UNKNOWN**: Cannot determine the intent or the message is unrelated

## Important Rules:
- If a message mentions a SPECIFIC restaurant name, it's almost never ADD_DETAILS
- "What do I get at X?" or "What's my usual at X?" = QUERY_RESTAURANT
- "Add my order to X" or "Save my usual at X" = LOG_ENTRY (with that restaurant)
- Only use ADD_DETAILS for follow-up comments with NO restaurant name

## Sentiment Guidelines:
- **positive** (0.5 to 1.0): "amazing", "loved it", "so good", "delicious", "will definitely go back"
- **negative** (-1.0 to -0.5): "terrible", "awful", "never again", "gross", "disappointing"
- **neutral** (-0.2 to 0.2): factual statements, no clear emotion
- **mixed** (-0.5 to 0.5): "food was good but service was slow", conflicting sentiments

## Response Format:
Always respond with valid JSON matching this schema. Do not include any other text.

{
  "intent": "log_entry|add_details|query_restaurant|query_general|what_to_eat|greeting|unknown",
  "confidence": 0.0-1.0,
  "log_entry": { ... } // only if intent is log_entry
  "details": { ... } // only if intent is add_details (include restaurant_name if mentioned!)
  "query": { ... } // only if intent is query_*
  "clarification_needed": "..." // if confidence is low
}`

const answerSystemPrompt = `You are a helpful assistant for a food/restaurant logging bot.
The user is asking a question about their saved restaurant experiences.

Based on the data provided, give a friendly, conversational response that directly answers their question.
- Be concise but helpful
- If they ask about their "usual" or "go-to" order, look for patterns in what they've ordered
- If they ask about recommendations, consider sentiment and frequency
- Include specific dish names when relevant
- If there's an exact_order saved, mention that's their saved order
- If the data doesn't have enough info to answer, say so honestly
- Keep response under 3-4 sentences unless more detail is needed`

// analysisUserPrompt frames the message under classification.
func analysisUserPrompt(text string) string {
	return "Analyze this message: " + text
}

// answerUserPrompt combines the question with its data digest.
func answerUserPrompt(question, dataContext string) string {
	return fmt.Sprintf("User's question: %s\n\nHere's the relevant data from their food log:\n\n%s\n\nPlease answer their question based on this data.", question, dataContext)
}

// stripCodeFence removes a wrapping markdown code block, which some models
// emit despite instructions.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	parts := strings.SplitN(s, "```", 3)
	if len(parts) < 2 {
		return s
	}
	inner := parts[1]
	inner = strings.TrimPrefix(inner, "json")
	return strings.TrimSpace(inner)
}

// degradedAnalysis is returned when the model kept producing unparseable
// output. The bot asks the user to rephrase instead of failing the turn.
func degradedAnalysis() *models.Analysis {
	return &models.Analysis{
		Intent:        models.IntentUnknown,
		Confidence:    0,
		Clarification: "I couldn't understand that message. Could you rephrase?",
	}
}

// analyzeWithRetry drives the generate-parse loop shared by both backends.
// Transport errors surface after the retry budget; parse errors degrade.
func analyzeWithRetry(ctx context.Context, maxRetries int, generate func(context.Context) (string, error)) (*models.Analysis, error) {
	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		raw, err := generate(ctx)
		if err != nil {
			slog.Error("GenAI analysis request failed", "error", err, "attempt", attempt)
			lastErr = err
			continue
		}
		analysis, err := models.ParseAnalysis([]byte(stripCodeFence(raw)))
		if err != nil {
			slog.Warn("GenAI analysis output unparseable", "error", err, "attempt", attempt)
			lastErr = nil
			continue
		}
		return analysis, nil
	}
	if lastErr != nil {
		return nil, fmt.Errorf("analysis failed after %d attempts: %w", maxRetries, lastErr)
	}
	slog.Warn("GenAI analysis degraded to unknown intent after retries", "attempts", maxRetries)
	return degradedAnalysis(), nil
}
