package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bumperbrother/foodmemory/internal/genai"
	"github.com/bumperbrother/foodmemory/internal/messaging"
	"github.com/bumperbrother/foodmemory/internal/models"
	"github.com/bumperbrother/foodmemory/internal/places"
	"github.com/bumperbrother/foodmemory/internal/store"
)

// Constants for coordinator behavior
const (
	// LowConfidenceThreshold is the classifier confidence below which the
	// bot asks for clarification instead of acting
	LowConfidenceThreshold = 0.5
	// QueryResultLimit caps entries fed into a query answer
	QueryResultLimit = 15
)

// Coordinator routes incoming chat events to the conversation flows. It owns
// the per-chat sessions, the response hooks for multi-turn dialogues, and the
// inactivity timers.
type Coordinator struct {
	messenger    messaging.Service
	store        store.Store
	genai        genai.Client
	places       places.Client
	sessions     *SessionManager
	responses    *messaging.ResponseHandler
	timer        Timer
	allowedChats map[int64]bool
}

// Opts holds configuration options for the Coordinator.
type Opts struct {
	AllowedChats []int64
	Timer        Timer
}

// Option configures the Coordinator.
type Option func(*Opts)

// WithAllowedChats restricts the bot to the given chat IDs. Events from other
// chats are dropped without reply.
func WithAllowedChats(ids []int64) Option {
	return func(o *Opts) { o.AllowedChats = ids }
}

// WithTimer overrides the inactivity timer implementation. Used in tests.
func WithTimer(t Timer) Option {
	return func(o *Opts) { o.Timer = t }
}

// NewCoordinator wires the conversation flows to their collaborators.
func NewCoordinator(messenger messaging.Service, st store.Store, gen genai.Client, pl places.Client, opts ...Option) *Coordinator {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Timer == nil {
		cfg.Timer = NewSimpleTimer()
	}
	allowed := make(map[int64]bool, len(cfg.AllowedChats))
	for _, id := range cfg.AllowedChats {
		allowed[id] = true
	}
	slog.Debug("NewCoordinator invoked", "allowedChats", len(allowed))
	return &Coordinator{
		messenger:    messenger,
		store:        st,
		genai:        gen,
		places:       pl,
		sessions:     NewSessionManager(),
		responses:    messaging.NewResponseHandler(),
		timer:        cfg.Timer,
		allowedChats: allowed,
	}
}

// Run consumes chat events until the context is cancelled or the event
// channel closes.
func (c *Coordinator) Run(ctx context.Context) error {
	slog.Info("Coordinator starting event loop")
	for {
		select {
		case <-ctx.Done():
			slog.Info("Coordinator stopping due to context cancellation")
			c.timer.Stop()
			return ctx.Err()
		case event, ok := <-c.messenger.Events():
			if !ok {
				slog.Info("Coordinator event channel closed")
				c.timer.Stop()
				return nil
			}
			c.HandleEvent(ctx, event)
		}
	}
}

// HandleEvent dispatches one chat event. Events from chats outside the
// allow-list are dropped without reply.
func (c *Coordinator) HandleEvent(ctx context.Context, event messaging.Event) {
	if len(c.allowedChats) > 0 && !c.allowedChats[event.ChatID] {
		slog.Warn("Coordinator dropping event from unauthorized chat", "chatID", event.ChatID)
		return
	}

	switch event.Kind {
	case messaging.EventCommand:
		c.handleCommand(ctx, event)
	case messaging.EventCallback:
		c.handleCallback(ctx, event)
	case messaging.EventText:
		handled, err := c.responses.ProcessResponse(ctx, event)
		if err != nil {
			slog.Error("Coordinator response hook failed", "error", err, "chatID", event.ChatID)
			return
		}
		if handled {
			return
		}
		c.handleMessage(ctx, event)
	}
}

func (c *Coordinator) handleCommand(ctx context.Context, event messaging.Event) {
	slog.Debug("Coordinator handling command", "command", event.Command, "chatID", event.ChatID)
	switch event.Command {
	case "start":
		c.send(ctx, event.ChatID, startMessage(userNameOr(event, "there")))
	case "help":
		c.send(ctx, event.ChatID, helpMessage)
	case "search":
		c.handleSearchCommand(ctx, event)
	case "whattoeat":
		c.startWhatToEat(ctx, event.ChatID)
	case "cancel":
		c.handleCancelCommand(ctx, event.ChatID)
	default:
		slog.Debug("Coordinator ignoring unknown command", "command", event.Command)
	}
}

func (c *Coordinator) handleCallback(ctx context.Context, event messaging.Event) {
	if err := c.messenger.AnswerCallback(ctx, event.CallbackID); err != nil {
		slog.Warn("Coordinator failed to acknowledge callback", "error", err, "chatID", event.ChatID)
	}

	action := ParseCallback(event.CallbackData)
	switch action.Kind {
	case CallbackAddOrderYes, CallbackAddOrderNo:
		c.handleOrderCallback(ctx, event, action)
	case CallbackCuisine, CallbackAccept, CallbackReject, CallbackCancel:
		c.handleSuggestionCallback(ctx, event, action)
	default:
		slog.Debug("Coordinator ignoring unknown callback", "data", event.CallbackData)
	}
}

// handleMessage classifies a free-text message and routes it by intent.
func (c *Coordinator) handleMessage(ctx context.Context, event messaging.Event) {
	session := c.sessions.Get(event.ChatID)
	session.AppendTurn("user", event.Text)

	history := session.History
	if len(history) > models.ClassifierContextLimit {
		history = history[len(history)-models.ClassifierContextLimit:]
	}

	analysis, err := c.genai.AnalyzeMessage(ctx, event.Text, history)
	if err != nil {
		slog.Error("Coordinator message analysis failed", "error", err, "chatID", event.ChatID)
		c.send(ctx, event.ChatID, "Something went wrong. Please try again.")
		return
	}
	slog.Info("Coordinator classified message", "chatID", event.ChatID, "intent", analysis.Intent, "confidence", analysis.Confidence)

	if analysis.Confidence < LowConfidenceThreshold && analysis.Clarification != "" {
		c.send(ctx, event.ChatID, analysis.Clarification)
		return
	}

	var response string
	switch {
	case analysis.Intent == models.IntentLogEntry && analysis.LogEntry != nil:
		c.handleLogEntry(ctx, event, analysis.LogEntry)
		return
	case analysis.Intent == models.IntentAddDetails && analysis.Details != nil:
		response = c.handleAddDetails(ctx, event, analysis.Details)
	case analysis.Intent == models.IntentQueryRestaurant && analysis.Query != nil:
		response = c.handleQuery(ctx, event, analysis.Query)
	case analysis.Intent == models.IntentQueryGeneral && analysis.Query != nil:
		response = c.handleQuery(ctx, event, analysis.Query)
	case analysis.Intent == models.IntentWhatToEat:
		c.startWhatToEat(ctx, event.ChatID)
		return
	case analysis.Intent == models.IntentGreeting:
		response = greetingMessage(userNameOr(event, "there"))
	case analysis.Intent == models.IntentUnknown:
		response = unknownMessage
	}

	if response != "" {
		session.AppendTurn("assistant", response)
		c.send(ctx, event.ChatID, response)
	}
}

func (c *Coordinator) handleCancelCommand(ctx context.Context, chatID int64) {
	c.responses.UnregisterHook(chatID)
	c.cancelOrderTimer(chatID)

	var sug *models.SuggestionState
	c.sessions.Update(chatID, func(s *models.Session) {
		sug = s.Suggestion
		s.Suggestion = nil
	})
	if sug == nil {
		return
	}
	c.timer.Cancel(sug.TimerID)
	if err := c.messenger.EditMessageText(ctx, chatID, sug.MessageID, suggestionCancelledMessage); err != nil {
		slog.Warn("Coordinator failed to edit cancelled suggestion", "error", err, "chatID", chatID)
	}
}

// send delivers a plain reply, logging failures instead of surfacing them.
func (c *Coordinator) send(ctx context.Context, chatID int64, text string) {
	if _, err := c.messenger.SendMessage(ctx, chatID, text); err != nil {
		slog.Error("Coordinator failed to send message", "error", err, "chatID", chatID)
	}
}

func userNameOr(event messaging.Event, fallback string) string {
	if event.UserName != "" {
		return event.UserName
	}
	return fallback
}

// sentimentEmoji renders a sentiment marker for confirmation messages.
func sentimentEmoji(s models.Sentiment) string {
	switch s {
	case models.SentimentPositive:
		return "👍"
	case models.SentimentNegative:
		return "👎"
	case models.SentimentNeutral:
		return "😐"
	case models.SentimentMixed:
		return "🤔"
	default:
		return ""
	}
}

func startMessage(name string) string {
	return fmt.Sprintf("Hey %s! I'm your Food Memory Bot.\n\n"+
		"I help you and your friends log restaurant experiences and decide where to eat.\n\n"+
		"**What I can do:**\n"+
		"• Log a meal: \"Pad thai at Siam Station, really good\"\n"+
		"• Ask about a place: \"What have we had at Five Guys?\"\n"+
		"• Get suggestions: /whattoeat or \"What should we eat?\"\n"+
		"• Search entries: /search tacos\n\n"+
		"Just chat naturally - I'll figure out what you mean!", name)
}

const helpMessage = "**Food Memory Bot Commands:**\n\n" +
	"/start - Introduction\n" +
	"/whattoeat - Get restaurant suggestions\n" +
	"/search <term> - Search your entries\n" +
	"/help - This message\n\n" +
	"**Natural language examples:**\n" +
	"• \"Tacos at Casa Maria, pretty good\"\n" +
	"• \"The burger was amazing\"\n" +
	"• \"What have we had at Siam Station?\"\n" +
	"• \"What Thai places do we like?\"\n" +
	"• \"What should we eat tonight?\"\n"

func greetingMessage(name string) string {
	return fmt.Sprintf("Hey %s! Ready to log some food or find somewhere to eat?\n"+
		"Just tell me about your meal or ask /whattoeat for suggestions!", name)
}

const unknownMessage = "I'm not sure what you mean. I can help you:\n" +
	"• Log a meal: \"Pizza at Joe's, it was great\"\n" +
	"• Query a place: \"What have we had at Joe's?\"\n" +
	"• Get suggestions: /whattoeat"

const suggestionCancelledMessage = "No problem! Let me know when you're ready to eat."

// joinTags renders a tag list for confirmation messages.
func joinTags(tags []string) string {
	return strings.Join(tags, ", ")
}
