package messaging

import (
	"context"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Constants for TelegramService configuration
const (
	// DefaultChannelBufferSize defines the buffer size for the event channel
	DefaultChannelBufferSize = 100
	// DefaultUpdateTimeout defines the long-poll timeout in seconds
	DefaultUpdateTimeout = 60
)

// botAPI defines the minimal Telegram bot surface, for mocking.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// TelegramService implements Service using the Telegram Bot API with long
// polling. Outgoing messages use Markdown formatting.
type TelegramService struct {
	bot    botAPI
	events chan Event
	done   chan struct{}
}

// NewTelegramService creates a TelegramService for the given bot token.
func NewTelegramService(token string) (*TelegramService, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		slog.Error("TelegramService failed to create bot", "error", err)
		return nil, err
	}
	slog.Info("TelegramService authorized", "username", bot.Self.UserName)
	return newTelegramService(bot), nil
}

func newTelegramService(bot botAPI) *TelegramService {
	return &TelegramService{
		bot:    bot,
		events: make(chan Event, DefaultChannelBufferSize),
		done:   make(chan struct{}),
	}
}

// Start begins polling Telegram for updates.
func (s *TelegramService) Start(ctx context.Context) error {
	slog.Debug("TelegramService Start invoked")
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = DefaultUpdateTimeout
	updates := s.bot.GetUpdatesChan(cfg)

	go s.handleUpdates(ctx, updates)
	slog.Debug("TelegramService update handler started")
	return nil
}

// Stop stops polling and closes the event channel.
func (s *TelegramService) Stop() error {
	slog.Info("TelegramService Stop invoked")
	s.bot.StopReceivingUpdates()
	close(s.done)
	return nil
}

// SendMessage sends a Markdown-formatted text message.
func (s *TelegramService) SendMessage(ctx context.Context, chatID int64, text string) (int, error) {
	slog.Debug("TelegramService SendMessage invoked", "chatID", chatID, "body_length", len(text))
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	sent, err := s.bot.Send(msg)
	if err != nil {
		slog.Error("TelegramService SendMessage error", "error", err, "chatID", chatID)
		return 0, err
	}
	slog.Info("TelegramService message sent", "chatID", chatID, "messageID", sent.MessageID)
	return sent.MessageID, nil
}

// SendMessageWithButtons sends a Markdown-formatted message with an inline
// keyboard.
func (s *TelegramService) SendMessageWithButtons(ctx context.Context, chatID int64, text string, rows [][]Button) (int, error) {
	slog.Debug("TelegramService SendMessageWithButtons invoked", "chatID", chatID, "rows", len(rows))
	keyboardRows := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Label, b.Data))
		}
		keyboardRows = append(keyboardRows, buttons)
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(keyboardRows...)
	sent, err := s.bot.Send(msg)
	if err != nil {
		slog.Error("TelegramService SendMessageWithButtons error", "error", err, "chatID", chatID)
		return 0, err
	}
	slog.Info("TelegramService message with buttons sent", "chatID", chatID, "messageID", sent.MessageID)
	return sent.MessageID, nil
}

// EditMessageText replaces a message's text and drops its keyboard.
func (s *TelegramService) EditMessageText(ctx context.Context, chatID int64, messageID int, text string) error {
	slog.Debug("TelegramService EditMessageText invoked", "chatID", chatID, "messageID", messageID)
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = tgbotapi.ModeMarkdown
	if _, err := s.bot.Send(edit); err != nil {
		slog.Error("TelegramService EditMessageText error", "error", err, "chatID", chatID, "messageID", messageID)
		return err
	}
	return nil
}

// EditMessageWithButtons replaces a message's text and inline keyboard.
func (s *TelegramService) EditMessageWithButtons(ctx context.Context, chatID int64, messageID int, text string, rows [][]Button) error {
	slog.Debug("TelegramService EditMessageWithButtons invoked", "chatID", chatID, "messageID", messageID, "rows", len(rows))
	keyboardRows := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Label, b.Data))
		}
		keyboardRows = append(keyboardRows, buttons)
	}
	edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, tgbotapi.NewInlineKeyboardMarkup(keyboardRows...))
	edit.ParseMode = tgbotapi.ModeMarkdown
	if _, err := s.bot.Send(edit); err != nil {
		slog.Error("TelegramService EditMessageWithButtons error", "error", err, "chatID", chatID, "messageID", messageID)
		return err
	}
	return nil
}

// RemoveButtons strips the inline keyboard from a message.
func (s *TelegramService) RemoveButtons(ctx context.Context, chatID int64, messageID int) error {
	slog.Debug("TelegramService RemoveButtons invoked", "chatID", chatID, "messageID", messageID)
	// An explicit empty keyboard clears the buttons; a nil one is rejected.
	empty := tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}}
	edit := tgbotapi.NewEditMessageReplyMarkup(chatID, messageID, empty)
	if _, err := s.bot.Request(edit); err != nil {
		slog.Error("TelegramService RemoveButtons error", "error", err, "chatID", chatID, "messageID", messageID)
		return err
	}
	return nil
}

// AnswerCallback acknowledges a button press.
func (s *TelegramService) AnswerCallback(ctx context.Context, callbackID string) error {
	slog.Debug("TelegramService AnswerCallback invoked", "callbackID", callbackID)
	if _, err := s.bot.Request(tgbotapi.NewCallback(callbackID, "")); err != nil {
		slog.Error("TelegramService AnswerCallback error", "error", err, "callbackID", callbackID)
		return err
	}
	return nil
}

// Events returns the channel of incoming chat events.
func (s *TelegramService) Events() <-chan Event {
	return s.events
}

// handleUpdates translates Telegram updates into Events until stopped.
func (s *TelegramService) handleUpdates(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	defer close(s.events)
	for {
		select {
		case <-ctx.Done():
			slog.Debug("TelegramService handleUpdates stopping due to context cancellation")
			return
		case <-s.done:
			slog.Debug("TelegramService handleUpdates stopping")
			return
		case update, ok := <-updates:
			if !ok {
				slog.Debug("TelegramService update channel closed")
				return
			}
			event, ok := translateUpdate(update)
			if !ok {
				continue
			}
			select {
			case s.events <- event:
			default:
				slog.Warn("TelegramService event channel full, dropping event", "chatID", event.ChatID)
			}
		}
	}
}

// translateUpdate normalizes one Telegram update. Updates that carry neither
// a text message nor a callback query are skipped.
func translateUpdate(update tgbotapi.Update) (Event, bool) {
	if update.CallbackQuery != nil {
		cb := update.CallbackQuery
		event := Event{
			Kind:         EventCallback,
			CallbackID:   cb.ID,
			CallbackData: cb.Data,
		}
		if cb.From != nil {
			event.UserID = cb.From.ID
			event.UserName = displayName(cb.From)
		}
		if cb.Message != nil {
			event.ChatID = cb.Message.Chat.ID
			event.MessageID = cb.Message.MessageID
		}
		return event, true
	}

	msg := update.Message
	if msg == nil || msg.Text == "" {
		return Event{}, false
	}
	event := Event{
		Kind:      EventText,
		ChatID:    msg.Chat.ID,
		MessageID: msg.MessageID,
		Text:      msg.Text,
		Time:      int64(msg.Date),
	}
	if msg.From != nil {
		event.UserID = msg.From.ID
		event.UserName = displayName(msg.From)
	}
	if msg.IsCommand() {
		event.Kind = EventCommand
		event.Command = msg.Command()
		event.Args = msg.CommandArguments()
	}
	return event, true
}

// displayName prefers the first name over the handle, matching how group
// members refer to each other.
func displayName(u *tgbotapi.User) string {
	if u.FirstName != "" {
		return u.FirstName
	}
	return u.UserName
}
