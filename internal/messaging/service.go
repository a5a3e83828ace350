// Package messaging provides a pluggable chat transport abstraction.
//
// It defines the events a conversation flow consumes and the operations it
// uses to reply, with a Telegram implementation.
package messaging

import "context"

// EventKind distinguishes the incoming event types a transport can deliver.
type EventKind string

const (
	// EventText is a plain chat message.
	EventText EventKind = "text"
	// EventCommand is a slash command such as /start or /search.
	EventCommand EventKind = "command"
	// EventCallback is an inline-button press.
	EventCallback EventKind = "callback"
)

// Event is one incoming chat event, normalized across event kinds.
type Event struct {
	Kind         EventKind
	ChatID       int64
	MessageID    int
	UserID       int64
	UserName     string
	Text         string
	Command      string // set for EventCommand
	Args         string // command arguments, set for EventCommand
	CallbackID   string // set for EventCallback
	CallbackData string // set for EventCallback
	Time         int64
}

// Button is one inline keyboard button.
type Button struct {
	Label string
	Data  string
}

// Service defines a pluggable chat transport.
// It supports sending and editing messages and provides a channel of
// incoming events.
type Service interface {
	// SendMessage sends a text message to a chat and returns the sent
	// message's ID.
	SendMessage(ctx context.Context, chatID int64, text string) (int, error)

	// SendMessageWithButtons sends a text message with an inline keyboard.
	// Buttons are laid out in the given rows. Returns the message ID.
	SendMessageWithButtons(ctx context.Context, chatID int64, text string, rows [][]Button) (int, error)

	// EditMessageText replaces the text of a previously sent message,
	// removing any inline keyboard.
	EditMessageText(ctx context.Context, chatID int64, messageID int, text string) error

	// EditMessageWithButtons replaces both the text and the inline
	// keyboard of a previously sent message.
	EditMessageWithButtons(ctx context.Context, chatID int64, messageID int, text string, rows [][]Button) error

	// RemoveButtons strips the inline keyboard from a message while
	// keeping its text.
	RemoveButtons(ctx context.Context, chatID int64, messageID int) error

	// AnswerCallback acknowledges an inline-button press so the client
	// stops showing a progress indicator.
	AnswerCallback(ctx context.Context, callbackID string) error

	// Start begins background processing (e.g., polling for updates).
	Start(ctx context.Context) error

	// Stop stops background processing and cleans up resources.
	Stop() error

	// Events returns a channel of incoming chat events.
	Events() <-chan Event
}
