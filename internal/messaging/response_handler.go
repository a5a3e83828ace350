// Package messaging provides response handling functionality for stateful interactions.
package messaging

import (
	"context"
	"log/slog"
	"sync"
)

// ResponseAction defines a hook function that captures a chat's next text
// message. It receives the full event and should return true if the message
// was consumed, false to let normal routing handle it.
type ResponseAction func(ctx context.Context, event Event) (handled bool, err error)

// ResponseHandler routes incoming text messages to per-chat hooks. A flow
// registers a hook when it expects the next free-text message in a chat to
// belong to it (for example, a saved-order prompt waiting for the order).
// Hooks are one-shot: they are unregistered before being invoked.
type ResponseHandler struct {
	// hooks maps chat IDs to response action functions
	hooks map[int64]ResponseAction
	// mu protects concurrent access to the hooks map
	mu sync.RWMutex
}

// NewResponseHandler creates an empty ResponseHandler.
func NewResponseHandler() *ResponseHandler {
	return &ResponseHandler{hooks: make(map[int64]ResponseAction)}
}

// RegisterHook registers a response action for a chat, replacing any
// existing one.
func (rh *ResponseHandler) RegisterHook(chatID int64, action ResponseAction) {
	rh.mu.Lock()
	defer rh.mu.Unlock()
	rh.hooks[chatID] = action
	slog.Debug("ResponseHandler hook registered", "chatID", chatID)
}

// UnregisterHook removes the response action for a chat.
func (rh *ResponseHandler) UnregisterHook(chatID int64) {
	rh.mu.Lock()
	defer rh.mu.Unlock()
	delete(rh.hooks, chatID)
	slog.Debug("ResponseHandler hook unregistered", "chatID", chatID)
}

// IsHookRegistered checks if a hook is registered for the given chat.
func (rh *ResponseHandler) IsHookRegistered(chatID int64) bool {
	rh.mu.RLock()
	defer rh.mu.RUnlock()
	_, exists := rh.hooks[chatID]
	return exists
}

// ProcessResponse offers an incoming event to the chat's hook, if any.
// The hook is removed before invocation so a slow handler cannot be run
// twice. Returns true when the event was consumed by a hook.
func (rh *ResponseHandler) ProcessResponse(ctx context.Context, event Event) (bool, error) {
	rh.mu.Lock()
	action, exists := rh.hooks[event.ChatID]
	if exists {
		delete(rh.hooks, event.ChatID)
	}
	rh.mu.Unlock()

	if !exists {
		return false, nil
	}

	slog.Debug("ResponseHandler executing hook", "chatID", event.ChatID)
	handled, err := action(ctx, event)
	if err != nil {
		slog.Error("ResponseHandler hook execution failed", "error", err, "chatID", event.ChatID)
		return handled, err
	}
	if !handled {
		slog.Debug("ResponseHandler hook declined event", "chatID", event.ChatID)
	}
	return handled, nil
}
