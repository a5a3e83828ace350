package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bumperbrother/foodmemory/internal/messaging"
	"github.com/bumperbrother/foodmemory/internal/models"
)

// Constants for the suggestion dialogue
const (
	// MaxCuisineButtons caps the cuisine keyboard
	MaxCuisineButtons = 8
	// CuisineButtonsPerRow lays out the cuisine keyboard
	CuisineButtonsPerRow = 2
	// SuggestionEntryFetch is how many past visits are loaded per proposal
	SuggestionEntryFetch = 5
	// SuggestionEntriesShown is how many past visits appear in a proposal
	SuggestionEntriesShown = 3
)

const suggestionExpiredMessage = "This suggestion has expired. Use /whattoeat to start again!"

// startWhatToEat opens the suggestion dialogue with a cuisine keyboard. Any
// prior suggestion dialogue in the chat is replaced.
func (c *Coordinator) startWhatToEat(ctx context.Context, chatID int64) {
	cuisines, err := c.store.GetDistinctCuisines()
	if err != nil {
		slog.Error("Coordinator failed to load cuisines", "error", err, "chatID", chatID)
		c.send(ctx, chatID, "Something went wrong. Please try again.")
		return
	}
	if len(cuisines) == 0 {
		c.send(ctx, chatID, "You haven't saved any restaurants yet! "+
			"Try logging some food experiences first, like:\n\"Pad thai at Siam Station, really good\"")
		return
	}

	if len(cuisines) > MaxCuisineButtons {
		cuisines = cuisines[:MaxCuisineButtons]
	}
	var rows [][]messaging.Button
	var row []messaging.Button
	for _, cuisine := range cuisines {
		row = append(row, messaging.Button{Label: cuisine, Data: cuisinePrefix + cuisine})
		if len(row) == CuisineButtonsPerRow {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, []messaging.Button{{Label: "🎲 Any cuisine", Data: cuisinePrefix + anyCuisine}})
	rows = append(rows, []messaging.Button{{Label: "❌ Cancel", Data: callbackCancel}})

	messageID, err := c.messenger.SendMessageWithButtons(ctx, chatID, "What kind of food are you in the mood for?", rows)
	if err != nil {
		slog.Error("Coordinator failed to send cuisine keyboard", "error", err, "chatID", chatID)
		return
	}

	c.sessions.Update(chatID, func(s *models.Session) {
		if s.Suggestion != nil {
			c.timer.Cancel(s.Suggestion.TimerID)
		}
		s.Suggestion = &models.SuggestionState{
			State:     models.StateSelectingCuisine,
			MessageID: messageID,
		}
		s.Suggestion.TimerID = c.scheduleSuggestionExpiry(chatID)
	})
	slog.Info("Coordinator suggestion dialogue started", "chatID", chatID, "cuisines", len(cuisines))
}

// handleSuggestionCallback advances the suggestion dialogue. Button presses
// for a dialogue that already ended are ignored.
func (c *Coordinator) handleSuggestionCallback(ctx context.Context, event messaging.Event, action CallbackAction) {
	session := c.sessions.Get(event.ChatID)
	sug := session.Suggestion
	if sug == nil {
		slog.Debug("Coordinator ignoring callback without active suggestion", "chatID", event.ChatID)
		return
	}

	if action.Kind == CallbackCancel {
		c.endSuggestion(ctx, event.ChatID, sug, suggestionCancelledMessage)
		return
	}

	switch sug.State {
	case models.StateSelectingCuisine:
		if action.Kind != CallbackCuisine {
			return
		}
		c.updateSuggestion(event.ChatID, func(live *models.SuggestionState) {
			live.Cuisine = action.Cuisine
		})
		c.touchSuggestionTimer(event.ChatID, sug)
		c.proposeRestaurant(ctx, event.ChatID, sug)
	case models.StateConfirming:
		switch action.Kind {
		case CallbackAccept:
			c.endSuggestion(ctx, event.ChatID, sug,
				"Great choice! Enjoy your meal! 🍽️\n\nDon't forget to log your experience afterwards!")
		case CallbackReject:
			c.updateSuggestion(event.ChatID, func(live *models.SuggestionState) {
				if live.ProposedID != 0 {
					live.RejectedIDs = append(live.RejectedIDs, live.ProposedID)
				}
			})
			c.touchSuggestionTimer(event.ChatID, sug)
			c.proposeRestaurant(ctx, event.ChatID, sug)
		}
	}
}

// proposeRestaurant draws a candidate honoring the cuisine filter and the
// rejected set, and edits the dialogue message into a proposal. An exhausted
// pool ends the dialogue.
func (c *Coordinator) proposeRestaurant(ctx context.Context, chatID int64, sug *models.SuggestionState) {
	restaurant, err := c.store.GetRandomPositiveRestaurant(sug.Cuisine, sug.RejectedIDs)
	if err != nil {
		slog.Error("Coordinator suggestion draw failed", "error", err, "chatID", chatID)
		c.endSuggestion(ctx, chatID, sug, "Something went wrong. Please try again.")
		return
	}
	if restaurant == nil {
		cuisineText := ""
		if sug.Cuisine != "" {
			cuisineText = " " + sug.Cuisine
		}
		c.endSuggestion(ctx, chatID, sug, fmt.Sprintf(
			"I don't have any more%s restaurants to suggest!\nTry logging some new places or pick a different cuisine.", cuisineText))
		return
	}

	entries, err := c.store.GetEntriesForRestaurant(restaurant.ID, SuggestionEntryFetch)
	if err != nil {
		slog.Error("Coordinator failed to load proposal entries", "error", err, "restaurantID", restaurant.ID)
		entries = nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "How about **%s**", restaurant.Name)
	if restaurant.Cuisine != "" {
		fmt.Fprintf(&b, " (%s)", restaurant.Cuisine)
	}
	if restaurant.Address != "" {
		fmt.Fprintf(&b, "\n📍 %s", restaurant.Address)
	}
	b.WriteString("\n\n**Your past visits:**")
	shown := entries
	if len(shown) > SuggestionEntriesShown {
		shown = shown[:SuggestionEntriesShown]
	}
	for _, entry := range shown {
		fmt.Fprintf(&b, "\n• %s: %s %s", valueOr(entry.UserName, "Someone"), valueOr(entry.Dish, "No dish noted"), sentimentEmoji(entry.Sentiment))
		if entry.Notes != "" {
			fmt.Fprintf(&b, " - %s", entry.Notes)
		}
	}

	c.updateSuggestion(chatID, func(live *models.SuggestionState) {
		live.ProposedID = restaurant.ID
		live.State = models.StateConfirming
	})

	rows := [][]messaging.Button{
		{{Label: "✅ Let's go!", Data: callbackAccept}, {Label: "🔄 Try another", Data: callbackReject}},
		{{Label: "❌ Cancel", Data: callbackCancel}},
	}
	if err := c.messenger.EditMessageWithButtons(ctx, chatID, sug.MessageID, b.String(), rows); err != nil {
		slog.Error("Coordinator failed to edit proposal message", "error", err, "chatID", chatID)
		return
	}
	slog.Info("Coordinator proposed restaurant", "chatID", chatID, "restaurantID", restaurant.ID, "rejected", len(sug.RejectedIDs))
}

// endSuggestion closes the dialogue, replacing the prompt with finalText.
func (c *Coordinator) endSuggestion(ctx context.Context, chatID int64, sug *models.SuggestionState, finalText string) {
	c.timer.Cancel(sug.TimerID)
	c.sessions.Update(chatID, func(s *models.Session) { s.Suggestion = nil })
	if err := c.messenger.EditMessageText(ctx, chatID, sug.MessageID, finalText); err != nil {
		slog.Warn("Coordinator failed to edit final suggestion text", "error", err, "chatID", chatID)
	}
}

// touchSuggestionTimer restarts the inactivity deadline after a transition.
func (c *Coordinator) touchSuggestionTimer(chatID int64, sug *models.SuggestionState) {
	c.timer.Cancel(sug.TimerID)
	timerID := c.scheduleSuggestionExpiry(chatID)
	c.updateSuggestion(chatID, func(live *models.SuggestionState) {
		live.TimerID = timerID
	})
}

// updateSuggestion mutates the chat's live suggestion state under the session
// lock. The expiry timer reads the same state from its own goroutine, so all
// writes go through here.
func (c *Coordinator) updateSuggestion(chatID int64, fn func(*models.SuggestionState)) {
	c.sessions.Update(chatID, func(s *models.Session) {
		if s.Suggestion != nil {
			fn(s.Suggestion)
		}
	})
}

// scheduleSuggestionExpiry arms the dialogue's inactivity deadline. Expiry
// annotates the prompt on a best-effort basis and clears the state.
func (c *Coordinator) scheduleSuggestionExpiry(chatID int64) string {
	timerID, _ := c.timer.ScheduleAfter(models.WhatToEatTimeout, func() {
		var sug *models.SuggestionState
		c.sessions.Update(chatID, func(s *models.Session) {
			sug = s.Suggestion
			s.Suggestion = nil
		})
		if sug == nil {
			return
		}
		slog.Debug("Coordinator suggestion dialogue expired", "chatID", chatID)
		if err := c.messenger.EditMessageText(context.Background(), chatID, sug.MessageID, suggestionExpiredMessage); err != nil {
			slog.Debug("Coordinator expiry edit failed", "error", err, "chatID", chatID)
		}
	})
	return timerID
}
