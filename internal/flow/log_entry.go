package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bumperbrother/foodmemory/internal/messaging"
	"github.com/bumperbrother/foodmemory/internal/models"
)

// handleLogEntry records a new visit: it resolves the restaurant (enriching
// it with place data when possible), inserts the entry, and offers to save a
// reorder phrase.
func (c *Coordinator) handleLogEntry(ctx context.Context, event messaging.Event, payload *models.LogEntryPayload) {
	if payload.RestaurantName == "" {
		slog.Debug("Coordinator dropping log entry without restaurant name", "chatID", event.ChatID)
		return
	}
	restaurant, err := c.resolveRestaurant(ctx, payload.RestaurantName)
	if err != nil {
		slog.Error("Coordinator failed to resolve restaurant", "error", err, "name", payload.RestaurantName)
		c.send(ctx, event.ChatID, "Something went wrong saving that. Please try again.")
		return
	}

	entry, err := c.store.AddEntry(models.Entry{
		RestaurantID:   restaurant.ID,
		UserName:       userNameOr(event, "Unknown"),
		UserID:         event.UserID,
		Dish:           payload.DishName,
		Notes:          payload.Notes,
		Sentiment:      payload.Sentiment,
		SentimentScore: payload.SentimentScore,
		Tags:           payload.Tags,
	})
	if err != nil {
		slog.Error("Coordinator failed to add entry", "error", err, "restaurantID", restaurant.ID)
		c.send(ctx, event.ChatID, "Something went wrong saving that. Please try again.")
		return
	}

	c.sessions.Update(event.ChatID, func(s *models.Session) {
		s.LastEntryID = entry.ID
		s.LastEntryRestaurant = restaurant.Name
	})

	var b strings.Builder
	dishPart := ""
	if payload.DishName != "" {
		dishPart = " " + payload.DishName
	}
	fmt.Fprintf(&b, "Got it, %s!%s at %s %s", userNameOr(event, "Unknown"), dishPart, restaurant.Name, sentimentEmoji(payload.Sentiment))
	if restaurant.Cuisine != "" {
		fmt.Fprintf(&b, " (%s)", restaurant.Cuisine)
	}
	if len(payload.Tags) > 0 {
		fmt.Fprintf(&b, "\nTags: %s", joinTags(payload.Tags))
	}
	b.WriteString("\n\nWant to save a specific order for next time?")

	buttons := [][]messaging.Button{{
		{Label: "Yes", Data: callbackAddOrderYes},
		{Label: "No thanks", Data: callbackAddOrderNo},
	}}
	if _, err := c.messenger.SendMessageWithButtons(ctx, event.ChatID, b.String(), buttons); err != nil {
		slog.Error("Coordinator failed to send log confirmation", "error", err, "chatID", event.ChatID)
	}
}

// resolveRestaurant finds or creates a restaurant, consulting the place
// directory for new restaurants and for known ones that lack place data.
// Place lookups are best-effort; a failed lookup never blocks logging.
func (c *Coordinator) resolveRestaurant(ctx context.Context, name string) (*models.Restaurant, error) {
	restaurant, err := c.store.FindRestaurantByName(name)
	if err != nil {
		return nil, err
	}
	if restaurant == nil {
		place, _ := c.places.SearchRestaurant(ctx, name, "")
		return c.store.FindOrCreateRestaurant(name, place)
	}
	if restaurant.GooglePlaceID == "" {
		place, _ := c.places.SearchRestaurant(ctx, restaurant.Name, "")
		if place != nil {
			return c.store.FindOrCreateRestaurant(restaurant.Name, place)
		}
	}
	return restaurant, nil
}

// handleOrderCallback reacts to the yes/no buttons under a log confirmation.
// Yes opens a short dialogue capturing the chat's next message as the saved
// order; the dialogue expires silently after the inactivity deadline.
func (c *Coordinator) handleOrderCallback(ctx context.Context, event messaging.Event, action CallbackAction) {
	if err := c.messenger.RemoveButtons(ctx, event.ChatID, event.MessageID); err != nil {
		slog.Warn("Coordinator failed to remove order buttons", "error", err, "chatID", event.ChatID)
	}
	if action.Kind == CallbackAddOrderNo {
		return
	}

	session := c.sessions.Get(event.ChatID)
	restaurantName := session.LastEntryRestaurant
	if restaurantName == "" {
		restaurantName = "this place"
	}
	prompt := fmt.Sprintf("What's your go-to order at %s? (e.g., \"Pad Thai, medium spicy, no peanuts\")", restaurantName)
	c.send(ctx, event.ChatID, prompt)

	chatID := event.ChatID
	c.cancelOrderTimer(chatID)
	c.responses.RegisterHook(chatID, func(ctx context.Context, reply messaging.Event) (bool, error) {
		c.cancelOrderTimer(chatID)
		return true, c.saveExactOrder(ctx, reply)
	})
	var timerID string
	timerID, _ = c.timer.ScheduleAfter(models.ExactOrderTimeout, func() {
		// A timer that was replaced does not own the hook anymore and must
		// not unregister a newer dialogue's hook.
		stale := false
		c.sessions.Update(chatID, func(s *models.Session) {
			if s.OrderTimerID != timerID {
				stale = true
				return
			}
			s.OrderTimerID = ""
		})
		if stale {
			return
		}
		slog.Debug("Coordinator saved-order dialogue expired", "chatID", chatID)
		c.responses.UnregisterHook(chatID)
	})
	c.sessions.Update(chatID, func(s *models.Session) { s.OrderTimerID = timerID })
}

// cancelOrderTimer stops any pending reorder-dialogue inactivity timer for
// the chat and clears its session pointer.
func (c *Coordinator) cancelOrderTimer(chatID int64) {
	c.sessions.Update(chatID, func(s *models.Session) {
		if s.OrderTimerID != "" {
			c.timer.Cancel(s.OrderTimerID)
			s.OrderTimerID = ""
		}
	})
}

// saveExactOrder stores the reorder phrase against the last logged entry.
func (c *Coordinator) saveExactOrder(ctx context.Context, event messaging.Event) error {
	session := c.sessions.Get(event.ChatID)
	if session.LastEntryID == 0 {
		c.send(ctx, event.ChatID, "Sorry, I lost track of which entry to update. Try logging again!")
		return nil
	}

	order := event.Text
	if err := c.store.UpdateEntry(session.LastEntryID, models.EntryPatch{ExactOrder: &order}); err != nil {
		slog.Error("Coordinator failed to save exact order", "error", err, "entryID", session.LastEntryID)
		c.send(ctx, event.ChatID, "Something went wrong saving your order. Please try again.")
		return err
	}

	c.send(ctx, event.ChatID, fmt.Sprintf("Saved your order at %s: \"%s\"\nI'll remind you of this next time!", session.LastEntryRestaurant, order))
	return nil
}

// handleAddDetails amends the chat's most recent entry with follow-up detail.
// Mentions of a different restaurant are redirected instead of applied.
func (c *Coordinator) handleAddDetails(ctx context.Context, event messaging.Event, payload *models.DetailsPayload) string {
	session := c.sessions.Get(event.ChatID)

	if session.LastEntryID == 0 {
		if payload.RestaurantName != "" {
			return fmt.Sprintf("I don't have a recent entry to add to. To log something at %s, try:\n\"[dish] at %s, [how was it]\"",
				payload.RestaurantName, payload.RestaurantName)
		}
		return "I don't have a recent entry to add details to. Try logging a new experience first!"
	}

	if payload.RestaurantName != "" {
		mentioned := strings.ToLower(strings.TrimSpace(payload.RestaurantName))
		last := strings.ToLower(strings.TrimSpace(session.LastEntryRestaurant))
		if !strings.Contains(last, mentioned) && !strings.Contains(mentioned, last) {
			return fmt.Sprintf("Your last entry was at %s, not %s.\n\n"+
				"To add something to %s, try:\n\"[dish] at %s, [how was it]\"\n\n"+
				"Or to see what you've had there: \"What have we had at %s?\"",
				session.LastEntryRestaurant, payload.RestaurantName,
				payload.RestaurantName, payload.RestaurantName, payload.RestaurantName)
		}
	}

	entry, err := c.store.GetEntry(session.LastEntryID)
	if err != nil {
		slog.Error("Coordinator failed to load entry for details", "error", err, "entryID", session.LastEntryID)
		return "Something went wrong. Please try again."
	}
	if entry == nil {
		return "I couldn't find that entry anymore. Try logging a new experience!"
	}

	var patch models.EntryPatch
	if payload.DishName != "" {
		dish := payload.DishName
		if entry.Dish != "" {
			dish = entry.Dish + ", " + payload.DishName
		}
		patch.Dish = &dish
	}
	if payload.Notes != "" {
		notes := payload.Notes
		if entry.Notes != "" {
			notes = entry.Notes + ". " + payload.Notes
		}
		patch.Notes = &notes
	}
	if payload.Sentiment != nil {
		patch.Sentiment = payload.Sentiment
	}
	if payload.SentimentScore != nil {
		patch.SentimentScore = payload.SentimentScore
	}
	if len(payload.Tags) > 0 {
		patch.Tags = models.MergeTags(entry.Tags, payload.Tags)
	}

	if !patch.IsEmpty() {
		if err := c.store.UpdateEntry(session.LastEntryID, patch); err != nil {
			slog.Error("Coordinator failed to update entry", "error", err, "entryID", session.LastEntryID)
			return "Something went wrong updating that entry. Please try again."
		}
	}

	var parts []string
	if payload.DishName != "" {
		parts = append(parts, "added "+payload.DishName)
	}
	if payload.Notes != "" {
		parts = append(parts, "noted: "+payload.Notes)
	}
	if len(payload.Tags) > 0 {
		parts = append(parts, "tagged: "+joinTags(payload.Tags))
	}

	if len(parts) > 0 {
		return fmt.Sprintf("Updated your %s entry: %s", session.LastEntryRestaurant, strings.Join(parts, ", "))
	}
	return fmt.Sprintf("Got it! (though I'm not sure what to add to your %s entry)", session.LastEntryRestaurant)
}
