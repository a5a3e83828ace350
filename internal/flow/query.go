package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bumperbrother/foodmemory/internal/messaging"
	"github.com/bumperbrother/foodmemory/internal/models"
)

const answerUnavailableMessage = "I'm having trouble looking that up right now."

// handleQuery answers a question about the food history. Restaurant-specific
// questions get a per-restaurant digest; everything else runs a filtered
// search. The digest is handed to the language model to phrase the answer.
func (c *Coordinator) handleQuery(ctx context.Context, event messaging.Event, payload *models.QueryPayload) string {
	question := event.Text
	if payload.RestaurantName != "" {
		return c.queryRestaurant(ctx, payload.RestaurantName, question)
	}

	entries, err := c.store.SearchEntries(models.EntryFilter{
		Cuisine:    payload.Cuisine,
		Sentiment:  payload.Sentiment,
		SearchTerm: payload.SearchTerm,
		Limit:      QueryResultLimit,
	})
	if err != nil {
		slog.Error("Coordinator query search failed", "error", err, "chatID", event.ChatID)
		return answerUnavailableMessage
	}
	if len(entries) == 0 {
		return fmt.Sprintf("I don't have any entries%s yet. Try logging some experiences first!", describeQuery(payload))
	}

	answer, err := c.genai.AnswerQuery(ctx, question, formatEntriesDigest(entries))
	if err != nil {
		slog.Error("Coordinator query answer failed", "error", err, "chatID", event.ChatID)
		return answerUnavailableMessage
	}
	return answer
}

// queryRestaurant digests one restaurant's visit history for the model.
func (c *Coordinator) queryRestaurant(ctx context.Context, restaurantName, question string) string {
	restaurant, err := c.store.FindRestaurantByName(restaurantName)
	if err != nil {
		slog.Error("Coordinator restaurant lookup failed", "error", err, "name", restaurantName)
		return answerUnavailableMessage
	}
	if restaurant == nil {
		return fmt.Sprintf("I don't have any records for '%s'. Is the name spelled correctly?", restaurantName)
	}

	entries, err := c.store.GetEntriesForRestaurant(restaurant.ID, QueryResultLimit)
	if err != nil {
		slog.Error("Coordinator restaurant entries lookup failed", "error", err, "restaurantID", restaurant.ID)
		return answerUnavailableMessage
	}
	if len(entries) == 0 {
		return fmt.Sprintf("I found %s in the database, but there are no logged visits yet!", restaurant.Name)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Restaurant: %s\n", restaurant.Name)
	if restaurant.Cuisine != "" {
		fmt.Fprintf(&b, "Cuisine: %s\n", restaurant.Cuisine)
	}
	if restaurant.Address != "" {
		fmt.Fprintf(&b, "Address: %s\n", restaurant.Address)
	}
	fmt.Fprintf(&b, "\nTotal visits logged: %d\n\nEntries:\n", len(entries))
	for _, entry := range entries {
		fmt.Fprintf(&b, "\n- Date: %s\n", entry.CreatedAt.Format("2006-01-02"))
		fmt.Fprintf(&b, "  User: %s\n", valueOr(entry.UserName, "Unknown"))
		writeEntryDetail(&b, entry)
	}

	answer, err := c.genai.AnswerQuery(ctx, question, b.String())
	if err != nil {
		slog.Error("Coordinator restaurant answer failed", "error", err, "restaurantID", restaurant.ID)
		return answerUnavailableMessage
	}
	return answer
}

// handleSearchCommand runs /search <term> across restaurants, dishes, and
// notes, answering through the model like a natural-language query.
func (c *Coordinator) handleSearchCommand(ctx context.Context, event messaging.Event) {
	term := strings.TrimSpace(event.Args)
	if term == "" {
		c.send(ctx, event.ChatID, "Usage: /search <term>\nExample: /search tacos")
		return
	}

	entries, err := c.store.SearchEntries(models.EntryFilter{SearchTerm: term, Limit: QueryResultLimit})
	if err != nil {
		slog.Error("Coordinator search command failed", "error", err, "term", term)
		c.send(ctx, event.ChatID, answerUnavailableMessage)
		return
	}
	if len(entries) == 0 {
		c.send(ctx, event.ChatID, fmt.Sprintf("No entries found matching '%s'", term))
		return
	}

	question := fmt.Sprintf("What do we have that matches '%s'?", term)
	answer, err := c.genai.AnswerQuery(ctx, question, formatEntriesDigest(entries))
	if err != nil {
		slog.Error("Coordinator search answer failed", "error", err, "term", term)
		c.send(ctx, event.ChatID, answerUnavailableMessage)
		return
	}
	c.send(ctx, event.ChatID, answer)
}

// formatEntriesDigest renders search results as model context.
func formatEntriesDigest(entries []models.Entry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Total entries found: %d\n\n", len(entries))
	for _, entry := range entries {
		fmt.Fprintf(&b, "- Restaurant: %s\n", valueOr(entry.RestaurantName, "Unknown"))
		fmt.Fprintf(&b, "  Date: %s\n", entry.CreatedAt.Format("2006-01-02"))
		fmt.Fprintf(&b, "  User: %s\n", valueOr(entry.UserName, "Unknown"))
		writeEntryDetail(&b, entry)
		b.WriteString("\n")
	}
	return b.String()
}

// writeEntryDetail appends the optional entry fields shared by both digests.
func writeEntryDetail(b *strings.Builder, entry models.Entry) {
	if entry.Dish != "" {
		fmt.Fprintf(b, "  Dish: %s\n", entry.Dish)
	}
	if entry.ExactOrder != "" {
		fmt.Fprintf(b, "  Saved order: %s\n", entry.ExactOrder)
	}
	if entry.Sentiment != "" {
		fmt.Fprintf(b, "  Sentiment: %s\n", entry.Sentiment)
	}
	if entry.Notes != "" {
		fmt.Fprintf(b, "  Notes: %s\n", entry.Notes)
	}
	if len(entry.Tags) > 0 {
		fmt.Fprintf(b, "  Tags: %s\n", joinTags(entry.Tags))
	}
}

// describeQuery phrases the active filters for an empty-result message.
func describeQuery(payload *models.QueryPayload) string {
	var parts []string
	if payload.Cuisine != "" {
		parts = append(parts, fmt.Sprintf("for %s food", payload.Cuisine))
	}
	if payload.Sentiment != "" {
		parts = append(parts, fmt.Sprintf("with %s reviews", payload.Sentiment))
	}
	if payload.SearchTerm != "" {
		parts = append(parts, fmt.Sprintf("matching '%s'", payload.SearchTerm))
	}
	if len(parts) == 0 {
		return ""
	}
	return " " + strings.Join(parts, " ")
}

func valueOr(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}
