// Package models defines classifier output structures for the food memory bot.
package models

import "encoding/json"

// Intent is the classifier's categorical judgment of a user turn.
type Intent string

const (
	// IntentLogEntry indicates the user is logging a new visit.
	IntentLogEntry Intent = "log_entry"
	// IntentAddDetails indicates a follow-up to the most recent entry.
	IntentAddDetails Intent = "add_details"
	// IntentQueryRestaurant indicates a question about a specific restaurant.
	IntentQueryRestaurant Intent = "query_restaurant"
	// IntentQueryGeneral indicates a general question about the food history.
	IntentQueryGeneral Intent = "query_general"
	// IntentWhatToEat indicates the user wants a restaurant suggestion.
	IntentWhatToEat Intent = "what_to_eat"
	// IntentGreeting indicates the user is greeting the bot.
	IntentGreeting Intent = "greeting"
	// IntentUnknown indicates the intent could not be determined.
	IntentUnknown Intent = "unknown"
)

// IsValidIntent checks if the given intent is supported.
func IsValidIntent(i Intent) bool {
	switch i {
	case IntentLogEntry, IntentAddDetails, IntentQueryRestaurant,
		IntentQueryGeneral, IntentWhatToEat, IntentGreeting, IntentUnknown:
		return true
	default:
		return false
	}
}

// ParseIntent decodes a raw intent string into an Intent, mapping anything
// unrecognized to IntentUnknown so downstream dispatch stays exhaustive.
func ParseIntent(raw string) Intent {
	i := Intent(raw)
	if !IsValidIntent(i) {
		return IntentUnknown
	}
	return i
}

// LogEntryPayload is the structured visit extracted from a LOG_ENTRY turn.
type LogEntryPayload struct {
	RestaurantName string    `json:"restaurant_name"`
	DishName       string    `json:"dish_name,omitempty"`
	Sentiment      Sentiment `json:"sentiment,omitempty"`
	SentimentScore float64   `json:"sentiment_score,omitempty"`
	Tags           []string  `json:"tags,omitempty"`
	Notes          string    `json:"notes,omitempty"`
}

// DetailsPayload carries additional detail for the most recent entry.
// Pointer fields distinguish "absent" from zero values so the amendment flow
// only touches what the classifier actually extracted.
type DetailsPayload struct {
	RestaurantName string     `json:"restaurant_name,omitempty"`
	DishName       string     `json:"dish_name,omitempty"`
	Notes          string     `json:"notes,omitempty"`
	Sentiment      *Sentiment `json:"sentiment,omitempty"`
	SentimentScore *float64   `json:"sentiment_score,omitempty"`
	Tags           []string   `json:"tags,omitempty"`
}

// QueryPayload is the structured query extracted from a QUERY_* turn.
type QueryPayload struct {
	RestaurantName string    `json:"restaurant_name,omitempty"`
	Cuisine        string    `json:"cuisine,omitempty"`
	Sentiment      Sentiment `json:"sentiment,omitempty"`
	SearchTerm     string    `json:"search_term,omitempty"`
}

// Analysis is the complete classification of one user turn.
type Analysis struct {
	Intent        Intent           `json:"intent"`
	Confidence    float64          `json:"confidence"`
	LogEntry      *LogEntryPayload `json:"log_entry,omitempty"`
	Details       *DetailsPayload  `json:"details,omitempty"`
	Query         *QueryPayload    `json:"query,omitempty"`
	Clarification string           `json:"clarification_needed,omitempty"`
}

// Turn is one chat turn kept in the rolling conversation history.
type Turn struct {
	Role string `json:"role"` // "user" or "assistant"
	Text string `json:"content"`
}

// rawAnalysis mirrors the classifier's JSON output before normalization.
// Sentiment fields are decoded as json.RawMessage because the model
// sometimes returns a number where a label is expected.
type rawAnalysis struct {
	Intent        string          `json:"intent"`
	Confidence    *float64        `json:"confidence"`
	LogEntry      json.RawMessage `json:"log_entry"`
	Details       json.RawMessage `json:"details"`
	Query         *QueryPayload   `json:"query"`
	Clarification string          `json:"clarification_needed"`
}

type rawLogEntry struct {
	RestaurantName string          `json:"restaurant_name"`
	DishName       string          `json:"dish_name"`
	Sentiment      json.RawMessage `json:"sentiment"`
	SentimentScore *float64        `json:"sentiment_score"`
	Tags           []string        `json:"tags"`
	Notes          string          `json:"notes"`
}

type rawDetails struct {
	RestaurantName string          `json:"restaurant_name"`
	DishName       string          `json:"dish_name"`
	Notes          string          `json:"notes"`
	Sentiment      json.RawMessage `json:"sentiment"`
	SentimentScore *float64        `json:"sentiment_score"`
	Tags           []string        `json:"tags"`
}

// normalizeSentiment resolves a raw sentiment JSON value (label or number)
// into a label plus an optional score. A numeric value is bucketed into a
// label and backfills the score when no explicit score was given; an
// unrecognized label maps to neutral. The returned score is nil when neither
// an explicit score nor a numeric backfill is available.
func normalizeSentiment(raw json.RawMessage, explicitScore *float64) (Sentiment, *float64, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil, false
	}
	var label string
	if err := json.Unmarshal(raw, &label); err == nil {
		s := Sentiment(label)
		if !IsValidSentiment(s) {
			s = SentimentNeutral
		}
		return s, explicitScore, true
	}
	var numeric float64
	if err := json.Unmarshal(raw, &numeric); err == nil {
		score := explicitScore
		if score == nil {
			score = &numeric
		}
		return SentimentFromScore(numeric), score, true
	}
	return SentimentNeutral, explicitScore, true
}

// ParseAnalysis decodes and normalizes the classifier's JSON output.
// It tolerates numeric sentiment values, null tag lists, and missing
// confidence (defaulting to 1.0). A JSON decode failure is returned to the
// caller so the retry loop can try again.
func ParseAnalysis(data []byte) (*Analysis, error) {
	var raw rawAnalysis
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	analysis := &Analysis{
		Intent:        ParseIntent(raw.Intent),
		Confidence:    1.0,
		Query:         raw.Query,
		Clarification: raw.Clarification,
	}
	if raw.Confidence != nil {
		analysis.Confidence = *raw.Confidence
	}

	if len(raw.LogEntry) > 0 && string(raw.LogEntry) != "null" {
		var rle rawLogEntry
		if err := json.Unmarshal(raw.LogEntry, &rle); err != nil {
			return nil, err
		}
		payload := &LogEntryPayload{
			RestaurantName: rle.RestaurantName,
			DishName:       rle.DishName,
			Sentiment:      SentimentNeutral,
			Tags:           rle.Tags,
			Notes:          rle.Notes,
		}
		if rle.Tags == nil {
			payload.Tags = []string{}
		}
		if rle.SentimentScore != nil {
			payload.SentimentScore = *rle.SentimentScore
		}
		if s, score, ok := normalizeSentiment(rle.Sentiment, rle.SentimentScore); ok {
			payload.Sentiment = s
			if score != nil {
				payload.SentimentScore = *score
			}
		}
		analysis.LogEntry = payload
	}

	if len(raw.Details) > 0 && string(raw.Details) != "null" {
		var rd rawDetails
		if err := json.Unmarshal(raw.Details, &rd); err != nil {
			return nil, err
		}
		payload := &DetailsPayload{
			RestaurantName: rd.RestaurantName,
			DishName:       rd.DishName,
			Notes:          rd.Notes,
			SentimentScore: rd.SentimentScore,
			Tags:           rd.Tags,
		}
		if rd.Tags == nil {
			payload.Tags = []string{}
		}
		if s, score, ok := normalizeSentiment(rd.Sentiment, rd.SentimentScore); ok {
			payload.Sentiment = &s
			payload.SentimentScore = score
		}
		analysis.Details = payload
	}

	return analysis, nil
}
