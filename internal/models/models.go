// Package models defines the core data structures for the food memory bot.
//
// It includes the restaurant and entry records shared across modules, the
// partial-update patch type applied by the amendment flow, and the place
// record returned by the places lookup.
package models

import (
	"errors"
	"time"
)

// Sentiment is the categorical sentiment label attached to an entry.
type Sentiment string

const (
	// SentimentPositive indicates a clearly positive experience.
	SentimentPositive Sentiment = "positive"
	// SentimentNegative indicates a clearly negative experience.
	SentimentNegative Sentiment = "negative"
	// SentimentNeutral indicates no clear emotion either way.
	SentimentNeutral Sentiment = "neutral"
	// SentimentMixed indicates conflicting sentiments in one experience.
	SentimentMixed Sentiment = "mixed"
)

// ErrEmptyRestaurantName rejects restaurant lookups and creates with no name.
// Absent rows are reported as nil results, not sentinel errors.
var ErrEmptyRestaurantName = errors.New("restaurant name cannot be empty")

// IsValidSentiment checks if the given sentiment label is supported.
func IsValidSentiment(s Sentiment) bool {
	switch s {
	case SentimentPositive, SentimentNegative, SentimentNeutral, SentimentMixed:
		return true
	default:
		return false
	}
}

// SentimentFromScore maps a numeric sentiment value onto a label.
// Thresholds: >=0.5 positive, <=-0.5 negative, [-0.2,0.2] neutral, else mixed.
func SentimentFromScore(score float64) Sentiment {
	switch {
	case score >= 0.5:
		return SentimentPositive
	case score <= -0.5:
		return SentimentNegative
	case score >= -0.2 && score <= 0.2:
		return SentimentNeutral
	default:
		return SentimentMixed
	}
}

// Restaurant represents a saved restaurant, optionally enriched with place data.
// A restaurant is created on first mention and never deleted.
type Restaurant struct {
	ID            int64   `json:"id"`
	Name          string  `json:"name"`
	GooglePlaceID string  `json:"google_place_id,omitempty"`
	Address       string  `json:"address,omitempty"`
	Latitude      float64 `json:"latitude,omitempty"`
	Longitude     float64 `json:"longitude,omitempty"`
	Cuisine       string  `json:"cuisine,omitempty"`
	PriceLevel    int     `json:"price_level,omitempty"` // 0-4, -1 when unknown
	DineIn        bool    `json:"dine_in"`
	Takeout       bool    `json:"takeout"`
	Delivery      bool    `json:"delivery"`
}

// Entry represents one logged restaurant visit.
// Entries are owned by exactly one restaurant and are never reassigned.
type Entry struct {
	ID             int64     `json:"id"`
	RestaurantID   int64     `json:"restaurant_id"`
	UserName       string    `json:"user_name,omitempty"`
	UserID         int64     `json:"user_id,omitempty"` // chat platform numeric identity, 0 when unknown
	Dish           string    `json:"dish,omitempty"`
	ExactOrder     string    `json:"exact_order,omitempty"`
	Notes          string    `json:"notes,omitempty"`
	Sentiment      Sentiment `json:"sentiment,omitempty"`
	SentimentScore float64   `json:"sentiment_score"`
	Tags           []string  `json:"tags,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	RestaurantName string    `json:"restaurant_name,omitempty"` // populated on joined reads
}

// EntryPatch is a partial update for an entry. Nil fields are left unchanged.
// Merge policy is decided by the caller: the amendment flow appends dish
// fragments with ", ", appends notes with ". ", overwrites sentiment and score,
// and unions tags before building the patch. Tags nil means unchanged; a
// non-nil slice replaces the stored set.
type EntryPatch struct {
	Dish           *string
	ExactOrder     *string
	Notes          *string
	Sentiment      *Sentiment
	SentimentScore *float64
	Tags           []string
}

// IsEmpty reports whether the patch carries no field updates.
func (p EntryPatch) IsEmpty() bool {
	return p.Dish == nil && p.ExactOrder == nil && p.Notes == nil &&
		p.Sentiment == nil && p.SentimentScore == nil && p.Tags == nil
}

// EntryFilter describes a filtered entry search. All set filters are
// AND-combined; zero values are ignored.
type EntryFilter struct {
	Cuisine    string // substring match on restaurant cuisine
	Sentiment  Sentiment
	UserID     int64
	SearchTerm string // substring match across restaurant name, dish, notes
	Limit      int
}

// PlaceData is the best-matching place record returned by the places lookup.
type PlaceData struct {
	PlaceID    string  `json:"place_id"`
	Name       string  `json:"name"`
	Address    string  `json:"address,omitempty"`
	Latitude   float64 `json:"latitude,omitempty"`
	Longitude  float64 `json:"longitude,omitempty"`
	Cuisine    string  `json:"cuisine,omitempty"`
	PriceLevel int     `json:"price_level"` // 0-4, -1 when unknown
	DineIn     bool    `json:"dine_in"`
	Takeout    bool    `json:"takeout"`
	Delivery   bool    `json:"delivery"`
}

// MergeTags unions two tag sets, preserving first-seen order and dropping
// duplicates. The result is stable for repeated merges of the same inputs.
func MergeTags(existing, incoming []string) []string {
	seen := make(map[string]bool, len(existing)+len(incoming))
	merged := make([]string, 0, len(existing)+len(incoming))
	for _, t := range existing {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		merged = append(merged, t)
	}
	for _, t := range incoming {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		merged = append(merged, t)
	}
	return merged
}
