package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bumperbrother/foodmemory/internal/models"
)

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// nilIfZero returns nil if v is zero, otherwise returns v.
func nilIfZero(v int64) interface{} {
	if v == 0 {
		return nil
	}
	return v
}

// nilIfNegative returns nil for negative price levels (the "unknown" sentinel).
func nilIfNegative(v int) interface{} {
	if v < 0 {
		return nil
	}
	return v
}

// tagsToJSON serializes a tag set for storage. Empty sets store as NULL.
func tagsToJSON(tags []string) (interface{}, error) {
	if len(tags) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tags: %w", err)
	}
	return string(data), nil
}

// tagsFromJSON deserializes a stored tag set, substituting empty for NULL or
// malformed values rather than failing the read.
func tagsFromJSON(raw sql.NullString) []string {
	if !raw.Valid || raw.String == "" {
		return []string{}
	}
	var tags []string
	if err := json.Unmarshal([]byte(raw.String), &tags); err != nil {
		slog.Error("store failed to unmarshal stored tags, substituting empty", "error", err)
		return []string{}
	}
	return tags
}

// restaurantScanner abstracts sql.Row and sql.Rows for shared scanning.
type restaurantScanner interface {
	Scan(dest ...interface{}) error
}

const restaurantColumns = `id, name, google_place_id, address, latitude, longitude, cuisine, price_level, dine_in, takeout, delivery`

// scanRestaurant scans a Restaurant from a row or rows cursor.
func scanRestaurant(sc restaurantScanner) (*models.Restaurant, error) {
	var r models.Restaurant
	var placeID, address, cuisine sql.NullString
	var lat, lng sql.NullFloat64
	var priceLevel sql.NullInt64
	err := sc.Scan(&r.ID, &r.Name, &placeID, &address, &lat, &lng, &cuisine, &priceLevel, &r.DineIn, &r.Takeout, &r.Delivery)
	if err != nil {
		return nil, err
	}
	r.GooglePlaceID = placeID.String
	r.Address = address.String
	r.Latitude = lat.Float64
	r.Longitude = lng.Float64
	r.Cuisine = cuisine.String
	r.PriceLevel = -1
	if priceLevel.Valid {
		r.PriceLevel = int(priceLevel.Int64)
	}
	return &r, nil
}

const entryColumns = `e.id, e.restaurant_id, e.user_name, e.user_id, e.dish, e.exact_order, e.notes, e.sentiment, e.sentiment_score, e.tags, e.created_at, r.name`

// scanEntry scans an Entry (joined with its restaurant name) from a row or
// rows cursor.
func scanEntry(sc restaurantScanner) (*models.Entry, error) {
	var e models.Entry
	var userName, dish, exactOrder, notes, sentiment, restaurantName sql.NullString
	var tags sql.NullString
	var userID sql.NullInt64
	var score sql.NullFloat64
	err := sc.Scan(&e.ID, &e.RestaurantID, &userName, &userID, &dish, &exactOrder, &notes, &sentiment, &score, &tags, &e.CreatedAt, &restaurantName)
	if err != nil {
		return nil, err
	}
	e.UserName = userName.String
	e.UserID = userID.Int64
	e.Dish = dish.String
	e.ExactOrder = exactOrder.String
	e.Notes = notes.String
	e.Sentiment = models.Sentiment(sentiment.String)
	e.SentimentScore = score.Float64
	e.Tags = tagsFromJSON(tags)
	e.RestaurantName = restaurantName.String
	return &e, nil
}

// newRestaurant builds the in-memory view of a freshly inserted restaurant.
func newRestaurant(id int64, name string, place *models.PlaceData) *models.Restaurant {
	r := &models.Restaurant{ID: id, Name: name, PriceLevel: -1, DineIn: true}
	if place != nil {
		r.GooglePlaceID = place.PlaceID
		r.Address = place.Address
		r.Latitude = place.Latitude
		r.Longitude = place.Longitude
		r.Cuisine = place.Cuisine
		if place.PriceLevel >= 0 {
			r.PriceLevel = place.PriceLevel
		}
		r.DineIn = place.DineIn
		r.Takeout = place.Takeout
		r.Delivery = place.Delivery
	}
	return r
}

// mergeEnrichment folds place data into an existing restaurant, mirroring the
// COALESCE semantics of the enrichment UPDATE.
func mergeEnrichment(r *models.Restaurant, place *models.PlaceData) {
	r.GooglePlaceID = place.PlaceID
	r.Address = place.Address
	r.Latitude = place.Latitude
	r.Longitude = place.Longitude
	if place.Cuisine != "" {
		r.Cuisine = place.Cuisine
	}
	if place.PriceLevel >= 0 {
		r.PriceLevel = place.PriceLevel
	}
	r.DineIn = place.DineIn
	r.Takeout = place.Takeout
	r.Delivery = place.Delivery
}

// buildEntryPatch turns an EntryPatch into SET clauses and args. The ph
// callback supplies the placeholder for the i-th argument so both SQLite and
// Postgres dialects can share the logic.
func buildEntryPatch(patch models.EntryPatch, ph func(int) string) ([]string, []interface{}, error) {
	var sets []string
	var args []interface{}
	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, column+" = "+ph(len(args)))
	}
	if patch.Dish != nil {
		add("dish", nilIfEmpty(*patch.Dish))
	}
	if patch.ExactOrder != nil {
		add("exact_order", nilIfEmpty(*patch.ExactOrder))
	}
	if patch.Notes != nil {
		add("notes", nilIfEmpty(*patch.Notes))
	}
	if patch.Sentiment != nil {
		add("sentiment", string(*patch.Sentiment))
	}
	if patch.SentimentScore != nil {
		add("sentiment_score", *patch.SentimentScore)
	}
	if patch.Tags != nil {
		tagsJSON, err := tagsToJSON(patch.Tags)
		if err != nil {
			return nil, nil, err
		}
		add("tags", tagsJSON)
	}
	return sets, args, nil
}

// placeholders joins n placeholders with commas, 1-indexed through ph.
func placeholders(n int, ph func(int) string) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = ph(i + 1)
	}
	return strings.Join(parts, ", ")
}

// collectEntries drains a joined entries result set.
func collectEntries(rows *sql.Rows) ([]models.Entry, error) {
	var entries []models.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry row: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate entry rows: %w", err)
	}
	return entries, nil
}
