// Package store provides storage backends for the food memory bot.
//
// This file implements an SQLite-backed store for restaurants and entries.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "embed"

	"github.com/bumperbrother/foodmemory/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	// Apply options
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	// Determine DSN (required)
	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	// Ensure the directory exists
	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	slog.Debug("Opening SQLite database connection")
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	// Run migrations to ensure tables exist
	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	return s.db.Close()
}

// FindRestaurantByName finds a restaurant by case-insensitive name match,
// exact first and substring second.
func (s *SQLiteStore) FindRestaurantByName(name string) (*models.Restaurant, error) {
	row := s.db.QueryRow(`SELECT `+restaurantColumns+` FROM restaurants WHERE LOWER(name) = LOWER(?) LIMIT 1`, name)
	r, err := scanRestaurant(row)
	if err == nil {
		slog.Debug("SQLiteStore FindRestaurantByName exact match", "name", name, "id", r.ID)
		return r, nil
	}
	if err != sql.ErrNoRows {
		slog.Error("SQLiteStore FindRestaurantByName exact query failed", "error", err, "name", name)
		return nil, fmt.Errorf("failed to query restaurant by name %q: %w", name, err)
	}

	row = s.db.QueryRow(`SELECT `+restaurantColumns+` FROM restaurants WHERE LOWER(name) LIKE LOWER(?) LIMIT 1`, "%"+name+"%")
	r, err = scanRestaurant(row)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore FindRestaurantByName not found", "name", name)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore FindRestaurantByName substring query failed", "error", err, "name", name)
		return nil, fmt.Errorf("failed to query restaurant by name %q: %w", name, err)
	}
	slog.Debug("SQLiteStore FindRestaurantByName substring match", "name", name, "id", r.ID)
	return r, nil
}

// FindOrCreateRestaurant finds an existing restaurant (deduped by place ID
// first, then by name) or creates a new one with the given place data.
// Existing records lacking a place ID are enriched in place: cuisine and
// price level follow COALESCE semantics, service modes and address details
// are refreshed.
func (s *SQLiteStore) FindOrCreateRestaurant(name string, place *models.PlaceData) (*models.Restaurant, error) {
	if name == "" {
		return nil, models.ErrEmptyRestaurantName
	}

	if place != nil && place.PlaceID != "" {
		row := s.db.QueryRow(`SELECT `+restaurantColumns+` FROM restaurants WHERE google_place_id = ?`, place.PlaceID)
		r, err := scanRestaurant(row)
		if err == nil {
			slog.Debug("SQLiteStore FindOrCreateRestaurant matched by place ID", "placeID", place.PlaceID, "id", r.ID)
			return r, nil
		}
		if err != sql.ErrNoRows {
			slog.Error("SQLiteStore FindOrCreateRestaurant place ID query failed", "error", err, "placeID", place.PlaceID)
			return nil, fmt.Errorf("failed to query restaurant by place id: %w", err)
		}
	}

	existing, err := s.FindRestaurantByName(name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if place != nil && place.PlaceID != "" && existing.GooglePlaceID == "" {
			_, err := s.db.Exec(`UPDATE restaurants SET
				google_place_id = ?, address = ?, latitude = ?, longitude = ?,
				cuisine = COALESCE(?, cuisine), price_level = COALESCE(?, price_level),
				dine_in = ?, takeout = ?, delivery = ?, updated_at = CURRENT_TIMESTAMP
				WHERE id = ?`,
				place.PlaceID, nilIfEmpty(place.Address), place.Latitude, place.Longitude,
				nilIfEmpty(place.Cuisine), nilIfNegative(place.PriceLevel),
				place.DineIn, place.Takeout, place.Delivery, existing.ID)
			if err != nil {
				slog.Error("SQLiteStore FindOrCreateRestaurant enrichment update failed", "error", err, "id", existing.ID)
				return nil, fmt.Errorf("failed to enrich restaurant %d: %w", existing.ID, err)
			}
			mergeEnrichment(existing, place)
			slog.Info("SQLiteStore restaurant enriched with place data", "id", existing.ID, "placeID", place.PlaceID)
		}
		return existing, nil
	}

	var args []interface{}
	if place != nil {
		args = []interface{}{name, nilIfEmpty(place.PlaceID), nilIfEmpty(place.Address), place.Latitude, place.Longitude,
			nilIfEmpty(place.Cuisine), nilIfNegative(place.PriceLevel), place.DineIn, place.Takeout, place.Delivery}
	} else {
		args = []interface{}{name, nil, nil, nil, nil, nil, nil, true, false, false}
	}
	res, err := s.db.Exec(`INSERT INTO restaurants
		(name, google_place_id, address, latitude, longitude, cuisine, price_level, dine_in, takeout, delivery)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...)
	if err != nil {
		slog.Error("SQLiteStore FindOrCreateRestaurant insert failed", "error", err, "name", name)
		return nil, fmt.Errorf("failed to insert restaurant %q: %w", name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read restaurant insert id: %w", err)
	}
	slog.Info("SQLiteStore restaurant created", "id", id, "name", name, "enriched", place != nil)
	return newRestaurant(id, name, place), nil
}

// AddEntry inserts a new entry, assigning its creation timestamp.
func (s *SQLiteStore) AddEntry(e models.Entry) (*models.Entry, error) {
	tagsJSON, err := tagsToJSON(e.Tags)
	if err != nil {
		return nil, err
	}
	res, err := s.db.Exec(`INSERT INTO entries
		(restaurant_id, user_name, user_id, dish, exact_order, notes, sentiment, sentiment_score, tags, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)`,
		e.RestaurantID, nilIfEmpty(e.UserName), nilIfZero(e.UserID), nilIfEmpty(e.Dish), nilIfEmpty(e.ExactOrder),
		nilIfEmpty(e.Notes), nilIfEmpty(string(e.Sentiment)), e.SentimentScore, tagsJSON)
	if err != nil {
		slog.Error("SQLiteStore AddEntry failed", "error", err, "restaurantID", e.RestaurantID)
		return nil, fmt.Errorf("failed to insert entry for restaurant %d: %w", e.RestaurantID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read entry insert id: %w", err)
	}
	slog.Info("SQLiteStore entry created", "id", id, "restaurantID", e.RestaurantID)
	return s.GetEntry(id)
}

// UpdateEntry applies a partial update, touching only the patch fields.
func (s *SQLiteStore) UpdateEntry(id int64, patch models.EntryPatch) error {
	sets, args, err := buildEntryPatch(patch, func(int) string { return "?" })
	if err != nil {
		return err
	}
	if len(sets) == 0 {
		slog.Debug("SQLiteStore UpdateEntry empty patch, nothing to do", "id", id)
		return nil
	}
	args = append(args, id)
	_, err = s.db.Exec(`UPDATE entries SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		slog.Error("SQLiteStore UpdateEntry failed", "error", err, "id", id)
		return fmt.Errorf("failed to update entry %d: %w", id, err)
	}
	slog.Debug("SQLiteStore UpdateEntry succeeded", "id", id, "fields", len(sets))
	return nil
}

// GetEntry returns the entry with the given ID, or nil when absent.
func (s *SQLiteStore) GetEntry(id int64) (*models.Entry, error) {
	row := s.db.QueryRow(`SELECT `+entryColumns+` FROM entries e
		JOIN restaurants r ON e.restaurant_id = r.id WHERE e.id = ?`, id)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetEntry not found", "id", id)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetEntry failed", "error", err, "id", id)
		return nil, fmt.Errorf("failed to query entry %d: %w", id, err)
	}
	return e, nil
}

// GetEntriesForRestaurant lists a restaurant's entries newest-first.
func (s *SQLiteStore) GetEntriesForRestaurant(restaurantID int64, limit int) ([]models.Entry, error) {
	rows, err := s.db.Query(`SELECT `+entryColumns+` FROM entries e
		JOIN restaurants r ON e.restaurant_id = r.id
		WHERE e.restaurant_id = ?
		ORDER BY e.created_at DESC, e.id DESC LIMIT ?`, restaurantID, limit)
	if err != nil {
		slog.Error("SQLiteStore GetEntriesForRestaurant query failed", "error", err, "restaurantID", restaurantID)
		return nil, fmt.Errorf("failed to query entries for restaurant %d: %w", restaurantID, err)
	}
	defer rows.Close()
	return collectEntries(rows)
}

// SearchEntries runs a filtered search, AND-combining all set filters.
func (s *SQLiteStore) SearchEntries(filter models.EntryFilter) ([]models.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM entries e
		JOIN restaurants r ON e.restaurant_id = r.id WHERE 1=1`
	var args []interface{}

	if filter.Cuisine != "" {
		query += ` AND LOWER(r.cuisine) LIKE LOWER(?)`
		args = append(args, "%"+filter.Cuisine+"%")
	}
	if filter.Sentiment != "" {
		query += ` AND e.sentiment = ?`
		args = append(args, string(filter.Sentiment))
	}
	if filter.UserID != 0 {
		query += ` AND e.user_id = ?`
		args = append(args, filter.UserID)
	}
	if filter.SearchTerm != "" {
		query += ` AND (LOWER(r.name) LIKE LOWER(?) OR LOWER(e.dish) LIKE LOWER(?) OR LOWER(e.notes) LIKE LOWER(?))`
		term := "%" + filter.SearchTerm + "%"
		args = append(args, term, term, term)
	}
	query += ` ORDER BY e.created_at DESC, e.id DESC LIMIT ?`
	args = append(args, filter.Limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		slog.Error("SQLiteStore SearchEntries query failed", "error", err)
		return nil, fmt.Errorf("failed to search entries: %w", err)
	}
	defer rows.Close()
	return collectEntries(rows)
}

// GetDistinctCuisines returns the sorted set of non-empty cuisines.
func (s *SQLiteStore) GetDistinctCuisines() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT cuisine FROM restaurants WHERE cuisine IS NOT NULL AND cuisine != '' ORDER BY cuisine`)
	if err != nil {
		slog.Error("SQLiteStore GetDistinctCuisines query failed", "error", err)
		return nil, fmt.Errorf("failed to query cuisines: %w", err)
	}
	defer rows.Close()

	var cuisines []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("failed to scan cuisine row: %w", err)
		}
		cuisines = append(cuisines, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cuisine rows: %w", err)
	}
	slog.Debug("SQLiteStore GetDistinctCuisines succeeded", "count", len(cuisines))
	return cuisines, nil
}

// GetRandomPositiveRestaurant draws one random restaurant with at least one
// positive entry, honoring the cuisine filter and exclusion set.
func (s *SQLiteStore) GetRandomPositiveRestaurant(cuisine string, excludeIDs []int64) (*models.Restaurant, error) {
	query := `SELECT r.id, r.name, r.google_place_id, r.address, r.latitude, r.longitude,
		r.cuisine, r.price_level, r.dine_in, r.takeout, r.delivery
		FROM restaurants r
		WHERE EXISTS (SELECT 1 FROM entries e WHERE e.restaurant_id = r.id AND e.sentiment = ?)`
	args := []interface{}{string(models.SentimentPositive)}

	if cuisine != "" {
		query += ` AND LOWER(r.cuisine) LIKE LOWER(?)`
		args = append(args, "%"+cuisine+"%")
	}
	if len(excludeIDs) > 0 {
		query += ` AND r.id NOT IN (` + placeholders(len(excludeIDs), func(int) string { return "?" }) + `)`
		for _, id := range excludeIDs {
			args = append(args, id)
		}
	}
	query += ` ORDER BY RANDOM() LIMIT 1`

	row := s.db.QueryRow(query, args...)
	r, err := scanRestaurant(row)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetRandomPositiveRestaurant no candidates", "cuisine", cuisine, "excluded", len(excludeIDs))
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetRandomPositiveRestaurant failed", "error", err)
		return nil, fmt.Errorf("failed to draw random restaurant: %w", err)
	}
	slog.Debug("SQLiteStore GetRandomPositiveRestaurant drew", "id", r.ID, "name", r.Name)
	return r, nil
}
