package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	_ "embed"

	"github.com/bumperbrother/foodmemory/internal/models"
	_ "github.com/lib/pq"
)

// Constants for PostgreSQL connection pool configuration
const (
	// MaxOpenConnections defines the maximum number of open database connections
	MaxOpenConnections = 25
	// MaxIdleConnections defines the maximum number of idle database connections
	MaxIdleConnections = 5
	// ConnectionMaxLifetime defines the maximum lifetime of a database connection
	ConnectionMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// pgPlaceholder renders the i-th dollar placeholder.
func pgPlaceholder(i int) string {
	return "$" + strconv.Itoa(i)
}

// NewPostgresStore creates a new PostgreSQL store with the given DSN.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	slog.Debug("Opening PostgreSQL database connection")
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open PostgreSQL connection", "error", err)
		return nil, err
	}

	// Configure connection pool
	db.SetMaxOpenConns(MaxOpenConnections)
	db.SetMaxIdleConns(MaxIdleConnections)
	db.SetConnMaxLifetime(ConnectionMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("PostgreSQL ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running PostgreSQL migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("PostgreSQL migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

// Close closes the PostgreSQL database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing PostgreSQL database connection")
	return s.db.Close()
}

func (s *PostgresStore) FindRestaurantByName(name string) (*models.Restaurant, error) {
	row := s.db.QueryRow(`SELECT `+restaurantColumns+` FROM restaurants WHERE LOWER(name) = LOWER($1) LIMIT 1`, name)
	r, err := scanRestaurant(row)
	if err == nil {
		slog.Debug("PostgresStore FindRestaurantByName exact match", "name", name, "id", r.ID)
		return r, nil
	}
	if err != sql.ErrNoRows {
		slog.Error("PostgresStore FindRestaurantByName exact query failed", "error", err, "name", name)
		return nil, fmt.Errorf("failed to query restaurant by name %q: %w", name, err)
	}

	row = s.db.QueryRow(`SELECT `+restaurantColumns+` FROM restaurants WHERE LOWER(name) LIKE LOWER($1) LIMIT 1`, "%"+name+"%")
	r, err = scanRestaurant(row)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore FindRestaurantByName not found", "name", name)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore FindRestaurantByName substring query failed", "error", err, "name", name)
		return nil, fmt.Errorf("failed to query restaurant by name %q: %w", name, err)
	}
	slog.Debug("PostgresStore FindRestaurantByName substring match", "name", name, "id", r.ID)
	return r, nil
}

func (s *PostgresStore) FindOrCreateRestaurant(name string, place *models.PlaceData) (*models.Restaurant, error) {
	if name == "" {
		return nil, models.ErrEmptyRestaurantName
	}

	if place != nil && place.PlaceID != "" {
		row := s.db.QueryRow(`SELECT `+restaurantColumns+` FROM restaurants WHERE google_place_id = $1`, place.PlaceID)
		r, err := scanRestaurant(row)
		if err == nil {
			slog.Debug("PostgresStore FindOrCreateRestaurant matched by place ID", "placeID", place.PlaceID, "id", r.ID)
			return r, nil
		}
		if err != sql.ErrNoRows {
			slog.Error("PostgresStore FindOrCreateRestaurant place ID query failed", "error", err, "placeID", place.PlaceID)
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
				google_place_id = $1, address = $2, latitude = $3, longitude = $4,
				cuisine = COALESCE($5, cuisine), price_level = COALESCE($6, price_level),
				dine_in = $7, takeout = $8, delivery = $9, updated_at = NOW()
				WHERE id = $10`,
				place.PlaceID, nilIfEmpty(place.Address), place.Latitude, place.Longitude,
				nilIfEmpty(place.Cuisine), nilIfNegative(place.PriceLevel),
				place.DineIn, place.Takeout, place.Delivery, existing.ID)
			if err != nil {
				slog.Error("PostgresStore FindOrCreateRestaurant enrichment update failed", "error", err, "id", existing.ID)
				return nil, fmt.Errorf("failed to enrich restaurant %d: %w", existing.ID, err)
			}
			mergeEnrichment(existing, place)
			slog.Info("PostgresStore restaurant enriched with place data", "id", existing.ID, "placeID", place.PlaceID)
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
	var id int64
	err = s.db.QueryRow(`INSERT INTO restaurants
		(name, google_place_id, address, latitude, longitude, cuisine, price_level, dine_in, takeout, delivery)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id`, args...).Scan(&id)
	if err != nil {
		slog.Error("PostgresStore FindOrCreateRestaurant insert failed", "error", err, "name", name)
		return nil, fmt.Errorf("failed to insert restaurant %q: %w", name, err)
	}
	slog.Info("PostgresStore restaurant created", "id", id, "name", name, "enriched", place != nil)
	return newRestaurant(id, name, place), nil
}

func (s *PostgresStore) AddEntry(e models.Entry) (*models.Entry, error) {
	tagsJSON, err := tagsToJSON(e.Tags)
	if err != nil {
		return nil, err
	}
	var id int64
	err = s.db.QueryRow(`INSERT INTO entries
		(restaurant_id, user_name, user_id, dish, exact_order, notes, sentiment, sentiment_score, tags, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW()) RETURNING id`,
		e.RestaurantID, nilIfEmpty(e.UserName), nilIfZero(e.UserID), nilIfEmpty(e.Dish), nilIfEmpty(e.ExactOrder),
		nilIfEmpty(e.Notes), nilIfEmpty(string(e.Sentiment)), e.SentimentScore, tagsJSON).Scan(&id)
	if err != nil {
		slog.Error("PostgresStore AddEntry failed", "error", err, "restaurantID", e.RestaurantID)
		return nil, fmt.Errorf("failed to insert entry for restaurant %d: %w", e.RestaurantID, err)
	}
	slog.Info("PostgresStore entry created", "id", id, "restaurantID", e.RestaurantID)
	return s.GetEntry(id)
}

func (s *PostgresStore) UpdateEntry(id int64, patch models.EntryPatch) error {
	sets, args, err := buildEntryPatch(patch, pgPlaceholder)
	if err != nil {
		return err
	}
	if len(sets) == 0 {
		slog.Debug("PostgresStore UpdateEntry empty patch, nothing to do", "id", id)
		return nil
	}
	args = append(args, id)
	_, err = s.db.Exec(`UPDATE entries SET `+strings.Join(sets, ", ")+` WHERE id = `+pgPlaceholder(len(args)), args...)
	if err != nil {
		slog.Error("PostgresStore UpdateEntry failed", "error", err, "id", id)
		return fmt.Errorf("failed to update entry %d: %w", id, err)
	}
	slog.Debug("PostgresStore UpdateEntry succeeded", "id", id, "fields", len(sets))
	return nil
}

func (s *PostgresStore) GetEntry(id int64) (*models.Entry, error) {
	row := s.db.QueryRow(`SELECT `+entryColumns+` FROM entries e
		JOIN restaurants r ON e.restaurant_id = r.id WHERE e.id = $1`, id)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetEntry not found", "id", id)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetEntry failed", "error", err, "id", id)
		return nil, fmt.Errorf("failed to query entry %d: %w", id, err)
	}
	return e, nil
}

func (s *PostgresStore) GetEntriesForRestaurant(restaurantID int64, limit int) ([]models.Entry, error) {
	rows, err := s.db.Query(`SELECT `+entryColumns+` FROM entries e
		JOIN restaurants r ON e.restaurant_id = r.id
		WHERE e.restaurant_id = $1
		ORDER BY e.created_at DESC, e.id DESC LIMIT $2`, restaurantID, limit)
	if err != nil {
		slog.Error("PostgresStore GetEntriesForRestaurant query failed", "error", err, "restaurantID", restaurantID)
		return nil, fmt.Errorf("failed to query entries for restaurant %d: %w", restaurantID, err)
	}
	defer rows.Close()
	return collectEntries(rows)
}

func (s *PostgresStore) SearchEntries(filter models.EntryFilter) ([]models.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM entries e
		JOIN restaurants r ON e.restaurant_id = r.id WHERE 1=1`
	var args []interface{}
	next := func(v interface{}) string {
		args = append(args, v)
		return pgPlaceholder(len(args))
	}

	if filter.Cuisine != "" {
		query += ` AND LOWER(r.cuisine) LIKE LOWER(` + next("%"+filter.Cuisine+"%") + `)`
	}
	if filter.Sentiment != "" {
		query += ` AND e.sentiment = ` + next(string(filter.Sentiment))
	}
	if filter.UserID != 0 {
		query += ` AND e.user_id = ` + next(filter.UserID)
	}
	if filter.SearchTerm != "" {
		term := "%" + filter.SearchTerm + "%"
		query += ` AND (LOWER(r.name) LIKE LOWER(` + next(term) + `) OR LOWER(e.dish) LIKE LOWER(` + next(term) + `) OR LOWER(e.notes) LIKE LOWER(` + next(term) + `))`
	}
	query += ` ORDER BY e.created_at DESC, e.id DESC LIMIT ` + next(filter.Limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		slog.Error("PostgresStore SearchEntries query failed", "error", err)
		return nil, fmt.Errorf("failed to search entries: %w", err)
	}
	defer rows.Close()
	return collectEntries(rows)
}

func (s *PostgresStore) GetDistinctCuisines() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT cuisine FROM restaurants WHERE cuisine IS NOT NULL AND cuisine != '' ORDER BY cuisine`)
	if err != nil {
		slog.Error("PostgresStore GetDistinctCuisines query failed", "error", err)
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
	slog.Debug("PostgresStore GetDistinctCuisines succeeded", "count", len(cuisines))
	return cuisines, nil
}

// pgRandomPositiveQuery builds the random-draw statement. Candidates are
// filtered with EXISTS rather than DISTINCT over a join: PostgreSQL rejects
// SELECT DISTINCT whose ORDER BY expression is absent from the select list
// (error 42P10), and ORDER BY RANDOM() can never appear there.
func pgRandomPositiveQuery(cuisine string, excludeIDs []int64) (string, []interface{}) {
	query := `SELECT r.id, r.name, r.google_place_id, r.address, r.latitude, r.longitude,
		r.cuisine, r.price_level, r.dine_in, r.takeout, r.delivery
		FROM restaurants r
		WHERE EXISTS (SELECT 1 FROM entries e WHERE e.restaurant_id = r.id AND e.sentiment = $1)`
	args := []interface{}{string(models.SentimentPositive)}

	if cuisine != "" {
		args = append(args, "%"+cuisine+"%")
		query += ` AND LOWER(r.cuisine) LIKE LOWER(` + pgPlaceholder(len(args)) + `)`
	}
	if len(excludeIDs) > 0 {
		base := len(args)
		query += ` AND r.id NOT IN (` + placeholders(len(excludeIDs), func(i int) string { return pgPlaceholder(base + i) }) + `)`
		for _, id := range excludeIDs {
			args = append(args, id)
		}
	}
	query += ` ORDER BY RANDOM() LIMIT 1`
	return query, args
}

func (s *PostgresStore) GetRandomPositiveRestaurant(cuisine string, excludeIDs []int64) (*models.Restaurant, error) {
	query, args := pgRandomPositiveQuery(cuisine, excludeIDs)
	row := s.db.QueryRow(query, args...)
	r, err := scanRestaurant(row)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetRandomPositiveRestaurant no candidates", "cuisine", cuisine, "excluded", len(excludeIDs))
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetRandomPositiveRestaurant failed", "error", err)
		return nil, fmt.Errorf("failed to draw random restaurant: %w", err)
	}
	slog.Debug("PostgresStore GetRandomPositiveRestaurant drew", "id", r.ID, "name", r.Name)
	return r, nil
}
