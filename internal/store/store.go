// Package store provides storage backends for the food memory bot.
//
// It defines the persistence contract used by the conversation flows and
// implements it for SQLite and PostgreSQL.
package store

import (
	"strings"

	"github.com/bumperbrother/foodmemory/internal/models"
)

// Store is the persistence collaborator for restaurants and entries.
//
// Name matching is case-insensitive and prefers exact matches over substring
// matches. Enrichment merges are additive: a non-null stored cuisine or price
// level is only replaced by a non-null incoming value, while service-mode
// flags and address/coordinates are refreshed whenever new place data arrives.
type Store interface {
	// FindRestaurantByName returns the restaurant matching name, exact
	// match first and substring match second, or nil when none matches.
	FindRestaurantByName(name string) (*models.Restaurant, error)

	// FindOrCreateRestaurant resolves a restaurant by place ID, then by
	// name, creating it when absent. Non-nil place data is merged into an
	// existing record that lacks a place ID.
	FindOrCreateRestaurant(name string, place *models.PlaceData) (*models.Restaurant, error)

	// AddEntry inserts a new entry and returns it with its assigned
	// identity and creation timestamp.
	AddEntry(e models.Entry) (*models.Entry, error)

	// UpdateEntry applies a field-level partial update. Nil patch fields
	// are left untouched.
	UpdateEntry(id int64, patch models.EntryPatch) error

	// GetEntry returns the entry with the given ID joined with its
	// restaurant name, or nil when it no longer exists.
	GetEntry(id int64) (*models.Entry, error)

	// GetEntriesForRestaurant lists a restaurant's entries newest-first,
	// capped at limit.
	GetEntriesForRestaurant(restaurantID int64, limit int) ([]models.Entry, error)

	// SearchEntries runs a filtered search, AND-combining all set filters,
	// newest-first, capped at filter.Limit.
	SearchEntries(filter models.EntryFilter) ([]models.Entry, error)

	// GetDistinctCuisines returns the sorted set of non-empty cuisines
	// across all restaurants.
	GetDistinctCuisines() ([]string, error)

	// GetRandomPositiveRestaurant draws one restaurant uniformly at random
	// among those with at least one positive entry, optionally filtered by
	// cuisine substring and excluding the given restaurant IDs. Returns nil
	// when no candidate remains.
	GetRandomPositiveRestaurant(cuisine string, excludeIDs []int64) (*models.Restaurant, error)

	// Close releases the underlying database connection.
	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string
}

// Option defines a configuration option for a store backend.
type Option func(*Opts)

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// DetectDSNType classifies a DSN as "postgres" or "sqlite3" so callers can
// pick the matching backend. File paths and file: URIs are treated as SQLite.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite3"
}
