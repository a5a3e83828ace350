// Package places integrates with the Google Places text search API to
// enrich restaurant records with address, cuisine, and service details.
package places

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/bumperbrother/foodmemory/internal/models"
)

// Constants for Places client configuration
const (
	// SearchEndpoint is the Places text search endpoint
	SearchEndpoint = "https://places.googleapis.com/v1/places:searchText"
	// RequestTimeout bounds a single search request
	RequestTimeout = 10 * time.Second
	// DefaultLocationBias narrows searches when no hint is given
	DefaultLocationBias = "Orange County, CA"

	fieldMask = "places.id,places.displayName,places.formattedAddress,places.location," +
		"places.types,places.priceLevel,places.dineIn,places.takeout,places.delivery"
)

// typeToCuisine maps Google Place types to cuisine labels.
var typeToCuisine = map[string]string{
	"thai_restaurant":           "Thai",
	"chinese_restaurant":        "Chinese",
	"japanese_restaurant":       "Japanese",
	"korean_restaurant":         "Korean",
	"vietnamese_restaurant":     "Vietnamese",
	"indian_restaurant":         "Indian",
	"mexican_restaurant":        "Mexican",
	"italian_restaurant":        "Italian",
	"french_restaurant":         "French",
	"american_restaurant":       "American",
	"mediterranean_restaurant":  "Mediterranean",
	"greek_restaurant":          "Greek",
	"spanish_restaurant":        "Spanish",
	"middle_eastern_restaurant": "Middle Eastern",
	"turkish_restaurant":        "Turkish",
	"brazilian_restaurant":      "Brazilian",
	"peruvian_restaurant":       "Peruvian",
	"seafood_restaurant":        "Seafood",
	"steak_house":               "Steakhouse",
	"sushi_restaurant":          "Sushi",
	"ramen_restaurant":          "Ramen",
	"pizza_restaurant":          "Pizza",
	"hamburger_restaurant":      "Burgers",
	"fast_food_restaurant":      "Fast Food",
	"cafe":                      "Cafe",
	"coffee_shop":               "Coffee",
	"bakery":                    "Bakery",
	"ice_cream_shop":            "Dessert",
	"bar":                       "Bar",
	"pub":                       "Pub",
	"brunch_restaurant":         "Brunch",
	"breakfast_restaurant":      "Breakfast",
	"buffet_restaurant":         "Buffet",
	"vegan_restaurant":          "Vegan",
	"vegetarian_restaurant":     "Vegetarian",
}

// Client looks up restaurants in an external place directory. Lookups are
// best-effort: a nil result with a nil error means no usable match.
type Client interface {
	// SearchRestaurant finds the closest place match for a restaurant
	// name, optionally narrowed by a location hint.
	SearchRestaurant(ctx context.Context, name, locationHint string) (*models.PlaceData, error)
}

// NoopClient is the lookup used when no API key is configured. Every search
// reports no match, so restaurants are stored unenriched.
type NoopClient struct{}

// SearchRestaurant always returns no match.
func (NoopClient) SearchRestaurant(ctx context.Context, name, locationHint string) (*models.PlaceData, error) {
	return nil, nil
}

// Opts holds configuration options for the Places client.
type Opts struct {
	APIKey       string
	LocationBias string
	Endpoint     string
	HTTPClient   *http.Client
}

// Option configures the Places client.
type Option func(*Opts)

// WithAPIKey sets the API key used for requests.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithLocationBias sets the fallback location appended to search queries.
func WithLocationBias(location string) Option {
	return func(o *Opts) { o.LocationBias = location }
}

// WithEndpoint overrides the search endpoint. Used in tests.
func WithEndpoint(endpoint string) Option {
	return func(o *Opts) { o.Endpoint = endpoint }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = c }
}

// GoogleClient talks to the Google Places text search API.
type GoogleClient struct {
	apiKey       string
	locationBias string
	endpoint     string
	httpClient   *http.Client
}

// NewGoogleClient creates a Places client with the given options. The API key
// is required.
func NewGoogleClient(opts ...Option) (*GoogleClient, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewGoogleClient invoked", "APIKey_set", cfg.APIKey != "", "locationBias", cfg.LocationBias)

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("places API key not set")
	}
	if cfg.LocationBias == "" {
		cfg.LocationBias = DefaultLocationBias
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = SearchEndpoint
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: RequestTimeout}
	}
	return &GoogleClient{
		apiKey:       cfg.APIKey,
		locationBias: cfg.LocationBias,
		endpoint:     cfg.Endpoint,
		httpClient:   cfg.HTTPClient,
	}, nil
}

type searchRequest struct {
	TextQuery      string `json:"textQuery"`
	MaxResultCount int    `json:"maxResultCount"`
}

type searchResponse struct {
	Places []placeResult `json:"places"`
}

type placeResult struct {
	ID          string `json:"id"`
	DisplayName struct {
		Text string `json:"text"`
	} `json:"displayName"`
	FormattedAddress string `json:"formattedAddress"`
	Location         struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"location"`
	Types      []string `json:"types"`
	PriceLevel string   `json:"priceLevel"`
	DineIn     *bool    `json:"dineIn"`
	Takeout    *bool    `json:"takeout"`
	Delivery   *bool    `json:"delivery"`
}

// SearchRestaurant queries the text search endpoint for the best single
// match. Failures are absorbed: enrichment is optional, so transport errors,
// non-200 statuses, and empty result sets all come back as (nil, nil).
func (c *GoogleClient) SearchRestaurant(ctx context.Context, name, locationHint string) (*models.PlaceData, error) {
	location := locationHint
	if location == "" {
		location = c.locationBias
	}
	query := fmt.Sprintf("%s restaurant %s", name, location)
	slog.Debug("GoogleClient SearchRestaurant invoked", "name", name, "query", query)

	payload, err := json.Marshal(searchRequest{TextQuery: query, MaxResultCount: 1})
	if err != nil {
		slog.Error("GoogleClient failed to marshal search request", "error", err)
		return nil, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		slog.Error("GoogleClient failed to build search request", "error", err)
		return nil, nil
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", c.apiKey)
	req.Header.Set("X-Goog-FieldMask", fieldMask)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.Warn("GoogleClient search request failed", "error", err, "name", name)
		return nil, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		slog.Warn("GoogleClient search returned non-OK status", "status", resp.StatusCode, "body", string(body))
		return nil, nil
	}

	var result searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		slog.Warn("GoogleClient failed to decode search response", "error", err)
		return nil, nil
	}
	if len(result.Places) == 0 {
		slog.Info("GoogleClient no places found", "query", query)
		return nil, nil
	}

	place := parsePlace(result.Places[0])
	slog.Debug("GoogleClient SearchRestaurant matched", "name", name, "placeID", place.PlaceID, "cuisine", place.Cuisine)
	return place, nil
}

func parsePlace(p placeResult) *models.PlaceData {
	data := &models.PlaceData{
		PlaceID:    p.ID,
		Name:       p.DisplayName.Text,
		Address:    p.FormattedAddress,
		Latitude:   p.Location.Latitude,
		Longitude:  p.Location.Longitude,
		Cuisine:    extractCuisine(p.Types),
		PriceLevel: parsePriceLevel(p.PriceLevel),
		DineIn:     true,
	}
	if p.DineIn != nil {
		data.DineIn = *p.DineIn
	}
	if p.Takeout != nil {
		data.Takeout = *p.Takeout
	}
	if p.Delivery != nil {
		data.Delivery = *p.Delivery
	}
	return data
}

// extractCuisine maps the first recognized place type to a cuisine label,
// falling back to "Restaurant" for generic food establishments.
func extractCuisine(types []string) string {
	for _, t := range types {
		if cuisine, ok := typeToCuisine[t]; ok {
			return cuisine
		}
	}
	for _, t := range types {
		if t == "restaurant" || t == "food" {
			return "Restaurant"
		}
	}
	return ""
}

// parsePriceLevel converts the API's enum strings to 0-4, -1 when unknown.
func parsePriceLevel(s string) int {
	switch s {
	case "PRICE_LEVEL_FREE":
		return 0
	case "PRICE_LEVEL_INEXPENSIVE":
		return 1
	case "PRICE_LEVEL_MODERATE":
		return 2
	case "PRICE_LEVEL_EXPENSIVE":
		return 3
	case "PRICE_LEVEL_VERY_EXPENSIVE":
		return 4
	default:
		return -1
	}
}
