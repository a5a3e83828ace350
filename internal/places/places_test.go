package places

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *GoogleClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewGoogleClient(WithAPIKey("test-key"), WithEndpoint(srv.URL), WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("NewGoogleClient() error = %v", err)
	}
	return c
}

func TestNewGoogleClientRequiresAPIKey(t *testing.T) {
	if _, err := NewGoogleClient(); err == nil {
		t.Error("NewGoogleClient() without API key expected error, got nil")
	}
}

func TestSearchRestaurant(t *testing.T) {
	var gotBody string
	var gotAPIKey, gotFieldMask string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAPIKey = r.Header.Get("X-Goog-Api-Key")
		gotFieldMask = r.Header.Get("X-Goog-FieldMask")
		buf := make([]byte, r.ContentLength)
		r.Body.Read(buf)
		gotBody = string(buf)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"places":[{
			"id":"ChIJtest123",
			"displayName":{"text":"Thai Basil"},
			"formattedAddress":"123 Main St, Irvine, CA",
			"location":{"latitude":33.68,"longitude":-117.82},
			"types":["thai_restaurant","restaurant","food"],
			"priceLevel":"PRICE_LEVEL_MODERATE",
			"dineIn":true,"takeout":true,"delivery":false}]}`))
	})

	place, err := c.SearchRestaurant(context.Background(), "Thai Basil", "Irvine, CA")
	if err != nil {
		t.Fatalf("SearchRestaurant() error = %v", err)
	}
	if place == nil {
		t.Fatal("SearchRestaurant() = nil, want place data")
	}
	if gotAPIKey != "test-key" {
		t.Errorf("X-Goog-Api-Key = %q, want %q", gotAPIKey, "test-key")
	}
	if gotFieldMask == "" {
		t.Error("X-Goog-FieldMask header not set")
	}
	if want := `{"textQuery":"Thai Basil restaurant Irvine, CA","maxResultCount":1}`; gotBody != want {
		t.Errorf("request body = %s, want %s", gotBody, want)
	}
	if place.PlaceID != "ChIJtest123" || place.Name != "Thai Basil" {
		t.Errorf("place identity = %+v, want ChIJtest123 / Thai Basil", place)
	}
	if place.Cuisine != "Thai" {
		t.Errorf("Cuisine = %q, want %q", place.Cuisine, "Thai")
	}
	if place.PriceLevel != 2 {
		t.Errorf("PriceLevel = %d, want 2", place.PriceLevel)
	}
	if !place.DineIn || !place.Takeout || place.Delivery {
		t.Errorf("service modes = dineIn %v takeout %v delivery %v, want true true false",
			place.DineIn, place.Takeout, place.Delivery)
	}
}

func TestSearchRestaurantUsesLocationBias(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, r.ContentLength)
		r.Body.Read(buf)
		gotBody = string(buf)
		w.Write([]byte(`{"places":[]}`))
	}))
	defer srv.Close()

	c, err := NewGoogleClient(WithAPIKey("k"), WithEndpoint(srv.URL), WithLocationBias("Portland, OR"))
	if err != nil {
		t.Fatalf("NewGoogleClient() error = %v", err)
	}
	if _, err := c.SearchRestaurant(context.Background(), "Pok Pok", ""); err != nil {
		t.Fatalf("SearchRestaurant() error = %v", err)
	}
	if want := `{"textQuery":"Pok Pok restaurant Portland, OR","maxResultCount":1}`; gotBody != want {
		t.Errorf("request body = %s, want %s", gotBody, want)
	}
}

func TestSearchRestaurantNoResults(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"places":[]}`))
	})
	place, err := c.SearchRestaurant(context.Background(), "Nowhere", "")
	if err != nil {
		t.Fatalf("SearchRestaurant() error = %v", err)
	}
	if place != nil {
		t.Errorf("SearchRestaurant(no results) = %+v, want nil", place)
	}
}

func TestSearchRestaurantAbsorbsAPIErrors(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	})
	place, err := c.SearchRestaurant(context.Background(), "Thai Basil", "")
	if err != nil {
		t.Fatalf("SearchRestaurant() error = %v, errors should be absorbed", err)
	}
	if place != nil {
		t.Errorf("SearchRestaurant(API error) = %+v, want nil", place)
	}
}

func TestSearchRestaurantMissingServiceFields(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"places":[{"id":"p1","displayName":{"text":"Corner Deli"},"types":["food"]}]}`))
	})
	place, err := c.SearchRestaurant(context.Background(), "Corner Deli", "")
	if err != nil {
		t.Fatalf("SearchRestaurant() error = %v", err)
	}
	if place == nil {
		t.Fatal("SearchRestaurant() = nil, want place data")
	}
	if !place.DineIn || place.Takeout || place.Delivery {
		t.Errorf("service mode defaults = %+v, want dineIn only", place)
	}
	if place.Cuisine != "Restaurant" {
		t.Errorf("Cuisine = %q, want generic %q fallback", place.Cuisine, "Restaurant")
	}
	if place.PriceLevel != -1 {
		t.Errorf("PriceLevel = %d, want -1 for unknown", place.PriceLevel)
	}
}

func TestExtractCuisine(t *testing.T) {
	tests := []struct {
		name  string
		types []string
		want  string
	}{
		{"specific type wins", []string{"restaurant", "sushi_restaurant"}, "Sushi"},
		{"generic restaurant", []string{"restaurant", "point_of_interest"}, "Restaurant"},
		{"generic food", []string{"food"}, "Restaurant"},
		{"not food related", []string{"lodging"}, ""},
		{"empty", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractCuisine(tt.types); got != tt.want {
				t.Errorf("extractCuisine(%v) = %q, want %q", tt.types, got, tt.want)
			}
		})
	}
}
