package flow

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/bumperbrother/foodmemory/internal/models"
)

func queryAnalysis(intent models.Intent, payload *models.QueryPayload) func(string, []models.Turn) (*models.Analysis, error) {
	return func(text string, history []models.Turn) (*models.Analysis, error) {
		return &models.Analysis{Intent: intent, Confidence: 0.9, Query: payload}, nil
	}
}

func TestQueryRestaurantNotFound(t *testing.T) {
	rig := newTestRig()
	rig.genai.analyze = queryAnalysis(models.IntentQueryRestaurant, &models.QueryPayload{RestaurantName: "Nowhere"})

	rig.coordinator.HandleEvent(context.Background(), textEvent(1, "what have we had at Nowhere?"))

	got := rig.messenger.lastSent(t).text
	if got != "I don't have any records for 'Nowhere'. Is the name spelled correctly?" {
		t.Errorf("reply = %q", got)
	}
}

func TestQueryRestaurantWithoutVisits(t *testing.T) {
	rig := newTestRig()
	rig.genai.analyze = queryAnalysis(models.IntentQueryRestaurant, &models.QueryPayload{RestaurantName: "Siam Station"})
	rig.store.findByName = func(name string) (*models.Restaurant, error) {
		return &models.Restaurant{ID: 3, Name: "Siam Station"}, nil
	}

	rig.coordinator.HandleEvent(context.Background(), textEvent(1, "what have we had at Siam Station?"))

	got := rig.messenger.lastSent(t).text
	if got != "I found Siam Station in the database, but there are no logged visits yet!" {
		t.Errorf("reply = %q", got)
	}
}

func TestQueryRestaurantBuildsDigest(t *testing.T) {
	rig := newTestRig()
	rig.genai.analyze = queryAnalysis(models.IntentQueryRestaurant, &models.QueryPayload{RestaurantName: "Siam Station"})
	rig.store.findByName = func(name string) (*models.Restaurant, error) {
		return &models.Restaurant{ID: 3, Name: "Siam Station", Cuisine: "Thai", Address: "123 Main St"}, nil
	}
	created := time.Date(2026, 7, 4, 12, 0, 0, 0, time.UTC)
	rig.store.entriesFor = func(restaurantID int64, limit int) ([]models.Entry, error) {
		if restaurantID != 3 {
			t.Errorf("entries requested for restaurant %d, want 3", restaurantID)
		}
		if limit != QueryResultLimit {
			t.Errorf("limit = %d, want %d", limit, QueryResultLimit)
		}
		return []models.Entry{{
			ID: 42, RestaurantID: 3, UserName: "Alice", Dish: "pad thai",
			ExactOrder: "pad thai, medium spicy", Sentiment: models.SentimentPositive,
			Notes: "great sauce", Tags: []string{"spicy"}, CreatedAt: created,
		}}, nil
	}
	var gotQuestion, gotContext string
	rig.genai.answer = func(question, dataContext string) (string, error) {
		gotQuestion = question
		gotContext = dataContext
		return "You loved the pad thai!", nil
	}

	rig.coordinator.HandleEvent(context.Background(), textEvent(1, "what have we had at Siam Station?"))

	if gotQuestion != "what have we had at Siam Station?" {
		t.Errorf("question = %q", gotQuestion)
	}
	for _, want := range []string{
		"Restaurant: Siam Station",
		"Cuisine: Thai",
		"Address: 123 Main St",
		"Total visits logged: 1",
		"- Date: 2026-07-04",
		"  User: Alice",
		"  Dish: pad thai",
		"  Saved order: pad thai, medium spicy",
		"  Sentiment: positive",
		"  Notes: great sauce",
		"  Tags: spicy",
	} {
		if !strings.Contains(gotContext, want) {
			t.Errorf("digest missing %q:\n%s", want, gotContext)
		}
	}
	if got := rig.messenger.lastSent(t).text; got != "You loved the pad thai!" {
		t.Errorf("reply = %q", got)
	}
}

func TestGeneralQueryNoResults(t *testing.T) {
	rig := newTestRig()
	rig.genai.analyze = queryAnalysis(models.IntentQueryGeneral, &models.QueryPayload{
		Cuisine:   "Thai",
		Sentiment: models.SentimentPositive,
	})

	rig.coordinator.HandleEvent(context.Background(), textEvent(1, "what Thai places do we like?"))

	got := rig.messenger.lastSent(t).text
	if got != "I don't have any entries for Thai food with positive reviews yet. Try logging some experiences first!" {
		t.Errorf("reply = %q", got)
	}
}

func TestGeneralQueryAnswers(t *testing.T) {
	rig := newTestRig()
	rig.genai.analyze = queryAnalysis(models.IntentQueryGeneral, &models.QueryPayload{Cuisine: "Thai"})
	var gotFilter models.EntryFilter
	rig.store.search = func(filter models.EntryFilter) ([]models.Entry, error) {
		gotFilter = filter
		return []models.Entry{{
			ID: 1, RestaurantName: "Siam Station", Dish: "pad thai",
			Sentiment: models.SentimentPositive, CreatedAt: time.Now(),
		}}, nil
	}
	rig.genai.answer = func(question, dataContext string) (string, error) {
		if !strings.Contains(dataContext, "Restaurant: Siam Station") {
			t.Errorf("digest missing restaurant line:\n%s", dataContext)
		}
		return "Siam Station is your Thai favorite.", nil
	}

	rig.coordinator.HandleEvent(context.Background(), textEvent(1, "what Thai places do we like?"))

	if gotFilter.Cuisine != "Thai" || gotFilter.Limit != QueryResultLimit {
		t.Errorf("filter = %+v", gotFilter)
	}
	if got := rig.messenger.lastSent(t).text; got != "Siam Station is your Thai favorite." {
		t.Errorf("reply = %q", got)
	}
}

func TestSearchCommandUsage(t *testing.T) {
	rig := newTestRig()

	rig.coordinator.HandleEvent(context.Background(), commandEvent(1, "search", "   "))

	got := rig.messenger.lastSent(t).text
	if got != "Usage: /search <term>\nExample: /search tacos" {
		t.Errorf("reply = %q", got)
	}
}

func TestSearchCommandNoMatches(t *testing.T) {
	rig := newTestRig()

	rig.coordinator.HandleEvent(context.Background(), commandEvent(1, "search", "durian"))

	got := rig.messenger.lastSent(t).text
	if got != "No entries found matching 'durian'" {
		t.Errorf("reply = %q", got)
	}
}

func TestSearchCommandAnswers(t *testing.T) {
	rig := newTestRig()
	var gotFilter models.EntryFilter
	rig.store.search = func(filter models.EntryFilter) ([]models.Entry, error) {
		gotFilter = filter
		return []models.Entry{{ID: 1, RestaurantName: "Casa Maria", Dish: "tacos", CreatedAt: time.Now()}}, nil
	}
	var gotQuestion string
	rig.genai.answer = func(question, dataContext string) (string, error) {
		gotQuestion = question
		return "Tacos at Casa Maria!", nil
	}

	rig.coordinator.HandleEvent(context.Background(), commandEvent(1, "search", "tacos"))

	if gotFilter.SearchTerm != "tacos" || gotFilter.Limit != QueryResultLimit {
		t.Errorf("filter = %+v", gotFilter)
	}
	if gotQuestion != "What do we have that matches 'tacos'?" {
		t.Errorf("question = %q", gotQuestion)
	}
	if got := rig.messenger.lastSent(t).text; got != "Tacos at Casa Maria!" {
		t.Errorf("reply = %q", got)
	}
}

func TestDescribeQuery(t *testing.T) {
	cases := []struct {
		name    string
		payload models.QueryPayload
		want    string
	}{
		{"empty", models.QueryPayload{}, ""},
		{"cuisine", models.QueryPayload{Cuisine: "Thai"}, " for Thai food"},
		{"sentiment", models.QueryPayload{Sentiment: models.SentimentPositive}, " with positive reviews"},
		{"term", models.QueryPayload{SearchTerm: "tacos"}, " matching 'tacos'"},
		{"combined", models.QueryPayload{Cuisine: "Thai", SearchTerm: "noodles"}, " for Thai food matching 'noodles'"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := describeQuery(&tc.payload); got != tc.want {
				t.Errorf("describeQuery() = %q, want %q", got, tc.want)
			}
		})
	}
}
