package flow

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/bumperbrother/foodmemory/internal/models"
)

func logEntryAnalysis(payload *models.LogEntryPayload) func(string, []models.Turn) (*models.Analysis, error) {
	return func(text string, history []models.Turn) (*models.Analysis, error) {
		return &models.Analysis{Intent: models.IntentLogEntry, Confidence: 0.9, LogEntry: payload}, nil
	}
}

func TestLogEntryHappyPath(t *testing.T) {
	rig := newTestRig()
	rig.genai.analyze = logEntryAnalysis(&models.LogEntryPayload{
		RestaurantName: "Siam Station",
		DishName:       "pad thai",
		Sentiment:      models.SentimentPositive,
		SentimentScore: 0.9,
		Tags:           []string{"spicy", "lunch"},
	})
	rig.places.search = func(name, locationHint string) (*models.PlaceData, error) {
		return &models.PlaceData{PlaceID: "p1", Cuisine: "Thai"}, nil
	}
	var created []models.Entry
	rig.store.findOrCreate = func(name string, place *models.PlaceData) (*models.Restaurant, error) {
		return &models.Restaurant{ID: 3, Name: name, Cuisine: "Thai", GooglePlaceID: "p1"}, nil
	}
	rig.store.addEntry = func(e models.Entry) (*models.Entry, error) {
		created = append(created, e)
		e.ID = 42
		e.CreatedAt = time.Now()
		return &e, nil
	}

	rig.coordinator.HandleEvent(context.Background(), textEvent(1, "pad thai at Siam Station, really good"))

	if len(created) != 1 {
		t.Fatalf("entries created = %d, want 1", len(created))
	}
	entry := created[0]
	if entry.RestaurantID != 3 || entry.UserName != "Alice" || entry.Dish != "pad thai" || entry.Sentiment != models.SentimentPositive {
		t.Errorf("created entry = %+v", entry)
	}

	if len(rig.messenger.buttonSends) != 1 {
		t.Fatalf("button sends = %d, want 1 confirmation", len(rig.messenger.buttonSends))
	}
	confirmation := rig.messenger.buttonSends[0]
	for _, want := range []string{
		"Got it, Alice! pad thai at Siam Station 👍 (Thai)",
		"Tags: spicy, lunch",
		"Want to save a specific order for next time?",
	} {
		if !strings.Contains(confirmation.text, want) {
			t.Errorf("confirmation %q missing %q", confirmation.text, want)
		}
	}
	if len(confirmation.rows) != 1 || len(confirmation.rows[0]) != 2 {
		t.Fatalf("confirmation keyboard = %v, want one row with yes/no", confirmation.rows)
	}
	if confirmation.rows[0][0].Data != callbackAddOrderYes || confirmation.rows[0][1].Data != callbackAddOrderNo {
		t.Errorf("keyboard data = %v", confirmation.rows[0])
	}

	session := rig.coordinator.sessions.Get(1)
	if session.LastEntryID != 42 || session.LastEntryRestaurant != "Siam Station" {
		t.Errorf("session after log = %+v", session)
	}
}

func TestLogEntryWithoutRestaurantNameDropped(t *testing.T) {
	rig := newTestRig()
	rig.genai.analyze = logEntryAnalysis(&models.LogEntryPayload{DishName: "pad thai"})
	rig.store.addEntry = func(e models.Entry) (*models.Entry, error) {
		t.Error("entry created without a restaurant name")
		return nil, nil
	}

	rig.coordinator.HandleEvent(context.Background(), textEvent(1, "pad thai was good"))

	if len(rig.messenger.sent) != 0 || len(rig.messenger.buttonSends) != 0 {
		t.Error("reply sent for a payload without a restaurant name")
	}
}

func TestResolveRestaurantSkipsLookupWhenEnriched(t *testing.T) {
	rig := newTestRig()
	rig.store.findByName = func(name string) (*models.Restaurant, error) {
		return &models.Restaurant{ID: 5, Name: "Casa Maria", GooglePlaceID: "p9"}, nil
	}

	restaurant, err := rig.coordinator.resolveRestaurant(context.Background(), "Casa Maria")
	if err != nil {
		t.Fatalf("resolveRestaurant() error = %v", err)
	}
	if restaurant.ID != 5 {
		t.Errorf("restaurant ID = %d, want 5", restaurant.ID)
	}
	if len(rig.places.queries) != 0 {
		t.Errorf("place lookups = %v, want none for an enriched restaurant", rig.places.queries)
	}
}

func TestResolveRestaurantEnrichesExisting(t *testing.T) {
	rig := newTestRig()
	rig.store.findByName = func(name string) (*models.Restaurant, error) {
		return &models.Restaurant{ID: 5, Name: "Casa Maria"}, nil
	}
	rig.places.search = func(name, locationHint string) (*models.PlaceData, error) {
		return &models.PlaceData{PlaceID: "p2", Cuisine: "Mexican"}, nil
	}
	var mergedPlace *models.PlaceData
	rig.store.findOrCreate = func(name string, place *models.PlaceData) (*models.Restaurant, error) {
		mergedPlace = place
		return &models.Restaurant{ID: 5, Name: name, Cuisine: "Mexican", GooglePlaceID: "p2"}, nil
	}

	restaurant, err := rig.coordinator.resolveRestaurant(context.Background(), "Casa Maria")
	if err != nil {
		t.Fatalf("resolveRestaurant() error = %v", err)
	}
	if restaurant.Cuisine != "Mexican" {
		t.Errorf("restaurant = %+v, want enriched cuisine", restaurant)
	}
	if mergedPlace == nil || mergedPlace.PlaceID != "p2" {
		t.Errorf("merged place = %+v", mergedPlace)
	}
}

func TestResolveRestaurantSurvivesLookupFailure(t *testing.T) {
	rig := newTestRig()
	rig.places.search = func(name, locationHint string) (*models.PlaceData, error) {
		return nil, nil
	}
	rig.store.findOrCreate = func(name string, place *models.PlaceData) (*models.Restaurant, error) {
		if place != nil {
			t.Errorf("place = %+v, want nil after failed lookup", place)
		}
		return &models.Restaurant{ID: 9, Name: name}, nil
	}

	restaurant, err := rig.coordinator.resolveRestaurant(context.Background(), "New Spot")
	if err != nil {
		t.Fatalf("resolveRestaurant() error = %v", err)
	}
	if restaurant.ID != 9 {
		t.Errorf("restaurant = %+v", restaurant)
	}
}

func TestOrderCallbackNo(t *testing.T) {
	rig := newTestRig()

	rig.coordinator.HandleEvent(context.Background(), callbackEvent(1, 77, callbackAddOrderNo))

	if len(rig.messenger.removed) != 1 || rig.messenger.removed[0].messageID != 77 {
		t.Errorf("removed buttons = %v, want message 77", rig.messenger.removed)
	}
	if len(rig.messenger.sent) != 0 {
		t.Errorf("sent %d messages after declining, want 0", len(rig.messenger.sent))
	}
	if rig.coordinator.responses.IsHookRegistered(1) {
		t.Error("hook registered after declining")
	}
}

func TestOrderCallbackYesThenReply(t *testing.T) {
	rig := newTestRig()
	rig.coordinator.sessions.Update(1, func(s *models.Session) {
		s.LastEntryID = 42
		s.LastEntryRestaurant = "Siam Station"
	})
	var patches []models.EntryPatch
	rig.store.updateEntry = func(id int64, patch models.EntryPatch) error {
		if id != 42 {
			t.Errorf("update entry ID = %d, want 42", id)
		}
		patches = append(patches, patch)
		return nil
	}

	ctx := context.Background()
	rig.coordinator.HandleEvent(ctx, callbackEvent(1, 77, callbackAddOrderYes))

	prompt := rig.messenger.lastSent(t).text
	if !strings.HasPrefix(prompt, "What's your go-to order at Siam Station?") {
		t.Errorf("prompt = %q", prompt)
	}
	if !rig.coordinator.responses.IsHookRegistered(1) {
		t.Fatal("no hook registered after Yes")
	}
	if len(rig.timer.scheduled) != 1 || rig.timer.scheduled[0].delay != models.ExactOrderTimeout {
		t.Fatalf("scheduled timers = %+v, want one with the order timeout", rig.timer.scheduled)
	}

	rig.coordinator.HandleEvent(ctx, textEvent(1, "Pad Thai, medium spicy"))

	if len(patches) != 1 || patches[0].ExactOrder == nil || *patches[0].ExactOrder != "Pad Thai, medium spicy" {
		t.Fatalf("patches = %+v, want the saved order", patches)
	}
	got := rig.messenger.lastSent(t).text
	want := "Saved your order at Siam Station: \"Pad Thai, medium spicy\"\nI'll remind you of this next time!"
	if got != want {
		t.Errorf("confirmation = %q, want %q", got, want)
	}
	if rig.coordinator.responses.IsHookRegistered(1) {
		t.Error("hook still registered after the reply")
	}
	if len(rig.genai.histories) != 0 {
		t.Error("captured reply still went through the classifier")
	}
}

func TestOrderDialogueExpires(t *testing.T) {
	rig := newTestRig()
	rig.coordinator.sessions.Update(1, func(s *models.Session) {
		s.LastEntryID = 42
		s.LastEntryRestaurant = "Siam Station"
	})

	ctx := context.Background()
	rig.coordinator.HandleEvent(ctx, callbackEvent(1, 77, callbackAddOrderYes))
	rig.timer.fireLast(t)

	if rig.coordinator.responses.IsHookRegistered(1) {
		t.Fatal("hook still registered after expiry")
	}

	rig.coordinator.HandleEvent(ctx, textEvent(1, "Pad Thai"))
	if len(rig.genai.histories) != 1 {
		t.Error("message after expiry not routed through the classifier")
	}
}

func TestSaveExactOrderWithoutRecentEntry(t *testing.T) {
	rig := newTestRig()

	ctx := context.Background()
	rig.coordinator.HandleEvent(ctx, callbackEvent(1, 77, callbackAddOrderYes))
	rig.coordinator.HandleEvent(ctx, textEvent(1, "Pad Thai"))

	got := rig.messenger.lastSent(t).text
	if got != "Sorry, I lost track of which entry to update. Try logging again!" {
		t.Errorf("reply = %q", got)
	}
}

func detailsAnalysis(payload *models.DetailsPayload) func(string, []models.Turn) (*models.Analysis, error) {
	return func(text string, history []models.Turn) (*models.Analysis, error) {
		return &models.Analysis{Intent: models.IntentAddDetails, Confidence: 0.9, Details: payload}, nil
	}
}

func TestAddDetailsWithoutRecentEntry(t *testing.T) {
	rig := newTestRig()
	rig.genai.analyze = detailsAnalysis(&models.DetailsPayload{Notes: "it was great"})

	rig.coordinator.HandleEvent(context.Background(), textEvent(1, "it was great"))

	got := rig.messenger.lastSent(t).text
	if got != "I don't have a recent entry to add details to. Try logging a new experience first!" {
		t.Errorf("reply = %q", got)
	}
}

func TestAddDetailsWithoutRecentEntryNamesRestaurant(t *testing.T) {
	rig := newTestRig()
	rig.genai.analyze = detailsAnalysis(&models.DetailsPayload{RestaurantName: "Casa Maria", Notes: "so good"})

	rig.coordinator.HandleEvent(context.Background(), textEvent(1, "Casa Maria was so good"))

	got := rig.messenger.lastSent(t).text
	if !strings.Contains(got, "To log something at Casa Maria") {
		t.Errorf("reply = %q, want logging guidance for Casa Maria", got)
	}
}

func TestAddDetailsRedirectsOtherRestaurant(t *testing.T) {
	rig := newTestRig()
	rig.coordinator.sessions.Update(1, func(s *models.Session) {
		s.LastEntryID = 42
		s.LastEntryRestaurant = "Siam Station"
	})
	rig.genai.analyze = detailsAnalysis(&models.DetailsPayload{RestaurantName: "Casa Maria", Notes: "amazing"})
	rig.store.updateEntry = func(id int64, patch models.EntryPatch) error {
		t.Error("entry updated despite restaurant mismatch")
		return nil
	}

	rig.coordinator.HandleEvent(context.Background(), textEvent(1, "the salsa at Casa Maria was amazing"))

	got := rig.messenger.lastSent(t).text
	if !strings.HasPrefix(got, "Your last entry was at Siam Station, not Casa Maria.") {
		t.Errorf("reply = %q", got)
	}
}

func TestAddDetailsAcceptsPartialNameMatch(t *testing.T) {
	rig := newTestRig()
	rig.coordinator.sessions.Update(1, func(s *models.Session) {
		s.LastEntryID = 42
		s.LastEntryRestaurant = "Siam Station Thai Kitchen"
	})
	rig.genai.analyze = detailsAnalysis(&models.DetailsPayload{RestaurantName: "siam station", Notes: "loved it"})
	rig.store.getEntry = func(id int64) (*models.Entry, error) {
		return &models.Entry{ID: 42, RestaurantID: 3}, nil
	}
	var updated bool
	rig.store.updateEntry = func(id int64, patch models.EntryPatch) error {
		updated = true
		return nil
	}

	rig.coordinator.HandleEvent(context.Background(), textEvent(1, "loved it at siam station"))

	if !updated {
		t.Error("partial restaurant name match rejected")
	}
}

func TestAddDetailsBuildsAppendingPatch(t *testing.T) {
	rig := newTestRig()
	rig.coordinator.sessions.Update(1, func(s *models.Session) {
		s.LastEntryID = 42
		s.LastEntryRestaurant = "Siam Station"
	})
	score := 0.8
	sentiment := models.SentimentPositive
	rig.genai.analyze = detailsAnalysis(&models.DetailsPayload{
		DishName:       "spring rolls",
		Notes:          "crispy",
		Sentiment:      &sentiment,
		SentimentScore: &score,
		Tags:           []string{"appetizer", "spicy"},
	})
	rig.store.getEntry = func(id int64) (*models.Entry, error) {
		return &models.Entry{
			ID: 42, RestaurantID: 3, Dish: "pad thai", Notes: "great sauce",
			Tags: []string{"spicy", "lunch"},
		}, nil
	}
	var got models.EntryPatch
	rig.store.updateEntry = func(id int64, patch models.EntryPatch) error {
		got = patch
		return nil
	}

	rig.coordinator.HandleEvent(context.Background(), textEvent(1, "we also had spring rolls, crispy"))

	if got.Dish == nil || *got.Dish != "pad thai, spring rolls" {
		t.Errorf("dish patch = %v, want appended list", got.Dish)
	}
	if got.Notes == nil || *got.Notes != "great sauce. crispy" {
		t.Errorf("notes patch = %v, want appended notes", got.Notes)
	}
	if got.Sentiment == nil || *got.Sentiment != models.SentimentPositive {
		t.Errorf("sentiment patch = %v", got.Sentiment)
	}
	if got.SentimentScore == nil || *got.SentimentScore != 0.8 {
		t.Errorf("score patch = %v", got.SentimentScore)
	}
	wantTags := []string{"spicy", "lunch", "appetizer"}
	if len(got.Tags) != len(wantTags) {
		t.Fatalf("tags patch = %v, want %v", got.Tags, wantTags)
	}
	for i, tag := range wantTags {
		if got.Tags[i] != tag {
			t.Errorf("tags patch = %v, want %v", got.Tags, wantTags)
			break
		}
	}

	reply := rig.messenger.lastSent(t).text
	if !strings.Contains(reply, "Updated your Siam Station entry:") ||
		!strings.Contains(reply, "added spring rolls") ||
		!strings.Contains(reply, "noted: crispy") ||
		!strings.Contains(reply, "tagged: appetizer, spicy") {
		t.Errorf("reply = %q", reply)
	}
}

func TestAddDetailsEntryGone(t *testing.T) {
	rig := newTestRig()
	rig.coordinator.sessions.Update(1, func(s *models.Session) {
		s.LastEntryID = 42
		s.LastEntryRestaurant = "Siam Station"
	})
	rig.genai.analyze = detailsAnalysis(&models.DetailsPayload{Notes: "good"})

	rig.coordinator.HandleEvent(context.Background(), textEvent(1, "it was good"))

	got := rig.messenger.lastSent(t).text
	if got != "I couldn't find that entry anymore. Try logging a new experience!" {
		t.Errorf("reply = %q", got)
	}
}

func TestCancelCommandStopsOrderTimer(t *testing.T) {
	rig := newTestRig()
	rig.coordinator.sessions.Update(1, func(s *models.Session) {
		s.LastEntryID = 42
		s.LastEntryRestaurant = "Siam Station"
	})
	var patches []models.EntryPatch
	rig.store.updateEntry = func(id int64, patch models.EntryPatch) error {
		patches = append(patches, patch)
		return nil
	}

	ctx := context.Background()
	rig.coordinator.HandleEvent(ctx, callbackEvent(1, 77, callbackAddOrderYes))
	first := rig.timer.scheduled[0]

	rig.coordinator.HandleEvent(ctx, commandEvent(1, "cancel", ""))

	cancelled := false
	for _, id := range rig.timer.cancelled {
		if id == first.id {
			cancelled = true
		}
	}
	if !cancelled {
		t.Errorf("cancelled timers = %v, want %s", rig.timer.cancelled, first.id)
	}

	rig.coordinator.HandleEvent(ctx, callbackEvent(1, 78, callbackAddOrderYes))
	if !rig.coordinator.responses.IsHookRegistered(1) {
		t.Fatal("no hook registered for the second dialogue")
	}

	// A stray fire of the old timer must not touch the new dialogue.
	first.fn()
	if !rig.coordinator.responses.IsHookRegistered(1) {
		t.Fatal("stale timer unregistered the live dialogue's hook")
	}

	rig.coordinator.HandleEvent(ctx, textEvent(1, "Pad Thai"))
	if len(patches) != 1 || patches[0].ExactOrder == nil || *patches[0].ExactOrder != "Pad Thai" {
		t.Fatalf("patches = %+v, want the saved order", patches)
	}
	if len(rig.genai.histories) != 0 {
		t.Error("order reply went through the classifier")
	}
}

func TestRepeatedYesReplacesOrderTimer(t *testing.T) {
	rig := newTestRig()
	rig.coordinator.sessions.Update(1, func(s *models.Session) {
		s.LastEntryID = 42
		s.LastEntryRestaurant = "Siam Station"
	})

	ctx := context.Background()
	rig.coordinator.HandleEvent(ctx, callbackEvent(1, 77, callbackAddOrderYes))
	first := rig.timer.scheduled[0]
	rig.coordinator.HandleEvent(ctx, callbackEvent(1, 78, callbackAddOrderYes))

	cancelled := false
	for _, id := range rig.timer.cancelled {
		if id == first.id {
			cancelled = true
		}
	}
	if !cancelled {
		t.Errorf("cancelled timers = %v, want %s", rig.timer.cancelled, first.id)
	}
	if len(rig.timer.scheduled) != 2 {
		t.Fatalf("scheduled timers = %d, want a fresh one per dialogue", len(rig.timer.scheduled))
	}

	first.fn()
	if !rig.coordinator.responses.IsHookRegistered(1) {
		t.Fatal("stale timer unregistered the live dialogue's hook")
	}
}
