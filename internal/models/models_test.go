package models

import (
	"reflect"
	"testing"
)

func TestSentimentFromScore(t *testing.T) {
	cases := []struct {
		score float64
		want  Sentiment
	}{
		{0.7, SentimentPositive},
		{0.5, SentimentPositive},
		{0.0, SentimentNeutral},
		{0.2, SentimentNeutral},
		{-0.2, SentimentNeutral},
		{-0.9, SentimentNegative},
		{-0.5, SentimentNegative},
		{0.35, SentimentMixed},
		{-0.35, SentimentMixed},
	}
	for _, c := range cases {
		if got := SentimentFromScore(c.score); got != c.want {
			t.Errorf("SentimentFromScore(%v) = %v, want %v", c.score, got, c.want)
		}
	}
}

func TestIsValidSentiment(t *testing.T) {
	for _, s := range []Sentiment{SentimentPositive, SentimentNegative, SentimentNeutral, SentimentMixed} {
		if !IsValidSentiment(s) {
			t.Errorf("expected %v to be valid", s)
		}
	}
	if IsValidSentiment("ecstatic") {
		t.Error("expected unrecognized label to be invalid")
	}
}

func TestMergeTagsIdempotentAndOrderIndependent(t *testing.T) {
	existing := []string{"spicy", "cheap"}
	merged := MergeTags(existing, []string{"spicy"})
	if !reflect.DeepEqual(merged, []string{"spicy", "cheap"}) {
		t.Errorf("expected idempotent merge, got %v", merged)
	}

	merged = MergeTags(merged, []string{"cheap", "spicy"})
	if !reflect.DeepEqual(merged, []string{"spicy", "cheap"}) {
		t.Errorf("expected order-independent dedup, got %v", merged)
	}

	merged = MergeTags(nil, []string{"fast"})
	if !reflect.DeepEqual(merged, []string{"fast"}) {
		t.Errorf("expected merge into empty set, got %v", merged)
	}
}

func TestEntryPatchIsEmpty(t *testing.T) {
	var p EntryPatch
	if !p.IsEmpty() {
		t.Error("zero patch should be empty")
	}
	dish := "pad thai"
	p.Dish = &dish
	if p.IsEmpty() {
		t.Error("patch with dish should not be empty")
	}
	p = EntryPatch{Tags: []string{}}
	if p.IsEmpty() {
		t.Error("patch with non-nil tags should not be empty")
	}
}

func TestSessionAppendTurnTruncates(t *testing.T) {
	s := &Session{ChatID: 1}
	for i := 0; i < HistoryLimit+5; i++ {
		s.AppendTurn("user", "msg")
	}
	if len(s.History) != HistoryLimit {
		t.Errorf("expected history capped at %d, got %d", HistoryLimit, len(s.History))
	}
}
