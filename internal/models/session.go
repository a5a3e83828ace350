// Package models defines conversational state types to avoid circular imports.
package models

import "time"

// StateType identifies a specific state within a sub-dialogue.
type StateType string

// State constants for the suggestion dialogue.
const (
	StateSelectingCuisine StateType = "SELECTING_CUISINE"
	StateConfirming       StateType = "CONFIRMING"
)

// HistoryLimit caps the rolling per-chat history window.
const HistoryLimit = 10

// ClassifierContextLimit caps how many history turns are sent to the classifier.
const ClassifierContextLimit = 5

// Inactivity deadlines, measured from the last state transition.
const (
	// ExactOrderTimeout ends the reorder-phrase dialogue silently.
	ExactOrderTimeout = 120 * time.Second
	// WhatToEatTimeout ends the suggestion dialogue, annotating the last
	// prompt as expired on a best-effort basis.
	WhatToEatTimeout = 300 * time.Second
)

// SuggestionState is the in-progress suggestion dialogue for one chat.
type SuggestionState struct {
	State       StateType
	Cuisine     string  // active cuisine filter, empty means any
	ProposedID  int64   // restaurant currently proposed, 0 before first draw
	RejectedIDs []int64 // grows monotonically until the flow ends
	MessageID   int     // the prompt message being edited between transitions
	TimerID     string  // inactivity timer for the current state
}

// Session is the ephemeral per-chat conversational state. It is keyed by chat
// identity, lives only in memory, and is discarded on restart; flows recover
// with a "lost track" message rather than failing.
type Session struct {
	ChatID              int64
	History             []Turn // rolling window, capped at HistoryLimit
	LastEntryID         int64  // most recently created entry, 0 when none
	LastEntryRestaurant string // display name of that entry's restaurant
	OrderTimerID        string // pending reorder-dialogue inactivity timer, empty when none
	Suggestion          *SuggestionState
}

// AppendTurn appends a turn to the session history and truncates it to the
// rolling window limit.
func (s *Session) AppendTurn(role, text string) {
	s.History = append(s.History, Turn{Role: role, Text: text})
	if len(s.History) > HistoryLimit {
		s.History = s.History[len(s.History)-HistoryLimit:]
	}
}
