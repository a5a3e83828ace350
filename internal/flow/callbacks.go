package flow

import "strings"

// Callback data values used on inline keyboards.
const (
	callbackAddOrderYes = "add_order_yes"
	callbackAddOrderNo  = "add_order_no"
	callbackAccept      = "accept"
	callbackReject      = "reject"
	callbackCancel      = "cancel"
	cuisinePrefix       = "cuisine:"
	anyCuisine          = "any"
)

// CallbackKind enumerates the recognized inline-button actions.
type CallbackKind int

const (
	// CallbackUnknown is any unrecognized callback payload.
	CallbackUnknown CallbackKind = iota
	// CallbackAddOrderYes starts the saved-order dialogue.
	CallbackAddOrderYes
	// CallbackAddOrderNo declines the saved-order offer.
	CallbackAddOrderNo
	// CallbackCuisine selects a cuisine in the suggestion dialogue.
	CallbackCuisine
	// CallbackAccept accepts the proposed restaurant.
	CallbackAccept
	// CallbackReject asks for a different restaurant.
	CallbackReject
	// CallbackCancel abandons the suggestion dialogue.
	CallbackCancel
)

// CallbackAction is one decoded inline-button press. Cuisine is set only for
// CallbackCuisine; an empty Cuisine there means no filter.
type CallbackAction struct {
	Kind    CallbackKind
	Cuisine string
}

// ParseCallback decodes raw callback data at the transport boundary so flow
// code dispatches on a closed set of actions.
func ParseCallback(data string) CallbackAction {
	switch data {
	case callbackAddOrderYes:
		return CallbackAction{Kind: CallbackAddOrderYes}
	case callbackAddOrderNo:
		return CallbackAction{Kind: CallbackAddOrderNo}
	case callbackAccept:
		return CallbackAction{Kind: CallbackAccept}
	case callbackReject:
		return CallbackAction{Kind: CallbackReject}
	case callbackCancel:
		return CallbackAction{Kind: CallbackCancel}
	}
	if cuisine, ok := strings.CutPrefix(data, cuisinePrefix); ok {
		if cuisine == anyCuisine {
			return CallbackAction{Kind: CallbackCuisine}
		}
		return CallbackAction{Kind: CallbackCuisine, Cuisine: cuisine}
	}
	return CallbackAction{Kind: CallbackUnknown}
}
