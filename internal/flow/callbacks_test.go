package flow

import "testing"

func TestParseCallback(t *testing.T) {
	cases := []struct {
		data string
		want CallbackAction
	}{
		{"add_order_yes", CallbackAction{Kind: CallbackAddOrderYes}},
		{"add_order_no", CallbackAction{Kind: CallbackAddOrderNo}},
		{"accept", CallbackAction{Kind: CallbackAccept}},
		{"reject", CallbackAction{Kind: CallbackReject}},
		{"cancel", CallbackAction{Kind: CallbackCancel}},
		{"cuisine:Thai", CallbackAction{Kind: CallbackCuisine, Cuisine: "Thai"}},
		{"cuisine:any", CallbackAction{Kind: CallbackCuisine}},
		{"cuisine:", CallbackAction{Kind: CallbackCuisine}},
		{"", CallbackAction{Kind: CallbackUnknown}},
		{"garbage", CallbackAction{Kind: CallbackUnknown}},
	}
	for _, tc := range cases {
		if got := ParseCallback(tc.data); got != tc.want {
			t.Errorf("ParseCallback(%q) = %+v, want %+v", tc.data, got, tc.want)
		}
	}
}
