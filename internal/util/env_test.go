package util

import (
	"testing"
)

func TestParseBoolEnv(t *testing.T) {
	cases := []struct {
		name     string
		value    string
		fallback bool
		want     bool
	}{
		{"unset uses default", "", true, true},
		{"true", "true", false, true},
		{"one", "1", false, true},
		{"yes mixed case", "YES", false, true},
		{"on with spaces", "  on  ", false, true},
		{"false", "false", true, false},
		{"zero", "0", true, false},
		{"off", "off", true, false},
		{"invalid uses default", "maybe", true, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.value != "" {
				t.Setenv("TEST_BOOL_ENV", tc.value)
			}
			if got := ParseBoolEnv("TEST_BOOL_ENV", tc.fallback); got != tc.want {
				t.Errorf("ParseBoolEnv(%q, %v) = %v, want %v", tc.value, tc.fallback, got, tc.want)
			}
		})
	}
}

func TestParseChatIDsEnv(t *testing.T) {
	cases := []struct {
		name  string
		value string
		want  []int64
	}{
		{"unset", "", nil},
		{"single", "12345", []int64{12345}},
		{"multiple", "12345,-67890", []int64{12345, -67890}},
		{"spaces and blanks", " 1 , , 2 ", []int64{1, 2}},
		{"invalid items skipped", "1,abc,3", []int64{1, 3}},
		{"all invalid", "abc,def", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.value != "" {
				t.Setenv("TEST_CHAT_IDS_ENV", tc.value)
			}
			got := ParseChatIDsEnv("TEST_CHAT_IDS_ENV")
			if len(got) != len(tc.want) {
				t.Fatalf("ParseChatIDsEnv(%q) = %v, want %v", tc.value, got, tc.want)
			}
			for i := range tc.want {
				if got[i] != tc.want[i] {
					t.Errorf("ParseChatIDsEnv(%q) = %v, want %v", tc.value, got, tc.want)
					break
				}
			}
		})
	}
}
