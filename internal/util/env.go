// Package util provides environment variable parsing helpers shared across components.
package util

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// ParseBoolEnv parses a boolean environment variable with a default value.
// Accepts: true/1/yes/on and false/0/no/off (case-insensitive). Invalid values return default.
func ParseBoolEnv(key string, defaultValue bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	switch strings.ToLower(strings.TrimSpace(val)) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	default:
		slog.Warn("ParseBoolEnv: invalid boolean value, using default", "key", key, "value", val, "default", defaultValue)
		return defaultValue
	}
}

// ParseChatIDsEnv parses a comma-separated list of chat IDs from an
// environment variable. Blank items are skipped; non-numeric items are
// skipped with a warning. An empty or unset variable returns nil.
func ParseChatIDsEnv(key string) []int64 {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	var ids []int64
	for _, item := range strings.Split(val, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		id, err := strconv.ParseInt(item, 10, 64)
		if err != nil {
			slog.Warn("ParseChatIDsEnv: skipping invalid chat ID", "key", key, "value", item)
			continue
		}
		ids = append(ids, id)
	}
	return ids
}
