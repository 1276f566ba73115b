package store

import (
	"strings"
)

// placeholderList returns "?,?,?" for n placeholders.
func placeholderList(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}

// stringsToArgs converts []string to []any for use with database/sql.
func stringsToArgs(values []string) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}

// receiverKey maps an optional receiver type to its stored form.
func receiverKey(receiver *string) string {
	if receiver == nil {
		return ""
	}
	return *receiver
}

// receiverFromKey is the inverse of receiverKey.
func receiverFromKey(key string) *string {
	if key == "" {
		return nil
	}
	return &key
}
