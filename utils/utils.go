// Package utils provides utility functions for the application.
package utils

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

func ToPtr[T any](v T) *T {
	return &v
}

func IsTrue(b *bool) bool {
	return b != nil && *b
}

// DerefString returns the pointed string or "" for nil
func DerefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// CleanStrings trims every item and drops the empty ones, preserving order
func CleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// ParseUUID parses a textual UUID, rejecting blank input
func ParseUUID(s string) (uuid.UUID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return uuid.Nil, fmt.Errorf("empty uuid")
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid uuid %q: %w", s, err)
	}
	return parsed, nil
}
