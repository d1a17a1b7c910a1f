package utils

import "time"

// UTCNow is the clock every persisted timestamp is taken from
func UTCNow() time.Time {
	return time.Now().UTC()
}

// IsFuture reports whether t is strictly after now
func IsFuture(t time.Time) bool {
	return t.After(UTCNow())
}

func TimeToUTCPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	utc := t.UTC()
	return &utc
}

// FormatTimePtr renders t as RFC3339 in UTC; nil becomes ""
func FormatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
