package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncateRunes(t *testing.T) {
	t.Run("short text untouched", func(t *testing.T) {
		assert.Equal(t, "Coupure d'eau", TruncateRunes("Coupure d'eau", 240))
	})

	t.Run("exact limit untouched", func(t *testing.T) {
		s := strings.Repeat("a", 240)
		assert.Equal(t, s, TruncateRunes(s, 240))
	})

	t.Run("long text cut and marked", func(t *testing.T) {
		s := strings.Repeat("é", 300)
		out := TruncateRunes(s, 240)
		assert.Equal(t, strings.Repeat("é", 240)+"...", out)
	})
}

func TestSMSSegments(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want int
	}{
		{"empty", "", 0},
		{"single gsm7", strings.Repeat("a", 160), 1},
		{"two gsm7", strings.Repeat("a", 161), 2},
		{"accents stay gsm7", strings.Repeat("é", 160), 1},
		{"extended chars cost two", strings.Repeat("€", 80), 1},
		{"ucs2 single", strings.Repeat("ش", 70), 1},
		{"ucs2 two", strings.Repeat("ش", 71), 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SMSSegments(tt.in))
		})
	}
}

func TestTruncateSMS(t *testing.T) {
	t.Run("fits", func(t *testing.T) {
		assert.Equal(t, "Bonjour", TruncateSMS("Bonjour", 1))
	})

	t.Run("cut to one segment", func(t *testing.T) {
		out := TruncateSMS(strings.Repeat("a", 400), 1)
		assert.True(t, strings.HasSuffix(out, "..."))
		assert.Equal(t, 1, SMSSegments(out))
		assert.Len(t, out, 160)
	})

	t.Run("default segments when unset", func(t *testing.T) {
		out := TruncateSMS(strings.Repeat("a", 1000), 0)
		assert.Equal(t, SMSDefaultMaxSegments, SMSSegments(out))
	})
}
