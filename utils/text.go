package utils

import "unicode/utf8"

// TruncateRunes cuts s to at most max runes and appends TruncationIndicator
// when anything was removed.
func TruncateRunes(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + TruncationIndicator
}

// gsm7Basic is the GSM 03.38 basic character set.
const gsm7Basic = "@£$¥èéùìòÇ\nØø\rÅåΔ_ΦΓΛΩΠΨΣΘΞÆæßÉ !\"#¤%&'()*+,-./0123456789:;<=>?" +
	"¡ABCDEFGHIJKLMNOPQRSTUVWXYZÄÖÑÜ§¿abcdefghijklmnopqrstuvwxyzäöñüà"

// gsm7Extended characters cost two septets (escape + char).
const gsm7Extended = "^{}\\[~]|€\f"

var gsm7BasicSet, gsm7ExtendedSet = runeSet(gsm7Basic), runeSet(gsm7Extended)

func runeSet(s string) map[rune]struct{} {
	m := make(map[rune]struct{}, utf8.RuneCountInString(s))
	for _, r := range s {
		m[r] = struct{}{}
	}
	return m
}

// IsGSM7 reports whether every rune of s is encodable in the GSM-7 alphabet.
func IsGSM7(s string) bool {
	for _, r := range s {
		if _, ok := gsm7BasicSet[r]; ok {
			continue
		}
		if _, ok := gsm7ExtendedSet[r]; ok {
			continue
		}
		return false
	}
	return true
}

// smsUnits returns the length of s in encoding units and the per-segment limits.
func smsUnits(s string) (units, single, multi int) {
	if !IsGSM7(s) {
		return utf8.RuneCountInString(s), SMSUCS2SingleSegment, SMSUCS2MultiSegment
	}
	for _, r := range s {
		if _, ok := gsm7ExtendedSet[r]; ok {
			units += 2
			continue
		}
		units++
	}
	return units, SMSGSM7SingleSegment, SMSGSM7MultiSegment
}

// SMSSegments returns how many segments s occupies on the wire.
func SMSSegments(s string) int {
	units, single, multi := smsUnits(s)
	if units == 0 {
		return 0
	}
	if units <= single {
		return 1
	}
	return (units + multi - 1) / multi
}

// TruncateSMS shortens s so that it fits in maxSegments segments, appending
// TruncationIndicator when it had to cut.
func TruncateSMS(s string, maxSegments int) string {
	if maxSegments <= 0 {
		maxSegments = SMSDefaultMaxSegments
	}
	if SMSSegments(s) <= maxSegments {
		return s
	}
	runes := []rune(s)
	lo, hi := 0, len(runes)
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if SMSSegments(string(runes[:mid])+TruncationIndicator) <= maxSegments {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return string(runes[:lo]) + TruncationIndicator
}
