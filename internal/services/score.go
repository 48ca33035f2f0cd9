package services

import (
	"math"
	"strconv"
	"strings"
)

// Response keys accepted from the trial page.
const (
	KeyYes = "Y"
	KeyNo  = "N"
)

// CorrectKey maps a trial's valence to the key that counts as correct.
// Valence 1 expects Y; anything else expects N.
func CorrectKey(valence int) string {
	if valence == 1 {
		return KeyYes
	}
	return KeyNo
}

// Accuracy is 1 when key is the correct key for valence, else 0.
func Accuracy(valence int, key string) int {
	if key == CorrectKey(valence) {
		return 1
	}
	return 0
}

// NormalizeKey trims and upper-cases key; ok is false outside {Y, N}.
func NormalizeKey(key string) (string, bool) {
	k := strings.ToUpper(strings.TrimSpace(key))
	switch k {
	case KeyYes, KeyNo:
		return k, true
	default:
		return "", false
	}
}

// ParseResponseTime parses a non-negative, finite millisecond value.
func ParseResponseTime(raw string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, false
	}
	return v, true
}
