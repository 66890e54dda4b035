// Package utils provides utility functions for the challenge backend.
package utils

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// GenerateID generates a unique ID with optional prefix.
func GenerateID(prefix string) string {
	id := uuid.NewString()
	if prefix != "" {
		return fmt.Sprintf("%s_%s", prefix, id)
	}
	return id
}

// GenerateChallengeID generates a unique challenge ID.
func GenerateChallengeID() string {
	return uuid.NewString()
}

// GenerateAssessmentID generates a unique risk assessment ID.
func GenerateAssessmentID() string {
	return uuid.NewString()
}

// UTCDate truncates a timestamp to its UTC calendar date.
func UTCDate(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// SameUTCDate reports whether two timestamps fall on the same UTC day.
func SameUTCDate(a, b time.Time) bool {
	return UTCDate(a).Equal(UTCDate(b))
}

// Percent converts a percentage value (e.g. 5) into its fraction (0.05).
func Percent(p decimal.Decimal) decimal.Decimal {
	return p.Div(decimal.NewFromInt(100))
}

// ClampDecimal bounds v into [min, max].
func ClampDecimal(v, min, max decimal.Decimal) decimal.Decimal {
	if v.LessThan(min) {
		return min
	}
	if v.GreaterThan(max) {
		return max
	}
	return v
}

// MaxDecimal returns the larger of a and b.
func MaxDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// MinDecimal returns the smaller of a and b.
func MinDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}
