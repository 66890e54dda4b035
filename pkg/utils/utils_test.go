package utils

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestGenerateIDPrefix(t *testing.T) {
	id := GenerateID("evt")
	if len(id) < 5 || id[:4] != "evt_" {
		t.Errorf("expected evt_ prefix, got %s", id)
	}
	if GenerateID("") == GenerateID("") {
		t.Error("expected unique ids")
	}
}

func TestUTCDate(t *testing.T) {
	plus5 := time.FixedZone("plus5", 5*3600)
	// 02:00 +05:00 is 21:00 UTC the previous day.
	got := UTCDate(time.Date(2026, 3, 11, 2, 0, 0, 0, plus5))
	want := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestSameUTCDate(t *testing.T) {
	a := time.Date(2026, 3, 10, 0, 0, 1, 0, time.UTC)
	b := time.Date(2026, 3, 10, 23, 59, 59, 0, time.UTC)
	c := time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)

	if !SameUTCDate(a, b) {
		t.Error("expected same UTC day")
	}
	if SameUTCDate(b, c) {
		t.Error("expected different UTC days across midnight")
	}
}

func TestPercent(t *testing.T) {
	got := Percent(decimal.NewFromInt(5))
	if !got.Equal(decimal.NewFromFloat(0.05)) {
		t.Errorf("expected 0.05, got %s", got)
	}
}

func TestClampDecimal(t *testing.T) {
	lo := decimal.Zero
	hi := decimal.NewFromInt(100)

	if got := ClampDecimal(decimal.NewFromInt(-5), lo, hi); !got.Equal(lo) {
		t.Errorf("expected clamp to 0, got %s", got)
	}
	if got := ClampDecimal(decimal.NewFromInt(105), lo, hi); !got.Equal(hi) {
		t.Errorf("expected clamp to 100, got %s", got)
	}
	mid := decimal.NewFromInt(50)
	if got := ClampDecimal(mid, lo, hi); !got.Equal(mid) {
		t.Errorf("expected passthrough, got %s", got)
	}
}

func TestMinMaxDecimal(t *testing.T) {
	a := decimal.NewFromInt(3)
	b := decimal.NewFromInt(7)

	if got := MaxDecimal(a, b); !got.Equal(b) {
		t.Errorf("expected 7, got %s", got)
	}
	if got := MinDecimal(a, b); !got.Equal(a) {
		t.Errorf("expected 3, got %s", got)
	}
	if got := MaxDecimal(a, a); !got.Equal(a) {
		t.Errorf("expected equal passthrough, got %s", got)
	}
}
