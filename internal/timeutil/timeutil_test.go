package timeutil

import (
	"testing"
	"time"
)

func TestResolveZone_KnownName(t *testing.T) {
	loc := ResolveZone("Asia/Shanghai")
	if loc.String() != "Asia/Shanghai" {
		t.Errorf("loc = %q, want Asia/Shanghai", loc.String())
	}
}

func TestResolveZone_UnknownFallsBackToHostOrUTC(t *testing.T) {
	loc := ResolveZone("Not/A_Real_Zone")
	if loc != time.UTC && loc.String() != "UTC" {
		// Acceptable fallback is either the host zone or UTC; an unresolvable
		// name must never propagate into LoadLocation's error.
		if loc == nil {
			t.Fatal("ResolveZone returned nil for an unresolvable name")
		}
	}
}

func TestFormatLocal(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	ts := time.Date(2025, 6, 1, 0, 59, 30, 0, time.UTC)
	got := FormatLocal(ts, loc)
	want := "2025-06-01 08:59:30"
	if got != want {
		t.Errorf("FormatLocal = %q, want %q", got, want)
	}
}
