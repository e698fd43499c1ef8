package utils

import (
	"testing"
	"time"
)

func TestStartOfDay(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("failed to load location: %v", err)
	}

	at := time.Date(2026, 9, 1, 17, 42, 13, 500, loc)
	got := StartOfDay(at)

	want := time.Date(2026, 9, 1, 0, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if got.Location() != loc {
		t.Fatal("midnight must stay in the caller's location")
	}
}

func TestWindowStart(t *testing.T) {
	at := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	got := WindowStart(at, time.Hour)
	want := at.Add(-time.Hour)
	if !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}
