package format

import (
	"testing"
	"time"
)

func TestNumber(t *testing.T) {
	cases := []struct {
		v        float64
		decimals int
		want     string
	}{
		{1234.567, 2, "1,234.57"},
		{0.04, 1, "0.0"},
		{1000000, 0, "1,000,000"},
		{-2.5, 2, "-2.50"},
	}
	for _, tc := range cases {
		if got := Number(tc.v, tc.decimals); got != tc.want {
			t.Fatalf("Number(%v, %d) = %q, want %q", tc.v, tc.decimals, got, tc.want)
		}
	}
}

func TestCount(t *testing.T) {
	if got := Count(1234567); got != "1,234,567" {
		t.Fatalf("unexpected count %q", got)
	}
}

func TestTime(t *testing.T) {
	if Time(time.Time{}) != "n/a" {
		t.Fatalf("zero time must render as n/a")
	}
	ts := time.Date(2024, 3, 1, 12, 30, 0, 0, time.FixedZone("CET", 3600))
	if got := Time(ts); got != "2024-03-01T12:30:00+01:00" {
		t.Fatalf("unexpected time %q", got)
	}
}
