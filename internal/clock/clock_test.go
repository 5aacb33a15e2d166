package clock

import (
	"testing"
	"time"
)

func TestFakeAdvance(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewFake(start)

	c.Advance(36 * time.Hour)

	if got := c.Now(); !got.Equal(start.Add(36 * time.Hour)) {
		t.Fatalf("Now() = %v, want %v", got, start.Add(36*time.Hour))
	}
}

func TestRealIsUTC(t *testing.T) {
	if loc := Real().Now().Location(); loc != time.UTC {
		t.Fatalf("location = %v, want UTC", loc)
	}
}
