package schedule

import (
	"testing"
	"time"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		in           string
		hour, minute int
		wantErr      bool
	}{
		{in: "08:30", hour: 8, minute: 30},
		{in: "0:00", hour: 0, minute: 0},
		{in: "23:59", hour: 23, minute: 59},
		{in: "24:00", wantErr: true},
		{in: "12:60", wantErr: true},
		{in: "1230", wantErr: true},
		{in: "ab:cd", wantErr: true},
	}
	for _, tt := range tests {
		h, m, err := parseClock(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseClock(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseClock(%q): unexpected error %v", tt.in, err)
			continue
		}
		if h != tt.hour || m != tt.minute {
			t.Errorf("parseClock(%q) = %d:%d, want %d:%d", tt.in, h, m, tt.hour, tt.minute)
		}
	}
}

func TestNextRun(t *testing.T) {
	loc := time.FixedZone("CST", 8*3600)
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, loc)

	// Later today.
	got := nextRun(now, 22, 30)
	want := time.Date(2024, 3, 15, 22, 30, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("nextRun later today = %v, want %v", got, want)
	}

	// Already passed: tomorrow.
	got = nextRun(now, 8, 0)
	want = time.Date(2024, 3, 16, 8, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("nextRun tomorrow = %v, want %v", got, want)
	}

	// Exactly now: strictly after, so tomorrow.
	got = nextRun(now, 10, 0)
	want = time.Date(2024, 3, 16, 10, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("nextRun at the boundary = %v, want %v", got, want)
	}
}
