package timespan

import (
	"testing"
	"time"
)

func TestParse_HoursAndMinutes(t *testing.T) {
	d, ok := Parse("2h30m")
	if !ok {
		t.Fatal("expected a match")
	}
	if want := 2*time.Hour + 30*time.Minute; d != want {
		t.Fatalf("expected %v, got %v", want, d)
	}
}

func TestParse_Days(t *testing.T) {
	d, ok := Parse("1d")
	if !ok {
		t.Fatal("expected a match")
	}
	if want := 24 * time.Hour; d != want {
		t.Fatalf("expected %v, got %v", want, d)
	}
}

func TestParse_NoMatch(t *testing.T) {
	if _, ok := Parse("hello"); ok {
		t.Fatal("expected no match for 'hello'")
	}
}

func TestParse_UnknownUnit(t *testing.T) {
	if _, ok := Parse("3x"); ok {
		t.Fatal("expected no match for '3x'")
	}
}

func TestParse_IgnoresUnmatchedPrefix(t *testing.T) {
	d, ok := Parse("abc1h")
	if !ok {
		t.Fatal("expected a match")
	}
	if d != time.Hour {
		t.Fatalf("expected 1h, got %v", d)
	}
}

func TestParse_DuplicateUnitsAccumulate(t *testing.T) {
	d, ok := Parse("1h2h")
	if !ok {
		t.Fatal("expected a match")
	}
	if d != 3*time.Hour {
		t.Fatalf("expected 3h, got %v", d)
	}
}

func TestParse_CaseInsensitive(t *testing.T) {
	d, ok := Parse("1D2H")
	if !ok {
		t.Fatal("expected a match")
	}
	if want := 26 * time.Hour; d != want {
		t.Fatalf("expected %v, got %v", want, d)
	}
}
