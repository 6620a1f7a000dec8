package car

import (
	"testing"
	"time"
)

func TestValidYearBoundaries(t *testing.T) {
	now := time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		year int
		want bool
	}{
		{1899, false},
		{1900, true},
		{2026, true},
		{2027, true},
		{2028, false},
	}

	for _, tt := range tests {
		if got := ValidYear(tt.year, now); got != tt.want {
			t.Fatalf("ValidYear(%d) = %v, want %v", tt.year, got, tt.want)
		}
	}
}

func TestValidPrice(t *testing.T) {
	if ValidPrice(0) {
		t.Fatal("price 0 must be rejected")
	}
	if ValidPrice(-5) {
		t.Fatal("negative price must be rejected")
	}
	if !ValidPrice(0.01) {
		t.Fatal("price 0.01 must be accepted")
	}

	tests := []struct {
		price float64
		want  bool
	}{
		{0.001, false},
		{40.555, false},
		{1e9, false},
		{40.5, true},
		{19.99, true},
		{MaxPricePerDay, true},
	}
	for _, tt := range tests {
		if got := ValidPrice(tt.price); got != tt.want {
			t.Fatalf("ValidPrice(%v) = %v, want %v", tt.price, got, tt.want)
		}
	}
}

func TestNewFromCreateRequestRoundsPrice(t *testing.T) {
	available := true
	c := NewFromCreateRequest("u1", CreateCarRequest{PricePerDay: 40.5000000001, Availability: &available})
	if c.PricePerDay != 40.5 {
		t.Fatalf("price = %v, want 40.5", c.PricePerDay)
	}
}

func TestMatchesFilter(t *testing.T) {
	nyc := Car{Location: "New York, NY", PricePerDay: 40, Availability: true}
	boston := Car{Location: "Boston, MA", PricePerDay: 30, Availability: true}
	hidden := Car{Location: "New York, NY", PricePerDay: 10, Availability: false}

	loc := "new york"
	byLocation := SearchFilter{Location: &loc}

	if !nyc.MatchesFilter(byLocation) {
		t.Fatal("case-insensitive substring should match New York, NY")
	}
	if boston.MatchesFilter(byLocation) {
		t.Fatal("Boston should not match new york")
	}
	if hidden.MatchesFilter(SearchFilter{}) {
		t.Fatal("unavailable cars never match")
	}

	ceiling := 40.0
	if !nyc.MatchesFilter(SearchFilter{MaxPrice: &ceiling}) {
		t.Fatal("price ceiling is inclusive")
	}

	lower := 39.99
	if nyc.MatchesFilter(SearchFilter{Location: &loc, MaxPrice: &lower}) {
		t.Fatal("combined filters should exclude a car over the ceiling")
	}
}

func TestNewFromCreateRequestOptionalFields(t *testing.T) {
	yes := true
	c := NewFromCreateRequest("owner-1", CreateCarRequest{
		Make:         " Honda ",
		Model:        "Civic",
		Year:         2020,
		Location:     "Austin, TX",
		PricePerDay:  40,
		Availability: &yes,
		Description:  "   ",
	})

	if c.ID == "" || c.UserID != "owner-1" {
		t.Fatalf("unexpected ids: %+v", c)
	}
	if c.Make != "Honda" {
		t.Fatalf("make not trimmed: %q", c.Make)
	}
	if c.ImageURL != nil || c.Description != nil {
		t.Fatal("blank optional fields should be stored as nil")
	}
	if !c.Availability {
		t.Fatal("availability lost")
	}
}
