package game

import (
	"testing"
	"time"
)

func TestComputeResultRanking(t *testing.T) {
	winner := testCompany("w", 500_000, true)
	richer := testCompany("rich", 2_000_000, false)
	poorer := testCompany("poor", 100_000, true)
	broke := testCompany("broke", 0, false)
	broke.Status = StatusBankrupt

	gs := NewGameState("room1", []*Company{poorer, broke, winner, richer}, time.Now())
	gs.Winner = "w"
	gs.IsActive = false

	result := ComputeResult(gs, "Test Room", "standard", time.Now().Add(-time.Minute), true)

	wantOrder := []string{"w", "rich", "poor", "broke"}
	if len(result.Participants) != len(wantOrder) {
		t.Fatalf("Participant count = %d, want %d", len(result.Participants), len(wantOrder))
	}
	for i, want := range wantOrder {
		p := result.Participants[i]
		if p.CompanyID != want {
			t.Errorf("Rank %d = %s, want %s", i+1, p.CompanyID, want)
		}
		if p.Rank != i+1 {
			t.Errorf("Participant %s has rank %d, want %d", p.CompanyID, p.Rank, i+1)
		}
		if p.Won != (want == "w") {
			t.Errorf("Participant %s Won = %v", p.CompanyID, p.Won)
		}
	}

	if !result.Completed {
		t.Error("Completed flag should pass through")
	}
	if result.Duration <= 0 {
		t.Error("Duration should be positive")
	}
}

func TestComputeResultWinnerless(t *testing.T) {
	a := testCompany("a", -100, true)
	a.Status = StatusBankrupt
	b := testCompany("b", 0, false)
	b.Status = StatusBankrupt

	gs := NewGameState("room1", []*Company{a, b}, time.Now())
	gs.IsActive = false

	result := ComputeResult(gs, "Test Room", "standard", time.Now().Add(-time.Minute), true)

	if result.Winner != "" {
		t.Errorf("Expected no winner, got %q", result.Winner)
	}
	for _, p := range result.Participants {
		if p.Won {
			t.Errorf("Participant %s marked as winner in a winnerless game", p.CompanyID)
		}
	}
	// Bankrupt companies are still ranked, by remaining assets.
	if result.Participants[0].CompanyID != "b" {
		t.Errorf("Expected b (assets 0) ranked above a (assets -100), got %s first",
			result.Participants[0].CompanyID)
	}
}
