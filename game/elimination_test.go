package game

import (
	"testing"
	"time"
)

func TestRunEliminationReportsEachCompanyOnce(t *testing.T) {
	a := testCompany("a", 0, true)
	b := testCompany("b", 1_000_000, false)
	gs := NewGameState("room1", []*Company{a, b}, time.Now())

	first := runElimination(gs)
	if len(first) != 1 || first[0] != "a" {
		t.Fatalf("First pass = %v, want [a]", first)
	}
	// Already bankrupt companies are not reported again.
	if second := runElimination(gs); len(second) != 0 {
		t.Errorf("Second pass = %v, want empty", second)
	}
}

func TestEvaluateOutcomeGracePeriodGating(t *testing.T) {
	a := testCompany("a", 1_000_000, true)
	b := testCompany("b", 0, false)
	b.Status = StatusBankrupt
	gs := NewGameState("room1", []*Company{a, b}, time.Now())

	evaluateOutcome(gs, false)
	if !gs.IsActive || gs.Winner != "" {
		t.Fatal("Survival win must not be declared inside the grace period")
	}

	evaluateOutcome(gs, true)
	if gs.IsActive || gs.Winner != "a" {
		t.Fatalf("After grace period: active=%v winner=%q, want frozen with winner a",
			gs.IsActive, gs.Winner)
	}
}

func TestEvaluateOutcomeAllBankrupt(t *testing.T) {
	a := testCompany("a", 0, true)
	a.Status = StatusBankrupt
	b := testCompany("b", 0, false)
	b.Status = StatusBankrupt
	gs := NewGameState("room1", []*Company{a, b}, time.Now())

	// Winnerless end does not wait for the grace period.
	evaluateOutcome(gs, false)
	if gs.IsActive {
		t.Error("Game with no active companies should end")
	}
	if gs.Winner != "" {
		t.Errorf("Expected no winner, got %q", gs.Winner)
	}
}
