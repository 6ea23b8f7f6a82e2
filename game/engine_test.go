package game

import (
	"errors"
	"math/rand"
	"os"
	"testing"
	"time"

	"github.com/wfunc/tycoon/logger"
)

func TestMain(m *testing.M) {
	logger.InitNop()
	os.Exit(m.Run())
}

func testConfig() Config {
	cfg := DefaultConfig()
	// Keep survival wins out of reach unless a test moves the clock.
	cfg.GracePeriod = time.Hour
	return cfg
}

func testCompany(id string, assets int64, isPlayer bool) *Company {
	return &Company{
		ID:       id,
		Name:     id,
		Assets:   assets,
		Status:   StatusActive,
		IsPlayer: isPlayer,
		Skill:    50,
	}
}

// recordingSink is a test double for the Recorder interface.
type recordingSink struct {
	entries []ReplayEntry
}

func (r *recordingSink) Append(roomID string, entry ReplayEntry) {
	r.entries = append(r.entries, entry)
}

func (r *recordingSink) actionCountBy(actorID string) int {
	count := 0
	for _, e := range r.entries {
		if e.Kind == "action" && e.Action != nil && e.Action.Action.ActorID == actorID {
			count++
		}
	}
	return count
}

func TestEliminationIsImmediateDuringGracePeriod(t *testing.T) {
	companies := []*Company{
		testCompany("a", 0, true),
		testCompany("b", 1_000_000, true),
	}
	e := NewEngine(testConfig(), "room1", companies, nil, rand.New(rand.NewSource(1)))

	snap := e.Tick(time.Now())
	if snap == nil {
		t.Fatal("Tick should not freeze the game")
	}

	if got := e.State().Company("a").Status; got != StatusBankrupt {
		t.Errorf("Expected company a to be bankrupt, got %s", got)
	}
	// Grace period gates victory, not elimination: the game goes on.
	if !snap.IsActive {
		t.Error("Game should still be active before the grace period elapses")
	}
	if snap.Winner != "" {
		t.Errorf("Expected no winner before grace period, got %s", snap.Winner)
	}
}

func TestBankruptcyIsTerminal(t *testing.T) {
	c := testCompany("a", 0, false)

	if !c.markBankrupt() {
		t.Fatal("First bankruptcy transition should succeed")
	}
	if c.markBankrupt() {
		t.Error("Bankrupt is a terminal state, second transition should be rejected")
	}
}

func TestBankruptActorCannotAct(t *testing.T) {
	companies := []*Company{
		testCompany("a", 0, true),
		testCompany("b", 1_000_000, true),
	}
	e := NewEngine(testConfig(), "room1", companies, nil, rand.New(rand.NewSource(1)))
	e.Tick(time.Now())

	_, err := e.apply(Action{
		Kind:    KindRecruitEmployee,
		ActorID: "a",
		Recruit: &RecruitPayload{Count: 1, Cost: RecruitCostPerEmployee},
	})
	if !errors.Is(err, ErrActorInactive) {
		t.Errorf("Expected ErrActorInactive, got %v", err)
	}
}

func TestNoWinnerBeforeGracePeriod(t *testing.T) {
	companies := []*Company{
		testCompany("a", 1_000_000, true),
		testCompany("b", 0, false),
	}
	e := NewEngine(testConfig(), "room1", companies, nil, rand.New(rand.NewSource(1)))

	snap := e.Tick(time.Now())
	if snap == nil || !snap.IsActive {
		t.Fatal("Last standing company must not win inside the grace period")
	}

	// Move the game start beyond the grace period and re-evaluate.
	e.State().GameStartTime = time.Now().Add(-2 * time.Hour)
	snap = e.Tick(time.Now())
	if snap.IsActive {
		t.Fatal("Game should end once the grace period has elapsed")
	}
	if snap.Winner != "a" {
		t.Errorf("Expected winner a, got %q", snap.Winner)
	}
}

func TestAllBankruptEndsWithoutWinner(t *testing.T) {
	companies := []*Company{
		testCompany("a", 0, true),
		testCompany("b", -500, false),
	}
	e := NewEngine(testConfig(), "room1", companies, nil, rand.New(rand.NewSource(1)))

	snap := e.Tick(time.Now())
	if snap.IsActive {
		t.Fatal("Game with no active companies should end")
	}
	if snap.Winner != "" {
		t.Errorf("Expected winnerless end, got winner %q", snap.Winner)
	}
}

func TestAttackDeductsCostAndOnlySuccessHitsTarget(t *testing.T) {
	const attackCost = int64(100_000)

	successSeen, failureSeen := false, false
	for seed := int64(0); seed < 200 && !(successSeen && failureSeen); seed++ {
		companies := []*Company{
			testCompany("attacker", 1_000_000, true),
			testCompany("victim", 1_000_000, true),
		}
		e := NewEngine(testConfig(), "room1", companies, nil, rand.New(rand.NewSource(seed)))

		resolved, err := e.apply(Action{
			Kind:    KindAttack,
			ActorID: "attacker",
			Attack:  &AttackPayload{TargetID: "victim", Cost: attackCost},
		})
		if err != nil {
			t.Fatalf("Attack should be a legal action: %v", err)
		}

		attacker := e.State().Company("attacker")
		victim := e.State().Company("victim")

		// The attacker always pays, win or lose.
		if attacker.Assets != 1_000_000-attackCost {
			t.Fatalf("Attacker assets = %d, want %d", attacker.Assets, 1_000_000-attackCost)
		}

		if resolved.Success {
			successSeen = true
			if victim.Assets != 1_000_000-2*attackCost {
				t.Fatalf("Successful attack: victim assets = %d, want %d", victim.Assets, 1_000_000-2*attackCost)
			}
		} else {
			failureSeen = true
			if victim.Assets != 1_000_000 {
				t.Fatalf("Failed attack must not touch the target, victim assets = %d", victim.Assets)
			}
			if victim.Status != StatusActive {
				t.Fatal("Failed attack must leave the target active")
			}
		}
	}

	if !successSeen || !failureSeen {
		t.Fatalf("Expected to observe both outcomes, success=%v failure=%v", successSeen, failureSeen)
	}
}

func TestSubmitRejectsWhenQueueFull(t *testing.T) {
	companies := []*Company{testCompany("a", 1_000_000, true)}
	e := NewEngine(testConfig(), "room1", companies, nil, rand.New(rand.NewSource(1)))

	action := Action{Kind: KindMove, ActorID: "a", Move: &MovePayload{X: 1, Y: 1}}
	for i := 0; i < actionQueueSize; i++ {
		if err := e.Submit(action); err != nil {
			t.Fatalf("Submit %d failed early: %v", i, err)
		}
	}
	if err := e.Submit(action); !errors.Is(err, ErrQueueFull) {
		t.Errorf("Expected ErrQueueFull, got %v", err)
	}
}

func TestForceCompleteFreezesEngine(t *testing.T) {
	rec := &recordingSink{}
	companies := []*Company{
		testCompany("a", 1_000_000, true),
		testCompany("b", 1_000_000, false),
	}
	e := NewEngine(testConfig(), "room1", companies, rec, rand.New(rand.NewSource(1)))

	e.ForceComplete("killed by host")

	if !e.Forced() {
		t.Error("Forced should report true after ForceComplete")
	}
	// The request only flags the engine; the game state stays untouched
	// until the tick loop picks it up.
	if snap := e.Snapshot(); !snap.IsActive {
		t.Fatal("ForceComplete must not mutate game state outside the tick loop")
	}

	if e.Tick(time.Now()) != nil {
		t.Error("The tick after a completion request should freeze and return nil")
	}
	if snap := e.Snapshot(); snap.IsActive {
		t.Error("Snapshot after the freezing tick should be inactive")
	}
	if snap := e.Snapshot(); snap.Winner != "" {
		t.Error("Forced completion must not declare a winner")
	}

	found := false
	for _, entry := range rec.entries {
		if entry.Kind == "event" && entry.Event == "force_completed: killed by host" {
			found = true
		}
	}
	if !found {
		t.Error("Freezing tick should record the force_completed event")
	}
}

func TestForceCompleteSafeAlongsideTickLoop(t *testing.T) {
	companies := []*Company{
		testCompany("a", 1_000_000, true),
		testCompany("b", 1_000_000, false),
	}
	e := NewEngine(testConfig(), "room1", companies, nil, rand.New(rand.NewSource(1)))

	// Tick in one goroutine, kill from another: the loop must stay the
	// only writer and still observe the request.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for e.Tick(time.Now()) != nil {
		}
	}()

	e.ForceComplete("killed by host")

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Tick loop never observed the completion request")
	}

	if snap := e.Snapshot(); snap.IsActive {
		t.Error("Engine should be frozen once the loop drains the request")
	}
	if !e.Forced() {
		t.Error("Forced should report true after the freeze")
	}
}

func TestSnapshotCommittedEveryTick(t *testing.T) {
	companies := []*Company{
		testCompany("a", 1_000_000, true),
		testCompany("b", 1_000_000, false),
	}
	e := NewEngine(testConfig(), "room1", companies, nil, rand.New(rand.NewSource(1)))

	if snap := e.Snapshot(); snap == nil || snap.Turn != 0 {
		t.Fatal("Engine should commit an initial snapshot at turn 0")
	}

	e.Tick(time.Now())
	if snap := e.Snapshot(); snap.Turn != 1 {
		t.Errorf("Snapshot turn = %d after one tick, want 1", snap.Turn)
	}
}

func TestActionsApplyInSubmissionOrder(t *testing.T) {
	rec := &recordingSink{}
	companies := []*Company{
		testCompany("a", 1_000_000, true),
		testCompany("b", 1_000_000, true),
	}
	e := NewEngine(testConfig(), "room1", companies, rec, rand.New(rand.NewSource(1)))

	moves := []MovePayload{{X: 1, Y: 1}, {X: 2, Y: 2}, {X: 3, Y: 3}}
	for i := range moves {
		if err := e.Submit(Action{Kind: KindMove, ActorID: "a", Move: &moves[i]}); err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
	}
	e.Tick(time.Now())

	var applied []int
	for _, entry := range rec.entries {
		if entry.Kind == "action" && entry.Action.Action.Kind == KindMove {
			applied = append(applied, entry.Action.Action.Move.X)
		}
	}
	if len(applied) != 3 {
		t.Fatalf("Expected 3 applied moves, got %d", len(applied))
	}
	for i, x := range applied {
		if x != i+1 {
			t.Fatalf("Actions applied out of order: %v", applied)
		}
	}
}
