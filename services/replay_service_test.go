package services

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/wfunc/tycoon/game"
	"github.com/wfunc/tycoon/models"
	"github.com/wfunc/tycoon/persistence"
)

func TestSaveFinishedDrainsBufferAndPersists(t *testing.T) {
	db := newFakeDB()
	svc := NewReplayService(db)

	svc.Append("room1", game.ReplayEntry{Turn: 1, Kind: "action", Timestamp: time.Now(),
		Action: &game.ResolvedAction{Action: game.Action{Kind: game.KindMove, ActorID: "a"}}})
	svc.Append("room1", game.ReplayEntry{Turn: 2, Kind: "event", Event: "bankrupt: b", Timestamp: time.Now()})

	replay, err := svc.SaveFinished(testResult("room1"))
	if err != nil {
		t.Fatalf("SaveFinished failed: %v", err)
	}

	if replay.Status != models.ReplayStatusCompleted {
		t.Errorf("Status = %s, want completed", replay.Status)
	}
	if len(replay.Log) != 2 {
		t.Errorf("Log length = %d, want 2", len(replay.Log))
	}
	if len(replay.Players) != 3 {
		t.Errorf("Player count = %d, want 3", len(replay.Players))
	}

	// The buffer is consumed by the save.
	if leftovers := svc.Drain("room1"); len(leftovers) != 0 {
		t.Errorf("Buffer still holds %d entries after save", len(leftovers))
	}
}

func TestSaveFinishedForcedGameIsAbandoned(t *testing.T) {
	db := newFakeDB()
	svc := NewReplayService(db)

	result := testResult("room1")
	result.Completed = false
	result.Winner = ""

	replay, err := svc.SaveFinished(result)
	if err != nil {
		t.Fatal(err)
	}
	if replay.Status != models.ReplayStatusAbandoned {
		t.Errorf("Status = %s, want abandoned", replay.Status)
	}
}

func seedReplays(t *testing.T, db *fakeDB, n int) {
	t.Helper()
	base := time.Now().Add(-time.Hour)
	for i := 0; i < n; i++ {
		err := db.SaveReplay(&models.Replay{
			RoomID:          fmt.Sprintf("room%d", i),
			RoomName:        fmt.Sprintf("Room %02d", i),
			Mode:            "standard",
			Status:          models.ReplayStatusCompleted,
			DurationSeconds: 60 + i,
			CreatedAt:       base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatal(err)
		}
	}
}

func TestSearchPagination(t *testing.T) {
	db := newFakeDB()
	svc := NewReplayService(db)
	seedReplays(t, db, 25)

	page1, meta1, err := svc.Search(models.ReplayQuery{Limit: 20})
	if err != nil {
		t.Fatal(err)
	}
	if len(page1) != 20 {
		t.Fatalf("Page 1 size = %d, want 20", len(page1))
	}
	if !meta1.HasMore {
		t.Error("Page 1 is full, HasMore should be true")
	}

	page2, meta2, err := svc.Search(models.ReplayQuery{Limit: 20, Offset: 20})
	if err != nil {
		t.Fatal(err)
	}
	if len(page2) != 5 {
		t.Fatalf("Page 2 size = %d, want 5", len(page2))
	}
	if meta2.HasMore {
		t.Error("Short page must report HasMore=false")
	}
}

func TestSearchDefaultsAndLimitClamp(t *testing.T) {
	db := newFakeDB()
	svc := NewReplayService(db)
	seedReplays(t, db, 5)

	_, meta, err := svc.Search(models.ReplayQuery{})
	if err != nil {
		t.Fatal(err)
	}
	if meta.Limit != DefaultSearchLimit {
		t.Errorf("Default limit = %d, want %d", meta.Limit, DefaultSearchLimit)
	}

	_, meta, err = svc.Search(models.ReplayQuery{Limit: 500})
	if err != nil {
		t.Fatal(err)
	}
	if meta.Limit != MaxSearchLimit {
		t.Errorf("Clamped limit = %d, want %d", meta.Limit, MaxSearchLimit)
	}
}

func TestSearchSortsByRecentByDefault(t *testing.T) {
	db := newFakeDB()
	svc := NewReplayService(db)
	seedReplays(t, db, 3)

	page, _, err := svc.Search(models.ReplayQuery{})
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 3 {
		t.Fatalf("Got %d replays, want 3", len(page))
	}
	if !page[0].CreatedAt.After(page[2].CreatedAt) {
		t.Error("Default sort should be most recent first")
	}
}

func TestAnalyticsDerivedFromLog(t *testing.T) {
	db := newFakeDB()
	svc := NewReplayService(db)

	svc.Append("room1", game.ReplayEntry{Turn: 10, Kind: "action",
		Action: &game.ResolvedAction{Action: game.Action{Kind: game.KindAttack, ActorID: "a"}, Success: true}})
	svc.Append("room1", game.ReplayEntry{Turn: 20, Kind: "action",
		Action: &game.ResolvedAction{Action: game.Action{Kind: game.KindAttack, ActorID: "a"}, Success: false}})
	svc.Append("room1", game.ReplayEntry{Turn: 30, Kind: "event", Event: "bankrupt: b"})
	svc.Append("room1", game.ReplayEntry{Turn: 40, Kind: "action",
		Action: &game.ResolvedAction{Action: game.Action{Kind: game.KindMove, ActorID: "a"}, Success: true}})

	replay, err := svc.SaveFinished(testResult("room1"))
	if err != nil {
		t.Fatal(err)
	}

	analytics, err := svc.Analytics(replay.ID)
	if err != nil {
		t.Fatalf("Analytics failed: %v", err)
	}

	if analytics.TotalTurns != 40 {
		t.Errorf("TotalTurns = %d, want 40", analytics.TotalTurns)
	}
	if analytics.ActionCounts["attack"] != 2 {
		t.Errorf("Attack count = %d, want 2", analytics.ActionCounts["attack"])
	}
	if analytics.SuccessCounts["attack"] != 1 {
		t.Errorf("Attack successes = %d, want 1", analytics.SuccessCounts["attack"])
	}
	if analytics.SurvivalTurns["b"] != 30 {
		t.Errorf("Survival of b = %d, want 30 (bankrupt turn)", analytics.SurvivalTurns["b"])
	}
	if analytics.SurvivalTurns["a"] != 40 {
		t.Errorf("Survival of a = %d, want 40 (full game)", analytics.SurvivalTurns["a"])
	}
}

func TestAnalyticsMissingReplay(t *testing.T) {
	db := newFakeDB()
	svc := NewReplayService(db)

	if _, err := svc.Analytics(42); !errors.Is(err, persistence.ErrRecordNotFound) {
		t.Errorf("Missing replay: got %v, want ErrRecordNotFound", err)
	}
}
