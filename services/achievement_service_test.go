package services

import (
	"testing"

	"github.com/wfunc/tycoon/models"
)

func TestCheckAchievementsUnlocksMatchingRules(t *testing.T) {
	db := newFakeDB()
	svc := NewAchievementService(db)

	stats := models.PlayerStats{UserID: 1, GamesPlayed: 1, GamesWon: 1}
	newIDs, err := svc.CheckAchievements(1, stats)
	if err != nil {
		t.Fatalf("CheckAchievements failed: %v", err)
	}

	want := map[string]bool{"first_game": true, "first_win": true}
	if len(newIDs) != len(want) {
		t.Fatalf("Unlocked %v, want exactly first_game and first_win", newIDs)
	}
	for _, id := range newIDs {
		if !want[id] {
			t.Errorf("Unexpected unlock %s", id)
		}
	}
}

func TestCheckAchievementsIsIdempotent(t *testing.T) {
	db := newFakeDB()
	svc := NewAchievementService(db)

	stats := models.PlayerStats{UserID: 1, GamesPlayed: 1, GamesWon: 1}
	if _, err := svc.CheckAchievements(1, stats); err != nil {
		t.Fatal(err)
	}

	again, err := svc.CheckAchievements(1, stats)
	if err != nil {
		t.Fatal(err)
	}
	if len(again) != 0 {
		t.Errorf("Second check with identical stats unlocked %v, want nothing", again)
	}
}

func TestCheckAchievementsProgressive(t *testing.T) {
	db := newFakeDB()
	svc := NewAchievementService(db)

	if _, err := svc.CheckAchievements(1, models.PlayerStats{UserID: 1, GamesPlayed: 1}); err != nil {
		t.Fatal(err)
	}

	// Growing stats unlock only the newly satisfied rules.
	newIDs, err := svc.CheckAchievements(1, models.PlayerStats{UserID: 1, GamesPlayed: 5, GamesWon: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(newIDs) != 1 || newIDs[0] != "first_win" {
		t.Errorf("Unlocked %v, want [first_win]", newIDs)
	}
}

func TestGetPlayerAchievementStats(t *testing.T) {
	db := newFakeDB()
	svc := NewAchievementService(db)

	stats := models.PlayerStats{UserID: 1, GamesPlayed: 100, GamesWon: 50, HighestAssets: 20_000_000}
	if _, err := svc.CheckAchievements(1, stats); err != nil {
		t.Fatal(err)
	}

	agg, err := svc.GetPlayerAchievementStats(1)
	if err != nil {
		t.Fatal(err)
	}
	if agg.UnlockedCount == 0 {
		t.Fatal("Expected unlocked achievements")
	}

	wantPoints := 0
	unlocked, _ := db.LoadUnlockedAchievements(1)
	for _, u := range unlocked {
		wantPoints += u.Points
	}
	if agg.TotalPoints != wantPoints {
		t.Errorf("TotalPoints = %d, want %d", agg.TotalPoints, wantPoints)
	}

	// fifty_wins awards a title; make sure titles are aggregated.
	foundTitle := false
	for _, title := range agg.Titles {
		if title == "Monopolist" {
			foundTitle = true
		}
	}
	if !foundTitle {
		t.Errorf("Titles = %v, want Monopolist included", agg.Titles)
	}
}

func TestListAchievementsFilters(t *testing.T) {
	db := newFakeDB()
	svc := NewAchievementService(db)

	if _, err := svc.CheckAchievements(1, models.PlayerStats{UserID: 1, GamesPlayed: 1}); err != nil {
		t.Fatal(err)
	}

	report, err := svc.ListAchievements(1, AchievementFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Achievements) != len(achievementCatalog) {
		t.Errorf("Unfiltered catalog size = %d, want %d", len(report.Achievements), len(achievementCatalog))
	}

	unlockedOnly, err := svc.ListAchievements(1, AchievementFilter{UnlockedOnly: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(unlockedOnly.Achievements) != 1 || unlockedOnly.Achievements[0].ID != "first_game" {
		t.Errorf("UnlockedOnly returned %+v, want just first_game", unlockedOnly.Achievements)
	}
	if unlockedOnly.Achievements[0].UnlockedAt == nil {
		t.Error("Unlocked entries should carry an unlock timestamp")
	}

	victories, err := svc.ListAchievements(1, AchievementFilter{Category: "victory"})
	if err != nil {
		t.Fatal(err)
	}
	for _, a := range victories.Achievements {
		if a.Category != "victory" {
			t.Errorf("Category filter leaked %s (%s)", a.ID, a.Category)
		}
	}
}

func TestListAchievementsRecentUnlocksCapped(t *testing.T) {
	db := newFakeDB()
	svc := NewAchievementService(db)

	// Max out the stats so every catalog rule fires at once.
	stats := models.PlayerStats{
		UserID: 1, GamesPlayed: 200, GamesWon: 60,
		AverageRank: 1.2, HighestAssets: 50_000_000, TotalPlayTimeSeconds: 100_000,
	}
	if _, err := svc.CheckAchievements(1, stats); err != nil {
		t.Fatal(err)
	}

	report, err := svc.ListAchievements(1, AchievementFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(report.RecentUnlocks) > recentUnlockCount {
		t.Errorf("Recent unlocks = %d, want at most %d", len(report.RecentUnlocks), recentUnlockCount)
	}
}
