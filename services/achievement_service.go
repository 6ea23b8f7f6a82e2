// services/achievement_service.go
package services

import (
	"fmt"
	"time"

	"github.com/wfunc/tycoon/models"
	"github.com/wfunc/tycoon/persistence"
)

// recentUnlockCount 历史查询里附带的最近解锁条数
const recentUnlockCount = 5

// achievementRule 目录条目加解锁谓词。谓词只看累计统计，
// 因此对同样的输入重复求值结果不变。
type achievementRule struct {
	models.AchievementDefinition
	Unlocks func(models.PlayerStats) bool
}

var achievementCatalog = []achievementRule{
	{
		AchievementDefinition: models.AchievementDefinition{
			ID: "first_game", Category: "progress", Rarity: "common",
			Title: "Open for Business", Description: "Finish your first game", Points: 10,
		},
		Unlocks: func(s models.PlayerStats) bool { return s.GamesPlayed >= 1 },
	},
	{
		AchievementDefinition: models.AchievementDefinition{
			ID: "first_win", Category: "victory", Rarity: "common",
			Title: "Market Leader", Description: "Win your first game", Points: 25,
			Badge: "bronze_trophy",
		},
		Unlocks: func(s models.PlayerStats) bool { return s.GamesWon >= 1 },
	},
	{
		AchievementDefinition: models.AchievementDefinition{
			ID: "ten_wins", Category: "victory", Rarity: "rare",
			Title: "Serial Winner", Description: "Win 10 games", Points: 100,
			Badge: "silver_trophy",
		},
		Unlocks: func(s models.PlayerStats) bool { return s.GamesWon >= 10 },
	},
	{
		AchievementDefinition: models.AchievementDefinition{
			ID: "fifty_wins", Category: "victory", Rarity: "epic",
			Title: "Monopolist", Description: "Win 50 games", Points: 500,
			Badge: "gold_trophy", TitleAward: "Monopolist",
		},
		Unlocks: func(s models.PlayerStats) bool { return s.GamesWon >= 50 },
	},
	{
		AchievementDefinition: models.AchievementDefinition{
			ID: "hundred_games", Category: "progress", Rarity: "rare",
			Title: "Veteran", Description: "Play 100 games", Points: 150,
			TitleAward: "Veteran",
		},
		Unlocks: func(s models.PlayerStats) bool { return s.GamesPlayed >= 100 },
	},
	{
		AchievementDefinition: models.AchievementDefinition{
			ID: "tycoon", Category: "wealth", Rarity: "epic",
			Title: "Tycoon", Description: "Reach 10,000,000 in assets", Points: 300,
			TitleAward: "Tycoon",
		},
		Unlocks: func(s models.PlayerStats) bool { return s.HighestAssets >= 10_000_000 },
	},
	{
		AchievementDefinition: models.AchievementDefinition{
			ID: "marathon", Category: "progress", Rarity: "rare",
			Title: "Marathon", Description: "Accumulate 10 hours of play time", Points: 75,
		},
		Unlocks: func(s models.PlayerStats) bool { return s.TotalPlayTimeSeconds >= 36_000 },
	},
	{
		AchievementDefinition: models.AchievementDefinition{
			ID: "podium_regular", Category: "victory", Rarity: "legendary",
			Title: "Podium Regular", Description: "Hold an average rank of 2 or better over 10+ games", Points: 400,
			Badge: "podium",
		},
		Unlocks: func(s models.PlayerStats) bool {
			return s.GamesPlayed >= 10 && s.AverageRank <= 2.0
		},
	},
}

type AchievementService struct {
	db persistence.Database
}

func NewAchievementService(db persistence.Database) *AchievementService {
	return &AchievementService{db: db}
}

// CheckAchievements 对照目录评估所有尚未解锁的成就，只返回本次
// 新满足的。对相同统计重复调用第二次返回空（幂等）。单条解锁
// 持久化失败时中断并把错误交给调用方整体重试。
func (a *AchievementService) CheckAchievements(userID int64, stats models.PlayerStats) ([]string, error) {
	unlocked, err := a.db.LoadUnlockedAchievements(userID)
	if err != nil {
		return nil, err
	}
	have := make(map[string]bool, len(unlocked))
	for _, u := range unlocked {
		have[u.AchievementID] = true
	}

	var newIDs []string
	for _, rule := range achievementCatalog {
		if have[rule.ID] || !rule.Unlocks(stats) {
			continue
		}
		err := a.db.SaveUnlockedAchievement(&models.UnlockedAchievement{
			UserID:        userID,
			AchievementID: rule.ID,
			Points:        rule.Points,
			UnlockedAt:    time.Now(),
		})
		if err != nil {
			return newIDs, fmt.Errorf("persist unlock %s: %w", rule.ID, err)
		}
		newIDs = append(newIDs, rule.ID)
	}
	return newIDs, nil
}

// GetPlayerAchievementStats 从解锁集合重算聚合积分/徽章/称号
func (a *AchievementService) GetPlayerAchievementStats(userID int64) (*models.PlayerAchievementStats, error) {
	unlocked, err := a.db.LoadUnlockedAchievements(userID)
	if err != nil {
		return nil, err
	}

	stats := &models.PlayerAchievementStats{UserID: userID}
	for _, u := range unlocked {
		stats.UnlockedCount++
		stats.TotalPoints += u.Points
		if rule, ok := findRule(u.AchievementID); ok {
			if rule.Badge != "" {
				stats.Badges = append(stats.Badges, rule.Badge)
			}
			if rule.TitleAward != "" {
				stats.Titles = append(stats.Titles, rule.TitleAward)
			}
		}
	}
	return stats, nil
}

// AchievementFilter 成就目录查询条件
type AchievementFilter struct {
	Category     string
	Rarity       string
	UnlockedOnly bool
}

// AchievementView 目录条目加某用户的解锁状态
type AchievementView struct {
	models.AchievementDefinition
	Unlocked   bool       `json:"unlocked"`
	UnlockedAt *time.Time `json:"unlocked_at,omitempty"`
}

// AchievementReport 查询结果：过滤后的目录和最近5条解锁历史
type AchievementReport struct {
	Achievements  []AchievementView            `json:"achievements"`
	RecentUnlocks []models.UnlockedAchievement `json:"recent_unlocks"`
}

// ListAchievements 按类别/稀有度/解锁状态过滤目录，总是附带
// 该用户最近的解锁历史。
func (a *AchievementService) ListAchievements(userID int64, filter AchievementFilter) (*AchievementReport, error) {
	unlocked, err := a.db.LoadUnlockedAchievements(userID)
	if err != nil {
		return nil, err
	}
	unlockedAt := make(map[string]time.Time, len(unlocked))
	for _, u := range unlocked {
		unlockedAt[u.AchievementID] = u.UnlockedAt
	}

	report := &AchievementReport{}
	for _, rule := range achievementCatalog {
		if filter.Category != "" && rule.Category != filter.Category {
			continue
		}
		if filter.Rarity != "" && rule.Rarity != filter.Rarity {
			continue
		}
		at, isUnlocked := unlockedAt[rule.ID]
		if filter.UnlockedOnly && !isUnlocked {
			continue
		}
		view := AchievementView{
			AchievementDefinition: rule.AchievementDefinition,
			Unlocked:              isUnlocked,
		}
		if isUnlocked {
			t := at
			view.UnlockedAt = &t
		}
		report.Achievements = append(report.Achievements, view)
	}

	// unlocked 已按解锁时间降序
	if len(unlocked) > recentUnlockCount {
		unlocked = unlocked[:recentUnlockCount]
	}
	report.RecentUnlocks = unlocked

	return report, nil
}

func findRule(id string) (achievementRule, bool) {
	for _, rule := range achievementCatalog {
		if rule.ID == id {
			return rule, true
		}
	}
	return achievementRule{}, false
}
