// services/stats_service.go
package services

import (
	"errors"
	"math"
	"sort"

	"github.com/wfunc/tycoon/game"
	"github.com/wfunc/tycoon/models"
	"github.com/wfunc/tycoon/persistence"
)

type StatsService struct {
	db persistence.Database
}

func NewStatsService(db persistence.Database) *StatsService {
	return &StatsService{db: db}
}

// ApplyGameResult 终局时更新每个人类参与者的累计统计。
// 调用方保证每局只在 isActive true->false 边沿调用一次。
func (s *StatsService) ApplyGameResult(result game.Result) error {
	for _, p := range result.Participants {
		if !p.IsPlayer || p.UserID == 0 {
			continue
		}

		stats, err := s.db.LoadPlayerStats(p.UserID)
		if errors.Is(err, persistence.ErrRecordNotFound) {
			stats = &models.PlayerStats{UserID: p.UserID}
		} else if err != nil {
			return err
		}

		oldCount := stats.GamesPlayed
		stats.GamesPlayed++
		if p.Won {
			stats.GamesWon++
		}
		// 加权滑动平均: (oldAvg*oldCount + newRank) / newCount
		stats.AverageRank = (stats.AverageRank*float64(oldCount) + float64(p.Rank)) / float64(stats.GamesPlayed)
		stats.TotalPlayTimeSeconds += int64(result.Duration.Seconds())
		if p.FinalAssets > stats.HighestAssets {
			stats.HighestAssets = p.FinalAssets
		}

		if err := s.db.UpsertPlayerStats(stats); err != nil {
			return err
		}
	}
	return nil
}

// RoundRank 名次聚合取整约定：四舍五入，.5 进位
func RoundRank(avg float64) int {
	return int(math.Floor(avg + 0.5))
}

// GetPlayerStats 单个用户的统计
func (s *StatsService) GetPlayerStats(userID int64) (*models.PlayerStats, error) {
	return s.db.LoadPlayerStats(userID)
}

// Leaderboard 跨房间只读聚合：统计联接成就积分，按给定键排序。
// 不取任何房间写锁，读到的是最终一致视图。
func (s *StatsService) Leaderboard(sortKey string, limit int) ([]models.LeaderboardEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	stats, err := s.db.TopPlayerStats(limit)
	if err != nil {
		return nil, err
	}

	entries := make([]models.LeaderboardEntry, 0, len(stats))
	for _, st := range stats {
		unlocked, err := s.db.LoadUnlockedAchievements(st.UserID)
		if err != nil {
			return nil, err
		}
		points := 0
		for _, u := range unlocked {
			points += u.Points
		}
		entries = append(entries, models.LeaderboardEntry{
			UserID:               st.UserID,
			GamesPlayed:          st.GamesPlayed,
			GamesWon:             st.GamesWon,
			AverageRank:          st.AverageRank,
			TotalPlayTimeSeconds: st.TotalPlayTimeSeconds,
			HighestAssets:        st.HighestAssets,
			AchievementPoints:    points,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		switch sortKey {
		case models.SortByGames:
			return a.GamesPlayed > b.GamesPlayed
		case models.SortByAssets:
			return a.HighestAssets > b.HighestAssets
		case models.SortByPoints:
			return a.AchievementPoints > b.AchievementPoints
		case models.SortByRank:
			// 平均名次越小越好，没打过的排最后
			if a.GamesPlayed == 0 || b.GamesPlayed == 0 {
				return a.GamesPlayed > b.GamesPlayed
			}
			return a.AverageRank < b.AverageRank
		default: // wins
			return a.GamesWon > b.GamesWon
		}
	})

	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}
