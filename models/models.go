// models/models.go
package models

import (
	"time"

	"github.com/wfunc/tycoon/game"
)

// PlayerStats 每用户累计统计，只在终局事件时更新
type PlayerStats struct {
	UserID               int64   `json:"user_id"`
	GamesPlayed          int     `json:"games_played"`
	GamesWon             int     `json:"games_won"`
	AverageRank          float64 `json:"average_rank"`
	TotalPlayTimeSeconds int64   `json:"total_play_time_seconds"`
	HighestAssets        int64   `json:"highest_assets"`
}

// ReplayPlayer 回放中的一个参与者
type ReplayPlayer struct {
	CompanyID   string `json:"company_id"`
	UserID      int64  `json:"user_id"`
	Name        string `json:"name"`
	IsPlayer    bool   `json:"is_player"`
	Rank        int    `json:"rank"`
	FinalAssets int64  `json:"final_assets"`
}

// 回放完成状态
const (
	ReplayStatusCompleted = "completed"
	ReplayStatusAbandoned = "abandoned"
)

// Replay 一局游戏的有序行动/状态日志，写入后不可变
type Replay struct {
	ID              uint               `json:"id"`
	RoomID          string             `json:"room_id"`
	RoomName        string             `json:"room_name"`
	Mode            string             `json:"mode"`
	Status          string             `json:"status"`
	Winner          string             `json:"winner"`
	Players         []ReplayPlayer     `json:"players"`
	Log             []game.ReplayEntry `json:"log"`
	DurationSeconds int                `json:"duration_seconds"`
	CreatedAt       time.Time          `json:"created_at"`
}

// ReplayQuery 回放检索条件
type ReplayQuery struct {
	RoomName           string    `json:"room_name"`
	PlayerName         string    `json:"player_name"`
	Mode               string    `json:"mode"`
	MinDurationSeconds int       `json:"min_duration_seconds"`
	MaxDurationSeconds int       `json:"max_duration_seconds"`
	From               time.Time `json:"from"`
	To                 time.Time `json:"to"`
	Status             string    `json:"status"`   // all | completed | abandoned
	SortKey            string    `json:"sort_key"` // recent | duration | name
	Limit              int       `json:"limit"`
	Offset             int       `json:"offset"`
}

// PageMeta 分页元数据。HasMore 当且仅当返回页恰好填满 limit。
type PageMeta struct {
	Offset  int  `json:"offset"`
	Limit   int  `json:"limit"`
	HasMore bool `json:"has_more"`
}

// AchievementDefinition 成就目录条目（数据部分，判定谓词在 services）
type AchievementDefinition struct {
	ID          string `json:"id"`
	Category    string `json:"category"`
	Rarity      string `json:"rarity"` // common | rare | epic | legendary
	Title       string `json:"title"`
	Description string `json:"description"`
	Points      int    `json:"points"`
	Badge       string `json:"badge,omitempty"`
	TitleAward  string `json:"title_award,omitempty"`
}

// UnlockedAchievement 追加式解锁记录，(user, achievement) 唯一
type UnlockedAchievement struct {
	UserID        int64     `json:"user_id"`
	AchievementID string    `json:"achievement_id"`
	Points        int       `json:"points"`
	UnlockedAt    time.Time `json:"unlocked_at"`
}

// PlayerAchievementStats 从解锁集合重算出的聚合
type PlayerAchievementStats struct {
	UserID        int64    `json:"user_id"`
	TotalPoints   int      `json:"total_points"`
	UnlockedCount int      `json:"unlocked_count"`
	Badges        []string `json:"badges"`
	Titles        []string `json:"titles"`
}

// LeaderboardEntry 排行榜聚合行：统计与成就积分的联接
type LeaderboardEntry struct {
	UserID               int64   `json:"user_id"`
	GamesPlayed          int     `json:"games_played"`
	GamesWon             int     `json:"games_won"`
	AverageRank          float64 `json:"average_rank"`
	TotalPlayTimeSeconds int64   `json:"total_play_time_seconds"`
	HighestAssets        int64   `json:"highest_assets"`
	AchievementPoints    int     `json:"achievement_points"`
}

// 排行榜排序键的固定枚举
const (
	SortByWins   = "wins"
	SortByGames  = "games"
	SortByAssets = "assets"
	SortByPoints = "points"
	SortByRank   = "rank"
)
