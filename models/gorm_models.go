// models/gorm_models.go
package models

import (
	"github.com/wfunc/tycoon/game"
	"gorm.io/gorm"
)

// GormGameState 房间权威状态快照，按 room_id 幂等覆盖
type GormGameState struct {
	gorm.Model
	RoomID   string         `gorm:"uniqueIndex;not null"`
	Turn     int64          `gorm:"default:0"`
	IsActive bool           `gorm:"default:true"`
	Winner   string         `gorm:"default:''"`
	State    *game.Snapshot `gorm:"serializer:json;type:jsonb"`
}

// GormReplay 回放记录。PlayerNames 是冗余文本列，供按玩家名检索。
type GormReplay struct {
	gorm.Model
	RoomID          string             `gorm:"index;not null"`
	RoomName        string             `gorm:"index;not null"`
	Mode            string             `gorm:"index;not null"`
	Status          string             `gorm:"index;not null"`
	Winner          string             `gorm:"default:''"`
	Players         []ReplayPlayer     `gorm:"serializer:json;type:jsonb"`
	PlayerNames     string             `gorm:"index"`
	Log             []game.ReplayEntry `gorm:"serializer:json;type:jsonb"`
	DurationSeconds int                `gorm:"index;default:0"`
}

// GormPlayerStats 每用户聚合统计
type GormPlayerStats struct {
	gorm.Model
	UserID               int64   `gorm:"uniqueIndex;not null"`
	GamesPlayed          int     `gorm:"default:0"`
	GamesWon             int     `gorm:"default:0"`
	AverageRank          float64 `gorm:"default:0"`
	TotalPlayTimeSeconds int64   `gorm:"default:0"`
	HighestAssets        int64   `gorm:"default:0"`
}

// GormUnlockedAchievement 解锁记录，(user_id, achievement_id) 唯一
type GormUnlockedAchievement struct {
	gorm.Model
	UserID        int64  `gorm:"not null;uniqueIndex:idx_user_achievement"`
	AchievementID string `gorm:"not null;uniqueIndex:idx_user_achievement"`
	Points        int    `gorm:"default:0"`
}
