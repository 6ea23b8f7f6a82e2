// persistence/interface.go
package persistence

import (
	"fmt"

	"github.com/wfunc/tycoon/game"
	"github.com/wfunc/tycoon/models"
)

// Database 数据库接口。所有保存操作都是幂等的 upsert
// （按各自的唯一键），重复保存不会产生重复记录。
type Database interface {
	SaveGameState(roomID string, snap *game.Snapshot) error
	LoadGameState(roomID string) (*game.Snapshot, error)

	SaveReplay(replay *models.Replay) error
	LoadReplay(id uint) (*models.Replay, error)
	SearchReplays(q models.ReplayQuery) ([]models.Replay, error)

	UpsertPlayerStats(stats *models.PlayerStats) error
	LoadPlayerStats(userID int64) (*models.PlayerStats, error)
	TopPlayerStats(limit int) ([]models.PlayerStats, error)

	SaveUnlockedAchievement(u *models.UnlockedAchievement) error
	LoadUnlockedAchievements(userID int64) ([]models.UnlockedAchievement, error)

	Close() error
}

// 错误定义
var (
	ErrRecordNotFound = fmt.Errorf("record not found")
)
