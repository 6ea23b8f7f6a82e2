// services/lifecycle.go
package services

import (
	"time"

	"github.com/wfunc/tycoon/game"
	"github.com/wfunc/tycoon/logger"
	"github.com/wfunc/tycoon/room"
)

const (
	terminalSaveAttempts = 5
	terminalSaveBackoff  = 500 * time.Millisecond
)

// GameLifecycle 游戏与持久化之间的桥，实现 state.CompletionBridge。
// tick 路径只做内存追加；真正的落库都发生在终局或自动保存定时器，
// 绝不阻塞房间循环。
type GameLifecycle struct {
	stats        *StatsService
	achievements *AchievementService
	replays      *ReplayService
}

func NewGameLifecycle(stats *StatsService, achievements *AchievementService, replays *ReplayService) *GameLifecycle {
	return &GameLifecycle{
		stats:        stats,
		achievements: achievements,
		replays:      replays,
	}
}

// Append 实现 game.Recorder，转发给回放缓冲
func (l *GameLifecycle) Append(roomID string, entry game.ReplayEntry) {
	l.replays.Append(roomID, entry)
}

// Autosave 周期性保存运行中房间的最新快照。solo 房间不落库。
func (l *GameLifecycle) Autosave(roomID string, snap *game.Snapshot) error {
	if roomID == room.SoloRoomID || snap == nil {
		return nil
	}
	return l.stats.db.SaveGameState(roomID, snap)
}

// HandleGameEnd 消费恰好一次的终局事件：终局保存（带退避重试）、
// 累计统计、成就判定、回放落库。单步失败记录日志并继续，统计和
// 回放互不拖累。
func (l *GameLifecycle) HandleGameEnd(result game.Result, final *game.Snapshot) {
	if err := l.saveTerminal(result.RoomID, final); err != nil {
		logger.Log.Errorf("Terminal save failed for room %s: %v", result.RoomID, err)
	}

	if err := l.stats.ApplyGameResult(result); err != nil {
		logger.Log.Errorf("Stats update failed for room %s: %v", result.RoomID, err)
	}

	for _, p := range result.Participants {
		if !p.IsPlayer || p.UserID == 0 {
			continue
		}
		stats, err := l.stats.GetPlayerStats(p.UserID)
		if err != nil {
			logger.Log.Errorf("Load stats for achievement check failed, user %d: %v", p.UserID, err)
			continue
		}
		newIDs, err := l.achievements.CheckAchievements(p.UserID, *stats)
		if err != nil {
			logger.Log.Errorf("Achievement check failed for user %d: %v", p.UserID, err)
		}
		if len(newIDs) > 0 {
			logger.Log.Infof("User %d unlocked achievements: %v", p.UserID, newIDs)
		}
	}

	if result.RoomID != room.SoloRoomID {
		if _, err := l.replays.SaveFinished(result); err != nil {
			logger.Log.Errorf("Replay save failed for room %s: %v", result.RoomID, err)
		}
	} else {
		// solo 不留回放，清掉缓冲防泄漏
		l.replays.Drain(result.RoomID)
	}

	logger.Log.Infof("Room %s lifecycle complete, winner=%q completed=%v",
		result.RoomID, result.Winner, result.Completed)
}

// saveTerminal 终局快照必须落库，失败按指数退避重试
func (l *GameLifecycle) saveTerminal(roomID string, final *game.Snapshot) error {
	if roomID == room.SoloRoomID || final == nil {
		return nil
	}

	var err error
	backoff := terminalSaveBackoff
	for attempt := 1; attempt <= terminalSaveAttempts; attempt++ {
		if err = l.stats.db.SaveGameState(roomID, final); err == nil {
			return nil
		}
		logger.Log.Warnf("Terminal save attempt %d/%d for room %s: %v",
			attempt, terminalSaveAttempts, roomID, err)
		time.Sleep(backoff)
		backoff *= 2
	}
	return err
}
