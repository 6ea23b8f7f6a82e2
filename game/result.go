// game/result.go
package game

import (
	"sort"
	"time"
)

// ParticipantResult 结算时每家公司的最终名次
type ParticipantResult struct {
	CompanyID   string `json:"company_id"`
	UserID      int64  `json:"user_id"`
	Name        string `json:"name"`
	IsPlayer    bool   `json:"is_player"`
	Rank        int    `json:"rank"`
	FinalAssets int64  `json:"final_assets"`
	Won         bool   `json:"won"`
}

// Result 一局游戏的终局事件。每局在 IsActive true->false 边沿
// 恰好产生一次，统计更新以此为幂等保证。
type Result struct {
	RoomID       string              `json:"room_id"`
	RoomName     string              `json:"room_name"`
	Mode         string              `json:"mode"`
	Winner       string              `json:"winner"`
	StartedAt    time.Time           `json:"started_at"`
	Duration     time.Duration       `json:"duration"`
	Completed    bool                `json:"completed"` // false = 被强制结束
	Participants []ParticipantResult `json:"participants"`
}

// ComputeResult 从冻结的终局状态推导名次：
// 胜者第一，其余存活公司按资产降序，破产公司按剩余资产降序垫底。
func ComputeResult(gs *GameState, roomName, mode string, startedAt time.Time, completed bool) Result {
	ranked := make([]*Company, len(gs.Companies))
	copy(ranked, gs.Companies)

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		aWon, bWon := a.ID == gs.Winner && gs.Winner != "", b.ID == gs.Winner && gs.Winner != ""
		if aWon != bWon {
			return aWon
		}
		if (a.Status == StatusActive) != (b.Status == StatusActive) {
			return a.Status == StatusActive
		}
		return a.Assets > b.Assets
	})

	result := Result{
		RoomID:    gs.RoomID,
		RoomName:  roomName,
		Mode:      mode,
		Winner:    gs.Winner,
		StartedAt: startedAt,
		Duration:  time.Since(startedAt),
		Completed: completed,
	}
	for i, c := range ranked {
		result.Participants = append(result.Participants, ParticipantResult{
			CompanyID:   c.ID,
			UserID:      c.UserID,
			Name:        c.Name,
			IsPlayer:    c.IsPlayer,
			Rank:        i + 1,
			FinalAssets: c.Assets,
			Won:         c.ID == gs.Winner && gs.Winner != "",
		})
	}
	return result
}
