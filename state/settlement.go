package state

import (
	"encoding/json"
	"time"

	"github.com/wfunc/tycoon/game"
	"github.com/wfunc/tycoon/logger"
	"github.com/wfunc/tycoon/network"
)

// NewSettlementState 创建结算状态
func NewSettlementState(room RoomContext, engine *game.Engine, startedAt time.Time) *SettlementState {
	return &SettlementState{
		RoomStateBase: RoomStateBase{
			ID:   "settlement",
			Room: room,
		},
		engine:    engine,
		startedAt: startedAt,
	}
}

// SettlementState 终局结算：广播结果，把终局事件恰好一次地交给
// 持久化桥（终局保存、统计、成就、回放都在桥里，不占 tick 路径）。
type SettlementState struct {
	RoomStateBase
	engine    *game.Engine
	startedAt time.Time
}

// Engine 实现 EngineHolder
func (s *SettlementState) Engine() *game.Engine {
	return s.engine
}

func (s *SettlementState) OnEnter() {
	result := game.ComputeResult(
		s.engine.State(),
		s.Room.GetName(),
		s.Room.GetGameMode(),
		s.startedAt,
		!s.engine.Forced(),
	)

	logger.Log.Infof("Room %s settled, winner=%q duration=%v",
		s.Room.GetID(), result.Winner, result.Duration)

	s.notifyGameEnd(result)
	s.Room.MarkCompleted()

	// 结算持久化在 tick 关键路径之外进行
	go s.Room.Completion().HandleGameEnd(result, s.engine.Snapshot())
}

func (s *SettlementState) notifyGameEnd(result game.Result) {
	data, err := json.Marshal(result)
	if err != nil {
		logger.Log.Errorf("Error marshalling game end for room %s: %v", s.Room.GetID(), err)
		return
	}
	s.Room.Broadcast(network.MsgTypeGameEnd, data)
}
