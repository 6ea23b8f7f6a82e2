// state/interfaces.go
package state

import (
	"github.com/wfunc/tycoon/game"
)

// Player defines the minimal interface for a participant that a state
// needs to interact with.
type Player interface {
	GetID() string
	GetUserID() int64
	GetName() string
}

// RoomContext defines the interface that a Room must implement to be
// managed by the state machine. This breaks the import cycle between
// room and state.
type RoomContext interface {
	GetID() string
	GetName() string
	GetGameMode() string
	GetHostID() string
	GetPlayers() map[string]Player
	GetMaxPlayers() int
	ChangeState(newState State) error
	Broadcast(msgID uint16, data []byte) error
	GameConfig() game.Config
	Completion() CompletionBridge
	MarkCompleted()
}

// CompletionBridge 持久化/统计桥：边玩边收回放条目，终局时消费
// 一次且仅一次的结算事件。实现位于 services 包。
type CompletionBridge interface {
	game.Recorder
	HandleGameEnd(result game.Result, final *game.Snapshot)
}

// EngineHolder 让房间在不知道具体状态类型的情况下拿到引擎
// （自动保存、管理员kill都需要）。
type EngineHolder interface {
	Engine() *game.Engine
}
