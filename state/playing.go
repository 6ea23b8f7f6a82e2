package state

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/wfunc/tycoon/game"
	"github.com/wfunc/tycoon/logger"
	"github.com/wfunc/tycoon/network"
)

var companyColors = []string{
	"#e6194b", "#3cb44b", "#4363d8", "#f58231",
	"#911eb4", "#46f0f0", "#f032e6", "#bcf60c",
}

var aiCompanyNames = []string{
	"Vertex Holdings", "Ironclad Industries", "Bluewater Trading",
	"Nimbus Logistics", "Granite Capital", "Redline Ventures",
	"Solstice Group", "Harbor & Sons",
}

// NewPlayingState 创建游戏进行状态
func NewPlayingState(room RoomContext) *PlayingState {
	return &PlayingState{
		RoomStateBase: RoomStateBase{
			ID:   "playing",
			Room: room,
		},
	}
}

// PlayingState 游戏进行状态。每次 OnUpdate 驱动引擎走一个 tick，
// 并把提交后的快照扇出给所有订阅者。
type PlayingState struct {
	RoomStateBase
	engine    *game.Engine
	startedAt time.Time
}

// Engine 实现 EngineHolder
func (s *PlayingState) Engine() *game.Engine {
	return s.engine
}

func (s *PlayingState) OnEnter() {
	s.startedAt = time.Now()
	companies := s.buildCompanies()
	s.engine = game.NewEngine(s.Room.GameConfig(), s.Room.GetID(), companies, s.Room.Completion(), nil)

	logger.Log.Infof("Room %s started with %d companies", s.Room.GetID(), len(companies))
	s.notifyGameStart()
}

func (s *PlayingState) OnExit() {
	logger.Log.Infof("Room %s left playing state at turn %d",
		s.Room.GetID(), s.engine.State().CurrentTurn)
}

func (s *PlayingState) OnUpdate() {
	snap := s.engine.Tick(time.Now())
	if snap == nil {
		// 引擎已在 tick 之外被冻结（管理员kill或错误兜底）
		s.Room.ChangeState(NewSettlementState(s.Room, s.engine, s.startedAt))
		return
	}

	s.syncGameState(snap)

	if !snap.IsActive {
		s.Room.ChangeState(NewSettlementState(s.Room, s.engine, s.startedAt))
	}
}

// HandleAction 人类玩家的行动入口：解码、校验、入队。
// 行动在下一个 tick 边界之内生效，保证房间内效果全序。
func (s *PlayingState) HandleAction(player Player, actionData []byte) error {
	action, err := game.DecodeAction(actionData)
	if err != nil {
		return err
	}
	// 行动者只能是自己的公司
	action.ActorID = player.GetID()
	return s.engine.Submit(action)
}

// buildCompanies 每个人类会话一家公司，剩余席位用AI补齐
func (s *PlayingState) buildCompanies() []*game.Company {
	cfg := s.Room.GameConfig()
	players := s.Room.GetPlayers()

	ids := make([]string, 0, len(players))
	for id := range players {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var companies []*game.Company
	for i, id := range ids {
		p := players[id]
		name := p.GetName()
		if name == "" {
			name = fmt.Sprintf("Company %d", i+1)
		}
		companies = append(companies, &game.Company{
			ID:       id,
			Name:     name,
			Color:    companyColors[i%len(companyColors)],
			Assets:   cfg.StartingAssets,
			Status:   game.StatusActive,
			IsPlayer: true,
			UserID:   p.GetUserID(),
			Skill:    50,
		})
	}

	for i := len(companies); i < s.Room.GetMaxPlayers(); i++ {
		companies = append(companies, &game.Company{
			ID:       fmt.Sprintf("%s-ai-%d", s.Room.GetID(), i),
			Name:     aiCompanyNames[i%len(aiCompanyNames)],
			Color:    companyColors[i%len(companyColors)],
			Assets:   cfg.StartingAssets,
			Status:   game.StatusActive,
			IsPlayer: false,
			Skill:    40 + (i%4)*5,
		})
	}
	return companies
}

func (s *PlayingState) notifyGameStart() {
	data, err := json.Marshal(s.engine.Snapshot())
	if err != nil {
		logger.Log.Errorf("Error marshalling game start for room %s: %v", s.Room.GetID(), err)
		return
	}
	s.Room.Broadcast(network.MsgTypeGameStart, data)
}

func (s *PlayingState) syncGameState(snap *game.Snapshot) {
	data, err := json.Marshal(snap)
	if err != nil {
		logger.Log.Errorf("Error marshalling sync message: %v", err)
		return
	}
	s.Room.Broadcast(network.MsgTypeGameSync, data)
}
