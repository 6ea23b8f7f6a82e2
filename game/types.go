// game/types.go
package game

import (
	"time"
)

// CompanyStatus 公司状态机：active -> bankrupt，bankrupt 为终态
type CompanyStatus string

const (
	StatusActive   CompanyStatus = "active"
	StatusBankrupt CompanyStatus = "bankrupt"
)

type GamePhase string

const (
	PhaseEarly GamePhase = "early"
	PhaseMid   GamePhase = "mid"
	PhaseLate  GamePhase = "late"
)

// 阶段切换的回合阈值
const (
	midPhaseTurn  = 3000
	latePhaseTurn = 9000
)

type Building struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Level int    `json:"level"`
	Price int64  `json:"price"`
}

// Company 一个参与者的经济实体，人类或AI控制
type Company struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Color     string        `json:"color"`
	Assets    int64         `json:"assets"`
	Employees int           `json:"employees"`
	Buildings []Building    `json:"buildings"`
	Status    CompanyStatus `json:"status"`
	IsPlayer  bool          `json:"is_player"`
	UserID    int64         `json:"user_id"`
	Skill     int           `json:"skill"` // 0-100，影响行动成功率
	X         int           `json:"x"`
	Y         int           `json:"y"`
}

// markBankrupt 执行 active -> bankrupt 转换。终态不可逆。
func (c *Company) markBankrupt() bool {
	if c.Status != StatusActive {
		return false
	}
	c.Status = StatusBankrupt
	return true
}

func (c *Company) clone() *Company {
	dup := *c
	dup.Buildings = make([]Building, len(c.Buildings))
	copy(dup.Buildings, c.Buildings)
	return &dup
}

// GameState 每个房间的权威状态，唯一写者是该房间的 tick 循环
type GameState struct {
	RoomID        string     `json:"room_id"`
	Companies     []*Company `json:"companies"`
	CurrentTurn   int64      `json:"current_turn"`
	Phase         GamePhase  `json:"phase"`
	IsActive      bool       `json:"is_active"`
	Winner        string     `json:"winner"`
	GameStartTime time.Time  `json:"game_start_time"`
}

func NewGameState(roomID string, companies []*Company, start time.Time) *GameState {
	return &GameState{
		RoomID:        roomID,
		Companies:     companies,
		Phase:         PhaseEarly,
		IsActive:      true,
		GameStartTime: start,
	}
}

func (gs *GameState) Company(id string) *Company {
	for _, c := range gs.Companies {
		if c.ID == id {
			return c
		}
	}
	return nil
}

func (gs *GameState) ActiveCompanies() []*Company {
	var active []*Company
	for _, c := range gs.Companies {
		if c.Status == StatusActive {
			active = append(active, c)
		}
	}
	return active
}

func (gs *GameState) updatePhase() {
	switch {
	case gs.CurrentTurn >= latePhaseTurn:
		gs.Phase = PhaseLate
	case gs.CurrentTurn >= midPhaseTurn:
		gs.Phase = PhaseMid
	default:
		gs.Phase = PhaseEarly
	}
}

// CompanyView 广播给订阅者的公司投影。AIReadyTicks 是冷却计数的
// 只读投影，计数本身归调度器所有。
type CompanyView struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Color        string        `json:"color"`
	Assets       int64         `json:"assets"`
	Employees    int           `json:"employees"`
	Buildings    []Building    `json:"buildings"`
	Status       CompanyStatus `json:"status"`
	IsPlayer     bool          `json:"is_player"`
	X            int           `json:"x"`
	Y            int           `json:"y"`
	AIReadyTicks int           `json:"ai_ready_ticks,omitempty"`
}

// Snapshot 一次 tick 提交后的完整状态快照
type Snapshot struct {
	RoomID    string        `json:"room_id"`
	Turn      int64         `json:"turn"`
	Phase     GamePhase     `json:"phase"`
	IsActive  bool          `json:"is_active"`
	Winner    string        `json:"winner"`
	Companies []CompanyView `json:"companies"`
	Timestamp time.Time     `json:"timestamp"`
}
