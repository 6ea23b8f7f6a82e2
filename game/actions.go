// game/actions.go
package game

import (
	"encoding/json"
	"errors"
	"fmt"
)

type Kind string

const (
	KindPurchaseBuilding Kind = "purchase_building"
	KindRecruitEmployee  Kind = "recruit_employee"
	KindAttack           Kind = "attack"
	KindIntelligence     Kind = "intelligence"
	KindMove             Kind = "move"
)

// 参考成本，AI 出价与校验都以此为基准
const (
	BaseBuildingCost       = int64(50_000)
	RecruitCostPerEmployee = int64(4_000)
	IntelCost              = int64(30_000)
	MinAttackCost          = int64(10_000)
)

var (
	ErrUnknownAction  = errors.New("unknown action kind")
	ErrMissingPayload = errors.New("action payload missing or mismatched")
	ErrUnknownActor   = errors.New("unknown actor company")
	ErrActorInactive  = errors.New("actor company is not active")
	ErrUnknownTarget  = errors.New("unknown target company")
	ErrGameInactive   = errors.New("game is not active")
	ErrInvalidCost    = errors.New("declared cost invalid or exceeds assets")
	ErrQueueFull      = errors.New("action queue full")
)

type PurchasePayload struct {
	BuildingID string `json:"building_id"`
	Name       string `json:"name"`
	Cost       int64  `json:"cost"`
}

type RecruitPayload struct {
	Count int   `json:"count"`
	Cost  int64 `json:"cost"`
}

type AttackPayload struct {
	TargetID string `json:"target_id"`
	Cost     int64  `json:"cost"`
}

type IntelPayload struct {
	TargetID string `json:"target_id"`
	Cost     int64  `json:"cost"`
}

type MovePayload struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Action 带标签的行动变体：每种行动类型只有一种载荷形态，
// 未知类型在解码边界就被拒绝。
type Action struct {
	Kind     Kind             `json:"kind"`
	ActorID  string           `json:"actor_id"`
	Purchase *PurchasePayload `json:"purchase,omitempty"`
	Recruit  *RecruitPayload  `json:"recruit,omitempty"`
	Attack   *AttackPayload   `json:"attack,omitempty"`
	Intel    *IntelPayload    `json:"intel,omitempty"`
	Move     *MovePayload     `json:"move,omitempty"`
}

// DecodeAction 解析并校验入站行动数据
func DecodeAction(data []byte) (Action, error) {
	var a Action
	if err := json.Unmarshal(data, &a); err != nil {
		return Action{}, fmt.Errorf("malformed action: %w", err)
	}
	if err := a.Validate(); err != nil {
		return Action{}, err
	}
	return a, nil
}

// Validate 检查标签与载荷是否一致
func (a Action) Validate() error {
	switch a.Kind {
	case KindPurchaseBuilding:
		if a.Purchase == nil {
			return ErrMissingPayload
		}
	case KindRecruitEmployee:
		if a.Recruit == nil {
			return ErrMissingPayload
		}
	case KindAttack:
		if a.Attack == nil {
			return ErrMissingPayload
		}
	case KindIntelligence:
		if a.Intel == nil {
			return ErrMissingPayload
		}
	case KindMove:
		if a.Move == nil {
			return ErrMissingPayload
		}
	default:
		return ErrUnknownAction
	}
	return nil
}

// Cost 申报成本。move 免费。
func (a Action) Cost() int64 {
	switch a.Kind {
	case KindPurchaseBuilding:
		return a.Purchase.Cost
	case KindRecruitEmployee:
		return a.Recruit.Cost
	case KindAttack:
		return a.Attack.Cost
	case KindIntelligence:
		return a.Intel.Cost
	}
	return 0
}

// TargetID 攻击/情报行动的目标公司
func (a Action) TargetID() string {
	switch a.Kind {
	case KindAttack:
		return a.Attack.TargetID
	case KindIntelligence:
		return a.Intel.TargetID
	}
	return ""
}

// ResolvedAction 引擎裁决后的行动结果，写入回放日志后不可变
type ResolvedAction struct {
	Action  Action `json:"action"`
	Success bool   `json:"success"`
	Cost    int64  `json:"cost"`
	Note    string `json:"note,omitempty"`
}

// 各行动类型的基础成功率（百分比），由 Skill 修正
var baseSuccessChance = map[Kind]int{
	KindPurchaseBuilding: 90,
	KindRecruitEmployee:  95,
	KindAttack:           40,
	KindIntelligence:     55,
	KindMove:             100,
}

func successChance(kind Kind, skill int) int {
	chance := baseSuccessChance[kind] + (skill-50)/5
	if chance < 5 {
		chance = 5
	}
	if chance > 100 {
		chance = 100
	}
	return chance
}
