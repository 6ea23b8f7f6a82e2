// game/ai.go
package game

import (
	"math/rand"
	"time"
)

// AIScheduler 拥有每个AI公司的冷却计数。计数单位是 tick（0.1秒）：
// 预激活阶段计数 50 即开局 5 秒内不行动；激活后每次行动把计数重置为
// 模式相关的间隔。调度器从不阻塞 tick：无合法行动或超出决策时限时
// 返回 nil（本 tick 空转，下个可行 tick 重试）。
type AIScheduler struct {
	cfg       Config
	rng       *rand.Rand
	cooldowns map[string]int
	activated map[string]bool
}

func NewAIScheduler(cfg Config, rng *rand.Rand) *AIScheduler {
	return &AIScheduler{
		cfg:       cfg,
		rng:       rng,
		cooldowns: make(map[string]int),
		activated: make(map[string]bool),
	}
}

// Register 登记一个AI公司，进入预激活冷却
func (s *AIScheduler) Register(companyID string) {
	s.cooldowns[companyID] = s.cfg.AIPreActivationTicks
	s.activated[companyID] = false
}

// ReadyIn 冷却计数的只读投影，供快照广播使用
func (s *AIScheduler) ReadyIn(companyID string) int {
	return s.cooldowns[companyID]
}

// Next 由 tick 循环每 tick 调用一次。冷却未到返回 nil 并递减计数；
// 冷却到期则决策一个行动并重置冷却。
func (s *AIScheduler) Next(gs *GameState, c *Company) *Action {
	if c.Status != StatusActive {
		return nil
	}

	if s.cooldowns[c.ID] > 0 {
		s.cooldowns[c.ID]--
		return nil
	}
	s.activated[c.ID] = true

	started := time.Now()
	action := s.decide(gs, c)
	if s.cfg.DecisionBudget > 0 && time.Since(started) > s.cfg.DecisionBudget {
		// 决策超时按空转处理，不拖慢循环
		return nil
	}
	if action == nil {
		// 无合法行动，下个 tick 重试
		return nil
	}

	s.cooldowns[c.ID] = s.nextDelay()
	return action
}

func (s *AIScheduler) nextDelay() int {
	span := s.cfg.AIMaxDelayTicks - s.cfg.AIMinDelayTicks
	if span <= 0 {
		return s.cfg.AIMinDelayTicks
	}
	return s.cfg.AIMinDelayTicks + s.rng.Intn(span+1)
}

// decide 按侵略性加权选择行动类型。侵略性越高越偏向攻击/情报。
func (s *AIScheduler) decide(gs *GameState, c *Company) *Action {
	aggr := s.cfg.Aggressiveness
	if aggr < 0 {
		aggr = 0
	}
	if aggr > 100 {
		aggr = 100
	}

	target := s.pickTarget(gs, c)

	type weighted struct {
		kind   Kind
		weight int
	}
	candidates := []weighted{
		{KindPurchaseBuilding, 60 - aggr/2},
		{KindRecruitEmployee, 30},
		{KindMove, 10},
	}
	if target != nil {
		candidates = append(candidates,
			weighted{KindAttack, 10 + aggr},
			weighted{KindIntelligence, 5 + aggr/2},
		)
	}

	total := 0
	for _, cand := range candidates {
		total += cand.weight
	}
	roll := s.rng.Intn(total)
	var kind Kind
	for _, cand := range candidates {
		if roll < cand.weight {
			kind = cand.kind
			break
		}
		roll -= cand.weight
	}

	action := s.buildAction(kind, c, target)
	if action == nil {
		return nil
	}
	if action.Cost() > c.Assets {
		// 买不起首选行动就移动，移动免费且总是合法
		return s.buildAction(KindMove, c, nil)
	}
	return action
}

func (s *AIScheduler) pickTarget(gs *GameState, c *Company) *Company {
	var enemies []*Company
	for _, other := range gs.ActiveCompanies() {
		if other.ID != c.ID {
			enemies = append(enemies, other)
		}
	}
	if len(enemies) == 0 {
		return nil
	}
	return enemies[s.rng.Intn(len(enemies))]
}

func (s *AIScheduler) buildAction(kind Kind, c *Company, target *Company) *Action {
	switch kind {
	case KindPurchaseBuilding:
		level := len(c.Buildings) + 1
		cost := BaseBuildingCost * int64(level)
		return &Action{
			Kind:    KindPurchaseBuilding,
			ActorID: c.ID,
			Purchase: &PurchasePayload{
				BuildingID: "hq",
				Name:       "Headquarters",
				Cost:       cost,
			},
		}
	case KindRecruitEmployee:
		count := 1 + s.rng.Intn(5)
		return &Action{
			Kind:    KindRecruitEmployee,
			ActorID: c.ID,
			Recruit: &RecruitPayload{
				Count: count,
				Cost:  RecruitCostPerEmployee * int64(count),
			},
		}
	case KindAttack:
		if target == nil {
			return nil
		}
		cost := c.Assets / 10
		if cost < MinAttackCost {
			cost = MinAttackCost
		}
		return &Action{
			Kind:    KindAttack,
			ActorID: c.ID,
			Attack:  &AttackPayload{TargetID: target.ID, Cost: cost},
		}
	case KindIntelligence:
		if target == nil {
			return nil
		}
		return &Action{
			Kind:    KindIntelligence,
			ActorID: c.ID,
			Intel:   &IntelPayload{TargetID: target.ID, Cost: IntelCost},
		}
	case KindMove:
		return &Action{
			Kind:    KindMove,
			ActorID: c.ID,
			Move:    &MovePayload{X: s.rng.Intn(32), Y: s.rng.Intn(32)},
		}
	}
	return nil
}
