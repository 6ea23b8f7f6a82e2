// game/engine.go
package game

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/wfunc/tycoon/logger"
)

// actionQueueSize 每房间行动队列上限
const actionQueueSize = 256

// Config 引擎运行参数
type Config struct {
	GracePeriod          time.Duration
	AIPreActivationTicks int
	AIMinDelayTicks      int
	AIMaxDelayTicks      int
	Aggressiveness       int
	DecisionBudget       time.Duration
	StartingAssets       int64
}

func DefaultConfig() Config {
	return Config{
		GracePeriod:          10 * time.Minute,
		AIPreActivationTicks: 50,
		AIMinDelayTicks:      10,
		AIMaxDelayTicks:      80,
		Aggressiveness:       50,
		DecisionBudget:       50 * time.Millisecond,
		StartingAssets:       1_000_000,
	}
}

// ReplayEntry 回放日志条目，按引擎应用顺序追加
type ReplayEntry struct {
	Turn      int64           `json:"turn"`
	Kind      string          `json:"kind"` // action | event
	Action    *ResolvedAction `json:"action,omitempty"`
	Event     string          `json:"event,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Recorder 消费引擎产出的回放条目
type Recorder interface {
	Append(roomID string, entry ReplayEntry)
}

// Engine 推进单个房间的模拟。GameState 的唯一写者是调用 Tick 的
// 房间循环；行动提交走带缓冲的队列，在每个 tick 开头按提交顺序
// 排空，保证房间内效果的全序。
type Engine struct {
	cfg   Config
	state *GameState
	queue chan Action
	sched *AIScheduler
	rec   Recorder
	rng   *rand.Rand

	snapMutex sync.RWMutex
	lastSnap  *Snapshot

	forceMutex  sync.Mutex
	forced      bool
	forceReason string
}

func NewEngine(cfg Config, roomID string, companies []*Company, rec Recorder, rng *rand.Rand) *Engine {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	e := &Engine{
		cfg:   cfg,
		state: NewGameState(roomID, companies, time.Now()),
		queue: make(chan Action, actionQueueSize),
		rec:   rec,
		rng:   rng,
	}
	e.sched = NewAIScheduler(cfg, rng)
	for _, c := range companies {
		if !c.IsPlayer {
			e.sched.Register(c.ID)
		}
	}
	e.commitSnapshot(time.Now())
	return e
}

// State 仅供 tick 循环的拥有者和测试使用
func (e *Engine) State() *GameState {
	return e.state
}

// Submit 人类或AI行动走同一入队路径。队列满返回 ErrQueueFull。
func (e *Engine) Submit(a Action) error {
	if err := a.Validate(); err != nil {
		return err
	}
	select {
	case e.queue <- a:
		return nil
	default:
		return ErrQueueFull
	}
}

// Forced 报告游戏是否被强制结束（而非自然完成）
func (e *Engine) Forced() bool {
	e.forceMutex.Lock()
	defer e.forceMutex.Unlock()
	return e.forced
}

// Snapshot 返回最近一次提交的快照。保存的永远是已到达的状态。
func (e *Engine) Snapshot() *Snapshot {
	e.snapMutex.RLock()
	defer e.snapMutex.RUnlock()
	return e.lastSnap
}

// ForceComplete 强制结束（管理员kill或房间内部不可恢复错误）。
// 只登记请求：真正的冻结由 tick 循环在下一次进入 Tick 时执行，
// 保证 GameState 自始至终只有 tick 协程一个写者。
func (e *Engine) ForceComplete(reason string) {
	e.forceMutex.Lock()
	if !e.forced {
		e.forced = true
		e.forceReason = reason
	}
	e.forceMutex.Unlock()
}

func (e *Engine) pendingForce() (string, bool) {
	e.forceMutex.Lock()
	defer e.forceMutex.Unlock()
	return e.forceReason, e.forced
}

// Tick 推进一个逻辑步。顺序：排空队列 -> AI注入 -> 淘汰检查 ->
// 胜负判定 -> 提交快照。返回 nil 表示状态已冻结。
func (e *Engine) Tick(now time.Time) *Snapshot {
	if !e.state.IsActive {
		return nil
	}

	if reason, ok := e.pendingForce(); ok {
		e.state.IsActive = false
		e.record(ReplayEntry{
			Turn:      e.state.CurrentTurn,
			Kind:      "event",
			Event:     "force_completed: " + reason,
			Timestamp: now,
		})
		e.commitSnapshot(now)
		return nil
	}

	// (a) 按提交顺序应用排队的行动
drain:
	for {
		select {
		case a := <-e.queue:
			e.applyAndRecord(a, now)
		default:
			break drain
		}
	}

	// (b) 冷却到期的AI公司注入行动，与人类行动走同一路径
	for _, c := range e.state.Companies {
		if c.IsPlayer {
			continue
		}
		if a := e.sched.Next(e.state, c); a != nil {
			e.applyAndRecord(*a, now)
		}
	}

	// (c) 淘汰检查：无条件，不受保护期约束
	for _, id := range runElimination(e.state) {
		logger.Log.Infof("Company %s went bankrupt in room %s", id, e.state.RoomID)
		e.record(ReplayEntry{
			Turn:      e.state.CurrentTurn,
			Kind:      "event",
			Event:     "bankrupt: " + id,
			Timestamp: now,
		})
	}

	// (d) 胜负判定：保护期内不判最后存活者
	elapsedGrace := now.Sub(e.state.GameStartTime) >= e.cfg.GracePeriod
	evaluateOutcome(e.state, elapsedGrace)

	e.state.CurrentTurn++
	e.state.updatePhase()

	// (e) 提交快照供广播与自动保存
	return e.commitSnapshot(now)
}

func (e *Engine) applyAndRecord(a Action, now time.Time) {
	resolved, err := e.apply(a)
	if err != nil {
		// 非法行动本地失败：记日志，不中断 tick
		logger.Log.Warnf("Rejected action %s from %s in room %s: %v",
			a.Kind, a.ActorID, e.state.RoomID, err)
		return
	}
	e.record(ReplayEntry{
		Turn:      e.state.CurrentTurn,
		Kind:      "action",
		Action:    &resolved,
		Timestamp: now,
	})
}

// apply 校验并裁决一个行动。失败（概率模型判负）是正常模拟结果：
// 只扣成本，不返回错误。采用"先改副本再提交"的方式原子落盘。
func (e *Engine) apply(a Action) (ResolvedAction, error) {
	if !e.state.IsActive {
		return ResolvedAction{}, ErrGameInactive
	}

	actor := e.state.Company(a.ActorID)
	if actor == nil {
		return ResolvedAction{}, ErrUnknownActor
	}
	if actor.Status != StatusActive {
		return ResolvedAction{}, ErrActorInactive
	}

	cost := a.Cost()
	if a.Kind != KindMove {
		if cost <= 0 || cost > actor.Assets {
			return ResolvedAction{}, ErrInvalidCost
		}
	}

	var target *Company
	if id := a.TargetID(); id != "" {
		target = e.state.Company(id)
		if target == nil {
			return ResolvedAction{}, ErrUnknownTarget
		}
		if target.Status != StatusActive {
			return ResolvedAction{}, fmt.Errorf("%w: %s", ErrUnknownTarget, id)
		}
	}

	success := e.rng.Intn(100) < successChance(a.Kind, actor.Skill)

	// 提案副本
	nextActor := actor.clone()
	var nextTarget *Company
	if target != nil {
		nextTarget = target.clone()
	}

	note := ""
	nextActor.Assets -= cost
	if success {
		switch a.Kind {
		case KindPurchaseBuilding:
			nextActor.Buildings = append(nextActor.Buildings, Building{
				ID:    a.Purchase.BuildingID,
				Name:  a.Purchase.Name,
				Level: len(nextActor.Buildings) + 1,
				Price: cost,
			})
		case KindRecruitEmployee:
			nextActor.Employees += a.Recruit.Count
		case KindAttack:
			nextTarget.Assets -= cost * 2
		case KindIntelligence:
			note = fmt.Sprintf("intel: %s assets=%d employees=%d",
				nextTarget.ID, nextTarget.Assets, nextTarget.Employees)
		case KindMove:
			nextActor.X = a.Move.X
			nextActor.Y = a.Move.Y
		}
	}

	// 提交
	*actor = *nextActor
	if target != nil && nextTarget != nil {
		*target = *nextTarget
	}

	return ResolvedAction{Action: a, Success: success, Cost: cost, Note: note}, nil
}

func (e *Engine) record(entry ReplayEntry) {
	if e.rec != nil {
		e.rec.Append(e.state.RoomID, entry)
	}
}

func (e *Engine) commitSnapshot(now time.Time) *Snapshot {
	snap := &Snapshot{
		RoomID:    e.state.RoomID,
		Turn:      e.state.CurrentTurn,
		Phase:     e.state.Phase,
		IsActive:  e.state.IsActive,
		Winner:    e.state.Winner,
		Companies: make([]CompanyView, 0, len(e.state.Companies)),
		Timestamp: now,
	}
	for _, c := range e.state.Companies {
		view := CompanyView{
			ID:        c.ID,
			Name:      c.Name,
			Color:     c.Color,
			Assets:    c.Assets,
			Employees: c.Employees,
			Buildings: c.Buildings,
			Status:    c.Status,
			IsPlayer:  c.IsPlayer,
			X:         c.X,
			Y:         c.Y,
		}
		if !c.IsPlayer {
			view.AIReadyTicks = e.sched.ReadyIn(c.ID)
		}
		snap.Companies = append(snap.Companies, view)
	}

	e.snapMutex.Lock()
	e.lastSnap = snap
	e.snapMutex.Unlock()
	return snap
}
