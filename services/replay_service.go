// services/replay_service.go
package services

import (
	"sync"

	"github.com/wfunc/tycoon/game"
	"github.com/wfunc/tycoon/models"
	"github.com/wfunc/tycoon/persistence"
)

const (
	// MaxSearchLimit 检索单页上限，限制响应体积
	MaxSearchLimit     = 100
	DefaultSearchLimit = 20
)

// ReplayService 回放录制与检索。录制阶段按引擎应用顺序在内存里
// 追加；房间完结时冲刷成一条不可变记录。
type ReplayService struct {
	db      persistence.Database
	mutex   sync.Mutex
	buffers map[string][]game.ReplayEntry
}

func NewReplayService(db persistence.Database) *ReplayService {
	return &ReplayService{
		db:      db,
		buffers: make(map[string][]game.ReplayEntry),
	}
}

// Append 实现 game.Recorder
func (s *ReplayService) Append(roomID string, entry game.ReplayEntry) {
	s.mutex.Lock()
	s.buffers[roomID] = append(s.buffers[roomID], entry)
	s.mutex.Unlock()
}

// Drain 取走并清空某房间的录制缓冲
func (s *ReplayService) Drain(roomID string) []game.ReplayEntry {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	entries := s.buffers[roomID]
	delete(s.buffers, roomID)
	return entries
}

// SaveFinished 把终局结果和录制日志落成一条回放记录
func (s *ReplayService) SaveFinished(result game.Result) (*models.Replay, error) {
	status := models.ReplayStatusCompleted
	if !result.Completed {
		status = models.ReplayStatusAbandoned
	}

	players := make([]models.ReplayPlayer, 0, len(result.Participants))
	for _, p := range result.Participants {
		players = append(players, models.ReplayPlayer{
			CompanyID:   p.CompanyID,
			UserID:      p.UserID,
			Name:        p.Name,
			IsPlayer:    p.IsPlayer,
			Rank:        p.Rank,
			FinalAssets: p.FinalAssets,
		})
	}

	replay := &models.Replay{
		RoomID:          result.RoomID,
		RoomName:        result.RoomName,
		Mode:            result.Mode,
		Status:          status,
		Winner:          result.Winner,
		Players:         players,
		Log:             s.Drain(result.RoomID),
		DurationSeconds: int(result.Duration.Seconds()),
	}
	if err := s.db.SaveReplay(replay); err != nil {
		return nil, err
	}
	return replay, nil
}

// Search 检索回放。limit 缺省20、封顶100；HasMore 当且仅当
// 返回页恰好填满 limit。
func (s *ReplayService) Search(q models.ReplayQuery) ([]models.Replay, models.PageMeta, error) {
	if q.Limit <= 0 {
		q.Limit = DefaultSearchLimit
	}
	if q.Limit > MaxSearchLimit {
		q.Limit = MaxSearchLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	if q.SortKey == "" {
		q.SortKey = "recent"
	}

	replays, err := s.db.SearchReplays(q)
	if err != nil {
		return nil, models.PageMeta{}, err
	}

	meta := models.PageMeta{
		Offset:  q.Offset,
		Limit:   q.Limit,
		HasMore: len(replays) == q.Limit,
	}
	return replays, meta, nil
}

// ReplayAnalytics 从回放日志纯推导出的汇总指标
type ReplayAnalytics struct {
	ReplayID      uint                  `json:"replay_id"`
	TotalTurns    int64                 `json:"total_turns"`
	ActionCounts  map[string]int        `json:"action_counts"`
	SuccessCounts map[string]int        `json:"success_counts"`
	SurvivalTurns map[string]int64      `json:"survival_turns"`
	FinalRankings []models.ReplayPlayer `json:"final_rankings"`
}

// Analytics 重放分析。指标完全由存储的日志推导，可重复生成；
// 回放或其日志缺失时整体失败，绝不输出半成品。
func (s *ReplayService) Analytics(replayID uint) (*ReplayAnalytics, error) {
	replay, err := s.db.LoadReplay(replayID)
	if err != nil {
		return nil, err
	}
	if len(replay.Log) == 0 {
		return nil, persistence.ErrRecordNotFound
	}

	analytics := &ReplayAnalytics{
		ReplayID:      replay.ID,
		ActionCounts:  make(map[string]int),
		SuccessCounts: make(map[string]int),
		SurvivalTurns: make(map[string]int64),
		FinalRankings: replay.Players,
	}

	var lastTurn int64
	bankruptAt := make(map[string]int64)
	for _, entry := range replay.Log {
		if entry.Turn > lastTurn {
			lastTurn = entry.Turn
		}
		switch entry.Kind {
		case "action":
			if entry.Action == nil {
				continue
			}
			kind := string(entry.Action.Action.Kind)
			analytics.ActionCounts[kind]++
			if entry.Action.Success {
				analytics.SuccessCounts[kind]++
			}
		case "event":
			if id, ok := parseBankruptEvent(entry.Event); ok {
				bankruptAt[id] = entry.Turn
			}
		}
	}

	analytics.TotalTurns = lastTurn
	for _, p := range replay.Players {
		if turn, ok := bankruptAt[p.CompanyID]; ok {
			analytics.SurvivalTurns[p.CompanyID] = turn
		} else {
			analytics.SurvivalTurns[p.CompanyID] = lastTurn
		}
	}

	return analytics, nil
}

const bankruptEventPrefix = "bankrupt: "

func parseBankruptEvent(event string) (string, bool) {
	if len(event) > len(bankruptEventPrefix) && event[:len(bankruptEventPrefix)] == bankruptEventPrefix {
		return event[len(bankruptEventPrefix):], true
	}
	return "", false
}
