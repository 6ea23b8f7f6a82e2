// room/room.go
package room

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/wfunc/tycoon/game"
	"github.com/wfunc/tycoon/logger"
	"github.com/wfunc/tycoon/network"
	"github.com/wfunc/tycoon/session"
	"github.com/wfunc/tycoon/state"
)

var (
	ErrValidation    = errors.New("invalid room parameters")
	ErrRoomFull      = errors.New("room is full")
	ErrRoomCompleted = errors.New("room already completed")
	ErrAuth          = errors.New("room password mismatch")
	ErrNotFound      = errors.New("room not found")
)

// SoloRoomID 未分组单人会话的保留房间ID，其消息从不持久化
const SoloRoomID = "solo"

// 房间内存中保留的消息条数上限
const messageLogCap = 200

// ChatMessage 聊天或系统消息
type ChatMessage struct {
	RoomID     string    `json:"room_id"`
	UserID     int64     `json:"user_id,omitempty"`
	PlayerName string    `json:"player_name"`
	Message    string    `json:"message"`
	Type       string    `json:"message_type"` // chat | system
	Timestamp  time.Time `json:"timestamp"`
}

// Params 建房请求，密码在到达本层之前已经散列
type Params struct {
	Name         string
	HostID       string
	Mode         string
	MaxPlayers   int
	Private      bool
	PasswordHash string
}

// Room 一个隔离的多人会话。成员变更由房间锁串行化（单写者），
// tick 循环独占驱动状态机。
type Room struct {
	ID           string
	Name         string
	Mode         string
	HostID       string
	MaxPlayers   int
	Private      bool
	PasswordHash string
	CreatedAt    time.Time
	CompletedAt  time.Time
	Players      map[string]*session.Session
	Messages     []ChatMessage
	StateMachine state.StateMachine

	started   bool
	completed bool

	broadcaster  Broadcaster
	gameCfg      game.Config
	bridge       state.CompletionBridge
	tickInterval time.Duration
	tickObserver func(time.Duration)

	statusMutex sync.RWMutex
	playerMutex sync.RWMutex
	msgMutex    sync.Mutex
	ticker      *time.Ticker
	closeChan   chan bool
	closeOnce   sync.Once

	lastHumanSeen time.Time
}

// NewRoom 创建并启动一个房间
func NewRoom(id string, params Params, broadcaster Broadcaster, gameCfg game.Config, tickInterval time.Duration, bridge state.CompletionBridge) (*Room, error) {
	if params.Name == "" || params.MaxPlayers <= 0 {
		return nil, ErrValidation
	}
	if params.Mode == "" {
		params.Mode = "standard"
	}
	if tickInterval <= 0 {
		tickInterval = 100 * time.Millisecond
	}

	room := &Room{
		ID:            id,
		Name:          params.Name,
		Mode:          params.Mode,
		HostID:        params.HostID,
		MaxPlayers:    params.MaxPlayers,
		Private:       params.Private,
		PasswordHash:  params.PasswordHash,
		Players:       make(map[string]*session.Session),
		CreatedAt:     time.Now(),
		lastHumanSeen: time.Now(),
		broadcaster:   broadcaster,
		gameCfg:       gameCfg,
		bridge:        bridge,
		tickInterval:  tickInterval,
		closeChan:     make(chan bool),
	}

	room.StateMachine = state.NewBaseStateMachine(state.NewWaitingState(room))

	room.ticker = time.NewTicker(tickInterval)
	go room.loop()

	return room, nil
}

// --- 实现 state.RoomContext 接口 ---

func (r *Room) GetID() string {
	return r.ID
}

func (r *Room) GetName() string {
	return r.Name
}

func (r *Room) GetGameMode() string {
	return r.Mode
}

func (r *Room) GetHostID() string {
	return r.HostID
}

func (r *Room) GetMaxPlayers() int {
	return r.MaxPlayers
}

// GetPlayers 返回副本以避免并发修改
func (r *Room) GetPlayers() map[string]state.Player {
	r.playerMutex.RLock()
	defer r.playerMutex.RUnlock()

	players := make(map[string]state.Player)
	for k, v := range r.Players {
		players[k] = v
	}
	return players
}

func (r *Room) ChangeState(newState state.State) error {
	if newState.GetID() == "playing" {
		r.setStarted()
	}
	return r.StateMachine.ChangeState(newState)
}

func (r *Room) Broadcast(msgID uint16, data []byte) error {
	return r.broadcaster.BroadcastToRoom(r.ID, msgID, data)
}

func (r *Room) GameConfig() game.Config {
	return r.gameCfg
}

func (r *Room) Completion() state.CompletionBridge {
	return r.bridge
}

func (r *Room) MarkCompleted() {
	r.statusMutex.Lock()
	defer r.statusMutex.Unlock()
	if r.completed {
		return
	}
	r.completed = true
	r.CompletedAt = time.Now()
}

// --- 成员管理 ---

// Join 加入房间。私有房校验预散列的密码；已完成或满员的房间拒绝。
func (r *Room) Join(s *session.Session, passwordHash string) error {
	if r.IsCompleted() {
		return ErrRoomCompleted
	}
	if r.Private && passwordHash != r.PasswordHash {
		return ErrAuth
	}

	r.playerMutex.Lock()
	if len(r.Players) >= r.MaxPlayers {
		r.playerMutex.Unlock()
		return ErrRoomFull
	}
	r.Players[s.ID] = s
	s.RoomID = r.ID
	r.lastHumanSeen = time.Now()
	r.playerMutex.Unlock()

	r.SystemMessage(s.GetName() + " joined the room")
	return nil
}

// Leave 离开房间。房间循环不因此停止：AI和剩余玩家继续。
func (r *Room) Leave(sessionID string) {
	r.playerMutex.Lock()
	player, exists := r.Players[sessionID]
	if exists {
		player.RoomID = ""
		delete(r.Players, sessionID)
	}
	r.lastHumanSeen = time.Now()
	r.playerMutex.Unlock()

	if exists {
		r.SystemMessage(player.GetName() + " left the room")
	}
}

func (r *Room) GetPlayer(sessionID string) (*session.Session, bool) {
	r.playerMutex.RLock()
	defer r.playerMutex.RUnlock()

	player, exists := r.Players[sessionID]
	return player, exists
}

// GetSessions returns a slice of all sessions in the room (thread-safe).
func (r *Room) GetSessions() []*session.Session {
	r.playerMutex.RLock()
	defer r.playerMutex.RUnlock()

	sessions := make([]*session.Session, 0, len(r.Players))
	for _, s := range r.Players {
		sessions = append(sessions, s)
	}
	return sessions
}

func (r *Room) HumanCount() int {
	r.playerMutex.RLock()
	defer r.playerMutex.RUnlock()
	return len(r.Players)
}

// IdleSince 最后一次有人类玩家活动的时间，供闲置回收判断
func (r *Room) IdleSince() time.Time {
	r.playerMutex.RLock()
	defer r.playerMutex.RUnlock()
	return r.lastHumanSeen
}

func (r *Room) IsStarted() bool {
	r.statusMutex.RLock()
	defer r.statusMutex.RUnlock()
	return r.started
}

func (r *Room) setStarted() {
	r.statusMutex.Lock()
	defer r.statusMutex.Unlock()
	r.started = true
}

func (r *Room) IsCompleted() bool {
	r.statusMutex.RLock()
	defer r.statusMutex.RUnlock()
	return r.completed
}

// --- 消息 ---

// SystemMessage 追加并广播一条系统消息
func (r *Room) SystemMessage(text string) {
	r.AppendMessage(ChatMessage{
		RoomID:     r.ID,
		PlayerName: "system",
		Message:    text,
		Type:       "system",
		Timestamp:  time.Now(),
	})
}

// AppendMessage 追加消息到房间日志并广播
func (r *Room) AppendMessage(msg ChatMessage) {
	r.msgMutex.Lock()
	r.Messages = append(r.Messages, msg)
	if len(r.Messages) > messageLogCap {
		r.Messages = r.Messages[len(r.Messages)-messageLogCap:]
	}
	r.msgMutex.Unlock()

	msgID := uint16(network.MsgTypeChat)
	if msg.Type == "system" {
		msgID = network.MsgTypeSystemMsg
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	r.Broadcast(msgID, data)
}

// --- tick 循环 ---

// loop 房间主循环。每个房间独立运行，互不阻塞。
func (r *Room) loop() {
	for {
		select {
		case <-r.ticker.C:
			r.Update()
		case <-r.closeChan:
			r.ticker.Stop()
			return
		}
	}
}

// Update 驱动状态机走一步。单个房间内部的不可恢复错误在这里
// 兜底：强制结束该房间而不是留下一个静默卡死的循环。
func (r *Room) Update() {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Log.Errorf("Room %s tick panicked: %v, force-completing", r.ID, rec)
			r.ForceComplete("internal error")
		}
	}()

	started := time.Now()
	if current := r.StateMachine.GetCurrentState(); current != nil {
		current.OnUpdate()
	}
	if r.tickObserver != nil {
		r.tickObserver(time.Since(started))
	}
}

// ForceComplete 管理员kill或内部错误：向引擎登记强制结束请求，
// 实际冻结由房间自己的 tick 循环在下一拍执行
func (r *Room) ForceComplete(reason string) {
	if r.IsCompleted() {
		return
	}
	if holder, ok := r.StateMachine.GetCurrentState().(state.EngineHolder); ok {
		holder.Engine().ForceComplete(reason)
	} else {
		// 还没开局，直接完结
		r.MarkCompleted()
		r.SystemMessage("room closed: " + reason)
	}
}

// Engine 当前引擎（未开局时为 nil），自动保存用
func (r *Room) Engine() *game.Engine {
	if holder, ok := r.StateMachine.GetCurrentState().(state.EngineHolder); ok {
		return holder.Engine()
	}
	return nil
}

// Close 关闭房间，停止主循环
func (r *Room) Close() {
	r.closeOnce.Do(func() {
		close(r.closeChan)
	})
}

// --- 房间管理器 ---

// Info 房间列表里的一行，读侧可以落后于写侧
type Info struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Mode       string `json:"mode"`
	Players    int    `json:"players"`
	MaxPlayers int    `json:"max_players"`
	Private    bool   `json:"private"`
	Started    bool   `json:"started"`
}

// Manager 管理所有房间。显式构造注入，无全局单例。
// TickObserver 可选，挂上后每个房间每 tick 上报一次耗时。
type Manager struct {
	rooms map[string]*Room
	mutex sync.RWMutex

	TickObserver func(time.Duration)
}

func NewRoomManager() *Manager {
	return &Manager{
		rooms: make(map[string]*Room),
	}
}

// CreateRoom 创建一个新房间并加入管理器
func (m *Manager) CreateRoom(id string, params Params, broadcaster Broadcaster, gameCfg game.Config, tickInterval time.Duration, bridge state.CompletionBridge) (*Room, error) {
	room, err := NewRoom(id, params, broadcaster, gameCfg, tickInterval, bridge)
	if err != nil {
		return nil, err
	}
	room.tickObserver = m.TickObserver

	m.mutex.Lock()
	m.rooms[id] = room
	m.mutex.Unlock()
	return room, nil
}

// RemoveRoom 从管理器中移除并关闭一个房间
func (m *Manager) RemoveRoom(id string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if room, exists := m.rooms[id]; exists {
		room.Close()
		delete(m.rooms, id)
	}
}

func (m *Manager) GetRoom(id string) (*Room, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	room, exists := m.rooms[id]
	return room, exists
}

// ListOpen 列出所有未完成的房间
func (m *Manager) ListOpen() []Info {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	infos := make([]Info, 0, len(m.rooms))
	for _, room := range m.rooms {
		if room.IsCompleted() {
			continue
		}
		infos = append(infos, Info{
			ID:         room.ID,
			Name:       room.Name,
			Mode:       room.Mode,
			Players:    room.HumanCount(),
			MaxPlayers: room.MaxPlayers,
			Private:    room.Private,
			Started:    room.IsStarted(),
		})
	}
	return infos
}

// Count 当前房间数
func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.rooms)
}

// Rooms 当前全部房间的快照切片（自动保存与闲置回收遍历用）
func (m *Manager) Rooms() []*Room {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	rooms := make([]*Room, 0, len(m.rooms))
	for _, room := range m.rooms {
		rooms = append(rooms, room)
	}
	return rooms
}
