package server

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/rpc"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/wfunc/tycoon/broadcast"
	"github.com/wfunc/tycoon/config"
	"github.com/wfunc/tycoon/game"
	"github.com/wfunc/tycoon/logger"
	"github.com/wfunc/tycoon/monitor"
	"github.com/wfunc/tycoon/network"
	"github.com/wfunc/tycoon/persistence"
	"github.com/wfunc/tycoon/room"
	tycoon_rpc "github.com/wfunc/tycoon/rpc"
	"github.com/wfunc/tycoon/services"
	"github.com/wfunc/tycoon/session"
	"github.com/wfunc/tycoon/timer"
)

type GameServer struct {
	cfg            *config.Config
	upgrader       websocket.Upgrader
	roomManager    *room.Manager
	sessionManager *session.Manager
	broadcaster    broadcast.Broadcaster
	lifecycle      *services.GameLifecycle
	stats          *services.StatsService
	achievements   *services.AchievementService
	replays        *services.ReplayService
	rpcServer      *tycoon_rpc.Server
	monitor        *monitor.Monitor
	timers         *timer.TimerManager
	shutdownChan   chan struct{}
}

func NewGameServer(cfg *config.Config, db persistence.Database) *GameServer {
	stats := services.NewStatsService(db)
	achievements := services.NewAchievementService(db)
	replays := services.NewReplayService(db)

	s := &GameServer{
		cfg:            cfg,
		roomManager:    room.NewRoomManager(),
		sessionManager: session.NewManager(),
		stats:          stats,
		achievements:   achievements,
		replays:        replays,
		lifecycle:      services.NewGameLifecycle(stats, achievements, replays),
		monitor:        monitor.NewMonitor("tycoon"),
		timers:         timer.NewTimerManager(),
		shutdownChan:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许所有跨域请求
			},
		},
	}

	// 初始化广播器
	s.broadcaster = broadcast.NewRoomBroadcaster(s.roomManager, s.sessionManager)

	s.roomManager.TickObserver = func(d time.Duration) {
		s.monitor.IncTicks()
		s.monitor.ObserveTickDuration(d)
	}

	// 初始化RPC服务器
	rpcServer, err := tycoon_rpc.NewServer(cfg.Server.RPCAddress)
	if err != nil {
		logger.Log.Fatalf("Failed to create RPC server: %v", err)
	}
	s.rpcServer = rpcServer

	// 注册RPC服务
	gameService := tycoon_rpc.NewGameService(stats, achievements)
	rpc.Register(gameService)

	return s
}

func (s *GameServer) Start() error {
	go s.rpcServer.Start()
	s.monitor.StartServer(s.cfg.Server.MonitorAddress)

	// 自动保存：每个运行中房间的最新快照落库
	s.timers.AddTimer(s.cfg.Game.AutosaveInterval, s.cfg.Game.AutosaveInterval, s.autosaveRooms)
	// 闲置回收：没有人类玩家的房间超时后关闭
	s.timers.AddTimer(time.Minute, time.Minute, s.reapIdleRooms)

	http.HandleFunc("/ws", s.handleWebSocket)
	logger.Log.Infof("Game server listening on %s", s.cfg.Server.HTTPAddress)
	return http.ListenAndServe(s.cfg.Server.HTTPAddress, nil)
}

func (s *GameServer) Shutdown() {
	close(s.shutdownChan)
	s.timers.Stop()
	s.rpcServer.Stop()
	for _, r := range s.roomManager.Rooms() {
		r.Close()
	}
}

// autosaveRooms 遍历房间保存最新快照。保存的永远是引擎已提交的
// 状态，失败只计数，下一轮重试。
func (s *GameServer) autosaveRooms() {
	for _, r := range s.roomManager.Rooms() {
		engine := r.Engine()
		if engine == nil || r.IsCompleted() {
			continue
		}
		if err := s.lifecycle.Autosave(r.ID, engine.Snapshot()); err != nil {
			s.monitor.IncAutosaveFailures()
			logger.Log.Errorf("Autosave failed for room %s: %v", r.ID, err)
		}
	}
}

// reapIdleRooms 回收空房间和已完成的房间
func (s *GameServer) reapIdleRooms() {
	reapRooms(s.roomManager, s.cfg.Game.IdleTimeout, s.monitor.IncGamesCompleted)
	s.monitor.SetActiveRooms(s.roomManager.Count())
}

// reapRooms 已完成的房间等所有观战者离开后才拆除，期间他们还能
// 收到终局广播和聊天；无人的未完成房间超时后强制结束。
func reapRooms(manager *room.Manager, idleTimeout time.Duration, onRemoved func()) {
	for _, r := range manager.Rooms() {
		if r.IsCompleted() {
			if r.HumanCount() > 0 {
				continue
			}
			if onRemoved != nil {
				onRemoved()
			}
			manager.RemoveRoom(r.ID)
			continue
		}
		if r.HumanCount() == 0 && time.Since(r.IdleSince()) > idleTimeout {
			logger.Log.Infof("Reaping idle room %s", r.ID)
			r.ForceComplete("room idle")
		}
	}
}

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.handleConnection(conn)
}

func (s *GameServer) handleConnection(conn *websocket.Conn) {
	wsConn := network.NewWSConnection(conn)
	sess := session.NewSession(uuid.New().String(), wsConn)
	s.sessionManager.Add(sess)
	s.monitor.IncOnlinePlayers()

	logger.Log.Infof("New connection from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())

	defer func() {
		logger.Log.Infof("Connection closed from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())
		s.monitor.DecOnlinePlayers()
		s.sessionManager.Remove(sess.GetID())
		if sess.RoomID != "" {
			// 断线等同离开，房间本身继续跑
			if r, ok := s.roomManager.GetRoom(sess.RoomID); ok {
				r.Leave(sess.GetID())
			}
		}
		sess.Close()
	}()

	for {
		select {
		case <-s.shutdownChan:
			return
		default:
			packet, err := wsConn.ReadPacket()
			if err != nil {
				return
			}
			s.handlePacket(sess, packet)
		}
	}
}

func (s *GameServer) handlePacket(sess *session.Session, packet *network.Packet) {
	s.monitor.IncMessagesReceived()

	switch packet.MsgID {
	case network.MsgTypeHeartbeat:
		sess.Touch()
	case network.MsgTypeCreateRoom:
		s.handleCreateRoom(sess, packet)
	case network.MsgTypeJoinRoom:
		s.handleJoinRoom(sess, packet)
	case network.MsgTypeLeaveRoom:
		s.handleLeaveRoom(sess)
	case network.MsgTypeListRooms:
		s.handleListRooms(sess)
	case network.MsgTypePlayerAction:
		s.handleGameAction(sess, packet)
	case network.MsgTypeChat:
		s.handleChat(sess, packet)
	case network.MsgTypeKillGame:
		s.handleKillGame(sess, packet)
	default:
		logger.Log.Infof("Unknown message type: %d", packet.MsgID)
	}
}

type createRoomRequest struct {
	Name       string `json:"name"`
	Mode       string `json:"mode"`
	MaxPlayers int    `json:"max_players"`
	Private    bool   `json:"private"`
	Password   string `json:"password"`
	UserID     int64  `json:"user_id"`
	PlayerName string `json:"player_name"`
}

func (s *GameServer) handleCreateRoom(sess *session.Session, packet *network.Packet) {
	var req createRoomRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		s.sendError(sess, "bad_request", "invalid create room payload")
		return
	}
	s.identify(sess, req.UserID, req.PlayerName)

	params := room.Params{
		Name:       req.Name,
		HostID:     sess.GetID(),
		Mode:       req.Mode,
		MaxPlayers: req.MaxPlayers,
		Private:    req.Private,
	}
	if req.Private {
		params.PasswordHash = hashPassword(req.Password)
	}

	roomID := uuid.New().String()
	r, err := s.roomManager.CreateRoom(roomID, params, s.broadcaster,
		s.gameConfig(), s.cfg.Game.TickInterval, s.lifecycle)
	if err != nil {
		s.sendError(sess, "validation", err.Error())
		return
	}
	if err := r.Join(sess, params.PasswordHash); err != nil {
		s.sendError(sess, "join_failed", err.Error())
		return
	}
	s.monitor.SetActiveRooms(s.roomManager.Count())

	logger.Log.Infof("Session %s created room %s", sess.GetID(), roomID)

	resp := map[string]string{"room_id": roomID}
	data, _ := json.Marshal(resp)
	sess.Send(network.MsgTypeCreateRoom, data)
}

type joinRoomRequest struct {
	RoomID     string `json:"room_id"`
	Password   string `json:"password"`
	UserID     int64  `json:"user_id"`
	PlayerName string `json:"player_name"`
}

func (s *GameServer) handleJoinRoom(sess *session.Session, packet *network.Packet) {
	var req joinRoomRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		s.sendError(sess, "bad_request", "invalid join room payload")
		return
	}
	s.identify(sess, req.UserID, req.PlayerName)

	r, exists := s.roomManager.GetRoom(req.RoomID)
	if !exists {
		s.sendError(sess, "not_found", "room not found")
		return
	}

	if err := r.Join(sess, hashPassword(req.Password)); err != nil {
		s.sendError(sess, joinErrorCode(err), err.Error())
		return
	}
	logger.Log.Infof("Session %s joined room %s", sess.GetID(), req.RoomID)

	resp := map[string]string{"room_id": req.RoomID}
	data, _ := json.Marshal(resp)
	sess.Send(network.MsgTypeJoinRoom, data)
}

func (s *GameServer) handleLeaveRoom(sess *session.Session) {
	if sess.RoomID == "" {
		return
	}
	if r, ok := s.roomManager.GetRoom(sess.RoomID); ok {
		r.Leave(sess.GetID())
	}
	sess.Send(network.MsgTypeLeaveRoom, []byte(`{}`))
}

func (s *GameServer) handleListRooms(sess *session.Session) {
	data, err := json.Marshal(s.roomManager.ListOpen())
	if err != nil {
		return
	}
	sess.Send(network.MsgTypeListRooms, data)
}

func (s *GameServer) handleGameAction(sess *session.Session, packet *network.Packet) {
	if sess.RoomID == "" {
		s.sendError(sess, "not_in_room", "not in a room")
		return
	}

	r, exists := s.roomManager.GetRoom(sess.RoomID)
	if !exists {
		logger.Log.Errorf("Room %s not found for session %s", sess.RoomID, sess.GetID())
		return
	}

	currentState := r.StateMachine.GetCurrentState()
	if currentState == nil {
		logger.Log.Errorf("Room %s has a nil state", r.GetID())
		return
	}

	if err := currentState.HandleAction(sess, packet.Data); err != nil {
		s.sendError(sess, "action_rejected", err.Error())
		return
	}
	s.monitor.IncActionsApplied()
}

type chatRequest struct {
	Message string `json:"message"`
}

func (s *GameServer) handleChat(sess *session.Session, packet *network.Packet) {
	var req chatRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil || req.Message == "" {
		return
	}

	msg := room.ChatMessage{
		RoomID:     sess.RoomID,
		UserID:     sess.GetUserID(),
		PlayerName: sess.GetName(),
		Message:    req.Message,
		Type:       "chat",
		Timestamp:  time.Now(),
	}

	if sess.RoomID == "" {
		// 未入房的会话归入保留的 solo 房间：只回显，从不持久化
		msg.RoomID = room.SoloRoomID
		data, err := json.Marshal(msg)
		if err != nil {
			return
		}
		sess.Send(network.MsgTypeChat, data)
		return
	}

	if r, ok := s.roomManager.GetRoom(sess.RoomID); ok {
		r.AppendMessage(msg)
	}
}

type killGameRequest struct {
	RoomID string `json:"room_id"`
}

// handleKillGame 房主强制结束：冻结引擎、广播终局、结算按未完成落库
func (s *GameServer) handleKillGame(sess *session.Session, packet *network.Packet) {
	var req killGameRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		s.sendError(sess, "bad_request", "invalid kill payload")
		return
	}

	r, exists := s.roomManager.GetRoom(req.RoomID)
	if !exists {
		s.sendError(sess, "not_found", "room not found")
		return
	}
	if r.GetHostID() != sess.GetID() {
		s.sendError(sess, "forbidden", "only the host can kill the game")
		return
	}

	logger.Log.Warnf("Host %s killed room %s", sess.GetID(), req.RoomID)
	r.ForceComplete("killed by host")
}

// identify 把登录身份绑到会话。没有独立的登录消息，身份随建房/
// 入房请求携带。
func (s *GameServer) identify(sess *session.Session, userID int64, name string) {
	if userID != 0 {
		sess.UserID = userID
	}
	if name != "" {
		sess.PlayerName = name
	}
	if sess.PlayerName == "" {
		sess.PlayerName = "player-" + sess.GetID()[:8]
	}
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *GameServer) sendError(sess *session.Session, code, message string) {
	data, err := json.Marshal(errorResponse{Code: code, Message: message})
	if err != nil {
		return
	}
	sess.Send(network.MsgTypeError, data)
}

func joinErrorCode(err error) string {
	switch {
	case errors.Is(err, room.ErrRoomFull):
		return "room_full"
	case errors.Is(err, room.ErrRoomCompleted):
		return "room_completed"
	case errors.Is(err, room.ErrAuth):
		return "auth"
	default:
		return "join_failed"
	}
}

func (s *GameServer) gameConfig() game.Config {
	g := s.cfg.Game
	return game.Config{
		GracePeriod:          g.GracePeriod,
		AIPreActivationTicks: g.AIPreActivation,
		AIMinDelayTicks:      g.AIMinDelayTicks,
		AIMaxDelayTicks:      g.AIMaxDelayTicks,
		Aggressiveness:       g.AIAggressiveness,
		DecisionBudget:       time.Duration(g.AIDecisionBudgetMS) * time.Millisecond,
		StartingAssets:       g.StartingAssets,
	}
}

func hashPassword(password string) string {
	if password == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}
