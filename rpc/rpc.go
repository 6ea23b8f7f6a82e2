package rpc

import (
	"net"
	"net/rpc"

	"github.com/wfunc/tycoon/logger"
	"github.com/wfunc/tycoon/models"
	"github.com/wfunc/tycoon/services"
)

// Server manages the RPC listener.
type Server struct {
	listener net.Listener
	address  string
}

// NewServer creates a new RPC server.
func NewServer(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  addr,
	}, nil
}

// Start begins listening for RPC requests.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			// Check if the error is due to the listener being closed.
			if _, ok := err.(*net.OpError); ok {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go rpc.ServeConn(conn)
	}
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// GameService exposes read-only aggregates to other backend services.
// Methods follow the net/rpc signature rules.
type GameService struct {
	stats        *services.StatsService
	achievements *services.AchievementService
}

func NewGameService(stats *services.StatsService, achievements *services.AchievementService) *GameService {
	return &GameService{stats: stats, achievements: achievements}
}

type GetPlayerArgs struct {
	UserID int64
}

type GetPlayerReply struct {
	Stats        *models.PlayerStats
	Achievements *models.PlayerAchievementStats
}

// GetPlayerWithStats 单个玩家的累计统计加成就聚合
func (gs *GameService) GetPlayerWithStats(args *GetPlayerArgs, reply *GetPlayerReply) error {
	stats, err := gs.stats.GetPlayerStats(args.UserID)
	if err != nil {
		return err
	}
	achStats, err := gs.achievements.GetPlayerAchievementStats(args.UserID)
	if err != nil {
		return err
	}
	reply.Stats = stats
	reply.Achievements = achStats
	return nil
}

type LeaderboardArgs struct {
	SortKey string
	Limit   int
}

type LeaderboardReply struct {
	Entries []models.LeaderboardEntry
}

// GetLeaderboard 跨房间排行榜，最终一致读
func (gs *GameService) GetLeaderboard(args *LeaderboardArgs, reply *LeaderboardReply) error {
	entries, err := gs.stats.Leaderboard(args.SortKey, args.Limit)
	if err != nil {
		return err
	}
	reply.Entries = entries
	return nil
}
