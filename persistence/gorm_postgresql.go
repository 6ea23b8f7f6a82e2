// persistence/gorm_postgresql.go
package persistence

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/wfunc/tycoon/game"
	"github.com/wfunc/tycoon/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// GormPostgreSQL 使用GORM的PostgreSQL实现
type GormPostgreSQL struct {
	db *gorm.DB
}

// NewGormPostgreSQL 创建GORM PostgreSQL数据库连接
func NewGormPostgreSQL(host string, port int, user, password, dbname string) (*GormPostgreSQL, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	// 配置GORM日志
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold: time.Second,
			LogLevel:      logger.Silent,
			Colorful:      false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 设置连接池
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// 自动迁移表结构
	if err := autoMigrate(db); err != nil {
		return nil, err
	}

	return &GormPostgreSQL{db: db}, nil
}

func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.GormGameState{},
		&models.GormReplay{},
		&models.GormPlayerStats{},
		&models.GormUnlockedAchievement{},
	)
}

// SaveGameState 按 room_id 幂等保存房间状态
func (p *GormPostgreSQL) SaveGameState(roomID string, snap *game.Snapshot) error {
	record := models.GormGameState{
		RoomID:   roomID,
		Turn:     snap.Turn,
		IsActive: snap.IsActive,
		Winner:   snap.Winner,
		State:    snap,
	}
	return p.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "room_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"turn", "is_active", "winner", "state", "updated_at"}),
	}).Create(&record).Error
}

// LoadGameState 加载最近一次保存的房间状态
func (p *GormPostgreSQL) LoadGameState(roomID string) (*game.Snapshot, error) {
	var record models.GormGameState
	if err := p.db.Where("room_id = ?", roomID).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return record.State, nil
}

// SaveReplay 保存回放记录
func (p *GormPostgreSQL) SaveReplay(replay *models.Replay) error {
	record := models.GormReplay{
		RoomID:          replay.RoomID,
		RoomName:        replay.RoomName,
		Mode:            replay.Mode,
		Status:          replay.Status,
		Winner:          replay.Winner,
		Players:         replay.Players,
		PlayerNames:     joinPlayerNames(replay.Players),
		Log:             replay.Log,
		DurationSeconds: replay.DurationSeconds,
	}
	if err := p.db.Create(&record).Error; err != nil {
		return err
	}
	replay.ID = record.ID
	replay.CreatedAt = record.CreatedAt
	return nil
}

// LoadReplay 按ID加载回放
func (p *GormPostgreSQL) LoadReplay(id uint) (*models.Replay, error) {
	var record models.GormReplay
	if err := p.db.First(&record, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	replay := toReplay(&record)
	return &replay, nil
}

// SearchReplays 按条件检索回放，调用方负责 limit 上限
func (p *GormPostgreSQL) SearchReplays(q models.ReplayQuery) ([]models.Replay, error) {
	db := p.db.Model(&models.GormReplay{})

	if q.RoomName != "" {
		db = db.Where("room_name ILIKE ?", "%"+q.RoomName+"%")
	}
	if q.PlayerName != "" {
		db = db.Where("player_names ILIKE ?", "%"+q.PlayerName+"%")
	}
	if q.Mode != "" {
		db = db.Where("mode = ?", q.Mode)
	}
	if q.Status != "" && q.Status != "all" {
		db = db.Where("status = ?", q.Status)
	}
	if q.MinDurationSeconds > 0 {
		db = db.Where("duration_seconds >= ?", q.MinDurationSeconds)
	}
	if q.MaxDurationSeconds > 0 {
		db = db.Where("duration_seconds <= ?", q.MaxDurationSeconds)
	}
	if !q.From.IsZero() {
		db = db.Where("created_at >= ?", q.From)
	}
	if !q.To.IsZero() {
		db = db.Where("created_at <= ?", q.To)
	}

	switch q.SortKey {
	case "duration":
		db = db.Order("duration_seconds DESC")
	case "name":
		db = db.Order("room_name ASC")
	default: // recent
		db = db.Order("created_at DESC")
	}

	var records []models.GormReplay
	if err := db.Limit(q.Limit).Offset(q.Offset).Find(&records).Error; err != nil {
		return nil, err
	}

	replays := make([]models.Replay, 0, len(records))
	for i := range records {
		replays = append(replays, toReplay(&records[i]))
	}
	return replays, nil
}

// UpsertPlayerStats 按 user_id 幂等保存统计
func (p *GormPostgreSQL) UpsertPlayerStats(stats *models.PlayerStats) error {
	record := models.GormPlayerStats{
		UserID:               stats.UserID,
		GamesPlayed:          stats.GamesPlayed,
		GamesWon:             stats.GamesWon,
		AverageRank:          stats.AverageRank,
		TotalPlayTimeSeconds: stats.TotalPlayTimeSeconds,
		HighestAssets:        stats.HighestAssets,
	}
	return p.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"games_played", "games_won", "average_rank",
			"total_play_time_seconds", "highest_assets", "updated_at",
		}),
	}).Create(&record).Error
}

// LoadPlayerStats 加载单个用户的统计
func (p *GormPostgreSQL) LoadPlayerStats(userID int64) (*models.PlayerStats, error) {
	var record models.GormPlayerStats
	if err := p.db.Where("user_id = ?", userID).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &models.PlayerStats{
		UserID:               record.UserID,
		GamesPlayed:          record.GamesPlayed,
		GamesWon:             record.GamesWon,
		AverageRank:          record.AverageRank,
		TotalPlayTimeSeconds: record.TotalPlayTimeSeconds,
		HighestAssets:        record.HighestAssets,
	}, nil
}

// TopPlayerStats 胜场降序取前N，排行榜的基础数据
func (p *GormPostgreSQL) TopPlayerStats(limit int) ([]models.PlayerStats, error) {
	var records []models.GormPlayerStats
	if err := p.db.Order("games_won DESC").Limit(limit).Find(&records).Error; err != nil {
		return nil, err
	}
	stats := make([]models.PlayerStats, 0, len(records))
	for _, r := range records {
		stats = append(stats, models.PlayerStats{
			UserID:               r.UserID,
			GamesPlayed:          r.GamesPlayed,
			GamesWon:             r.GamesWon,
			AverageRank:          r.AverageRank,
			TotalPlayTimeSeconds: r.TotalPlayTimeSeconds,
			HighestAssets:        r.HighestAssets,
		})
	}
	return stats, nil
}

// SaveUnlockedAchievement (user, achievement) 冲突时不重复写入
func (p *GormPostgreSQL) SaveUnlockedAchievement(u *models.UnlockedAchievement) error {
	record := models.GormUnlockedAchievement{
		UserID:        u.UserID,
		AchievementID: u.AchievementID,
		Points:        u.Points,
	}
	return p.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "achievement_id"}},
		DoNothing: true,
	}).Create(&record).Error
}

// LoadUnlockedAchievements 按解锁时间降序返回用户的解锁记录
func (p *GormPostgreSQL) LoadUnlockedAchievements(userID int64) ([]models.UnlockedAchievement, error) {
	var records []models.GormUnlockedAchievement
	if err := p.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&records).Error; err != nil {
		return nil, err
	}
	unlocked := make([]models.UnlockedAchievement, 0, len(records))
	for _, r := range records {
		unlocked = append(unlocked, models.UnlockedAchievement{
			UserID:        r.UserID,
			AchievementID: r.AchievementID,
			Points:        r.Points,
			UnlockedAt:    r.CreatedAt,
		})
	}
	return unlocked, nil
}

// Close 关闭数据库连接
func (p *GormPostgreSQL) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Transaction 事务支持（services 之外的调用方使用）
func (p *GormPostgreSQL) Transaction(fn func(tx *gorm.DB) error) error {
	return p.db.Transaction(fn)
}

func toReplay(record *models.GormReplay) models.Replay {
	return models.Replay{
		ID:              record.ID,
		RoomID:          record.RoomID,
		RoomName:        record.RoomName,
		Mode:            record.Mode,
		Status:          record.Status,
		Winner:          record.Winner,
		Players:         record.Players,
		Log:             record.Log,
		DurationSeconds: record.DurationSeconds,
		CreatedAt:       record.CreatedAt,
	}
}

func joinPlayerNames(players []models.ReplayPlayer) string {
	names := make([]string, 0, len(players))
	for _, p := range players {
		names = append(names, p.Name)
	}
	return strings.Join(names, ",")
}
