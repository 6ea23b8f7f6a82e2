// persistence/postgresql.go
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	// PostgreSQL 驱动
	_ "github.com/lib/pq"

	"github.com/wfunc/tycoon/game"
	"github.com/wfunc/tycoon/models"
)

const queryTimeout = 5 * time.Second

// PostgreSQL 不经ORM的原生SQL实现，与 GormPostgreSQL 行为等价
type PostgreSQL struct {
	db *sql.DB
}

// NewPostgreSQL 创建 PostgreSQL 数据库连接
func NewPostgreSQL(host string, port int, user, password, dbname string) (*PostgreSQL, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	// 设置连接池参数
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	// 初始化表结构
	if err := initTables(db); err != nil {
		return nil, err
	}

	return &PostgreSQL{db: db}, nil
}

func initTables(db *sql.DB) error {
	_, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS game_states (
            id SERIAL PRIMARY KEY,
            room_id VARCHAR(255) UNIQUE NOT NULL,
            turn BIGINT NOT NULL DEFAULT 0,
            is_active BOOLEAN NOT NULL DEFAULT TRUE,
            winner VARCHAR(255) NOT NULL DEFAULT '',
            state JSONB NOT NULL,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        )
    `)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
        CREATE TABLE IF NOT EXISTS replays (
            id SERIAL PRIMARY KEY,
            room_id VARCHAR(255) NOT NULL,
            room_name VARCHAR(255) NOT NULL,
            mode VARCHAR(100) NOT NULL,
            status VARCHAR(50) NOT NULL,
            winner VARCHAR(255) NOT NULL DEFAULT '',
            players JSONB NOT NULL,
            player_names TEXT NOT NULL DEFAULT '',
            log JSONB NOT NULL,
            duration_seconds INT NOT NULL DEFAULT 0,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        )
    `)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
        CREATE TABLE IF NOT EXISTS player_stats (
            id SERIAL PRIMARY KEY,
            user_id BIGINT UNIQUE NOT NULL,
            games_played INT NOT NULL DEFAULT 0,
            games_won INT NOT NULL DEFAULT 0,
            average_rank DOUBLE PRECISION NOT NULL DEFAULT 0,
            total_play_time_seconds BIGINT NOT NULL DEFAULT 0,
            highest_assets BIGINT NOT NULL DEFAULT 0,
            updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        )
    `)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
        CREATE TABLE IF NOT EXISTS unlocked_achievements (
            id SERIAL PRIMARY KEY,
            user_id BIGINT NOT NULL,
            achievement_id VARCHAR(100) NOT NULL,
            points INT NOT NULL DEFAULT 0,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            UNIQUE (user_id, achievement_id)
        )
    `)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
        CREATE INDEX IF NOT EXISTS idx_replays_room_name ON replays(room_name);
        CREATE INDEX IF NOT EXISTS idx_replays_status ON replays(status);
        CREATE INDEX IF NOT EXISTS idx_replays_created_at ON replays(created_at);
        CREATE INDEX IF NOT EXISTS idx_unlocked_achievements_user ON unlocked_achievements(user_id);
    `)
	return err
}

// SaveGameState 按 room_id UPSERT
func (p *PostgreSQL) SaveGameState(roomID string, snap *game.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	query := `
        INSERT INTO game_states (room_id, turn, is_active, winner, state)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (room_id)
        DO UPDATE SET turn = $2, is_active = $3, winner = $4, state = $5, updated_at = CURRENT_TIMESTAMP
    `
	_, err = p.db.ExecContext(ctx, query, roomID, snap.Turn, snap.IsActive, snap.Winner, data)
	return err
}

// LoadGameState 加载房间状态
func (p *PostgreSQL) LoadGameState(roomID string) (*game.Snapshot, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	var data []byte
	err := p.db.QueryRowContext(ctx,
		`SELECT state FROM game_states WHERE room_id = $1`, roomID).Scan(&data)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}

	var snap game.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// SaveReplay 保存回放记录
func (p *PostgreSQL) SaveReplay(replay *models.Replay) error {
	players, err := json.Marshal(replay.Players)
	if err != nil {
		return err
	}
	logData, err := json.Marshal(replay.Log)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(replay.Players))
	for _, pl := range replay.Players {
		names = append(names, pl.Name)
	}

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	query := `
        INSERT INTO replays (room_id, room_name, mode, status, winner, players, player_names, log, duration_seconds)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        RETURNING id, created_at
    `
	return p.db.QueryRowContext(ctx, query,
		replay.RoomID, replay.RoomName, replay.Mode, replay.Status, replay.Winner,
		players, strings.Join(names, ","), logData, replay.DurationSeconds,
	).Scan(&replay.ID, &replay.CreatedAt)
}

// LoadReplay 按ID加载回放
func (p *PostgreSQL) LoadReplay(id uint) (*models.Replay, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	row := p.db.QueryRowContext(ctx, `
        SELECT id, room_id, room_name, mode, status, winner, players, log, duration_seconds, created_at
        FROM replays WHERE id = $1`, id)

	replay, err := scanReplay(row)
	if err == sql.ErrNoRows {
		return nil, ErrRecordNotFound
	}
	return replay, err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanReplay(row rowScanner) (*models.Replay, error) {
	var replay models.Replay
	var players, logData []byte
	err := row.Scan(&replay.ID, &replay.RoomID, &replay.RoomName, &replay.Mode,
		&replay.Status, &replay.Winner, &players, &logData,
		&replay.DurationSeconds, &replay.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(players, &replay.Players); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(logData, &replay.Log); err != nil {
		return nil, err
	}
	return &replay, nil
}

// SearchReplays 动态拼接检索条件
func (p *PostgreSQL) SearchReplays(q models.ReplayQuery) ([]models.Replay, error) {
	var conds []string
	var args []interface{}

	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if q.RoomName != "" {
		add("room_name ILIKE $%d", "%"+q.RoomName+"%")
	}
	if q.PlayerName != "" {
		add("player_names ILIKE $%d", "%"+q.PlayerName+"%")
	}
	if q.Mode != "" {
		add("mode = $%d", q.Mode)
	}
	if q.Status != "" && q.Status != "all" {
		add("status = $%d", q.Status)
	}
	if q.MinDurationSeconds > 0 {
		add("duration_seconds >= $%d", q.MinDurationSeconds)
	}
	if q.MaxDurationSeconds > 0 {
		add("duration_seconds <= $%d", q.MaxDurationSeconds)
	}
	if !q.From.IsZero() {
		add("created_at >= $%d", q.From)
	}
	if !q.To.IsZero() {
		add("created_at <= $%d", q.To)
	}

	query := `SELECT id, room_id, room_name, mode, status, winner, players, log, duration_seconds, created_at FROM replays`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	switch q.SortKey {
	case "duration":
		query += " ORDER BY duration_seconds DESC"
	case "name":
		query += " ORDER BY room_name ASC"
	default:
		query += " ORDER BY created_at DESC"
	}

	args = append(args, q.Limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))
	args = append(args, q.Offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var replays []models.Replay
	for rows.Next() {
		replay, err := scanReplay(rows)
		if err != nil {
			return nil, err
		}
		replays = append(replays, *replay)
	}
	return replays, rows.Err()
}

// UpsertPlayerStats 按 user_id UPSERT
func (p *PostgreSQL) UpsertPlayerStats(stats *models.PlayerStats) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	query := `
        INSERT INTO player_stats (user_id, games_played, games_won, average_rank, total_play_time_seconds, highest_assets)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (user_id)
        DO UPDATE SET games_played = $2, games_won = $3, average_rank = $4,
                      total_play_time_seconds = $5, highest_assets = $6, updated_at = CURRENT_TIMESTAMP
    `
	_, err := p.db.ExecContext(ctx, query, stats.UserID, stats.GamesPlayed, stats.GamesWon,
		stats.AverageRank, stats.TotalPlayTimeSeconds, stats.HighestAssets)
	return err
}

// LoadPlayerStats 加载单个用户统计
func (p *PostgreSQL) LoadPlayerStats(userID int64) (*models.PlayerStats, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	var stats models.PlayerStats
	err := p.db.QueryRowContext(ctx, `
        SELECT user_id, games_played, games_won, average_rank, total_play_time_seconds, highest_assets
        FROM player_stats WHERE user_id = $1`, userID,
	).Scan(&stats.UserID, &stats.GamesPlayed, &stats.GamesWon,
		&stats.AverageRank, &stats.TotalPlayTimeSeconds, &stats.HighestAssets)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &stats, nil
}

// TopPlayerStats 胜场降序前N
func (p *PostgreSQL) TopPlayerStats(limit int) ([]models.PlayerStats, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	rows, err := p.db.QueryContext(ctx, `
        SELECT user_id, games_played, games_won, average_rank, total_play_time_seconds, highest_assets
        FROM player_stats ORDER BY games_won DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []models.PlayerStats
	for rows.Next() {
		var stats models.PlayerStats
		if err := rows.Scan(&stats.UserID, &stats.GamesPlayed, &stats.GamesWon,
			&stats.AverageRank, &stats.TotalPlayTimeSeconds, &stats.HighestAssets); err != nil {
			return nil, err
		}
		result = append(result, stats)
	}
	return result, rows.Err()
}

// SaveUnlockedAchievement 冲突即忽略，保证 (user, achievement) 唯一
func (p *PostgreSQL) SaveUnlockedAchievement(u *models.UnlockedAchievement) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	query := `
        INSERT INTO unlocked_achievements (user_id, achievement_id, points)
        VALUES ($1, $2, $3)
        ON CONFLICT (user_id, achievement_id) DO NOTHING
    `
	_, err := p.db.ExecContext(ctx, query, u.UserID, u.AchievementID, u.Points)
	return err
}

// LoadUnlockedAchievements 按解锁时间降序
func (p *PostgreSQL) LoadUnlockedAchievements(userID int64) ([]models.UnlockedAchievement, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	rows, err := p.db.QueryContext(ctx, `
        SELECT user_id, achievement_id, points, created_at
        FROM unlocked_achievements WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []models.UnlockedAchievement
	for rows.Next() {
		var u models.UnlockedAchievement
		if err := rows.Scan(&u.UserID, &u.AchievementID, &u.Points, &u.UnlockedAt); err != nil {
			return nil, err
		}
		result = append(result, u)
	}
	return result, rows.Err()
}

// Close 关闭数据库连接
func (p *PostgreSQL) Close() error {
	return p.db.Close()
}
