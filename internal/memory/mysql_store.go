package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
)

// MySQLStoreConfig 描述 MySQL 事件存储的连接参数。
type MySQLStoreConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// MySQLStore 把事件落库到 memory_events 表。
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore 建立连接池并确保表结构存在。
func NewMySQLStore(ctx context.Context, cfg MySQLStoreConfig) (*MySQLStore, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("MySQL DSN 不能为空")
	}
	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("连接 MySQL 失败: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	} else {
		db.SetMaxOpenConns(20)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	} else {
		db.SetMaxIdleConns(10)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	} else {
		db.SetConnMaxLifetime(30 * time.Minute)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("无法连接到 MySQL: %w", err)
	}

	store := &MySQLStore{db: db}
	if err := store.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *MySQLStore) ensureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS memory_events (
        id VARCHAR(64) NOT NULL PRIMARY KEY,
        memory_id VARCHAR(128) NOT NULL,
        actor_id VARCHAR(128) NOT NULL,
        session_id VARCHAR(128) NOT NULL,
        payload JSON NOT NULL,
        created_at BIGINT NOT NULL,
        INDEX idx_session (memory_id, actor_id, session_id, created_at)
)`); err != nil {
		return fmt.Errorf("创建 memory_events 表失败: %w", err)
	}
	return nil
}

func (s *MySQLStore) CreateEvent(ctx context.Context, event Event) (Event, error) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	payload, err := json.Marshal(event.Messages)
	if err != nil {
		return Event{}, fmt.Errorf("序列化事件失败: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO memory_events (id, memory_id, actor_id, session_id, payload, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		event.ID, event.MemoryID, event.ActorID, event.SessionID, payload, event.CreatedAt.UnixNano(),
	); err != nil {
		return Event{}, fmt.Errorf("写入事件失败: %w", err)
	}
	return event, nil
}

func (s *MySQLStore) ListEvents(ctx context.Context, memoryID, actorID, sessionID string, max int) ([]Event, error) {
	if max <= 0 {
		max = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, payload, created_at FROM memory_events
         WHERE memory_id = ? AND actor_id = ? AND session_id = ?
         ORDER BY created_at DESC LIMIT ?`,
		memoryID, actorID, sessionID, max,
	)
	if err != nil {
		return nil, fmt.Errorf("查询事件失败: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			event     Event
			payload   []byte
			createdAt int64
		)
		if err := rows.Scan(&event.ID, &payload, &createdAt); err != nil {
			return nil, fmt.Errorf("解析事件失败: %w", err)
		}
		if err := json.Unmarshal(payload, &event.Messages); err != nil {
			return nil, fmt.Errorf("解析事件消息失败: %w", err)
		}
		event.MemoryID = memoryID
		event.ActorID = actorID
		event.SessionID = sessionID
		event.CreatedAt = time.Unix(0, createdAt)
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("遍历事件失败: %w", err)
	}

	// 查询按时间倒序取最近 N 条，这里翻转为升序。
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	return events, nil
}

func (s *MySQLStore) Close() error {
	return s.db.Close()
}
