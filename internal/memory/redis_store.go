package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisStoreConfig 描述 Redis 事件存储的连接参数。
type RedisStoreConfig struct {
	Address   string
	Password  string
	DB        int
	KeyPrefix string
}

// RedisStore 把每个会话的事件保存为 Redis list，按写入顺序追加。
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore 创建 Redis 事件存储并验证连通性。
func NewRedisStore(ctx context.Context, cfg RedisStoreConfig) (*RedisStore, error) {
	if cfg.Address == "" {
		return nil, errors.New("Redis address 不能为空")
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "agentcore:events"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("连接 Redis 失败: %w", err)
	}
	return &RedisStore{client: client, prefix: prefix}, nil
}

func (s *RedisStore) key(memoryID, actorID, sessionID string) string {
	return fmt.Sprintf("%s:%s:%s:%s", s.prefix, memoryID, actorID, sessionID)
}

func (s *RedisStore) CreateEvent(ctx context.Context, event Event) (Event, error) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	encoded, err := json.Marshal(event)
	if err != nil {
		return Event{}, fmt.Errorf("序列化事件失败: %w", err)
	}
	key := s.key(event.MemoryID, event.ActorID, event.SessionID)
	if err := s.client.RPush(ctx, key, encoded).Err(); err != nil {
		return Event{}, fmt.Errorf("Redis 写入事件失败: %w", err)
	}
	return event, nil
}

func (s *RedisStore) ListEvents(ctx context.Context, memoryID, actorID, sessionID string, max int) ([]Event, error) {
	key := s.key(memoryID, actorID, sessionID)
	start := int64(0)
	if max > 0 {
		start = int64(-max)
	}
	values, err := s.client.LRange(ctx, key, start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("Redis 读取事件失败: %w", err)
	}
	events := make([]Event, 0, len(values))
	for _, raw := range values {
		var event Event
		if err := json.Unmarshal([]byte(raw), &event); err != nil {
			return nil, fmt.Errorf("解析事件失败: %w", err)
		}
		events = append(events, event)
	}
	return events, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
