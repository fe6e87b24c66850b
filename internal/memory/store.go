// Package memory 维护会话级的对话记忆。事件由外部存储保存，
// 会话层负责格式化历史并在失败时保持对话主流程不受影响。
package memory

import (
	"context"
	"time"
)

// 对话事件中的消息角色。
const (
	RoleUser      = "USER"
	RoleAssistant = "ASSISTANT"
)

// Message 是事件内的单条消息。
type Message struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Event 是一次完整的用户/助手交换。
type Event struct {
	ID        string    `json:"id"`
	MemoryID  string    `json:"memory_id"`
	ActorID   string    `json:"actor_id"`
	SessionID string    `json:"session_id"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
}

// EventStore 抽象事件的持久化。实现需保证 ListEvents 返回
// 按时间升序排列的最近事件。
type EventStore interface {
	CreateEvent(ctx context.Context, event Event) (Event, error)
	ListEvents(ctx context.Context, memoryID, actorID, sessionID string, max int) ([]Event, error)
	Close() error
}
