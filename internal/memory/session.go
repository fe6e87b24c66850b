package memory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SessionOptions 配置一个会话。ActorID / SessionID 缺省时自动生成。
type SessionOptions struct {
	MemoryID  string
	ActorID   string
	SessionID string
	MaxEvents int
	Log       *slog.Logger
}

// Session 绑定一个 memory/actor/session 三元组，向编排层提供
// 记录与回放对话历史的能力。存储故障只影响记忆，不影响对话。
type Session struct {
	store     EventStore
	memoryID  string
	maxEvents int
	log       *slog.Logger
	now       func() time.Time

	mu        sync.RWMutex
	actorID   string
	sessionID string
}

// NewSession 创建会话。
func NewSession(store EventStore, opts SessionOptions) *Session {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	maxEvents := opts.MaxEvents
	if maxEvents <= 0 {
		maxEvents = 10
	}
	s := &Session{
		store:     store,
		memoryID:  opts.MemoryID,
		maxEvents: maxEvents,
		log:       log,
		now:       time.Now,
		actorID:   opts.ActorID,
		sessionID: opts.SessionID,
	}
	if s.actorID == "" {
		s.actorID = s.generateID("user")
	}
	if s.sessionID == "" {
		s.sessionID = s.generateID("session")
	}
	log.Info("记忆会话已初始化",
		"memory_id", s.memoryID,
		"actor_id", s.actorID,
		"session_id", s.sessionID,
	)
	return s
}

func (s *Session) generateID(kind string) string {
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	return fmt.Sprintf("%s_%s_%s", kind, s.now().Format("20060102150405"), suffix)
}

// RecordTurn 记录一次用户/助手交换。任一侧为空白时跳过，
// 存储失败只记日志。
func (s *Session) RecordTurn(ctx context.Context, userText, assistantText string) {
	if strings.TrimSpace(userText) == "" || strings.TrimSpace(assistantText) == "" {
		s.log.Warn("跳过空白消息的事件写入")
		return
	}
	s.mu.RLock()
	actorID, sessionID := s.actorID, s.sessionID
	s.mu.RUnlock()

	event := Event{
		MemoryID:  s.memoryID,
		ActorID:   actorID,
		SessionID: sessionID,
		Messages: []Message{
			{Role: RoleUser, Text: userText},
			{Role: RoleAssistant, Text: assistantText},
		},
	}
	if _, err := s.store.CreateEvent(ctx, event); err != nil {
		s.log.Error("写入记忆事件失败", "session_id", sessionID, "error", err)
		return
	}
	s.log.Info("记忆事件已写入", "session_id", sessionID)
}

// RecentHistory 返回格式化的最近对话历史。无历史或读取失败时
// 返回固定提示文案。
func (s *Session) RecentHistory(ctx context.Context) string {
	s.mu.RLock()
	actorID, sessionID := s.actorID, s.sessionID
	s.mu.RUnlock()

	events, err := s.store.ListEvents(ctx, s.memoryID, actorID, sessionID, s.maxEvents)
	if err != nil {
		s.log.Error("读取记忆事件失败", "session_id", sessionID, "error", err)
		return "No previous conversation history."
	}
	if len(events) == 0 {
		return "No previous conversation history."
	}

	var lines []string
	for _, event := range events {
		for _, msg := range event.Messages {
			switch msg.Role {
			case RoleUser:
				lines = append(lines, "User: "+msg.Text)
			case RoleAssistant:
				lines = append(lines, "Assistant: "+msg.Text)
			}
		}
	}
	if len(lines) == 0 {
		return "No conversation history available."
	}
	return strings.Join(lines, "\n")
}

// RotateSession 在保留 actor 的前提下切换到新会话，返回新会话 ID。
func (s *Session) RotateSession() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionID = s.generateID("session")
	s.log.Info("已开启新会话", "session_id", s.sessionID)
	return s.sessionID
}

// MemoryID 返回记忆标识。
func (s *Session) MemoryID() string { return s.memoryID }

// ActorID 返回当前 actor 标识。
func (s *Session) ActorID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.actorID
}

// SessionID 返回当前会话标识。
func (s *Session) SessionID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessionID
}
