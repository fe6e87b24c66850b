package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/techwithashish1/aws-agent-core-sample-application/internal/agent"
	"github.com/techwithashish1/aws-agent-core-sample-application/internal/memory"
	"github.com/techwithashish1/aws-agent-core-sample-application/internal/tools"
)

// Server 负责暴露 REST 接口，供外部驱动智能体执行。
type Server struct {
	addr     string
	agent    *agent.Agent
	session  *memory.Session
	registry *tools.Registry
}

// NewServer 构造 API 服务实例。session 可以为 nil，表示记忆未启用。
func NewServer(addr string, ag *agent.Agent, session *memory.Session, registry *tools.Registry) *Server {
	return &Server{addr: addr, agent: ag, session: session, registry: registry}
}

// Handler 返回路由完备的 HTTP 处理器。
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/chat", s.handleChat)
	mux.HandleFunc("/api/v1/sessions/rotate", s.handleRotateSession)
	mux.HandleFunc("/api/v1/history", s.handleHistory)
	mux.HandleFunc("/api/v1/tools", s.handleTools)
	return mux
}

// Start 启动 HTTP 服务，直到上下文取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           withContext(ctx, s.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// chatRequest 是对话接口的请求体。
type chatRequest struct {
	Prompt string `json:"prompt"`
}

// chatResponse 是对话接口的响应体。
type chatResponse struct {
	Result   string         `json:"result"`
	Success  bool           `json:"success"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "仅支持 POST", http.StatusMethodNotAllowed)
		return
	}
	if s.agent == nil {
		http.Error(w, "Agent 未初始化", http.StatusServiceUnavailable)
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "请求体解析失败", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeJSON(w, http.StatusBadRequest, chatResponse{
			Result:  "No prompt found in input payload",
			Success: false,
		})
		return
	}

	start := time.Now()
	result := s.agent.Execute(r.Context(), req.Prompt)

	metadata := map[string]any{
		"execution_time_ms": time.Since(start).Milliseconds(),
	}
	if s.session != nil {
		metadata["session_id"] = s.session.SessionID()
		metadata["actor_id"] = s.session.ActorID()
	}
	writeJSON(w, http.StatusOK, chatResponse{
		Result:   result,
		Success:  !strings.HasPrefix(result, "Error executing command:"),
		Metadata: metadata,
	})
}

func (s *Server) handleRotateSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "仅支持 POST", http.StatusMethodNotAllowed)
		return
	}
	if s.session == nil {
		http.Error(w, "记忆功能未启用", http.StatusServiceUnavailable)
		return
	}
	sessionID := s.session.RotateSession()
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": sessionID,
		"actor_id":   s.session.ActorID(),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "仅支持 GET", http.StatusMethodNotAllowed)
		return
	}
	if s.session == nil {
		http.Error(w, "记忆功能未启用", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": s.session.SessionID(),
		"actor_id":   s.session.ActorID(),
		"history":    s.session.RecentHistory(r.Context()),
	})
}

// toolSummary 是工具目录接口的条目。
type toolSummary struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "仅支持 GET", http.StatusMethodNotAllowed)
		return
	}
	if s.registry == nil {
		http.Error(w, "工具注册表未初始化", http.StatusServiceUnavailable)
		return
	}
	all := s.registry.List()
	summaries := make([]toolSummary, 0, len(all))
	for _, tool := range all {
		summaries = append(summaries, toolSummary{Name: tool.Name, Description: tool.Description})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tools": summaries,
		"count": len(summaries),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// withContext 确保请求处理能够感知根上下文取消。
func withContext(ctx context.Context, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-ctx.Done():
			http.Error(w, "服务已关闭", http.StatusServiceUnavailable)
			return
		default:
		}
		handler.ServeHTTP(w, r)
	})
}
