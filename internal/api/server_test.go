package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/techwithashish1/aws-agent-core-sample-application/internal/agent"
	"github.com/techwithashish1/aws-agent-core-sample-application/internal/llm"
	"github.com/techwithashish1/aws-agent-core-sample-application/internal/memory"
	"github.com/techwithashish1/aws-agent-core-sample-application/internal/tools"
)

type fixedLLM struct{ reply string }

func (f fixedLLM) Complete(ctx context.Context, req llm.Request) (*llm.Message, error) {
	return &llm.Message{Role: llm.RoleAssistant, Content: f.reply}, nil
}

type noopRunner struct{}

func (noopRunner) Run(ctx context.Context, call llm.ToolCall) *tools.Result {
	return &tools.Result{Success: true, Message: "ok"}
}

func newTestServer(t *testing.T, reply string) (*Server, *memory.Session) {
	t.Helper()
	reg := tools.NewRegistry(nil)
	if err := reg.Register(tools.Tool{
		Name:        "list_s3_buckets",
		Description: "List S3 buckets",
		Handler: func(ctx context.Context, args map[string]any) (*tools.Result, error) {
			return &tools.Result{Success: true, Message: "ok"}, nil
		},
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	session := memory.NewSession(memory.NewInMemoryStore(), memory.SessionOptions{MemoryID: "mem-1"})
	ag := agent.New(fixedLLM{reply: reply}, reg, noopRunner{}, agent.WithMemorySession(session))
	return NewServer(":0", ag, session, reg), session
}

func TestHandleChatSuccess(t *testing.T) {
	long := strings.Repeat("Here is the full inventory of your AWS resources. ", 8)
	server, _ := newTestServer(t, long)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(`{"prompt":"list buckets"}`))
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp chatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || resp.Result != long {
		t.Fatalf("response = %+v", resp)
	}
	if resp.Metadata["session_id"] == "" {
		t.Fatalf("metadata missing session id: %v", resp.Metadata)
	}
}

func TestHandleChatRejectsEmptyPrompt(t *testing.T) {
	server, _ := newTestServer(t, "unused")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(`{"prompt":"  "}`))
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "No prompt found in input payload") {
		t.Fatalf("body = %q", rec.Body.String())
	}
}

func TestHandleRotateSession(t *testing.T) {
	server, session := newTestServer(t, "unused")
	before := session.SessionID()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/rotate", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["session_id"] == before || resp["session_id"] == "" {
		t.Fatalf("session not rotated: %v", resp)
	}

	// GET 不允许。
	req = httptest.NewRequest(http.MethodGet, "/api/v1/sessions/rotate", nil)
	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestHandleHistoryReflectsConversation(t *testing.T) {
	long := strings.Repeat("Your request has been processed and results follow. ", 8)
	server, _ := newTestServer(t, long)

	chat := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(`{"prompt":"list buckets"}`))
	server.Handler().ServeHTTP(httptest.NewRecorder(), chat)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/history", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "User: list buckets") {
		t.Fatalf("history missing turn: %q", rec.Body.String())
	}
}

func TestHandleToolsListsCatalogue(t *testing.T) {
	server, _ := newTestServer(t, "unused")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tools", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Tools []toolSummary `json:"tools"`
		Count int           `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 1 || resp.Tools[0].Name != "list_s3_buckets" {
		t.Fatalf("tools = %+v", resp)
	}
}
