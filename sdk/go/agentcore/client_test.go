package agentcore

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestChatSendsPromptAndDecodesResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/chat" || r.Method != http.MethodPost {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body["prompt"] != "list buckets" {
			t.Fatalf("prompt = %q", body["prompt"])
		}
		json.NewEncoder(w).Encode(ChatResponse{
			Result:   "Found 2 S3 bucket(s)",
			Success:  true,
			Metadata: map[string]any{"session_id": "session_x"},
		})
	}))
	defer server.Close()

	client, err := NewClient(server.URL, nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	resp, err := client.Chat(context.Background(), "list buckets")
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if !resp.Success || resp.Result != "Found 2 S3 bucket(s)" {
		t.Fatalf("response = %+v", resp)
	}
}

func TestRotateSessionAndHistory(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/sessions/rotate":
			if r.Method != http.MethodPost {
				t.Fatalf("method = %s", r.Method)
			}
			json.NewEncoder(w).Encode(SessionInfo{SessionID: "session_new", ActorID: "user_1"})
		case "/api/v1/history":
			json.NewEncoder(w).Encode(HistoryResponse{SessionID: "session_new", History: "User: hi\nAssistant: hello"})
		default:
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
	}))
	defer server.Close()

	client, err := NewClient(server.URL, nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	info, err := client.RotateSession(context.Background())
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if info.SessionID != "session_new" {
		t.Fatalf("session = %+v", info)
	}

	history, err := client.History(context.Background())
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.Contains(history.History, "User: hi") {
		t.Fatalf("history = %+v", history)
	}
}

func TestErrorResponsesSurfaceAsAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "记忆功能未启用", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client, err := NewClient(server.URL, nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	_, err = client.History(context.Background())
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("error type = %T", err)
	}
	if apiErr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", apiErr.StatusCode)
	}
}
