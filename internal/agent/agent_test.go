package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/techwithashish1/aws-agent-core-sample-application/internal/llm"
	"github.com/techwithashish1/aws-agent-core-sample-application/internal/memory"
	"github.com/techwithashish1/aws-agent-core-sample-application/internal/tools"
)

// scriptedLLM 按顺序返回预先写好的助手消息。
type scriptedLLM struct {
	mu       sync.Mutex
	script   []*llm.Message
	requests []llm.Request
	err      error
}

func (s *scriptedLLM) Complete(ctx context.Context, req llm.Request) (*llm.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	s.requests = append(s.requests, req)
	if len(s.script) == 0 {
		return &llm.Message{Role: llm.RoleAssistant, Content: "Done."}, nil
	}
	msg := s.script[0]
	s.script = s.script[1:]
	return msg, nil
}

// stubRunner 按工具名返回固定结果，并记录调用轨迹。
type stubRunner struct {
	mu      sync.Mutex
	results map[string]*tools.Result
	delays  map[string]time.Duration
	calls   []string
}

func (r *stubRunner) Run(ctx context.Context, call llm.ToolCall) *tools.Result {
	if d, ok := r.delays[call.Name]; ok {
		time.Sleep(d)
	}
	r.mu.Lock()
	r.calls = append(r.calls, call.Name)
	r.mu.Unlock()
	if res, ok := r.results[call.Name]; ok {
		return res
	}
	return &tools.Result{Success: true, Message: "ok: " + call.Name}
}

func newAgent(l llm.Client, runner ToolRunner, opts ...Option) *Agent {
	return New(l, tools.NewRegistry(nil), runner, opts...)
}

func TestExecuteTerminatesAfterSingleReasoningStep(t *testing.T) {
	stub := &scriptedLLM{script: []*llm.Message{
		{Role: llm.RoleAssistant, Content: "Nothing to do. There are no pending AWS resource operations for this request, so no tools were invoked. Let me know what resources you would like to create, inspect, or clean up and I will take it from there with the appropriate operations."},
	}}
	ag := newAgent(stub, &stubRunner{})

	got := ag.Execute(context.Background(), "hello")
	if !strings.HasPrefix(got, "Nothing to do.") {
		t.Fatalf("reply = %q", got)
	}
	if len(stub.requests) != 1 {
		t.Fatalf("reasoning steps = %d, want exactly 1", len(stub.requests))
	}
}

func TestExecuteListBucketsEndToEnd(t *testing.T) {
	stub := &scriptedLLM{script: []*llm.Message{
		{
			Role: llm.RoleAssistant,
			ToolCalls: []llm.ToolCall{
				{ID: "call-1", Name: "list_s3_buckets", Arguments: map[string]any{}},
			},
		},
		{Role: llm.RoleAssistant, Content: "Done."},
	}}
	runner := &stubRunner{results: map[string]*tools.Result{
		"list_s3_buckets": {
			Success: true,
			Message: "Found 1 S3 bucket(s)",
			Data:    map[string]any{"buckets": []any{map[string]any{"name": "a"}}},
		},
	}}
	ag := newAgent(stub, runner)

	got := ag.Execute(context.Background(), "List all S3 buckets")
	if !strings.Contains(got, "a") || !strings.Contains(got, "Found 1 S3 bucket(s)") {
		t.Fatalf("short reply must carry tool data, got %q", got)
	}
	if len(stub.requests) != 2 {
		t.Fatalf("reasoning steps = %d, want 2", len(stub.requests))
	}

	// 第二次推理请求应包含 tool 角色消息，且 ID 对应原始调用。
	second := stub.requests[1]
	last := second.Messages[len(second.Messages)-1]
	if last.Role != llm.RoleTool || last.ToolCallID != "call-1" {
		t.Fatalf("tool result not folded into transcript: %+v", last)
	}
}

func TestExecuteLongAnswerSkipsToolAppendix(t *testing.T) {
	long := strings.Repeat("The bucket inventory is shown below. ", 12)
	stub := &scriptedLLM{script: []*llm.Message{
		{
			Role:      llm.RoleAssistant,
			ToolCalls: []llm.ToolCall{{ID: "call-1", Name: "list_s3_buckets"}},
		},
		{Role: llm.RoleAssistant, Content: long},
	}}
	runner := &stubRunner{results: map[string]*tools.Result{
		"list_s3_buckets": {Success: true, Message: "raw-tool-output-marker"},
	}}
	ag := newAgent(stub, runner)

	got := ag.Execute(context.Background(), "List all S3 buckets")
	if strings.Contains(got, "raw-tool-output-marker") {
		t.Fatalf("long answers must not get the raw tool appendix: %q", got)
	}
}

func TestExecuteStopsAtIterationCap(t *testing.T) {
	// 推理服务永远要求继续调用工具。
	loopLLM := llm.Client(completeFunc(func(ctx context.Context, req llm.Request) (*llm.Message, error) {
		return &llm.Message{
			Role:      llm.RoleAssistant,
			ToolCalls: []llm.ToolCall{{ID: "x", Name: "noop"}},
		}, nil
	}))
	runner := &stubRunner{}
	ag := newAgent(loopLLM, runner, WithMaxIterations(3))

	got := ag.Execute(context.Background(), "loop forever")
	if !strings.Contains(got, "Maximum iterations reached") {
		t.Fatalf("reply = %q", got)
	}
	if len(runner.calls) != 3 {
		t.Fatalf("tool rounds = %d, want one per allowed iteration", len(runner.calls))
	}
}

type completeFunc func(ctx context.Context, req llm.Request) (*llm.Message, error)

func (f completeFunc) Complete(ctx context.Context, req llm.Request) (*llm.Message, error) {
	return f(ctx, req)
}

func TestExecuteFoldsReasoningFailureIntoErrorString(t *testing.T) {
	stub := &scriptedLLM{err: errors.New("upstream unavailable")}
	ag := newAgent(stub, &stubRunner{})

	got := ag.Execute(context.Background(), "anything")
	if !strings.HasPrefix(got, "Error executing command: ") {
		t.Fatalf("reply = %q", got)
	}
	if !strings.Contains(got, "upstream unavailable") {
		t.Fatalf("cause lost: %q", got)
	}
}

func TestConcurrentToolCallsRejoinInOrder(t *testing.T) {
	calls := make([]llm.ToolCall, 6)
	for i := range calls {
		calls[i] = llm.ToolCall{ID: fmt.Sprintf("call-%d", i), Name: fmt.Sprintf("tool_%d", i)}
	}
	stub := &scriptedLLM{script: []*llm.Message{
		{Role: llm.RoleAssistant, ToolCalls: calls},
		{Role: llm.RoleAssistant, Content: strings.Repeat("All six tools completed successfully. ", 10)},
	}}
	// 前面的调用故意跑得更慢，检验结果仍按原始顺序回填。
	runner := &stubRunner{
		delays: map[string]time.Duration{
			"tool_0": 40 * time.Millisecond,
			"tool_1": 30 * time.Millisecond,
		},
		results: map[string]*tools.Result{},
	}
	for i := range calls {
		runner.results[calls[i].Name] = &tools.Result{Success: true, Message: "out-" + calls[i].Name}
	}
	ag := newAgent(stub, runner, WithToolWorkers(4))

	_ = ag.Execute(context.Background(), "run everything")

	second := stub.requests[1]
	var toolMsgs []llm.Message
	for _, msg := range second.Messages {
		if msg.Role == llm.RoleTool {
			toolMsgs = append(toolMsgs, msg)
		}
	}
	if len(toolMsgs) != len(calls) {
		t.Fatalf("tool messages = %d, want %d", len(toolMsgs), len(calls))
	}
	for i, msg := range toolMsgs {
		if msg.ToolCallID != calls[i].ID {
			t.Fatalf("position %d has tool_call_id %q, want %q", i, msg.ToolCallID, calls[i].ID)
		}
		if !strings.Contains(msg.Content, "out-"+calls[i].Name) {
			t.Fatalf("position %d content = %q", i, msg.Content)
		}
	}
}

func TestExecuteRecordsTurnInMemory(t *testing.T) {
	store := memory.NewInMemoryStore()
	session := memory.NewSession(store, memory.SessionOptions{MemoryID: "mem-1"})
	stub := &scriptedLLM{script: []*llm.Message{
		{Role: llm.RoleAssistant, Content: strings.Repeat("Your buckets are listed above. ", 12)},
	}}
	ag := newAgent(stub, &stubRunner{}, WithMemorySession(session))

	ag.Execute(context.Background(), "list buckets")

	history := session.RecentHistory(context.Background())
	if !strings.Contains(history, "User: list buckets") {
		t.Fatalf("turn not recorded: %q", history)
	}

	// 第二轮应把历史注入为系统消息。
	ag.Execute(context.Background(), "what about lambda?")
	secondSeed := stub.requests[len(stub.requests)-1].Messages
	found := false
	for _, msg := range secondSeed {
		if msg.Role == llm.RoleSystem && strings.Contains(msg.Content, "Previous conversation:") {
			found = true
		}
	}
	if !found {
		t.Fatal("history system message missing from transcript")
	}
}
