package agent

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/techwithashish1/aws-agent-core-sample-application/internal/audit"
	xerrors "github.com/techwithashish1/aws-agent-core-sample-application/internal/errors"
	"github.com/techwithashish1/aws-agent-core-sample-application/internal/llm"
	"github.com/techwithashish1/aws-agent-core-sample-application/internal/memory"
	"github.com/techwithashish1/aws-agent-core-sample-application/internal/tools"
)

const (
	defaultMaxIterations = 10
	defaultToolWorkers   = 4

	// noHistorySentinel 与记忆会话的空历史文案保持一致。
	noHistorySentinel = "No previous conversation history."

	// maxIterationsMessage 在循环达到迭代上限时作为最终回复返回。
	maxIterationsMessage = "Maximum iterations reached without completing the request. Please try a more specific command."
)

// ToolRunner 抽象工具调用的执行，由 tools.Executor 满足。
type ToolRunner interface {
	Run(ctx context.Context, call llm.ToolCall) *tools.Result
}

// Agent 驱动一条用户指令的完整推理/执行循环。
type Agent struct {
	llmClient     llm.Client
	registry      *tools.Registry
	runner        ToolRunner
	session       *memory.Session
	auditor       audit.Publisher
	maxIterations int
	toolWorkers   int
	llmTimeout    time.Duration
	log           *slog.Logger
}

// Option 定义可选的 Agent 配置。
type Option func(*Agent)

// WithMemorySession 配置对话记忆会话。
func WithMemorySession(session *memory.Session) Option {
	return func(a *Agent) { a.session = session }
}

// WithAuditPublisher 配置审计事件投递。
func WithAuditPublisher(publisher audit.Publisher) Option {
	return func(a *Agent) { a.auditor = publisher }
}

// WithMaxIterations 设置推理循环的迭代上限。
func WithMaxIterations(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.maxIterations = n
		}
	}
}

// WithToolWorkers 设置单轮工具调用的最大并发数。
func WithToolWorkers(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.toolWorkers = n
		}
	}
}

// WithLLMTimeout 设置单次推理调用的超时时间。
func WithLLMTimeout(timeout time.Duration) Option {
	return func(a *Agent) {
		if timeout > 0 {
			a.llmTimeout = timeout
		}
	}
}

// WithLogger 设置日志器。
func WithLogger(log *slog.Logger) Option {
	return func(a *Agent) {
		if log != nil {
			a.log = log
		}
	}
}

// New 创建一个 Agent。
func New(llmClient llm.Client, registry *tools.Registry, runner ToolRunner, opts ...Option) *Agent {
	ag := &Agent{
		llmClient:     llmClient,
		registry:      registry,
		runner:        runner,
		auditor:       audit.NopPublisher{},
		maxIterations: defaultMaxIterations,
		toolWorkers:   defaultToolWorkers,
		log:           slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(ag)
		}
	}
	return ag
}

// runOutcome 汇总一次循环的产出。
type runOutcome struct {
	reply       string
	iterations  int
	toolCalls   int
	toolOutputs []string
}

// Execute 处理一条用户指令并返回最终回复。任何内部错误都会折叠为
// "Error executing command: <cause>" 文本，绝不向调用方抛出。
func (a *Agent) Execute(ctx context.Context, userText string) (reply string) {
	defer func() {
		if r := recover(); r != nil {
			a.log.Error("编排循环 panic", "panic", r)
			reply = fmt.Sprintf("Error executing command: %v", r)
		}
	}()

	outcome, err := a.run(ctx, userText)
	if err != nil {
		a.log.Error("执行用户指令失败", "error", err)
		return "Error executing command: " + err.Error()
	}

	final := expandShortAnswer(outcome.reply, outcome.toolOutputs)

	if a.session != nil {
		a.session.RecordTurn(ctx, userText, final)
	}
	event := audit.TurnEvent{
		UserText:   userText,
		Assistant:  final,
		Iterations: outcome.iterations,
		ToolCalls:  outcome.toolCalls,
	}
	if a.session != nil {
		event.SessionID = a.session.SessionID()
		event.ActorID = a.session.ActorID()
	}
	a.auditor.PublishTurn(ctx, event)

	a.log.Info("用户指令执行完成",
		"iterations", outcome.iterations,
		"tool_calls", outcome.toolCalls,
		"response_length", len(final),
	)
	return final
}

func (a *Agent) run(ctx context.Context, userText string) (*runOutcome, error) {
	if a.llmClient == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "reasoning service is not configured")
	}
	if strings.TrimSpace(userText) == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "empty command")
	}

	transcript := a.seedTranscript(ctx, userText)
	catalogue := a.registry.Catalogue()

	outcome := &runOutcome{}
	state := StateReasoning
	var lastAssistant *llm.Message

	for state != StateDone {
		switch state {
		case StateReasoning:
			if outcome.iterations >= a.maxIterations {
				a.log.Warn("达到迭代上限，提前终止", "iterations", outcome.iterations)
				outcome.reply = maxIterationsMessage
				return outcome, nil
			}
			outcome.iterations++

			msg, err := a.reason(ctx, transcript, catalogue)
			if err != nil {
				return nil, err
			}
			transcript = append(transcript, *msg)
			lastAssistant = msg
			a.log.Info("推理步完成",
				"iteration", outcome.iterations,
				"tool_calls", len(msg.ToolCalls),
			)
			state = nextState(state, msg)

		case StateActing:
			results := a.runToolCalls(ctx, lastAssistant.ToolCalls)
			for i, res := range results {
				rendered := res.Render()
				outcome.toolOutputs = append(outcome.toolOutputs, rendered)
				transcript = append(transcript, llm.Message{
					Role:       llm.RoleTool,
					Content:    rendered,
					ToolCallID: lastAssistant.ToolCalls[i].ID,
				})
			}
			outcome.toolCalls += len(results)
			state = nextState(state, nil)
		}
	}

	if lastAssistant != nil {
		outcome.reply = lastAssistant.Content
	}
	return outcome, nil
}

// seedTranscript 构建初始对话记录：系统提示、可选的历史上下文、
// 新的用户消息。
func (a *Agent) seedTranscript(ctx context.Context, userText string) []llm.Message {
	transcript := []llm.Message{{Role: llm.RoleSystem, Content: systemPrompt}}
	if a.session != nil {
		history := a.session.RecentHistory(ctx)
		if history != "" && history != noHistorySentinel {
			transcript = append(transcript, llm.Message{
				Role:    llm.RoleSystem,
				Content: "Previous conversation:\n" + history,
			})
		}
	}
	return append(transcript, llm.Message{Role: llm.RoleUser, Content: userText})
}

func (a *Agent) reason(ctx context.Context, transcript []llm.Message, catalogue []llm.ToolSpec) (*llm.Message, error) {
	llmCtx := ctx
	if a.llmTimeout > 0 {
		var cancel context.CancelFunc
		llmCtx, cancel = context.WithTimeout(ctx, a.llmTimeout)
		defer cancel()
	}
	msg, err := a.llmClient.Complete(llmCtx, llm.Request{Messages: transcript, Tools: catalogue})
	if err != nil {
		if stdErrors.Is(err, context.DeadlineExceeded) {
			return nil, xerrors.Wrap(xerrors.CodeTimeout, err, "reasoning service timed out")
		}
		return nil, xerrors.Wrap(xerrors.CodeOrchestrationFailed, err, "reasoning service call failed")
	}
	if msg == nil {
		return nil, xerrors.New(xerrors.CodeOrchestrationFailed, "reasoning service returned no message")
	}
	return msg, nil
}

// runToolCalls 执行单条助手消息携带的全部工具调用。调用之间相互
// 独立，可以并发执行，但结果必须按原始顺序回填。
func (a *Agent) runToolCalls(ctx context.Context, calls []llm.ToolCall) []*tools.Result {
	results := make([]*tools.Result, len(calls))
	if len(calls) <= 1 || a.toolWorkers <= 1 {
		for i, call := range calls {
			results[i] = a.runner.Run(ctx, call)
		}
		return results
	}

	sem := make(chan struct{}, a.toolWorkers)
	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(idx int, call llm.ToolCall) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[idx] = a.runner.Run(ctx, call)
		}(i, call)
	}
	wg.Wait()
	return results
}

// shortAnswerThreshold 低于该长度的最终回复视为可疑的简略回答。
const shortAnswerThreshold = 300

// expandShortAnswer 在最终回复过短且本轮产生过工具结果时，把原始
// 工具输出附加到回复末尾，避免模型吞掉检索到的数据。
func expandShortAnswer(reply string, toolOutputs []string) string {
	if len(toolOutputs) == 0 || len(reply) >= shortAnswerThreshold {
		return reply
	}
	return reply + "\n\n" + strings.Join(toolOutputs, "\n\n")
}
