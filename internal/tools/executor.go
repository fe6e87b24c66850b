package tools

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/techwithashish1/aws-agent-core-sample-application/internal/llm"
)

// Executor 负责把推理服务发出的工具调用转换为统一的执行结果。
// Run 永不返回 error：查找失败、参数校验失败、执行体 panic 或
// 返回错误都会折叠为失败结果，由编排层转述给推理服务。
type Executor struct {
	registry *Registry
	log      *slog.Logger
}

func NewExecutor(registry *Registry, log *slog.Logger) *Executor {
	if log == nil {
		log = slog.Default()
	}
	return &Executor{registry: registry, log: log}
}

// Run 执行一次工具调用。
func (e *Executor) Run(ctx context.Context, call llm.ToolCall) (result *Result) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("工具执行 panic", "tool", call.Name, "panic", r)
			result = Failure(call.Name, fmt.Errorf("panic: %v", r))
		}
		e.log.Info("工具调用完成",
			"tool", call.Name,
			"success", result.Success,
			"duration", time.Since(start),
		)
	}()

	tool, err := e.registry.Resolve(call.Name)
	if err != nil {
		return Failure(call.Name, err)
	}

	args := call.Arguments
	if args == nil {
		args = map[string]any{}
	}
	if tool.resolved != nil {
		if err := tool.resolved.Validate(args); err != nil {
			e.log.Warn("工具参数校验失败", "tool", call.Name, "error", err)
			return Failure(call.Name, fmt.Errorf("invalid arguments: %w", err))
		}
	}

	res, err := tool.Handler(ctx, args)
	if err != nil {
		return Failure(call.Name, err)
	}
	if res == nil {
		return Failure(call.Name, fmt.Errorf("tool returned no result"))
	}
	return res
}
