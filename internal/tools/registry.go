package tools

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/techwithashish1/aws-agent-core-sample-application/internal/errors"
	"github.com/techwithashish1/aws-agent-core-sample-application/internal/gateway"
	"github.com/techwithashish1/aws-agent-core-sample-application/internal/llm"
)

// Registry 按注册顺序维护工具集合。同名冲突时保留先注册的工具，
// 本地声明的工具先于网关发现的工具注册，因此本地工具优先。
type Registry struct {
	mu    sync.RWMutex
	order []string
	tools map[string]Tool
	log   *slog.Logger
}

func NewRegistry(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		tools: make(map[string]Tool),
		log:   log,
	}
}

// Register 注册一个工具。名称冲突时保留已有工具并记录警告。
func (r *Registry) Register(tool Tool) error {
	if tool.Name == "" {
		return errors.New(errors.CodeInvalidArgument, "工具名称不能为空")
	}
	if tool.Handler == nil {
		return errors.New(errors.CodeInvalidArgument, fmt.Sprintf("工具 %s 缺少执行体", tool.Name))
	}
	if tool.Schema != nil {
		resolved, err := tool.Schema.Resolve(nil)
		if err != nil {
			return errors.Wrap(errors.CodeValidationFailed, err, fmt.Sprintf("工具 %s 的 schema 无效", tool.Name))
		}
		tool.resolved = resolved
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[tool.Name]; exists {
		r.log.Warn("工具名称冲突，保留先注册的工具", "tool", tool.Name)
		return nil
	}
	r.tools[tool.Name] = tool
	r.order = append(r.order, tool.Name)
	return nil
}

// Resolve 按名称查找工具。
func (r *Registry) Resolve(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	if !ok {
		return Tool{}, errors.New(errors.CodeNotFound, fmt.Sprintf("未找到工具 %s", name))
	}
	return tool, nil
}

// List 按注册顺序返回全部工具。
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Len 返回已注册工具数。
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Catalogue 生成推理服务可消费的工具目录。
func (r *Registry) Catalogue() []llm.ToolSpec {
	all := r.List()
	specs := make([]llm.ToolSpec, 0, len(all))
	for _, tool := range all {
		specs = append(specs, llm.ToolSpec{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: SchemaToMap(tool.Schema),
		})
	}
	return specs
}

// GatewayCaller 是网关客户端中注册流程依赖的子集。
type GatewayCaller interface {
	Initialize(ctx context.Context) bool
	ListTools(ctx context.Context) ([]gateway.MCPTool, error)
	CallTool(ctx context.Context, name string, arguments map[string]any) (any, error)
}

// RegisterGatewayTools 与网关握手并把发现的工具并入注册表。
// 握手或发现失败时保持本地工具可用，只记录警告。
func RegisterGatewayTools(ctx context.Context, r *Registry, client GatewayCaller) {
	if !client.Initialize(ctx) {
		r.log.Warn("网关握手失败，仅使用本地工具")
		return
	}
	discovered, err := client.ListTools(ctx)
	if err != nil {
		r.log.Warn("网关工具发现失败，仅使用本地工具", "error", err)
		return
	}
	for _, mcp := range discovered {
		schema, err := SchemaFromMap(mcp.InputSchema)
		if err != nil {
			r.log.Warn("跳过 schema 无效的网关工具", "tool", mcp.Name, "error", err)
			continue
		}
		tool := Tool{
			Name:        mcp.Name,
			Description: mcp.Description,
			Schema:      schema,
			Handler:     gatewayHandler(client, mcp.Name),
		}
		if err := r.Register(tool); err != nil {
			r.log.Warn("注册网关工具失败", "tool", mcp.Name, "error", err)
		}
	}
	r.log.Info("网关工具注册完成", "discovered", len(discovered))
}

func gatewayHandler(client GatewayCaller, name string) Handler {
	return func(ctx context.Context, args map[string]any) (*Result, error) {
		payload, err := client.CallTool(ctx, name, args)
		if err != nil {
			return nil, err
		}
		switch v := payload.(type) {
		case map[string]any:
			return &Result{
				Success: true,
				Message: fmt.Sprintf("Tool %s executed successfully", name),
				Data:    v,
			}, nil
		case string:
			return &Result{Success: true, Message: v}, nil
		default:
			return &Result{
				Success: true,
				Message: fmt.Sprintf("Tool %s executed successfully", name),
				Data:    map[string]any{"result": v},
			}, nil
		}
	}
}
