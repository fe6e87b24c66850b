package llm

import "context"

// Role 标识消息在对话记录中的身份。
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall 表示模型在一次回复中请求执行的单个工具调用。
// 创建后不可修改。
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Message 是对话记录中的一条消息。tool 角色的消息必须携带
// ToolCallID，指向上一条 assistant 消息中的某个 ToolCall。
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolSpec 描述一个可供模型调用的工具。InputSchema 是 JSON Schema
// 的通用表示，由工具注册表在构建目录时填充。
type ToolSpec struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// Request 描述发送给推理服务的完整上下文。
type Request struct {
	Messages []Message
	Tools    []ToolSpec
}

// Client 定义了调用推理服务的统一接口。返回的 assistant 消息中若
// 携带 ToolCalls，由调用方负责执行并将结果写回对话记录。
type Client interface {
	Complete(ctx context.Context, req Request) (*Message, error)
}
