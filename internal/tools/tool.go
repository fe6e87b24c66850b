package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// Handler 是工具的可执行体。参数已通过 schema 校验。
type Handler func(ctx context.Context, args map[string]any) (*Result, error)

// Tool 以数据形式描述一个可调用的工具：名称、说明、输入 schema
// 与执行体。本地声明的工具在进程内执行，网关发现的工具执行体
// 会经由网关协议往返。
type Tool struct {
	Name        string
	Description string
	Schema      *jsonschema.Schema
	Handler     Handler

	resolved *jsonschema.Resolved
}

// Result 是工具执行的统一结果。Success 为真时 Message/Data 有效，
// 为假时 Error 携带失败原因。
type Result struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// Failure 构造一个失败结果，message 标明失败的工具。
func Failure(toolName string, cause error) *Result {
	return &Result{
		Success: false,
		Message: fmt.Sprintf("Error in %s", toolName),
		Error:   cause.Error(),
	}
}

// SchemaToMap 把 schema 转换为通用 JSON 结构，供推理服务的工具目录使用。
func SchemaToMap(schema *jsonschema.Schema) map[string]any {
	if schema == nil {
		return map[string]any{"type": "object"}
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		return map[string]any{"type": "object"}
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return map[string]any{"type": "object"}
	}
	return decoded
}

// SchemaFromMap 把网关返回的通用 JSON 结构还原为 schema。
func SchemaFromMap(raw map[string]any) (*jsonschema.Schema, error) {
	if raw == nil {
		return &jsonschema.Schema{Type: "object"}, nil
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("序列化 schema 失败: %w", err)
	}
	var schema jsonschema.Schema
	if err := json.Unmarshal(encoded, &schema); err != nil {
		return nil, fmt.Errorf("解析 schema 失败: %w", err)
	}
	return &schema, nil
}
