package bedrock

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/techwithashish1/aws-agent-core-sample-application/internal/llm"
)

const (
	defaultModelID   = "anthropic.claude-3-sonnet-20240229-v1:0"
	defaultMaxTokens = 4096
)

// ConverseAPI 抽象 Bedrock Converse 调用，便于测试时注入替身。
type ConverseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// Config 描述了调用 Bedrock Converse API 所需的信息。
type Config struct {
	ModelID     string
	MaxTokens   int
	Temperature float64
}

// Client 通过 Bedrock Converse API 完成推理，支持工具调用。
type Client struct {
	api         ConverseAPI
	modelID     string
	maxTokens   int32
	temperature float32
}

// NewClient 根据配置创建 Bedrock 客户端。
func NewClient(api ConverseAPI, cfg Config) (*Client, error) {
	if api == nil {
		return nil, errors.New("未提供 Bedrock runtime 客户端")
	}
	modelID := strings.TrimSpace(cfg.ModelID)
	if modelID == "" {
		modelID = defaultModelID
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	temperature := cfg.Temperature
	if temperature <= 0 {
		temperature = 0.7
	}
	return &Client{
		api:         api,
		modelID:     modelID,
		maxTokens:   int32(maxTokens),
		temperature: float32(temperature),
	}, nil
}

// Complete 调用 Bedrock，返回下一条 assistant 消息。
func (c *Client) Complete(ctx context.Context, req llm.Request) (*llm.Message, error) {
	input, err := c.buildInput(req)
	if err != nil {
		return nil, err
	}

	out, err := c.api.Converse(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("请求 Bedrock 失败: %w", err)
	}

	message, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return nil, errors.New("Bedrock 响应中没有消息输出")
	}
	return decodeMessage(message.Value)
}

func (c *Client) buildInput(req llm.Request) (*bedrockruntime.ConverseInput, error) {
	input := &bedrockruntime.ConverseInput{
		ModelId: aws.String(c.modelID),
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens:   aws.Int32(c.maxTokens),
			Temperature: aws.Float32(c.temperature),
		},
	}

	for _, msg := range req.Messages {
		switch msg.Role {
		case llm.RoleSystem:
			input.System = append(input.System, &types.SystemContentBlockMemberText{Value: msg.Content})
		case llm.RoleUser:
			input.Messages = append(input.Messages, types.Message{
				Role:    types.ConversationRoleUser,
				Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: msg.Content}},
			})
		case llm.RoleAssistant:
			content := make([]types.ContentBlock, 0, 1+len(msg.ToolCalls))
			if msg.Content != "" {
				content = append(content, &types.ContentBlockMemberText{Value: msg.Content})
			}
			for _, call := range msg.ToolCalls {
				args := call.Arguments
				if args == nil {
					args = map[string]any{}
				}
				content = append(content, &types.ContentBlockMemberToolUse{
					Value: types.ToolUseBlock{
						ToolUseId: aws.String(call.ID),
						Name:      aws.String(call.Name),
						Input:     document.NewLazyDocument(args),
					},
				})
			}
			input.Messages = append(input.Messages, types.Message{
				Role:    types.ConversationRoleAssistant,
				Content: content,
			})
		case llm.RoleTool:
			// Converse 协议中工具结果以 user 角色回传。
			input.Messages = append(input.Messages, types.Message{
				Role: types.ConversationRoleUser,
				Content: []types.ContentBlock{&types.ContentBlockMemberToolResult{
					Value: types.ToolResultBlock{
						ToolUseId: aws.String(msg.ToolCallID),
						Content: []types.ToolResultContentBlock{
							&types.ToolResultContentBlockMemberText{Value: msg.Content},
						},
					},
				}},
			})
		default:
			return nil, fmt.Errorf("不支持的消息角色: %s", msg.Role)
		}
	}

	if len(req.Tools) > 0 {
		toolConfig := &types.ToolConfiguration{}
		for _, spec := range req.Tools {
			schema := spec.InputSchema
			if schema == nil {
				schema = map[string]any{"type": "object"}
			}
			toolConfig.Tools = append(toolConfig.Tools, &types.ToolMemberToolSpec{
				Value: types.ToolSpecification{
					Name:        aws.String(spec.Name),
					Description: aws.String(spec.Description),
					InputSchema: &types.ToolInputSchemaMemberJson{
						Value: document.NewLazyDocument(schema),
					},
				},
			})
		}
		input.ToolConfig = toolConfig
	}

	return input, nil
}

func decodeMessage(msg types.Message) (*llm.Message, error) {
	decoded := &llm.Message{Role: llm.RoleAssistant}
	var text strings.Builder
	for _, block := range msg.Content {
		switch value := block.(type) {
		case *types.ContentBlockMemberText:
			text.WriteString(value.Value)
		case *types.ContentBlockMemberToolUse:
			args := map[string]any{}
			if value.Value.Input != nil {
				if err := value.Value.Input.UnmarshalSmithyDocument(&args); err != nil {
					return nil, fmt.Errorf("解析工具调用参数失败: %w", err)
				}
			}
			decoded.ToolCalls = append(decoded.ToolCalls, llm.ToolCall{
				ID:        aws.ToString(value.Value.ToolUseId),
				Name:      aws.ToString(value.Value.Name),
				Arguments: args,
			})
		}
	}
	decoded.Content = text.String()
	return decoded, nil
}
