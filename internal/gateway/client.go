package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	xerrors "github.com/techwithashish1/aws-agent-core-sample-application/internal/errors"
	"github.com/techwithashish1/aws-agent-core-sample-application/pkg/logger"
)

const (
	protocolVersion = "2025-03-26"
	clientName      = "aws-resource-manager-agent"
	clientVersion   = "1.0.0"
)

// MCPTool 描述网关上托管的一个远程工具。
type MCPTool struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// Client 通过 JSON-RPC 2.0 协议与网关交互，完成工具发现与调用。
// 每个请求都携带由 TokenProvider 缓存的 Bearer 令牌。
type Client struct {
	endpoint   string
	tokens     *TokenProvider
	httpClient *http.Client
	log        *slog.Logger

	mu         sync.Mutex
	tools      []MCPTool
	discovered bool
}

// NewClient 构造网关客户端。
func NewClient(cfg *Config, httpClient *http.Client) (*Client, error) {
	if cfg == nil {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "网关配置不能为空")
	}
	if err := cfg.Validate(); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "网关配置不完整")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		endpoint:   cfg.Gateway.URL,
		tokens:     NewTokenProvider(cfg.TokenURL(), cfg.Cognito.ClientID, cfg.Cognito.ClientSecret, cfg.Cognito.ScopeString, httpClient),
		httpClient: httpClient,
		log:        logger.Named("gateway"),
	}, nil
}

type rpcEnvelope struct {
	Result json.RawMessage `json:"result"`
	Error  json.RawMessage `json:"error"`
}

func (c *Client) rpc(ctx context.Context, method string, params any) (*rpcEnvelope, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
	}
	if params != nil {
		payload["params"] = params
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeProtocolError, err, "序列化 JSON-RPC 请求失败")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeProtocolError, err, "构建网关请求失败")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeProtocolError, err, "请求网关失败")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, xerrors.New(xerrors.CodeProtocolError,
			fmt.Sprintf("网关返回错误状态 %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))))
	}

	var envelope rpcEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeProtocolError, err, "解析网关响应失败")
	}
	return &envelope, nil
}

// Initialize 完成 MCP 连接握手。当且仅当响应包含 result 字段时返回 true。
func (c *Client) Initialize(ctx context.Context) bool {
	envelope, err := c.rpc(ctx, "initialize", map[string]any{
		"protocolVersion": protocolVersion,
		"capabilities":    map[string]any{},
		"clientInfo": map[string]any{
			"name":    clientName,
			"version": clientVersion,
		},
	})
	if err != nil {
		c.log.Warn("网关握手失败", slog.Any("error", err))
		return false
	}
	return len(envelope.Result) > 0
}

// ListTools 返回网关上可用的工具列表。首次成功调用后结果被缓存，
// 后续调用不再访问网关。
func (c *Client) ListTools(ctx context.Context) ([]MCPTool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.discovered {
		return c.tools, nil
	}

	envelope, err := c.rpc(ctx, "tools/list", nil)
	if err != nil {
		return nil, err
	}
	if len(envelope.Result) == 0 {
		return nil, xerrors.New(xerrors.CodeProtocolError, "tools/list 响应中没有 result")
	}

	var result struct {
		Tools []struct {
			Name        string         `json:"name"`
			Description string         `json:"description"`
			InputSchema map[string]any `json:"inputSchema"`
		} `json:"tools"`
	}
	if err := json.Unmarshal(envelope.Result, &result); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeProtocolError, err, "解析工具列表失败")
	}

	tools := make([]MCPTool, 0, len(result.Tools))
	for _, tool := range result.Tools {
		tools = append(tools, MCPTool{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: tool.InputSchema,
		})
	}
	c.tools = tools
	c.discovered = true
	return tools, nil
}

// CallTool 调用网关上的远程工具。网关把实际负载嵌套在
// result.content[0].text 中，优先按 JSON 解码，失败则按纯文本返回。
func (c *Client) CallTool(ctx context.Context, name string, arguments map[string]any) (any, error) {
	if arguments == nil {
		arguments = map[string]any{}
	}
	envelope, err := c.rpc(ctx, "tools/call", map[string]any{
		"name":      name,
		"arguments": arguments,
	})
	if err != nil {
		return nil, err
	}

	if len(envelope.Error) > 0 {
		return nil, xerrors.New(xerrors.CodeToolExecutionFailed,
			fmt.Sprintf("工具调用失败: %s", string(envelope.Error)))
	}

	if len(envelope.Result) > 0 {
		var result struct {
			Content []struct {
				Text string `json:"text"`
			} `json:"content"`
		}
		if err := json.Unmarshal(envelope.Result, &result); err != nil {
			return nil, xerrors.Wrap(xerrors.CodeProtocolError, err, "解析工具调用结果失败")
		}
		if len(result.Content) > 0 {
			text := result.Content[0].Text
			var decoded any
			if err := json.Unmarshal([]byte(text), &decoded); err == nil {
				return decoded, nil
			}
			return text, nil
		}
	}

	return nil, xerrors.New(xerrors.CodeProtocolError, "tools/call 响应中没有有效负载")
}
