package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 描述了 awsagentd 在启动阶段需要加载的核心配置。
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	LLM     LLMConfig     `yaml:"llm"`
	Gateway GatewayConfig `yaml:"gateway"`
	Memory  MemoryConfig  `yaml:"memory"`
	Agent   AgentConfig   `yaml:"agent"`
	AWS     AWSConfig     `yaml:"aws"`
	Logging LoggingConfig `yaml:"logging"`
	Audit   AuditConfig   `yaml:"audit"`
}

// ServerConfig 控制 API 服务的监听地址等参数。
type ServerConfig struct {
	Address string `yaml:"address"`
}

// LLMConfig 用于配置推理服务的调用方式。
type LLMConfig struct {
	Provider string        `yaml:"provider"`
	OpenAI   OpenAIConfig  `yaml:"openai"`
	Bedrock  BedrockConfig `yaml:"bedrock"`
}

// OpenAIConfig 描述通过 OpenAI Chat Completions 完成推理时所需的信息。
type OpenAIConfig struct {
	APIKey         string `yaml:"api_key"`
	APIKeyEnv      string `yaml:"api_key_env"`
	BaseURL        string `yaml:"base_url"`
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout 返回 OpenAI 请求的超时时间。
func (c OpenAIConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// BedrockConfig 描述通过 Bedrock Converse 完成推理时所需的信息。
type BedrockConfig struct {
	ModelID     string  `yaml:"model_id"`
	Region      string  `yaml:"region"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

// GatewayConfig 指向网关客户端配置文档（JSON），并控制是否启用远程工具发现。
type GatewayConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ConfigPath string `yaml:"config_path"`
}

// MemoryConfig 描述会话记忆事件存储的后端。
type MemoryConfig struct {
	Enabled   bool        `yaml:"enabled"`
	Driver    string      `yaml:"driver"`
	MemoryID  string      `yaml:"memory_id"`
	ActorID   string      `yaml:"actor_id"`
	MaxEvents int         `yaml:"max_events"`
	Redis     RedisConfig `yaml:"redis"`
	MySQL     MySQLConfig `yaml:"mysql"`
}

// RedisConfig 描述 Redis 事件存储的连接参数。
type RedisConfig struct {
	Address   string `yaml:"address"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// MySQLConfig 描述 MySQL 事件存储的连接参数。
type MySQLConfig struct {
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeSeconds int    `yaml:"conn_max_lifetime_seconds"`
}

// AgentConfig 控制推理循环的运行参数。
type AgentConfig struct {
	MaxIterations     int `yaml:"max_iterations"`
	ToolWorkers       int `yaml:"tool_workers"`
	LLMTimeoutSeconds int `yaml:"llm_timeout_seconds"`
}

// LLMTimeout 返回单次推理调用的超时时间。
func (c AgentConfig) LLMTimeout() time.Duration {
	if c.LLMTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.LLMTimeoutSeconds) * time.Second
}

// AWSConfig 包含访问云资源 API 所需的区域信息。
type AWSConfig struct {
	Region string `yaml:"region"`
}

// LoggingConfig 控制结构化日志与审计日志输出。
type LoggingConfig struct {
	Level  string         `yaml:"level"`
	Format string         `yaml:"format"`
	Output string         `yaml:"output"`
	Audit  AuditLogConfig `yaml:"audit"`
}

// AuditLogConfig 控制审计日志文件的行为。
type AuditLogConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Path       string `yaml:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// AuditConfig 描述对外的审计事件发布通道。
type AuditConfig struct {
	AMQP AMQPConfig `yaml:"amqp"`
}

// AMQPConfig 描述 RabbitMQ 审计发布器的连接参数。
type AMQPConfig struct {
	Enabled    bool   `yaml:"enabled"`
	URL        string `yaml:"url"`
	Exchange   string `yaml:"exchange"`
	RoutingKey string `yaml:"routing_key"`
	Durable    bool   `yaml:"durable"`
}

// Load 负责解析指定路径的 YAML 配置文件。
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("配置文件路径为空")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	cfg.applyDefaults(filepath.Dir(path))

	return &cfg, nil
}

// applyDefaults 在用户未填写部分字段时设置合理的默认值。
func (c *Config) applyDefaults(baseDir string) {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}

	if c.LLM.Provider == "" {
		c.LLM.Provider = "bedrock"
	}
	if c.LLM.OpenAI.Model == "" {
		c.LLM.OpenAI.Model = "gpt-4o-mini"
	}
	if c.LLM.Bedrock.ModelID == "" {
		c.LLM.Bedrock.ModelID = "anthropic.claude-3-sonnet-20240229-v1:0"
	}
	if c.LLM.Bedrock.MaxTokens <= 0 {
		c.LLM.Bedrock.MaxTokens = 4096
	}
	if c.LLM.Bedrock.Temperature <= 0 {
		c.LLM.Bedrock.Temperature = 0.7
	}

	if c.Gateway.ConfigPath == "" {
		c.Gateway.ConfigPath = filepath.Join(baseDir, "gateway_config.json")
	} else if !filepath.IsAbs(c.Gateway.ConfigPath) {
		c.Gateway.ConfigPath = filepath.Join(baseDir, c.Gateway.ConfigPath)
	}

	if c.Memory.Driver == "" {
		c.Memory.Driver = "memory"
	}
	if c.Memory.MaxEvents <= 0 {
		c.Memory.MaxEvents = 10
	}
	if c.Memory.Redis.KeyPrefix == "" {
		c.Memory.Redis.KeyPrefix = "agentcore:events"
	}

	if c.Agent.MaxIterations <= 0 {
		c.Agent.MaxIterations = 10
	}
	if c.Agent.ToolWorkers <= 0 {
		c.Agent.ToolWorkers = 4
	}

	if c.AWS.Region == "" {
		c.AWS.Region = "ap-south-1"
	}
	if c.LLM.Bedrock.Region == "" {
		c.LLM.Bedrock.Region = c.AWS.Region
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}

	if c.Audit.AMQP.Exchange == "" {
		c.Audit.AMQP.Exchange = "agentcore.audit"
	}
	if c.Audit.AMQP.RoutingKey == "" {
		c.Audit.AMQP.RoutingKey = "conversation.turn"
	}
}
