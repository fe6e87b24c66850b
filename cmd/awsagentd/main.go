package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/techwithashish1/aws-agent-core-sample-application/internal/agent"
	"github.com/techwithashish1/aws-agent-core-sample-application/internal/api"
	"github.com/techwithashish1/aws-agent-core-sample-application/internal/audit"
	"github.com/techwithashish1/aws-agent-core-sample-application/internal/config"
	"github.com/techwithashish1/aws-agent-core-sample-application/internal/gateway"
	"github.com/techwithashish1/aws-agent-core-sample-application/internal/llm"
	"github.com/techwithashish1/aws-agent-core-sample-application/internal/llm/bedrock"
	"github.com/techwithashish1/aws-agent-core-sample-application/internal/llm/openai"
	"github.com/techwithashish1/aws-agent-core-sample-application/internal/memory"
	"github.com/techwithashish1/aws-agent-core-sample-application/internal/tools"
	"github.com/techwithashish1/aws-agent-core-sample-application/internal/tools/cloud"
	"github.com/techwithashish1/aws-agent-core-sample-application/pkg/logger"
)

// main 是 awsagentd 守护进程的入口。
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("awsagentd 运行失败: %v", err)
	}
}

func run(ctx context.Context) error {
	configPath := os.Getenv("AWSAGENT_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("configs", "awsagent.yaml")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
		Audit: logger.AuditConfig{
			Enabled:    cfg.Logging.Audit.Enabled,
			Path:       cfg.Logging.Audit.Path,
			MaxSizeMB:  cfg.Logging.Audit.MaxSizeMB,
			MaxBackups: cfg.Logging.Audit.MaxBackups,
		},
	}); err != nil {
		return err
	}
	defer logger.Sync()
	mainLog := logger.L()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return fmt.Errorf("加载 AWS 配置失败: %w", err)
	}

	llmClient, err := createLLMClient(ctx, cfg)
	if err != nil {
		return err
	}

	// 先注册本地云工具，再并入网关发现的工具，本地工具优先。
	registry := tools.NewRegistry(logger.Named("tools"))
	toolset := &cloud.Toolset{
		S3:       s3.NewFromConfig(awsCfg),
		Lambda:   lambda.NewFromConfig(awsCfg),
		DynamoDB: dynamodb.NewFromConfig(awsCfg),
		Metrics:  cloudwatch.NewFromConfig(awsCfg),
		Region:   cfg.AWS.Region,
		Log:      logger.Named("tools.cloud"),
	}
	if err := toolset.Register(registry); err != nil {
		return err
	}

	if cfg.Gateway.Enabled {
		gatewayCfg, err := gateway.LoadConfig(cfg.Gateway.ConfigPath)
		if err != nil {
			return err
		}
		gatewayClient, err := gateway.NewClient(gatewayCfg, &http.Client{Timeout: 30 * time.Second})
		if err != nil {
			return err
		}
		tools.RegisterGatewayTools(ctx, registry, gatewayClient)
	}

	executor := tools.NewExecutor(registry, logger.Named("executor"))

	var session *memory.Session
	if cfg.Memory.Enabled {
		store, err := createEventStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer store.Close()
		session = memory.NewSession(store, memory.SessionOptions{
			MemoryID:  cfg.Memory.MemoryID,
			ActorID:   cfg.Memory.ActorID,
			MaxEvents: cfg.Memory.MaxEvents,
			Log:       logger.Named("memory"),
		})
	}

	var publishers audit.Fanout
	if cfg.Logging.Audit.Enabled {
		publishers = append(publishers, audit.LogPublisher{Log: logger.Audit()})
	}
	if cfg.Audit.AMQP.Enabled {
		publisher, err := audit.NewAMQPPublisher(audit.AMQPConfig{
			URL:        cfg.Audit.AMQP.URL,
			Exchange:   cfg.Audit.AMQP.Exchange,
			RoutingKey: cfg.Audit.AMQP.RoutingKey,
			Durable:    cfg.Audit.AMQP.Durable,
		}, logger.Named("audit"))
		if err != nil {
			return err
		}
		defer publisher.Close()
		publishers = append(publishers, publisher)
	}
	var auditor audit.Publisher = audit.NopPublisher{}
	if len(publishers) > 0 {
		auditor = publishers
	}

	opts := []agent.Option{
		agent.WithMaxIterations(cfg.Agent.MaxIterations),
		agent.WithToolWorkers(cfg.Agent.ToolWorkers),
		agent.WithAuditPublisher(auditor),
		agent.WithLogger(logger.Named("agent")),
	}
	if cfg.Agent.LLMTimeout() > 0 {
		opts = append(opts, agent.WithLLMTimeout(cfg.Agent.LLMTimeout()))
	}
	if session != nil {
		opts = append(opts, agent.WithMemorySession(session))
	}
	ag := agent.New(llmClient, registry, executor, opts...)

	mainLog.Info("awsagentd 启动",
		"address", cfg.Server.Address,
		"provider", cfg.LLM.Provider,
		"tools", registry.Len(),
		"memory_enabled", session != nil,
	)

	server := api.NewServer(cfg.Server.Address, ag, session, registry)
	if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func createLLMClient(ctx context.Context, cfg *config.Config) (llm.Client, error) {
	switch cfg.LLM.Provider {
	case "", "bedrock":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.LLM.Bedrock.Region))
		if err != nil {
			return nil, fmt.Errorf("加载 Bedrock 区域配置失败: %w", err)
		}
		return bedrock.NewClient(bedrockruntime.NewFromConfig(awsCfg), bedrock.Config{
			ModelID:     cfg.LLM.Bedrock.ModelID,
			MaxTokens:   cfg.LLM.Bedrock.MaxTokens,
			Temperature: cfg.LLM.Bedrock.Temperature,
		})
	case "openai":
		apiKey := strings.TrimSpace(cfg.LLM.OpenAI.APIKey)
		if apiKey == "" && cfg.LLM.OpenAI.APIKeyEnv != "" {
			apiKey = strings.TrimSpace(os.Getenv(cfg.LLM.OpenAI.APIKeyEnv))
		}
		if apiKey == "" {
			return nil, errors.New("OpenAI provider 需要配置 api_key 或 api_key_env")
		}
		return openai.NewClient(openai.Config{
			APIKey:  apiKey,
			BaseURL: cfg.LLM.OpenAI.BaseURL,
			Model:   cfg.LLM.OpenAI.Model,
			Timeout: cfg.LLM.OpenAI.Timeout(),
		})
	default:
		return nil, fmt.Errorf("未知的推理 provider: %s", cfg.LLM.Provider)
	}
}

func createEventStore(ctx context.Context, cfg *config.Config) (memory.EventStore, error) {
	switch cfg.Memory.Driver {
	case "", "memory":
		return memory.NewInMemoryStore(), nil
	case "redis":
		return memory.NewRedisStore(ctx, memory.RedisStoreConfig{
			Address:   cfg.Memory.Redis.Address,
			Password:  cfg.Memory.Redis.Password,
			DB:        cfg.Memory.Redis.DB,
			KeyPrefix: cfg.Memory.Redis.KeyPrefix,
		})
	case "mysql":
		return memory.NewMySQLStore(ctx, memory.MySQLStoreConfig{
			DSN:             cfg.Memory.MySQL.DSN,
			MaxOpenConns:    cfg.Memory.MySQL.MaxOpenConns,
			MaxIdleConns:    cfg.Memory.MySQL.MaxIdleConns,
			ConnMaxLifetime: time.Duration(cfg.Memory.MySQL.ConnMaxLifetimeSeconds) * time.Second,
		})
	default:
		return nil, fmt.Errorf("未知的记忆存储驱动: %s", cfg.Memory.Driver)
	}
}
