// Package audit 把每轮完成的对话投递到消息总线，供外部审计系统
// 消费。投递失败只记日志，绝不中断对话主流程。
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// TurnEvent 是一轮对话的审计记录。
type TurnEvent struct {
	SessionID  string    `json:"session_id"`
	ActorID    string    `json:"actor_id"`
	UserText   string    `json:"user_text"`
	Assistant  string    `json:"assistant_text"`
	Iterations int       `json:"iterations"`
	ToolCalls  int       `json:"tool_calls"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher 抽象审计事件的投递。
type Publisher interface {
	PublishTurn(ctx context.Context, event TurnEvent)
	Close() error
}

// AMQPConfig 描述 RabbitMQ 审计通道的连接参数。
type AMQPConfig struct {
	URL        string
	Exchange   string
	RoutingKey string
	Durable    bool
}

// AMQPPublisher 通过 RabbitMQ exchange 广播审计事件。
type AMQPPublisher struct {
	conn       *amqp.Connection
	ch         *amqp.Channel
	exchange   string
	routingKey string
	log        *slog.Logger
}

// NewAMQPPublisher 建立连接并声明 exchange。
func NewAMQPPublisher(cfg AMQPConfig, log *slog.Logger) (*AMQPPublisher, error) {
	if cfg.URL == "" {
		return nil, errors.New("RabbitMQ URL 不能为空")
	}
	if log == nil {
		log = slog.Default()
	}
	exchange := cfg.Exchange
	if exchange == "" {
		exchange = "agentcore.audit"
	}
	routingKey := cfg.RoutingKey
	if routingKey == "" {
		routingKey = "conversation.turn"
	}
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("连接 RabbitMQ 失败: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("创建 RabbitMQ channel 失败: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", cfg.Durable, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("声明 RabbitMQ exchange 失败: %w", err)
	}
	return &AMQPPublisher{
		conn:       conn,
		ch:         ch,
		exchange:   exchange,
		routingKey: routingKey,
		log:        log,
	}, nil
}

// PublishTurn 投递一条审计事件。失败时记日志并吞掉错误。
func (p *AMQPPublisher) PublishTurn(ctx context.Context, event TurnEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	body, err := json.Marshal(event)
	if err != nil {
		p.log.Error("序列化审计事件失败", "error", err)
		return
	}
	err = p.ch.PublishWithContext(ctx, p.exchange, p.routingKey, false, false, amqp.Publishing{
		ContentType: "application/json",
		Timestamp:   event.OccurredAt,
		Body:        body,
	})
	if err != nil {
		p.log.Error("投递审计事件失败", "session_id", event.SessionID, "error", err)
		return
	}
	p.log.Debug("审计事件已投递", "session_id", event.SessionID)
}

// Close 关闭 channel 与连接。
func (p *AMQPPublisher) Close() error {
	if p.ch != nil {
		p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// LogPublisher 把审计事件写入审计日志文件。
type LogPublisher struct {
	Log *slog.Logger
}

func (p LogPublisher) PublishTurn(_ context.Context, event TurnEvent) {
	if p.Log == nil {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	p.Log.Info("conversation turn",
		"session_id", event.SessionID,
		"actor_id", event.ActorID,
		"user_text", event.UserText,
		"assistant_text", event.Assistant,
		"iterations", event.Iterations,
		"tool_calls", event.ToolCalls,
		"occurred_at", event.OccurredAt,
	)
}

func (LogPublisher) Close() error { return nil }

// Fanout 把同一事件投递到多个通道。
type Fanout []Publisher

func (f Fanout) PublishTurn(ctx context.Context, event TurnEvent) {
	for _, p := range f {
		p.PublishTurn(ctx, event)
	}
}

func (f Fanout) Close() error {
	var err error
	for _, p := range f {
		err = errors.Join(err, p.Close())
	}
	return err
}

// NopPublisher 在审计未启用时使用。
type NopPublisher struct{}

func (NopPublisher) PublishTurn(context.Context, TurnEvent) {}
func (NopPublisher) Close() error                           { return nil }
