// Package mq 提供基于 Watermill 的统一消息队列接口，资源事件通过它发布.
//
// 支持的 MQ 类型：
//   - NATS（可选 JetStream）
//   - Redis Pub/Sub
//
// 使用示例：
//
//	client, err := mq.New(ctx, &cfg.MQ, mq.WithMetrics(metrics.GetRegistry()))
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Publish(ctx, "sv.resource.created", msg)
package mq

import (
	"context"
	"errors"
	"fmt"
	"sort"

	watermill "github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/components/metrics"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yeisme/sharevault/pkg/configs"
	nlog "github.com/yeisme/sharevault/pkg/log"
)

// Backend 工厂创建的一组发布/订阅端.
type Backend struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
	// Ping 检查底层连接，可为空.
	Ping func(ctx context.Context) error
	// Close 释放工厂额外持有的连接，可为空.
	Close func() error
}

// Factory 定义创建 Backend 的工厂函数.
type Factory func(ctx context.Context, cfg *configs.MQConfig, logger watermill.LoggerAdapter) (*Backend, error)

var factories = map[configs.MQType]Factory{}

// RegisterFactory 注册指定 MQType 的工厂.
func RegisterFactory(t configs.MQType, f Factory) {
	factories[t] = f
}

// GetRegisteredTypes 返回已注册的 MQ 类型.
func GetRegisteredTypes() []configs.MQType {
	types := make([]configs.MQType, 0, len(factories))
	for t := range factories {
		types = append(types, t)
	}

	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	return types
}

// Client 封装 watermill Publisher 与 Subscriber.
type Client struct {
	typ        configs.MQType
	publisher  message.Publisher
	subscriber message.Subscriber
	ping       func(ctx context.Context) error
	closeExtra func() error
}

// Option 调整 New 的行为.
type Option func(*options)

type options struct {
	registry *prometheus.Registry
	logger   watermill.LoggerAdapter
}

// WithMetrics 在给定注册表上记录发布/订阅指标.
func WithMetrics(reg *prometheus.Registry) Option {
	return func(o *options) { o.registry = reg }
}

// WithLogger 替换默认的 zerolog 适配器.
func WithLogger(l watermill.LoggerAdapter) Option {
	return func(o *options) { o.logger = l }
}

// New 按配置创建消息队列客户端.
func New(ctx context.Context, cfg *configs.MQConfig, opts ...Option) (*Client, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	if o.logger == nil {
		o.logger = NewLoggerAdapter(nlog.Logger())
	}

	typ := cfg.GetMQType()

	factory, ok := factories[typ]
	if !ok {
		return nil, fmt.Errorf("unsupported mq type: %s", typ)
	}

	b, err := factory(ctx, cfg, o.logger)
	if err != nil {
		return nil, fmt.Errorf("init mq (%s): %w", typ, err)
	}

	return newClient(typ, b, o)
}

// NewFromBackend 直接使用现成的 Backend，例如 watermill 的 gochannel.
func NewFromBackend(typ configs.MQType, b *Backend, opts ...Option) (*Client, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	return newClient(typ, b, o)
}

func newClient(typ configs.MQType, b *Backend, o options) (*Client, error) {
	pub, sub := b.Publisher, b.Subscriber

	if o.registry != nil {
		builder := metrics.NewPrometheusMetricsBuilder(o.registry, "sharevault", "mq")

		var err error
		if pub, err = builder.DecoratePublisher(pub); err != nil {
			return nil, fmt.Errorf("decorate publisher with metrics: %w", err)
		}

		if sub != nil {
			if sub, err = builder.DecorateSubscriber(sub); err != nil {
				return nil, fmt.Errorf("decorate subscriber with metrics: %w", err)
			}
		}
	}

	nlog.Logger().Info().Str("type", string(typ)).Msg("MQ 客户端已初始化")

	return &Client{typ: typ, publisher: pub, subscriber: sub, ping: b.Ping, closeExtra: b.Close}, nil
}

// Type 返回 MQ 类型.
func (c *Client) Type() configs.MQType {
	return c.typ
}

// Publish 发布消息.
func (c *Client) Publish(_ context.Context, topic string, msgs ...*message.Message) error {
	if c == nil || c.publisher == nil {
		return errors.New("mq publisher not initialized")
	}

	return c.publisher.Publish(topic, msgs...)
}

// Subscribe 订阅主题.
func (c *Client) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	if c == nil || c.subscriber == nil {
		return nil, errors.New("mq subscriber not initialized")
	}

	return c.subscriber.Subscribe(ctx, topic)
}

// Ping 检查连接状态，后端未提供检查时视为健康.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil {
		return errors.New("mq not initialized")
	}

	if c.ping == nil {
		return nil
	}

	return c.ping(ctx)
}

// Close 关闭资源.
func (c *Client) Close() error {
	var errs []error

	if c.publisher != nil {
		errs = append(errs, c.publisher.Close())
	}

	if c.subscriber != nil {
		errs = append(errs, c.subscriber.Close())
	}

	if c.closeExtra != nil {
		errs = append(errs, c.closeExtra())
	}

	return errors.Join(errs...)
}
