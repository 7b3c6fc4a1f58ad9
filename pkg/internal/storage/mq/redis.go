package mq

import (
	"context"
	"errors"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"github.com/yeisme/sharevault/pkg/configs"
)

// DefaultChannelBufferSize 默认通道缓冲区大小.
const DefaultChannelBufferSize = 100

// redisEnvelope Redis Pub/Sub 只传字节，UUID 与 metadata 一并编码.
type redisEnvelope struct {
	UUID     string            `json:"uuid"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Payload  []byte            `json:"payload"`
}

// RedisPublisher Redis Publisher 实现.
type RedisPublisher struct {
	client *redis.Client
}

// RedisSubscriber Redis Subscriber 实现，每次 Subscribe 持有独立的 PubSub.
type RedisSubscriber struct {
	client  *redis.Client
	logger  watermill.LoggerAdapter
	mu      sync.Mutex
	subs    []*redis.PubSub
	closed  bool
	closeCh chan struct{}
	wg      sync.WaitGroup
}

func init() {
	RegisterFactory(configs.MQTypeRedis, redisFactory)
}

// redisFactory 创建 Redis Publisher & Subscriber，两者共用一个连接池.
func redisFactory(ctx context.Context, cfg *configs.MQConfig, logger watermill.LoggerAdapter) (*Backend, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()

		return nil, err
	}

	return &Backend{
		Publisher:  &RedisPublisher{client: rdb},
		Subscriber: &RedisSubscriber{client: rdb, logger: logger, closeCh: make(chan struct{})},
		Ping: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		},
		Close: rdb.Close,
	}, nil
}

// Publish 实现 Publisher 接口.
func (p *RedisPublisher) Publish(topic string, msgs ...*message.Message) error {
	for _, msg := range msgs {
		data, err := sonic.Marshal(redisEnvelope{UUID: msg.UUID, Metadata: msg.Metadata, Payload: msg.Payload})
		if err != nil {
			return err
		}

		ctx := msg.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		if err := p.client.Publish(ctx, topic, data).Err(); err != nil {
			return err
		}
	}

	return nil
}

// Close 连接池由 Backend.Close 统一关闭.
func (p *RedisPublisher) Close() error {
	return nil
}

// Subscribe 实现 Subscriber 接口；Redis Pub/Sub 无持久化，Nack 的消息不会重投.
func (s *RedisSubscriber) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, errors.New("subscriber closed")
	}

	ps := s.client.Subscribe(ctx, topic)
	s.subs = append(s.subs, ps)

	out := make(chan *message.Message, DefaultChannelBufferSize)

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()
		defer close(out)

		in := ps.Channel()

		for {
			select {
			case <-s.closeCh:
				return
			case <-ctx.Done():
				return
			case rm, ok := <-in:
				if !ok {
					return
				}

				msg := s.decode(topic, rm.Payload)

				select {
				case out <- msg:
				case <-s.closeCh:
					return
				case <-ctx.Done():
					return
				}

				select {
				case <-msg.Acked():
				case <-msg.Nacked():
					s.logger.Debug("message nacked, redis pub/sub cannot redeliver", watermill.LogFields{"uuid": msg.UUID})
				case <-s.closeCh:
					return
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func (s *RedisSubscriber) decode(topic, payload string) *message.Message {
	var env redisEnvelope
	if err := sonic.UnmarshalString(payload, &env); err != nil || env.UUID == "" {
		// 非本服务发布的原始消息
		return message.NewMessage(watermill.NewUUID(), []byte(payload))
	}

	msg := message.NewMessage(env.UUID, env.Payload)
	for k, v := range env.Metadata {
		msg.Metadata.Set(k, v)
	}

	if msg.Metadata.Get("topic") == "" {
		msg.Metadata.Set("topic", topic)
	}

	return msg
}

// Close 实现 Subscriber 接口.
func (s *RedisSubscriber) Close() error {
	s.mu.Lock()

	if s.closed {
		s.mu.Unlock()

		return nil
	}

	s.closed = true
	close(s.closeCh)

	var errs []error
	for _, ps := range s.subs {
		errs = append(errs, ps.Close())
	}

	s.mu.Unlock()
	s.wg.Wait()

	return errors.Join(errs...)
}
