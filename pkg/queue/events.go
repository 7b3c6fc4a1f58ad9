package queue

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.opentelemetry.io/otel/trace"

	"github.com/yeisme/sharevault/pkg/configs"
)

// Publisher 是 mq.Client 的发布子集.
type Publisher interface {
	Publish(ctx context.Context, topic string, msgs ...*message.Message) error
}

// Emitter 按配置开关发布领域事件；pub 为 nil 时所有方法都是空操作.
type Emitter struct {
	pub Publisher
	cfg configs.EventsConfig
}

// NewEmitter 创建事件发布器.
func NewEmitter(pub Publisher, cfg configs.EventsConfig) *Emitter {
	return &Emitter{pub: pub, cfg: cfg}
}

// Enabled 主题是否会被发布.
func (e *Emitter) Enabled(topic string) bool {
	if e == nil || e.pub == nil || !e.cfg.Enabled {
		return false
	}

	switch topic {
	case TopicResourceCreated:
		return e.cfg.Resource.Created
	case TopicResourceUpdated:
		return e.cfg.Resource.Updated
	case TopicResourceDeleted:
		return e.cfg.Resource.Deleted
	case TopicBlobOrphaned:
		return e.cfg.Resource.Orphan
	default:
		return false
	}
}

func (e *Emitter) opts(ctx context.Context) []func(*EventHeader) {
	opts := []func(*EventHeader){WithProducer(e.cfg.Producer)}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		opts = append(opts, WithTraceID(sc.TraceID().String()))
	}

	return opts
}

func emit[T any](ctx context.Context, e *Emitter, topic string, payload T) error {
	if !e.Enabled(topic) {
		return nil
	}

	msg, err := NewWatermillMessage(topic, payload, e.opts(ctx)...)
	if err != nil {
		return err
	}

	msg.SetContext(ctx)

	return e.pub.Publish(ctx, topic, msg)
}

// ResourceCreated 发布 sv.resource.created.
func (e *Emitter) ResourceCreated(ctx context.Context, p ResourceCreatedPayload) error {
	return emit(ctx, e, TopicResourceCreated, p)
}

// ResourceUpdated 发布 sv.resource.updated.
func (e *Emitter) ResourceUpdated(ctx context.Context, p ResourceUpdatedPayload) error {
	return emit(ctx, e, TopicResourceUpdated, p)
}

// ResourceDeleted 发布 sv.resource.deleted.
func (e *Emitter) ResourceDeleted(ctx context.Context, p ResourceDeletedPayload) error {
	return emit(ctx, e, TopicResourceDeleted, p)
}

// BlobOrphaned 发布 sv.blob.orphaned.
func (e *Emitter) BlobOrphaned(ctx context.Context, p BlobOrphanedPayload) error {
	return emit(ctx, e, TopicBlobOrphaned, p)
}

// ParseResourceCreated 将 Watermill 消息解析为强类型 Envelope.
func ParseResourceCreated(msg *message.Message) (Message[ResourceCreatedPayload], error) {
	return ParseWatermillMessage[ResourceCreatedPayload](msg)
}

// ParseResourceDeleted 将 Watermill 消息解析为强类型 Envelope.
func ParseResourceDeleted(msg *message.Message) (Message[ResourceDeletedPayload], error) {
	return ParseWatermillMessage[ResourceDeletedPayload](msg)
}
