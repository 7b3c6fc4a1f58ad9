package queue_test

import (
	"context"
	"sync"
	"testing"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/sharevault/pkg/configs"
	"github.com/yeisme/sharevault/pkg/queue"
)

type recorder struct {
	mu   sync.Mutex
	sent map[string][]*message.Message
}

func (r *recorder) Publish(_ context.Context, topic string, msgs ...*message.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sent == nil {
		r.sent = map[string][]*message.Message{}
	}

	r.sent[topic] = append(r.sent[topic], msgs...)

	return nil
}

func eventsConfig() configs.EventsConfig {
	return configs.EventsConfig{
		Enabled:  true,
		Producer: "sharevault-test",
		Resource: configs.ResourceEventsConfig{Created: true, Updated: true, Deleted: true},
	}
}

func TestEmitterPublishesEnvelope(t *testing.T) {
	rec := &recorder{}
	em := queue.NewEmitter(rec, eventsConfig())
	ctx := context.Background()

	require.NoError(t, em.ResourceCreated(ctx, queue.ResourceCreatedPayload{
		ResourceID: "r1", OwnerID: "u1", Title: "Go", Tags: []string{"go"},
	}))

	msgs := rec.sent[queue.TopicResourceCreated]
	require.Len(t, msgs, 1)
	assert.Equal(t, queue.TopicResourceCreated, msgs[0].Metadata.Get("topic"))
	assert.Equal(t, "sharevault-test", msgs[0].Metadata.Get("producer"))

	env, err := queue.ParseResourceCreated(msgs[0])
	require.NoError(t, err)
	assert.Equal(t, "r1", env.Payload.ResourceID)
	assert.Equal(t, []string{"go"}, env.Payload.Tags)
	assert.Equal(t, queue.PayloadVersionV1, env.Header.Version)
	assert.False(t, env.Header.OccurredAt.IsZero())
}

func TestEmitterToggles(t *testing.T) {
	rec := &recorder{}
	em := queue.NewEmitter(rec, eventsConfig())
	ctx := context.Background()

	// orphan 默认关闭
	require.NoError(t, em.BlobOrphaned(ctx, queue.BlobOrphanedPayload{Key: "x"}))
	assert.Empty(t, rec.sent[queue.TopicBlobOrphaned])

	cfg := eventsConfig()
	cfg.Enabled = false
	off := queue.NewEmitter(rec, cfg)
	require.NoError(t, off.ResourceDeleted(ctx, queue.ResourceDeletedPayload{ResourceID: "r"}))
	assert.Empty(t, rec.sent[queue.TopicResourceDeleted])
}

func TestNilEmitter(t *testing.T) {
	var em *queue.Emitter
	assert.False(t, em.Enabled(queue.TopicResourceCreated))
	assert.NoError(t, em.ResourceUpdated(context.Background(), queue.ResourceUpdatedPayload{}))

	noPub := queue.NewEmitter(nil, eventsConfig())
	assert.NoError(t, noPub.ResourceCreated(context.Background(), queue.ResourceCreatedPayload{}))
}

func TestEncodeDecode(t *testing.T) {
	msg := queue.Message[queue.ResourceDeletedPayload]{
		Header:  queue.NewEventHeader(queue.TopicResourceDeleted, queue.WithTraceID("abc")),
		Payload: queue.ResourceDeletedPayload{ResourceID: "r", BlobDeleted: true},
	}

	b, err := queue.Encode(msg)
	require.NoError(t, err)

	got, err := queue.Decode[queue.ResourceDeletedPayload](b)
	require.NoError(t, err)
	assert.Equal(t, "abc", got.Header.TraceID)
	assert.True(t, got.Payload.BlobDeleted)
}
