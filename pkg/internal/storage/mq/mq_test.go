package mq

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/sharevault/pkg/configs"
)

func TestClientPublishSubscribeWithMetrics(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 4}, watermill.NopLogger{})

	client, err := NewFromBackend("memory", &Backend{Publisher: ch, Subscriber: ch}, WithMetrics(prometheus.NewRegistry()))
	require.NoError(t, err)

	t.Cleanup(func() { _ = client.Close() })

	msgs, err := client.Subscribe(ctx, "sv.resource.created")
	require.NoError(t, err)

	require.NoError(t, client.Publish(ctx, "sv.resource.created", message.NewMessage("m-1", []byte(`{"id":"r1"}`))))

	select {
	case got := <-msgs:
		assert.Equal(t, "m-1", got.UUID)
		assert.JSONEq(t, `{"id":"r1"}`, string(got.Payload))
		got.Ack()
	case <-ctx.Done():
		t.Fatal("message not delivered")
	}

	assert.NoError(t, client.Ping(ctx))
	assert.Equal(t, configs.MQType("memory"), client.Type())
}

func TestNilClient(t *testing.T) {
	var c *Client

	assert.Error(t, c.Publish(context.Background(), "t"))
	assert.Error(t, c.Ping(context.Background()))
}

func TestNewUnknownType(t *testing.T) {
	_, err := New(context.Background(), &configs.MQConfig{Type: "kafka"})
	assert.Error(t, err)
	assert.Equal(t, []configs.MQType{configs.MQTypeNATS, configs.MQTypeRedis}, GetRegisteredTypes())
}

func TestRedisEnvelopeDecode(t *testing.T) {
	s := &RedisSubscriber{logger: watermill.NopLogger{}}

	msg := s.decode("topic-a", `{"uuid":"u1","metadata":{"k":"v"},"payload":"aGk="}`)
	assert.Equal(t, "u1", msg.UUID)
	assert.Equal(t, "v", msg.Metadata.Get("k"))
	assert.Equal(t, "topic-a", msg.Metadata.Get("topic"))
	assert.Equal(t, []byte("hi"), []byte(msg.Payload))

	raw := s.decode("topic-a", "plain text")
	assert.Equal(t, []byte("plain text"), []byte(raw.Payload))
	assert.NotEmpty(t, raw.UUID)
}
