package mq

import (
	"context"
	"strings"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	nc "github.com/nats-io/nats.go"

	"github.com/yeisme/sharevault/pkg/configs"
)

const (
	DefaultDrainTimeout   = 30 * time.Second
	DefaultFlusherTimeout = 10 * time.Second
)

func init() {
	RegisterFactory(configs.MQTypeNATS, natsFactory)
}

// buildNatsOptions 构建 NATS 连接选项.
func buildNatsOptions(cfg *configs.MQConfig) []nc.Option {
	common := cfg.Common

	opts := []nc.Option{
		nc.Name(common.ClientID),
		nc.MaxReconnects(common.MaxReconnects),
		nc.ReconnectWait(common.ReconnectWaitDuration()),
		nc.PingInterval(common.PingIntervalDuration()),
		nc.MaxPingsOutstanding(common.MaxPingsOut),
		nc.ReconnectBufSize(common.BufferSize),
		nc.DrainTimeout(DefaultDrainTimeout),
		nc.FlusherTimeout(DefaultFlusherTimeout),
		nc.RetryOnFailedConnect(true),
	}

	switch {
	case cfg.NATS.JWT != "":
		opts = append(opts, nc.UserJWTAndSeed(cfg.NATS.JWT, cfg.NATS.NKey))
	case common.User != "":
		opts = append(opts, nc.UserInfo(common.User, common.Password))
	}

	return opts
}

// buildJetStreamConfig 构建 JetStream 配置.
func buildJetStreamConfig(cfg *configs.MQConfig) nats.JetStreamConfig {
	n := cfg.NATS
	if !n.JetStreamEnabled {
		return nats.JetStreamConfig{Disabled: true}
	}

	return nats.JetStreamConfig{
		AutoProvision: n.JetStreamAutoProvision,
		TrackMsgId:    n.JetStreamTrackMsgID,
		AckAsync:      n.JetStreamAckAsync,
		DurablePrefix: n.JetStreamDurablePrefix,
	}
}

// buildURL 构建连接 URL，集群地址优先.
func buildURL(cfg *configs.MQConfig) string {
	if len(cfg.NATS.ClusterURLs) > 0 {
		return strings.Join(cfg.NATS.ClusterURLs, ",")
	}

	return cfg.Common.URL
}

// subjectCalculator 给主题加上 subject_prefix，资源事件 sv.resource.created 变为 sharevault.sv.resource.created.
func subjectCalculator(prefix string) nats.SubjectCalculator {
	return func(queueGroupPrefix, topic string) *nats.SubjectDetail {
		return nats.DefaultSubjectCalculator(queueGroupPrefix, prefix+topic)
	}
}

// natsFactory 创建 NATS Publisher & Subscriber，并额外保持一个连接用于健康检查.
func natsFactory(_ context.Context, cfg *configs.MQConfig, logger watermill.LoggerAdapter) (*Backend, error) {
	opts := buildNatsOptions(cfg)
	jsCfg := buildJetStreamConfig(cfg)
	marshaler := &nats.JSONMarshaler{}
	url := buildURL(cfg)

	logger.Info("connecting to NATS", watermill.LogFields{
		"url":            url,
		"jetstream":      !jsCfg.Disabled,
		"subject_prefix": cfg.NATS.SubjectPrefix,
	})

	pub, err := nats.NewPublisher(nats.PublisherConfig{
		URL:               url,
		NatsOptions:       opts,
		JetStream:         jsCfg,
		Marshaler:         marshaler,
		SubjectCalculator: subjectCalculator(cfg.NATS.SubjectPrefix),
	}, logger)
	if err != nil {
		return nil, err
	}

	sub, err := nats.NewSubscriber(nats.SubscriberConfig{
		URL:               url,
		NatsOptions:       opts,
		JetStream:         jsCfg,
		Unmarshaler:       marshaler,
		SubjectCalculator: subjectCalculator(cfg.NATS.SubjectPrefix),
	}, logger)
	if err != nil {
		_ = pub.Close()

		return nil, err
	}

	conn, err := nc.Connect(url, opts...)
	if err != nil {
		_ = pub.Close()
		_ = sub.Close()

		return nil, err
	}

	return &Backend{
		Publisher:  pub,
		Subscriber: sub,
		Ping: func(ctx context.Context) error {
			return conn.FlushWithContext(ctx)
		},
		Close: func() error {
			conn.Close()

			return nil
		},
	}, nil
}
