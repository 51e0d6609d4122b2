package audit

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Shopify/sarama"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
)

const consumerGroup = "seat-ledger-audit"

// BackendConfig selects and configures the audit transport.
type BackendConfig struct {
	Kind         string // channel | redis | kafka
	RedisAddr    string
	KafkaBrokers []string
	ConsumerName string
}

// Backend is a publisher/subscriber pair plus whatever it needs closing.
type Backend struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
	closers    []func() error
}

// NewBackend builds the transport named by cfg.Kind.
func NewBackend(cfg BackendConfig, logger watermill.LoggerAdapter) (*Backend, error) {
	switch strings.ToLower(cfg.Kind) {
	case "", "channel":
		return newChannelBackend(logger), nil
	case "redis":
		return newRedisBackend(cfg, logger)
	case "kafka":
		return newKafkaBackend(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown audit backend %q", cfg.Kind)
	}
}

func newChannelBackend(logger watermill.LoggerAdapter) *Backend {
	pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 256}, logger)
	return &Backend{
		Publisher:  pubSub,
		Subscriber: pubSub,
		closers:    []func() error{pubSub.Close},
	}
}

func newRedisBackend(cfg BackendConfig, logger watermill.LoggerAdapter) (*Backend, error) {
	if cfg.RedisAddr == "" {
		return nil, errors.New("redis audit backend requires REDIS_ADDR")
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})

	publisher, err := redisstream.NewPublisher(redisstream.PublisherConfig{Client: client}, logger)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("redis publisher: %w", err)
	}
	subscriber, err := redisstream.NewSubscriber(redisstream.SubscriberConfig{
		Client:        client,
		ConsumerGroup: consumerGroup,
		Consumer:      cfg.ConsumerName,
	}, logger)
	if err != nil {
		publisher.Close()
		client.Close()
		return nil, fmt.Errorf("redis subscriber: %w", err)
	}

	return &Backend{
		Publisher:  publisher,
		Subscriber: subscriber,
		closers:    []func() error{subscriber.Close, publisher.Close, client.Close},
	}, nil
}

func newKafkaBackend(cfg BackendConfig, logger watermill.LoggerAdapter) (*Backend, error) {
	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("kafka audit backend requires KAFKA_BROKERS")
	}
	marshaler := kafka.DefaultMarshaler{}

	publisher, err := kafka.NewPublisher(kafka.PublisherConfig{
		Brokers:   cfg.KafkaBrokers,
		Marshaler: marshaler,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("kafka publisher: %w", err)
	}

	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V1_0_0_0
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetOldest
	saramaConfig.Consumer.Return.Errors = true
	saramaConfig.ClientID = consumerGroup

	subscriber, err := kafka.NewSubscriber(kafka.SubscriberConfig{
		Brokers:               cfg.KafkaBrokers,
		Unmarshaler:           marshaler,
		ConsumerGroup:         consumerGroup,
		OverwriteSaramaConfig: saramaConfig,
		InitializeTopicDetails: &sarama.TopicDetail{
			NumPartitions:     1,
			ReplicationFactor: 1,
		},
	}, logger)
	if err != nil {
		publisher.Close()
		return nil, fmt.Errorf("kafka subscriber: %w", err)
	}
	if err := subscriber.SubscribeInitialize(Topic); err != nil {
		subscriber.Close()
		publisher.Close()
		return nil, fmt.Errorf("initialize kafka topic %s: %w", Topic, err)
	}

	return &Backend{
		Publisher:  publisher,
		Subscriber: subscriber,
		closers:    []func() error{subscriber.Close, publisher.Close},
	}, nil
}

// Close closes everything in reverse order of construction and returns
// the first error.
func (b *Backend) Close() error {
	var first error
	for _, c := range b.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
