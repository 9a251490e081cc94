package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"Soundcheck/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type relayEnvelope struct {
	Origin  string          `json:"origin"`
	Channel string          `json:"channel"`
	Frame   json.RawMessage `json:"frame"`
}

// Relay shares broadcasts between server instances over a redis pub/sub
// topic. Delivery is best effort: publishing never blocks the local hub and
// frames are dropped when the outbox is full or redis is unreachable.
type Relay struct {
	client  *redis.Client
	topic   string
	origin  string
	deliver func(channel string, frame []byte)
	outbox  chan relayEnvelope
}

// NewRelay creates a relay that hands remote frames to deliver.
func NewRelay(client *redis.Client, topic string, deliver func(channel string, frame []byte)) *Relay {
	return &Relay{
		client:  client,
		topic:   topic,
		origin:  uuid.NewString(),
		deliver: deliver,
		outbox:  make(chan relayEnvelope, 256),
	}
}

// Origin identifies this instance on the topic.
func (r *Relay) Origin() string {
	return r.origin
}

// Publish implements Publisher.
func (r *Relay) Publish(channel string, frame []byte) {
	select {
	case r.outbox <- relayEnvelope{Origin: r.origin, Channel: channel, Frame: frame}:
	default:
		logger.Warn("relay outbox full, dropping event", logger.String("channel", channel))
	}
}

// Start subscribes to the topic and runs the publish and receive loops until
// ctx is cancelled. It returns once the subscription is confirmed.
func (r *Relay) Start(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, r.topic)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return fmt.Errorf("subscribe %s: %w", r.topic, err)
	}

	go r.receive(ctx, sub)
	go r.publish(ctx)

	logger.Info("realtime relay started",
		logger.String("topic", r.topic),
		logger.String("origin", r.origin))
	return nil
}

func (r *Relay) publish(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-r.outbox:
			payload, err := json.Marshal(env)
			if err != nil {
				continue
			}
			if err := r.client.Publish(ctx, r.topic, payload).Err(); err != nil {
				logger.Warn("relay publish failed",
					logger.String("channel", env.Channel),
					logger.ErrorField(err))
			}
		}
	}
}

func (r *Relay) receive(ctx context.Context, sub *redis.PubSub) {
	defer sub.Close()
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var env relayEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				logger.Warn("relay received malformed payload", logger.ErrorField(err))
				continue
			}
			if env.Origin == r.origin {
				continue
			}
			r.deliver(env.Channel, env.Frame)
		}
	}
}
