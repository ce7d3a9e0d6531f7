package bus

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// RedisBus implements Bus over Redis pub/sub.
type RedisBus struct {
	cli *redis.Client
}

// NewRedis connects to redisURL (redis://...) and pings it once.
func NewRedis(ctx context.Context, redisURL string) (*RedisBus, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	cli := redis.NewClient(opts)
	if err := cli.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &RedisBus{cli: cli}, nil
}

func (b *RedisBus) Publish(ctx context.Context, topic string, payload []byte) error {
	return b.cli.Publish(ctx, topic, payload).Err()
}

func (b *RedisBus) SubscribePattern(ctx context.Context, pattern string) (Subscription, error) {
	ps := b.cli.PSubscribe(ctx, pattern)
	// Receive forces the SUBSCRIBE round trip so a dead server surfaces here
	// instead of as a silently empty stream.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	sub := &redisSubscription{ps: ps, ch: make(chan Delivery, 64)}
	go sub.pump(ctx)
	return sub, nil
}

func (b *RedisBus) Close() error {
	return b.cli.Close()
}

type redisSubscription struct {
	ps *redis.PubSub
	ch chan Delivery
}

func (s *redisSubscription) C() <-chan Delivery { return s.ch }

func (s *redisSubscription) Close() error { return s.ps.Close() }

func (s *redisSubscription) pump(ctx context.Context) {
	defer close(s.ch)
	msgs := s.ps.Channel()
	for {
		select {
		case m, ok := <-msgs:
			if !ok {
				return
			}
			select {
			case s.ch <- Delivery{Topic: m.Channel, Payload: []byte(m.Payload)}:
			case <-ctx.Done():
				_ = s.ps.Close()
				return
			}
		case <-ctx.Done():
			_ = s.ps.Close()
			return
		}
	}
}
