// Package bus defines the narrow pub/sub port the relay consumes, with a
// Redis driver for production and an in-process driver for single-node use.
package bus

import "context"

// TopicPrefix namespaces chat traffic on a shared bus instance.
const TopicPrefix = "chat:"

// Pattern matches every shop's topic.
const Pattern = TopicPrefix + "*"

// Topic returns the per-shop topic every envelope of that shop is published
// under. One topic per tenant keeps cross-shop traffic apart at the bus
// layer; sessions still filter in-process.
func Topic(shopID string) string {
	return TopicPrefix + shopID
}

// Delivery is one payload received from a pattern subscription.
type Delivery struct {
	Topic   string
	Payload []byte
}

// Subscription is a live pattern subscription. C is closed when the
// subscription ends, whether by Close or because the underlying connection
// died; the consumer decides whether to resubscribe.
type Subscription interface {
	C() <-chan Delivery
	Close() error
}

// Bus is the relay's view of the pub/sub system. Implementations must be
// safe for concurrent use by many sessions.
type Bus interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	SubscribePattern(ctx context.Context, pattern string) (Subscription, error)
	Close() error
}
