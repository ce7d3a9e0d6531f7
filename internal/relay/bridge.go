package relay

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/turbochat/relay/internal/bus"
	"github.com/turbochat/relay/internal/observe"
	"github.com/turbochat/relay/pkg/logger"
)

// Bridge keeps this instance's one subscription to the tenant-spanning
// topic pattern alive and feeds every received payload to the hub. It has
// no terminal failure state: losing the bus only degrades delivery to
// same-instance traffic until the subscription comes back.
type Bridge struct {
	bus     bus.Bus
	hub     *Hub
	backoff time.Duration
	log     *zap.SugaredLogger
}

func NewBridge(b bus.Bus, hub *Hub, backoff time.Duration) *Bridge {
	if backoff <= 0 {
		backoff = 2 * time.Second
	}
	return &Bridge{
		bus:     b,
		hub:     hub,
		backoff: backoff,
		log:     logger.S().With("component", "bridge"),
	}
}

// Run loops until ctx is cancelled: subscribe, stream, and on any failure
// wait one backoff interval and try again. Payloads are forwarded verbatim;
// decoding happens once, at the session.
func (br *Bridge) Run(ctx context.Context) {
	connected := false
	for {
		if ctx.Err() != nil {
			return
		}

		sub, err := br.bus.SubscribePattern(ctx, bus.Pattern)
		if err != nil {
			br.log.Warnw("bus_subscribe_failed", "err", err)
			if !br.sleep(ctx) {
				return
			}
			continue
		}
		if connected {
			observe.IncBridgeReconnect()
		}
		connected = true
		br.log.Infow("bus_subscribed", "pattern", bus.Pattern)

	stream:
		for {
			select {
			case d, ok := <-sub.C():
				if !ok {
					break stream
				}
				br.hub.Broadcast(d.Payload)
			case <-ctx.Done():
				_ = sub.Close()
				return
			}
		}
		_ = sub.Close()

		if ctx.Err() != nil {
			return
		}
		br.log.Warnw("bus_stream_ended", "retry_in", br.backoff)
		if !br.sleep(ctx) {
			return
		}
	}
}

func (br *Bridge) sleep(ctx context.Context) bool {
	select {
	case <-time.After(br.backoff):
		return true
	case <-ctx.Done():
		return false
	}
}
