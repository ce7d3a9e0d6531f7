package bus

import (
	"context"
	"testing"
	"time"
)

func recvOne(t *testing.T, sub Subscription) Delivery {
	t.Helper()
	select {
	case d, ok := <-sub.C():
		if !ok {
			t.Fatalf("subscription closed unexpectedly")
		}
		return d
	case <-time.After(2 * time.Second):
		t.Fatalf("timeout waiting for delivery")
		return Delivery{}
	}
}

func TestMemoryBus_PatternScoping(t *testing.T) {
	b := NewMemory()
	defer b.Close()
	ctx := context.Background()

	all, err := b.SubscribePattern(ctx, Pattern)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	other, err := b.SubscribePattern(ctx, "presence:*")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := b.Publish(ctx, Topic("shop-a"), []byte("x")); err != nil {
		t.Fatalf("publish: %v", err)
	}

	d := recvOne(t, all)
	if d.Topic != "chat:shop-a" || string(d.Payload) != "x" {
		t.Errorf("unexpected delivery %+v", d)
	}

	select {
	case d := <-other.C():
		t.Errorf("presence subscriber received chat delivery %+v", d)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryBus_OrderPreserved(t *testing.T) {
	b := NewMemory()
	defer b.Close()
	ctx := context.Background()

	sub, _ := b.SubscribePattern(ctx, Pattern)
	for i := byte(0); i < 10; i++ {
		if err := b.Publish(ctx, Topic("s"), []byte{i}); err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
	}
	for i := byte(0); i < 10; i++ {
		d := recvOne(t, sub)
		if d.Payload[0] != i {
			t.Fatalf("out of order: got %d want %d", d.Payload[0], i)
		}
	}
}

func TestMemoryBus_SubscriptionClose(t *testing.T) {
	b := NewMemory()
	defer b.Close()
	ctx := context.Background()

	sub, _ := b.SubscribePattern(ctx, Pattern)
	if err := sub.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, ok := <-sub.C(); ok {
		t.Errorf("channel should be closed after Close")
	}
	// Publishing after a subscriber left must not panic or error.
	if err := b.Publish(ctx, Topic("s"), []byte("x")); err != nil {
		t.Errorf("publish after unsubscribe: %v", err)
	}
}

func TestMemoryBus_Closed(t *testing.T) {
	b := NewMemory()
	_ = b.Close()
	if err := b.Publish(context.Background(), Topic("s"), nil); err != ErrBusClosed {
		t.Errorf("expected ErrBusClosed, got %v", err)
	}
	if _, err := b.SubscribePattern(context.Background(), Pattern); err != ErrBusClosed {
		t.Errorf("expected ErrBusClosed, got %v", err)
	}
}
