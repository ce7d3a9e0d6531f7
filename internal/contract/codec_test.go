package contract

import (
	"bytes"
	"reflect"
	"testing"
	"time"
)

func sampleEnvelope() *Envelope {
	return NewEnvelope("shop-1", 42, 1000, SenderGuest, []byte("hi"), uint64(time.Now().UnixMicro()))
}

func TestJSONCodec_RoundTrip(t *testing.T) {
	codec := JSONCodec{}
	orig := sampleEnvelope()

	data, err := codec.Marshal(orig)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	got, err := codec.Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if !reflect.DeepEqual(got, orig) {
		t.Errorf("round trip mismatch: got %+v want %+v", got, orig)
	}
}

func TestJSONCodec_MarshalDeterministic(t *testing.T) {
	codec := JSONCodec{}
	e := sampleEnvelope()
	a, _ := codec.Marshal(e)
	b, _ := codec.Marshal(e)
	if !bytes.Equal(a, b) {
		t.Errorf("encoding not deterministic: %q vs %q", a, b)
	}
}

func TestJSONCodec_UnmarshalNotObject(t *testing.T) {
	codec := JSONCodec{}
	if _, err := codec.Unmarshal([]byte("[]")); err == nil {
		t.Errorf("expected error for array input, got nil")
	}
	if _, err := codec.Unmarshal(nil); err == nil {
		t.Errorf("expected error for empty input, got nil")
	}
}

func TestJSONCodec_UnmarshalMalformed(t *testing.T) {
	codec := JSONCodec{}
	if _, err := codec.Unmarshal([]byte(`{"shop_id": "a", "guest_id":`)); err == nil {
		t.Errorf("expected error for truncated input, got nil")
	}
}

func TestVerify(t *testing.T) {
	e := NewEnvelope("shop-1", 7, 1, SenderGuest, []byte("payload bytes"), 0)
	if !e.Verify() {
		t.Fatalf("fresh envelope should verify")
	}

	// Flipping any content byte must break verification.
	for i := range e.Content {
		mutated := *e
		mutated.Content = append([]byte(nil), e.Content...)
		mutated.Content[i] ^= 0xff
		if mutated.Verify() {
			t.Errorf("mutated byte %d still verifies", i)
		}
	}
}

func TestVerifyEmptyContent(t *testing.T) {
	e := NewEnvelope("shop-1", 7, 1, SenderAdmin, nil, 0)
	if !e.Verify() {
		t.Errorf("empty content should verify against its own checksum")
	}
}

func TestSyncResponse_Seal(t *testing.T) {
	codec := JSONCodec{}
	resp := &SyncResponse{
		Messages: []Envelope{
			*NewEnvelope("shop-1", 42, 1000, SenderGuest, []byte("first"), 1),
			*NewEnvelope("shop-1", 42, 1001, SenderAdmin, []byte("second"), 2),
		},
		ServerTimestampUs: 1234567890,
		HasMore:           true,
	}
	if err := resp.Finalize(codec); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	if !resp.VerifyBatch(codec) {
		t.Fatalf("sealed batch should verify")
	}

	resp.Messages[1].Content = []byte("tampered")
	if resp.VerifyBatch(codec) {
		t.Errorf("tampered batch still verifies")
	}
}

func TestSyncResponse_SealCoversMetadata(t *testing.T) {
	codec := JSONCodec{}
	resp := &SyncResponse{ServerTimestampUs: 1, HasMore: false}
	if err := resp.Finalize(codec); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}

	flipped := *resp
	flipped.HasMore = true
	if flipped.VerifyBatch(codec) {
		t.Errorf("continuation flag flip still verifies")
	}

	shifted := *resp
	shifted.ServerTimestampUs = 2
	if shifted.VerifyBatch(codec) {
		t.Errorf("timestamp change still verifies")
	}
}
