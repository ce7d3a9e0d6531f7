package contract

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Codec turns envelopes into wire bytes and back. Marshal must be
// deterministic and Unmarshal(Marshal(e)) must reproduce e exactly.
type Codec interface {
	Name() string
	Marshal(e *Envelope) ([]byte, error)
	Unmarshal(data []byte) (*Envelope, error)
}

// JSONCodec is the default wire codec. Content bytes ride base64-encoded
// inside the JSON document, which keeps the frame a single self-describing
// object.
type JSONCodec struct{}

func (JSONCodec) Name() string { return "json" }

func (JSONCodec) Marshal(e *Envelope) ([]byte, error) {
	return json.Marshal(e)
}

func (JSONCodec) Unmarshal(data []byte) (*Envelope, error) {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("envelope payload not object")
	}
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("json decode: %w", err)
	}
	if e.ShopID == "" && e.GuestID == 0 && e.MessageID == 0 {
		return nil, fmt.Errorf("missing envelope fields")
	}
	return &e, nil
}
