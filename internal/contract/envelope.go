package contract

import "hash/crc32"

// SenderType distinguishes the two participant roles of a shop.
type SenderType string

const (
	SenderAdmin SenderType = "admin"
	SenderGuest SenderType = "guest"
)

// castagnoli matches the crc32c checksum the browser clients compute.
var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// Checksum returns the CRC32C of content.
func Checksum(content []byte) uint32 {
	return crc32.Checksum(content, castagnoli)
}

// Envelope is the unit of exchange: one WebSocket binary frame carries
// exactly one envelope, and the same shape is persisted and published on
// the bus.
//
// MessageID is caller-assigned (client timestamp by convention) and acts as
// both ordering key and dedup key within a guest's thread. GuestID 0 is
// reserved and never valid on a persisted or relayed message.
type Envelope struct {
	ShopID      string     `json:"shop_id"`
	GuestID     uint64     `json:"guest_id"`
	MessageID   uint64     `json:"message_id"`
	SenderType  SenderType `json:"sender_type"`
	Content     []byte     `json:"content"`
	TimestampUs uint64     `json:"timestamp_us"`
	ContentCRC  uint32     `json:"content_crc"`
}

// NewEnvelope builds an envelope with ContentCRC populated from content.
func NewEnvelope(shopID string, guestID, messageID uint64, sender SenderType, content []byte, timestampUs uint64) *Envelope {
	return &Envelope{
		ShopID:      shopID,
		GuestID:     guestID,
		MessageID:   messageID,
		SenderType:  sender,
		Content:     content,
		TimestampUs: timestampUs,
		ContentCRC:  Checksum(content),
	}
}

// Verify recomputes the content checksum and compares it to ContentCRC.
// A mismatch signals corruption in transit or at rest; it is reported as a
// boolean so the caller decides whether to reject or only log.
func (e *Envelope) Verify() bool {
	return Checksum(e.Content) == e.ContentCRC
}

// Guest is a participant record as stored and as returned by the guest list.
type Guest struct {
	ShopID    string `json:"shop_id"`
	GuestID   uint64 `json:"guest_id"`
	GuestName string `json:"guest_name"`
	CreatedAt uint64 `json:"created_at"`
	LastSeen  uint64 `json:"last_seen"`
}
