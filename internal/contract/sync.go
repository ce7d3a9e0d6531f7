package contract

import "encoding/binary"

// AdminAuthRequest authenticates a shop admin by PIN.
type AdminAuthRequest struct {
	ShopID   string `json:"shop_id"`
	AdminPin string `json:"admin_pin"`
}

type AdminAuthResponse struct {
	Success  bool   `json:"success"`
	ShopName string `json:"shop_name"`
	Error    string `json:"error"`
}

// GuestListRequest asks for every known participant of a shop. Admin-only.
type GuestListRequest struct {
	ShopID   string `json:"shop_id"`
	AdminPin string `json:"admin_pin"`
}

type GuestListResponse struct {
	Success bool    `json:"success"`
	Guests  []Guest `json:"guests"`
	Error   string  `json:"error"`
}

// SyncRequest pages through one guest's thread: messages with id strictly
// greater than AfterMessageID, ascending, at most Limit of them.
type SyncRequest struct {
	ShopID         string `json:"shop_id"`
	GuestID        uint64 `json:"guest_id"`
	AfterMessageID uint64 `json:"after_message_id"`
	Limit          uint32 `json:"limit"`
}

// SyncResponse carries one history page plus a whole-batch integrity seal.
type SyncResponse struct {
	Messages          []Envelope `json:"messages"`
	ServerTimestampUs uint64     `json:"server_timestamp_us"`
	HasMore           bool       `json:"has_more"`
	CRC32             uint32     `json:"crc32"`
}

// batchChecksum seals the page: the concatenation of every message's
// encoded bytes, then the little-endian server timestamp, then a single
// 0x01 byte iff the page is truncated. Field order is part of the wire
// contract shared with the browser clients.
func (r *SyncResponse) batchChecksum(codec Codec) (uint32, error) {
	buf := make([]byte, 0, len(r.Messages)*128+32)
	for i := range r.Messages {
		b, err := codec.Marshal(&r.Messages[i])
		if err != nil {
			return 0, err
		}
		buf = append(buf, b...)
	}
	buf = binary.LittleEndian.AppendUint64(buf, r.ServerTimestampUs)
	if r.HasMore {
		buf = append(buf, 1)
	}
	return Checksum(buf), nil
}

// Finalize computes and stores the batch seal. Call once, after every other
// field is set.
func (r *SyncResponse) Finalize(codec Codec) error {
	crc, err := r.batchChecksum(codec)
	if err != nil {
		return err
	}
	r.CRC32 = crc
	return nil
}

// VerifyBatch recomputes the seal and compares. False means the page was
// corrupted or tampered with and must not be trusted.
func (r *SyncResponse) VerifyBatch(codec Codec) bool {
	crc, err := r.batchChecksum(codec)
	if err != nil {
		return false
	}
	return crc == r.CRC32
}
