package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/turbochat/relay/internal/contract"
)

// PostgresStore backs the storage port with PostgreSQL, for deployments
// where several relay instances share one database.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	s := &PostgresStore{pool: pool}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS shops (
		shop_id   TEXT PRIMARY KEY,
		shop_name TEXT NOT NULL DEFAULT '',
		admin_pin TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS guests (
		shop_id    TEXT NOT NULL,
		guest_id   BIGINT NOT NULL,
		guest_name TEXT NOT NULL DEFAULT '',
		created_at BIGINT NOT NULL,
		last_seen  BIGINT NOT NULL,
		PRIMARY KEY (shop_id, guest_id)
	);

	CREATE TABLE IF NOT EXISTS messages (
		shop_id      TEXT NOT NULL,
		guest_id     BIGINT NOT NULL,
		message_id   BIGINT NOT NULL,
		sender_type  TEXT NOT NULL,
		content      BYTEA NOT NULL,
		timestamp_us BIGINT NOT NULL,
		content_crc  BIGINT NOT NULL,
		PRIMARY KEY (shop_id, guest_id, message_id)
	);
	`
	_, err := s.pool.Exec(ctx, schema)
	return err
}

func (s *PostgresStore) Close() { s.pool.Close() }

func (s *PostgresStore) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *PostgresStore) PersistMessage(ctx context.Context, e *contract.Envelope) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO messages (shop_id, guest_id, message_id, sender_type, content, timestamp_us, content_crc)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (shop_id, guest_id, message_id) DO UPDATE SET
			sender_type = EXCLUDED.sender_type,
			content = EXCLUDED.content,
			timestamp_us = EXCLUDED.timestamp_us,
			content_crc = EXCLUDED.content_crc`,
		e.ShopID, int64(e.GuestID), int64(e.MessageID), string(e.SenderType), e.Content,
		int64(e.TimestampUs), int64(e.ContentCRC))
	return err
}

func (s *PostgresStore) UpsertGuest(ctx context.Context, shopID string, guestID uint64, name string) error {
	now := time.Now().UnixMicro()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO guests (shop_id, guest_id, guest_name, created_at, last_seen)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (shop_id, guest_id) DO UPDATE SET
			guest_name = EXCLUDED.guest_name,
			last_seen = EXCLUDED.last_seen`,
		shopID, int64(guestID), name, now, now)
	return err
}

func (s *PostgresStore) ListGuests(ctx context.Context, shopID string) ([]contract.Guest, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT shop_id, guest_id, guest_name, created_at, last_seen
		FROM guests WHERE shop_id = $1 ORDER BY last_seen DESC`, shopID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var guests []contract.Guest
	for rows.Next() {
		var g contract.Guest
		var guestID, createdAt, lastSeen int64
		if err := rows.Scan(&g.ShopID, &guestID, &g.GuestName, &createdAt, &lastSeen); err != nil {
			return nil, err
		}
		g.GuestID = uint64(guestID)
		g.CreatedAt = uint64(createdAt)
		g.LastSeen = uint64(lastSeen)
		guests = append(guests, g)
	}
	return guests, rows.Err()
}

func (s *PostgresStore) FetchMessages(ctx context.Context, shopID string, guestID, afterMessageID uint64, limit int) ([]contract.Envelope, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT shop_id, guest_id, message_id, sender_type, content, timestamp_us, content_crc
		FROM messages
		WHERE shop_id = $1 AND guest_id = $2 AND message_id > $3
		ORDER BY message_id ASC LIMIT $4`,
		shopID, int64(guestID), int64(afterMessageID), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []contract.Envelope
	for rows.Next() {
		var e contract.Envelope
		var guestID, messageID, timestampUs, contentCRC int64
		var senderType string
		if err := rows.Scan(&e.ShopID, &guestID, &messageID, &senderType, &e.Content, &timestampUs, &contentCRC); err != nil {
			return nil, err
		}
		e.GuestID = uint64(guestID)
		e.MessageID = uint64(messageID)
		e.SenderType = contract.SenderType(senderType)
		e.TimestampUs = uint64(timestampUs)
		e.ContentCRC = uint32(contentCRC)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PostgresStore) VerifyAdmin(ctx context.Context, shopID, pin string) (string, bool, error) {
	var shopName, storedPin string
	err := s.pool.QueryRow(ctx,
		`SELECT shop_name, admin_pin FROM shops WHERE shop_id = $1`, shopID).
		Scan(&shopName, &storedPin)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if storedPin != pin {
		return "", false, nil
	}
	return shopName, true, nil
}

// CreateShop registers a shop with its admin PIN.
func (s *PostgresStore) CreateShop(ctx context.Context, shopID, shopName, adminPin string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO shops (shop_id, shop_name, admin_pin) VALUES ($1, $2, $3)
		ON CONFLICT (shop_id) DO UPDATE SET shop_name = EXCLUDED.shop_name, admin_pin = EXCLUDED.admin_pin`,
		shopID, shopName, adminPin)
	return err
}
