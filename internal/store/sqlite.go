package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/turbochat/relay/internal/contract"
)

// SQLiteStore is the default store driver, suitable for a single server
// instance.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens (and creates, schema included) the database at dbPath.
// ":memory:" is accepted for tests.
func NewSQLite(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/relay.db"
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}
	if dbPath == ":memory:" {
		// Each pooled connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS shops (
		shop_id   TEXT PRIMARY KEY,
		shop_name TEXT NOT NULL DEFAULT '',
		admin_pin TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS guests (
		shop_id    TEXT NOT NULL,
		guest_id   INTEGER NOT NULL,
		guest_name TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		last_seen  INTEGER NOT NULL,
		PRIMARY KEY (shop_id, guest_id)
	);

	CREATE TABLE IF NOT EXISTS messages (
		shop_id      TEXT NOT NULL,
		guest_id     INTEGER NOT NULL,
		message_id   INTEGER NOT NULL,
		sender_type  TEXT NOT NULL,
		content      BLOB NOT NULL,
		timestamp_us INTEGER NOT NULL,
		content_crc  INTEGER NOT NULL,
		PRIMARY KEY (shop_id, guest_id, message_id)
	);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *SQLiteStore) Close() { _ = s.db.Close() }

func (s *SQLiteStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLiteStore) PersistMessage(ctx context.Context, e *contract.Envelope) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (shop_id, guest_id, message_id, sender_type, content, timestamp_us, content_crc)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (shop_id, guest_id, message_id) DO UPDATE SET
			sender_type = excluded.sender_type,
			content = excluded.content,
			timestamp_us = excluded.timestamp_us,
			content_crc = excluded.content_crc`,
		e.ShopID, int64(e.GuestID), int64(e.MessageID), string(e.SenderType), e.Content,
		int64(e.TimestampUs), int64(e.ContentCRC))
	return err
}

func (s *SQLiteStore) UpsertGuest(ctx context.Context, shopID string, guestID uint64, name string) error {
	now := time.Now().UnixMicro()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO guests (shop_id, guest_id, guest_name, created_at, last_seen)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (shop_id, guest_id) DO UPDATE SET
			guest_name = excluded.guest_name,
			last_seen = excluded.last_seen`,
		shopID, int64(guestID), name, now, now)
	return err
}

func (s *SQLiteStore) ListGuests(ctx context.Context, shopID string) ([]contract.Guest, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT shop_id, guest_id, guest_name, created_at, last_seen
		FROM guests WHERE shop_id = ? ORDER BY last_seen DESC`, shopID)
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

func (s *SQLiteStore) FetchMessages(ctx context.Context, shopID string, guestID, afterMessageID uint64, limit int) ([]contract.Envelope, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT shop_id, guest_id, message_id, sender_type, content, timestamp_us, content_crc
		FROM messages
		WHERE shop_id = ? AND guest_id = ? AND message_id > ?
		ORDER BY message_id ASC LIMIT ?`,
		shopID, int64(guestID), int64(afterMessageID), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

func (s *SQLiteStore) VerifyAdmin(ctx context.Context, shopID, pin string) (string, bool, error) {
	var shopName, storedPin string
	err := s.db.QueryRowContext(ctx,
		`SELECT shop_name, admin_pin FROM shops WHERE shop_id = ?`, shopID).
		Scan(&shopName, &storedPin)
	if errors.Is(err, sql.ErrNoRows) {
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

// CreateShop registers a shop with its admin PIN. Used by provisioning and
// tests; the relay itself never creates shops.
func (s *SQLiteStore) CreateShop(ctx context.Context, shopID, shopName, adminPin string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO shops (shop_id, shop_name, admin_pin) VALUES (?, ?, ?)
		ON CONFLICT (shop_id) DO UPDATE SET shop_name = excluded.shop_name, admin_pin = excluded.admin_pin`,
		shopID, shopName, adminPin)
	return err
}

func scanMessages(rows *sql.Rows) ([]contract.Envelope, error) {
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
