package relay

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/turbochat/relay/internal/bus"
	"github.com/turbochat/relay/internal/contract"
	"github.com/turbochat/relay/internal/observe"
	"github.com/turbochat/relay/internal/store"
	"github.com/turbochat/relay/pkg/logger"
)

// Options tunes per-session behavior.
type Options struct {
	// Buffer is the delivery queue capacity before drop-on-overflow.
	Buffer       int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PingInterval time.Duration
}

func (o Options) withDefaults() Options {
	if o.Buffer <= 0 {
		o.Buffer = 256
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = 60 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 30 * time.Second
	}
	return o
}

// GuestDisplayName derives the cosmetic participant name from its id. The
// modulo keeps names short; routing always keys on the full id.
func GuestDisplayName(guestID uint64) string {
	return fmt.Sprintf("Guest #%d", guestID%10000)
}

// Session owns one upgraded WebSocket connection: the inbound half decodes,
// persists and publishes client frames; the outbound half drains the hub
// queue, filters by tenant/guest scope and writes to the socket. Either
// half ending tears the whole session down.
//
// ShopID comes from the upgrade request and is authoritative: the value on
// inbound envelopes is always overwritten with it. GuestID 0 means this is
// an admin view with shop-wide visibility.
type Session struct {
	ID      string
	ShopID  string
	GuestID uint64

	conn  *websocket.Conn
	st    store.Store
	bus   bus.Bus
	hub   *Hub
	codec contract.Codec
	opts  Options
	log   *zap.SugaredLogger

	subID     uint64
	closeOnce sync.Once
	done      chan struct{}
}

func NewSession(conn *websocket.Conn, shopID string, guestID uint64, st store.Store, b bus.Bus, hub *Hub, opts Options) *Session {
	id := uuid.NewString()
	return &Session{
		ID:      id,
		ShopID:  shopID,
		GuestID: guestID,
		conn:    conn,
		st:      st,
		bus:     b,
		hub:     hub,
		codec:   contract.JSONCodec{},
		opts:    opts.withDefaults(),
		log:     logger.S().With("session", id, "shop", shopID, "guest", guestID),
		done:    make(chan struct{}),
	}
}

// Run drives the session until the connection ends or ctx is cancelled.
// It always returns with every session resource released.
func (s *Session) Run(ctx context.Context) {
	subID, deliveries := s.hub.Subscribe(s.opts.Buffer)
	s.subID = subID
	observe.AddOnline(1)
	defer observe.AddOnline(-1)
	defer s.close()

	s.log.Infow("session_open", "remote", s.conn.RemoteAddr().String())

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		defer s.close() // writer death ends the reader too
		s.writeLoop(deliveries)
	}()
	go func() {
		defer wg.Done()
		s.pingLoop()
	}()

	go func() {
		select {
		case <-ctx.Done():
			s.close()
		case <-s.done:
		}
	}()

	s.readLoop(ctx)
	s.close() // reader death ends the writer too
	wg.Wait()

	s.log.Infow("session_closed")
}

// close is idempotent: it deregisters from the hub (closing the delivery
// queue, which stops the writer), closes the socket (which unblocks the
// reader) and releases the ping loop.
func (s *Session) close() {
	s.closeOnce.Do(func() {
		s.hub.Unsubscribe(s.subID)
		_ = s.conn.Close()
		close(s.done)
	})
}

func (s *Session) readLoop(ctx context.Context) {
	_ = s.conn.SetReadDeadline(time.Now().Add(s.opts.ReadTimeout))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.opts.ReadTimeout))
	})

	for {
		mt, data, err := s.conn.ReadMessage()
		if err != nil {
			// Close frames, peer loss and forced shutdown all surface here.
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debugw("read_error", "err", err)
			}
			return
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(s.opts.ReadTimeout))

		if mt != websocket.BinaryMessage {
			// Text frames are unexpected but harmless.
			s.log.Debugw("non_binary_frame", "type", mt)
			continue
		}
		s.handleInbound(ctx, data)
	}
}

// handleInbound processes one binary frame end to end. Every failure mode
// here drops the frame and keeps the session alive; only socket errors end
// a session.
func (s *Session) handleInbound(ctx context.Context, data []byte) {
	env, err := s.codec.Unmarshal(data)
	if err != nil {
		observe.IncDecodeError()
		s.log.Warnw("envelope_decode_failed", "err", err)
		return
	}
	if !env.Verify() {
		// Structurally valid but corrupted content. Tracked apart from
		// decode failures; the frame is dropped either way.
		observe.IncCRCMismatch()
		s.log.Warnw("content_crc_mismatch", "message_id", env.MessageID, "guest", env.GuestID)
		return
	}
	if env.GuestID == 0 {
		s.log.Warnw("invalid_guest_id", "message_id", env.MessageID)
		return
	}

	// The wire value is never trusted: the socket's tenant wins.
	env.ShopID = s.ShopID

	if env.SenderType == contract.SenderGuest {
		// Best-effort participant record; delivery does not depend on it.
		if err := s.st.UpsertGuest(ctx, env.ShopID, env.GuestID, GuestDisplayName(env.GuestID)); err != nil {
			s.log.Warnw("guest_upsert_failed", "guest", env.GuestID, "err", err)
		}
	}

	if err := s.st.PersistMessage(ctx, env); err != nil {
		// Unpersisted data is never published.
		observe.IncPersistError()
		s.log.Errorw("message_persist_failed", "message_id", env.MessageID, "err", err)
		return
	}

	payload, err := s.codec.Marshal(env)
	if err != nil {
		s.log.Errorw("envelope_encode_failed", "message_id", env.MessageID, "err", err)
		return
	}
	if err := s.bus.Publish(ctx, bus.Topic(env.ShopID), payload); err != nil {
		observe.IncPublishError()
		s.log.Warnw("bus_publish_failed", "message_id", env.MessageID, "err", err)
	}
	observe.IncIngress()
}

func (s *Session) writeLoop(deliveries <-chan []byte) {
	for payload := range deliveries {
		env, err := s.codec.Unmarshal(payload)
		if err != nil {
			observe.IncDecodeError()
			s.log.Debugw("delivery_decode_failed", "err", err)
			continue
		}
		if !s.allowed(env) {
			continue
		}
		if s.opts.WriteTimeout > 0 {
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
		}
		if err := s.conn.WriteMessage(websocket.BinaryMessage, payload); err != nil {
			// The peer is presumed gone.
			s.log.Debugw("write_error", "err", err)
			return
		}
		observe.IncEgress()
	}
}

// allowed is the egress authorization filter: same shop, and a guest view
// only sees its own thread.
func (s *Session) allowed(env *contract.Envelope) bool {
	if env.ShopID != s.ShopID {
		return false
	}
	return s.GuestID == 0 || s.GuestID == env.GuestID
}

func (s *Session) pingLoop() {
	ticker := time.NewTicker(s.opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			_ = s.conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(5*time.Second))
		case <-s.done:
			return
		}
	}
}
