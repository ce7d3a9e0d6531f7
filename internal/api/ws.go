package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/turbochat/relay/internal/bus"
	"github.com/turbochat/relay/internal/relay"
	"github.com/turbochat/relay/internal/store"
	"github.com/turbochat/relay/pkg/logger"
)

// WSHandler upgrades /ws requests and hands the connection to a relay
// session. The query carries the tenant and, for guest connections, the
// participant id; its absence designates an admin view.
type WSHandler struct {
	st   store.Store
	bus  bus.Bus
	hub  *relay.Hub
	opts relay.Options

	// base is the process lifetime: sessions outlive their HTTP request
	// scope once the socket is hijacked, but not a server shutdown.
	base context.Context

	upgrader websocket.Upgrader
	log      *zap.SugaredLogger
}

func NewWSHandler(base context.Context, st store.Store, b bus.Bus, hub *relay.Hub, opts relay.Options) *WSHandler {
	return &WSHandler{
		st:   st,
		bus:  b,
		hub:  hub,
		opts: opts,
		base: base,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browser widgets embed anywhere; tenancy is enforced per
			// envelope, not per origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		log: logger.S().With("component", "ws"),
	}
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	shopID := q.Get("shop_id")
	if shopID == "" {
		http.Error(w, "shop_id required", http.StatusBadRequest)
		return
	}

	var guestID uint64
	if raw := q.Get("guest_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || id == 0 {
			http.Error(w, "invalid guest_id", http.StatusBadRequest)
			return
		}
		guestID = id
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		h.log.Debugw("upgrade_failed", "err", err)
		return
	}

	sess := relay.NewSession(conn, shopID, guestID, h.st, h.bus, h.hub, h.opts)
	go sess.Run(h.base)
}
