package api

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/turbochat/relay/internal/contract"
	"github.com/turbochat/relay/internal/store"
	"github.com/turbochat/relay/pkg/logger"
)

// Handler serves the request/response collaborator endpoints: admin auth,
// guest listing and history sync. These are thin store wrappers; the relay
// core never depends on them.
type Handler struct {
	st    store.Store
	codec contract.Codec
	log   *zap.SugaredLogger
}

func NewHandler(st store.Store) *Handler {
	return &Handler{
		st:    st,
		codec: contract.JSONCodec{},
		log:   logger.S().With("component", "api"),
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.st.Ping(r.Context()); err != nil {
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Auth verifies a shop admin PIN.
func (h *Handler) Auth(w http.ResponseWriter, r *http.Request) {
	var req contract.AdminAuthRequest
	if !decodeBody(w, r, &req) {
		return
	}

	name, ok, err := h.st.VerifyAdmin(r.Context(), req.ShopID, req.AdminPin)
	resp := contract.AdminAuthResponse{}
	switch {
	case err != nil:
		h.log.Errorw("verify_admin_failed", "shop", req.ShopID, "err", err)
		resp.Error = "storage error"
	case !ok:
		resp.Error = "invalid PIN"
	default:
		resp.Success = true
		resp.ShopName = name
	}
	writeJSON(w, http.StatusOK, resp)
}

// Guests lists every known participant of a shop. Admin-only.
func (h *Handler) Guests(w http.ResponseWriter, r *http.Request) {
	var req contract.GuestListRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if _, ok, err := h.st.VerifyAdmin(r.Context(), req.ShopID, req.AdminPin); err != nil || !ok {
		if err != nil {
			h.log.Errorw("verify_admin_failed", "shop", req.ShopID, "err", err)
		}
		writeJSON(w, http.StatusUnauthorized, contract.GuestListResponse{Error: "unauthorized"})
		return
	}

	guests, err := h.st.ListGuests(r.Context(), req.ShopID)
	if err != nil {
		h.log.Errorw("list_guests_failed", "shop", req.ShopID, "err", err)
		writeJSON(w, http.StatusOK, contract.GuestListResponse{Error: "storage error"})
		return
	}
	writeJSON(w, http.StatusOK, contract.GuestListResponse{Success: true, Guests: guests})
}

// Sync returns one page of a guest's thread, sealed with the whole-batch
// checksum so the client can detect a corrupted or tampered response.
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	var req contract.SyncRequest
	if !decodeBody(w, r, &req) {
		return
	}

	limit := int(req.Limit)
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	// Probe one row past the page to set the continuation flag truthfully.
	msgs, err := h.st.FetchMessages(r.Context(), req.ShopID, req.GuestID, req.AfterMessageID, limit+1)
	if err != nil {
		h.log.Errorw("fetch_messages_failed", "shop", req.ShopID, "guest", req.GuestID, "err", err)
		http.Error(w, "storage error", http.StatusInternalServerError)
		return
	}
	hasMore := len(msgs) > limit
	if hasMore {
		msgs = msgs[:limit]
	}

	resp := contract.SyncResponse{
		Messages:          msgs,
		ServerTimestampUs: uint64(time.Now().UnixMicro()),
		HasMore:           hasMore,
	}
	if err := resp.Finalize(h.codec); err != nil {
		h.log.Errorw("sync_seal_failed", "err", err)
		http.Error(w, "seal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64*1024)).Decode(v); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
