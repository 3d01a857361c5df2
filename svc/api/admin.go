package api

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/hlog"

	"pinwall/pkg/domain"
	"pinwall/svc/access"
	"pinwall/svc/util"
)

type AdminClaimReq struct {
	Password string `json:"password"`
}
type AdminClaimResp struct {
	Outcome string `json:"outcome"`
}

// AdminClaim is the one-shot bootstrap endpoint. The first password ever
// submitted here becomes the admin credential; afterwards the same
// password checks in and anything else is rejected. This route stays
// outside the admin gate on purpose.
func (h *Hdl) AdminClaim(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)
	requestID := util.GetRequestID(r.Context())

	var req AdminClaimReq
	if err := decodeJSON(w, r, &req); err != nil || req.Password == "" {
		writeErr(w, domain.ErrInvalidRequest, requestID)
		return
	}
	credential, err := h.hasher.Hash(req.Password)
	if err != nil {
		writeErr(w, domain.ErrInvalidRequest, requestID)
		return
	}

	outcome := h.access.BootstrapOrCheck(credential)
	switch outcome {
	case access.BecameAdmin:
		h.persist.SaveOrLog()
		log.Info().Str("ip", h.clientIP(r)).Msg("admin bootstrapped")
	case access.NotAdmin:
		writeErr(w, domain.ErrUnauthorized, requestID)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     loginCookie,
		Value:    credential,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	json.NewEncoder(w).Encode(AdminClaimResp{Outcome: outcome.String()})
}

type IPReq struct {
	IP string `json:"ip"`
}

func (h *Hdl) Ban(w http.ResponseWriter, r *http.Request) {
	requestID := util.GetRequestID(r.Context())
	var req IPReq
	if err := decodeJSON(w, r, &req); err != nil || req.IP == "" {
		writeErr(w, domain.ErrInvalidRequest, requestID)
		return
	}
	// malformed addresses are ignored inside the registry, not rejected here
	h.access.Ban(req.IP)
	h.persist.SaveOrLog()
	hlog.FromRequest(r).Info().Str("target", req.IP).Msg("ban requested")
	w.WriteHeader(http.StatusNoContent)
}

func (h *Hdl) Unban(w http.ResponseWriter, r *http.Request) {
	requestID := util.GetRequestID(r.Context())
	var req IPReq
	if err := decodeJSON(w, r, &req); err != nil || req.IP == "" {
		writeErr(w, domain.ErrInvalidRequest, requestID)
		return
	}
	h.access.Unban(req.IP)
	h.persist.SaveOrLog()
	hlog.FromRequest(r).Info().Str("target", req.IP).Msg("unban requested")
	w.WriteHeader(http.StatusNoContent)
}

type VerifiedReq struct {
	Identity string `json:"identity"`
}

func (h *Hdl) AddVerified(w http.ResponseWriter, r *http.Request) {
	requestID := util.GetRequestID(r.Context())
	var req VerifiedReq
	if err := decodeJSON(w, r, &req); err != nil || req.Identity == "" {
		writeErr(w, domain.ErrInvalidRequest, requestID)
		return
	}
	h.access.AddVerified(req.Identity)
	h.persist.SaveOrLog()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Hdl) RemoveVerified(w http.ResponseWriter, r *http.Request) {
	requestID := util.GetRequestID(r.Context())
	var req VerifiedReq
	if err := decodeJSON(w, r, &req); err != nil || req.Identity == "" {
		writeErr(w, domain.ErrInvalidRequest, requestID)
		return
	}
	h.access.RemoveVerified(req.Identity)
	h.persist.SaveOrLog()
	w.WriteHeader(http.StatusNoContent)
}

// ResetCooldown clears a client's post cooldown so they may post again
// immediately. A client with no ledger record is left alone.
func (h *Hdl) ResetCooldown(w http.ResponseWriter, r *http.Request) {
	requestID := util.GetRequestID(r.Context())
	var req IPReq
	if err := decodeJSON(w, r, &req); err != nil || req.IP == "" {
		writeErr(w, domain.ErrInvalidRequest, requestID)
		return
	}
	h.ledger.ResetCooldown(req.IP)
	h.persist.SaveOrLog()
	hlog.FromRequest(r).Info().Str("target", req.IP).Msg("cooldown reset")
	w.WriteHeader(http.StatusNoContent)
}

func (h *Hdl) DeletePaste(w http.ResponseWriter, r *http.Request) {
	requestID := util.GetRequestID(r.Context())
	id := pathID(r)
	if !h.store.Delete(id) {
		writeErr(w, domain.ErrPasteNotFound, requestID)
		return
	}
	h.persist.SaveOrLog()
	hlog.FromRequest(r).Info().Str("paste_id", id).Msg("paste deleted")
	w.WriteHeader(http.StatusNoContent)
}

type StatsResp struct {
	UniqueUsers   int    `json:"unique_users"`
	TotalRequests uint64 `json:"total_requests"`
	UsersOnline   int    `json:"users_online"`
	Clients       int    `json:"clients"`
	Pastes        int    `json:"pastes"`
}

func (h *Hdl) Stats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(StatsResp{
		UniqueUsers:   h.tracker.UniqueUsers(),
		TotalRequests: h.tracker.TotalRequests(),
		UsersOnline:   h.tracker.CountOnline(h.cfg.OnlineWindow),
		Clients:       h.ledger.ClientCount(),
		Pastes:        h.store.Len(),
	})
}
