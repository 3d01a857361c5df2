package api

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/hlog"
	"golang.org/x/text/unicode/norm"

	"pinwall/cfg"
	"pinwall/metrics"
	"pinwall/pkg/domain"
	"pinwall/svc/access"
	"pinwall/svc/auth"
	"pinwall/svc/ledger"
	"pinwall/svc/lim"
	"pinwall/svc/persist"
	"pinwall/svc/store"
	"pinwall/svc/track"
	"pinwall/svc/util"
)

const loginCookie = "login"

type Hdl struct {
	cfg     *cfg.Cfg
	ledger  *ledger.Ledger
	store   *store.Store
	access  *access.Registry
	tracker *track.Tracker
	hasher  *auth.Hasher
	persist *persist.Manager
	lim     *lim.Limiter
}

// loginCredential extracts the opaque credential hash from the login
// cookie, or "" when the viewer is anonymous.
func loginCredential(r *http.Request) string {
	c, err := r.Cookie(loginCookie)
	if err != nil {
		return ""
	}
	return c.Value
}

func (h *Hdl) clientIP(r *http.Request) string {
	return h.lim.RealIP(r)
}

// privileged reports whether this client gets relaxed paste validation:
// admins and verified identities (by credential or by IP).
func (h *Hdl) privileged(ip, credential string) bool {
	return h.access.IsAdmin(credential) ||
		h.access.IsVerified(credential) ||
		h.access.IsVerified(ip)
}

type PostMessageReq struct {
	Message string `json:"message"`
}

func (h *Hdl) PostMessage(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)
	requestID := util.GetRequestID(r.Context())

	var req PostMessageReq
	if err := decodeJSON(w, r, &req); err != nil {
		writeErr(w, domain.ErrInvalidRequest, requestID)
		return
	}

	text := norm.NFC.String(req.Message)
	if text == "" {
		writeErr(w, domain.ErrContentRequired, requestID)
		return
	}
	if !printableASCII(text) {
		metrics.MessageRejected.WithLabelValues("not_printable").Inc()
		writeErr(w, domain.ErrNotPrintable, requestID)
		return
	}
	if len(text) > h.cfg.MessageMaxLen {
		metrics.MessageRejected.WithLabelValues("too_long").Inc()
		writeErr(w, domain.ErrMessageTooLong, requestID)
		return
	}
	if len(text) < h.cfg.MessageMinLen {
		metrics.MessageRejected.WithLabelValues("too_short").Inc()
		writeErr(w, domain.ErrMessageTooShort, requestID)
		return
	}

	ip := h.clientIP(r)
	// check-then-record is two lock acquisitions; two posts racing here can
	// both land inside the cooldown window, which is tolerated
	if !h.ledger.CanPost(ip) {
		metrics.MessageRejected.WithLabelValues("too_soon").Inc()
		writeErr(w, domain.ErrTooSoon, requestID)
		return
	}
	if h.ledger.IsDuplicate(ip, text) {
		metrics.MessageRejected.WithLabelValues("duplicate").Inc()
		writeErr(w, domain.ErrDuplicate, requestID)
		return
	}

	h.ledger.RecordPost(ip, text, loginCredential(r))
	metrics.MessagePosted.Inc()
	h.persist.SaveOrLog()

	log.Info().Str("ip", ip).Int("length", len(text)).Msg("message posted")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{"status": "posted"})
}

func (h *Hdl) ListMessages(w http.ResponseWriter, r *http.Request) {
	msgs := h.ledger.VisibleMessages(h.clientIP(r), loginCredential(r))
	if msgs == nil {
		msgs = []domain.Message{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(msgs)
}

type CreatePasteReq struct {
	Content string `json:"content"`
	Alias   string `json:"alias,omitempty"`
}
type CreatePasteResp struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

func (h *Hdl) CreatePaste(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)
	requestID := util.GetRequestID(r.Context())

	var req CreatePasteReq
	if err := decodeJSON(w, r, &req); err != nil {
		writeErr(w, domain.ErrInvalidRequest, requestID)
		return
	}
	if req.Content == "" {
		writeErr(w, domain.ErrContentRequired, requestID)
		return
	}

	ip := h.clientIP(r)
	credential := loginCredential(r)
	paste, err := h.store.CreateText(req.Content, ip, credential, req.Alias, h.privileged(ip, credential))
	if err != nil {
		writeErr(w, err, requestID)
		return
	}
	metrics.PasteCreated.Inc()
	h.persist.SaveOrLog()

	log.Info().Str("paste_id", paste.ID).Str("ip", ip).Msg("paste created")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(CreatePasteResp{ID: paste.ID, CreatedAt: paste.CreatedAt})
}

func (h *Hdl) UploadFile(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)
	requestID := util.GetRequestID(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, int64(h.cfg.PasteMaxSize)*2)
	if err := r.ParseMultipartForm(int64(h.cfg.PasteMaxSize)); err != nil {
		writeErr(w, domain.ErrPasteTooLarge, requestID)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeErr(w, domain.ErrInvalidRequest, requestID)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, int64(h.cfg.PasteMaxSize)+1))
	if err != nil {
		writeErr(w, domain.ErrInternalServer, requestID)
		return
	}
	if len(data) > h.cfg.PasteMaxSize {
		writeErr(w, domain.ErrPasteTooLarge, requestID)
		return
	}

	ip := h.clientIP(r)
	paste, err := h.store.CreateFile(header.Filename, data, ip, loginCredential(r))
	if err != nil {
		writeErr(w, err, requestID)
		return
	}
	metrics.PasteCreated.Inc()
	h.persist.SaveOrLog()

	log.Info().Str("paste_id", paste.ID).Str("file", header.Filename).Msg("file uploaded")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(CreatePasteResp{ID: paste.ID, CreatedAt: paste.CreatedAt})
}

// PasteView is the outward shape of a paste. Poster identity stays out:
// the credential hash doubles as the login bearer token and the IP is
// nobody's business but the admin log's.
type PasteView struct {
	ID         string    `json:"id"`
	Text       string    `json:"text,omitempty"`
	IsFile     bool      `json:"is_file,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	Views      uint32    `json:"views"`
	Downloads  uint32    `json:"downloads"`
	LastViewed time.Time `json:"last_viewed"`
}

func toPasteView(p domain.Paste) PasteView {
	return PasteView{
		ID:         p.ID,
		Text:       p.Text,
		IsFile:     p.IsFile,
		CreatedAt:  p.CreatedAt,
		Views:      p.Views,
		Downloads:  p.Downloads,
		LastViewed: p.LastViewed,
	}
}

func (h *Hdl) ViewPaste(w http.ResponseWriter, r *http.Request) {
	requestID := util.GetRequestID(r.Context())
	id := pathID(r)
	paste, ok := h.store.View(id)
	if !ok {
		writeErr(w, domain.ErrPasteNotFound, requestID)
		return
	}
	metrics.PasteViewed.Inc()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toPasteView(paste))
}

func (h *Hdl) DownloadPaste(w http.ResponseWriter, r *http.Request) {
	requestID := util.GetRequestID(r.Context())
	id := pathID(r)
	paste, ok := h.store.Download(id)
	if !ok {
		writeErr(w, domain.ErrPasteNotFound, requestID)
		return
	}
	metrics.PasteDownloaded.Inc()
	if paste.IsFile {
		w.Header().Set("Content-Disposition", "attachment")
		http.ServeFile(w, r, paste.FilePath)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename="+paste.ID+".txt")
	io.WriteString(w, paste.Text)
}

type LoginReq struct {
	Password string `json:"password"`
}
type LoginResp struct {
	Credential string `json:"credential"`
}

// Login hashes the submitted password into the opaque credential used
// everywhere else and hands it back as the login cookie. No password
// verification happens here: the credential is an identity, admin and
// verified status are separate checks against it.
func (h *Hdl) Login(w http.ResponseWriter, r *http.Request) {
	requestID := util.GetRequestID(r.Context())

	var req LoginReq
	if err := decodeJSON(w, r, &req); err != nil || req.Password == "" {
		writeErr(w, domain.ErrInvalidRequest, requestID)
		return
	}
	credential, err := h.hasher.Hash(req.Password)
	if err != nil {
		writeErr(w, domain.ErrInvalidRequest, requestID)
		return
	}

	ip := h.clientIP(r)
	h.tracker.RecordLogin(ip, credential)
	h.persist.SaveOrLog()

	http.SetCookie(w, &http.Cookie{
		Name:     loginCookie,
		Value:    credential,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	json.NewEncoder(w).Encode(LoginResp{Credential: credential})
}

func (h *Hdl) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     loginCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	w.WriteHeader(http.StatusNoContent)
}

type HealthResp struct {
	Status      string `json:"status"`
	UsersOnline int    `json:"users_online"`
}

func (h *Hdl) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(HealthResp{
		Status:      "ok",
		UsersOnline: h.tracker.CountOnline(h.cfg.OnlineWindow),
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, int64(1<<20))
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// printableASCII reports whether s is entirely printable ASCII.
func printableASCII(s string) bool {
	for _, r := range s {
		if r < 32 || r > 126 {
			return false
		}
	}
	return true
}

func writeErr(w http.ResponseWriter, err error, requestID string) {
	statusCode := domain.Status(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	errorMsg := domain.ToResp(err).Error.Msg
	if statusCode >= 500 {
		errorMsg = "internal server error"
		util.Error().
			Err(err).
			Str("request_id", requestID).
			Msg("internal error with detailed info")
	}
	json.NewEncoder(w).Encode(map[string]string{
		"error":      errorMsg,
		"request_id": requestID,
	})
}
