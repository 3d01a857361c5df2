package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"pinwall/cfg"
	"pinwall/svc/access"
	"pinwall/svc/auth"
	"pinwall/svc/ledger"
	"pinwall/svc/lim"
	"pinwall/svc/persist"
	"pinwall/svc/store"
	"pinwall/svc/track"
)

func testCfg(t *testing.T, dir string) *cfg.Cfg {
	t.Helper()
	return &cfg.Cfg{
		Port:              "0",
		Environment:       "development",
		LogLevel:          "error",
		SnapshotPath:      filepath.Join(dir, "state.json"),
		UploadDir:         filepath.Join(dir, "uploads"),
		PostCooldown:      time.Hour,
		MessageMinLen:     3,
		MessageMaxLen:     150,
		HistoryCap:        50,
		PasteMinSize:      1,
		PasteMaxSize:      64 * 1024,
		SweepInterval:     time.Hour,
		PasteMaxAge:       24 * time.Hour,
		OnlineWindow:      5 * time.Minute,
		RateLimit:         cfg.RateLimitCfg{RPM: 6000, Burst: 100, MaxClients: 100},
		Pepper:            cfg.NewSecret("test-pepper-at-least-16-bytes"),
		Argon2Time:        1,
		Argon2Memory:      8 * 1024,
		Argon2Parallelism: 1,
		Argon2KeyLen:      32,
		ContextTimeout:    5 * time.Second,
	}
}

type testEnv struct {
	srv    *Server
	ledger *ledger.Ledger
	access *access.Registry
	store  *store.Store
}

func newTestServer(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	c := testCfg(t, dir)

	l := ledger.New(c.PostCooldown)
	a := access.New()
	tr := track.New(c.HistoryCap)
	s, err := store.New(c.UploadDir, c.PasteMinSize, c.PasteMaxSize)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	m, err := persist.NewManager(c.SnapshotPath, l, a, tr, s)
	if err != nil {
		t.Fatalf("persist.NewManager: %v", err)
	}
	hasher, err := auth.NewHasher(c.Argon2Time, c.Argon2Memory, c.Argon2Parallelism, c.Argon2KeyLen, []byte(c.Pepper.Value()))
	if err != nil {
		t.Fatalf("auth.NewHasher: %v", err)
	}
	limiter, err := lim.New(c.RateLimit.RPM, c.RateLimit.Burst, c.RateLimit.MaxClients, nil)
	if err != nil {
		t.Fatalf("lim.New: %v", err)
	}

	srv := NewServer(Deps{
		Cfg: c, Ledger: l, Store: s, Access: a,
		Tracker: tr, Hasher: hasher, Persist: m, Lim: limiter,
	})
	return &testEnv{srv: srv, ledger: l, access: a, store: s}
}

func doJSON(t *testing.T, srv *Server, method, path, remoteAddr string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(data)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.RemoteAddr = remoteAddr
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func TestPostAndListMessages(t *testing.T) {
	env := newTestServer(t)

	w := doJSON(t, env.srv, http.MethodPost, "/messages", "1.2.3.4:5000", PostMessageReq{Message: "hello board"})
	if w.Code != http.StatusCreated {
		t.Fatalf("post: status = %d, body %s", w.Code, w.Body.String())
	}

	// anonymous viewers see their own unscoped history
	w = doJSON(t, env.srv, http.MethodGet, "/messages", "1.2.3.4:6000", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list: status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "hello board") {
		t.Errorf("posted message not visible to its poster: %s", w.Body.String())
	}
	// and nothing from other clients
	w = doJSON(t, env.srv, http.MethodGet, "/messages", "5.6.7.8:5000", nil)
	if strings.Contains(w.Body.String(), "hello board") {
		t.Errorf("message leaked to another client: %s", w.Body.String())
	}
}

func TestPostMessageCooldown(t *testing.T) {
	env := newTestServer(t)

	w := doJSON(t, env.srv, http.MethodPost, "/messages", "1.2.3.4:5000", PostMessageReq{Message: "first post"})
	if w.Code != http.StatusCreated {
		t.Fatalf("first post: status = %d", w.Code)
	}
	w = doJSON(t, env.srv, http.MethodPost, "/messages", "1.2.3.4:5000", PostMessageReq{Message: "second post"})
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("post inside cooldown: status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
	// another client is unaffected
	w = doJSON(t, env.srv, http.MethodPost, "/messages", "9.9.9.9:5000", PostMessageReq{Message: "other client"})
	if w.Code != http.StatusCreated {
		t.Errorf("other client: status = %d", w.Code)
	}
}

func TestPostMessageValidation(t *testing.T) {
	env := newTestServer(t)

	cases := []struct {
		name    string
		message string
		status  int
	}{
		{"too short", "hi", http.StatusBadRequest},
		{"too long", strings.Repeat("a", 151), http.StatusBadRequest},
		{"non ascii", "héllo there", http.StatusBadRequest},
		{"control chars", "line\nbreak", http.StatusBadRequest},
		{"empty", "", http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := doJSON(t, env.srv, http.MethodPost, "/messages", "1.2.3.4:5000", PostMessageReq{Message: tc.message})
			if w.Code != tc.status {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tc.status, w.Body.String())
			}
		})
	}
}

func TestScopedMessageVisibility(t *testing.T) {
	env := newTestServer(t)
	cred := &http.Cookie{Name: "login", Value: "cred-a"}

	w := doJSON(t, env.srv, http.MethodPost, "/messages", "1.2.3.4:5000", PostMessageReq{Message: "for my eyes"}, cred)
	if w.Code != http.StatusCreated {
		t.Fatalf("post: status = %d", w.Code)
	}

	// a stranger does not see the scoped message
	w = doJSON(t, env.srv, http.MethodGet, "/messages", "5.6.7.8:5000", nil)
	if strings.Contains(w.Body.String(), "for my eyes") {
		t.Error("scoped message leaked to a stranger")
	}
	// same credential from another address does
	w = doJSON(t, env.srv, http.MethodGet, "/messages", "5.6.7.8:5000", nil, cred)
	if !strings.Contains(w.Body.String(), "for my eyes") {
		t.Error("scoped message hidden from its owner")
	}
}

func TestBanGate(t *testing.T) {
	env := newTestServer(t)
	env.access.Ban("1.2.3.4")

	w := doJSON(t, env.srv, http.MethodGet, "/messages", "1.2.3.4:5000", nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("banned client: status = %d, want %d", w.Code, http.StatusForbidden)
	}
	w = doJSON(t, env.srv, http.MethodGet, "/messages", "5.6.7.8:5000", nil)
	if w.Code != http.StatusOK {
		t.Errorf("unbanned client: status = %d", w.Code)
	}
}

func TestAdminClaimAndGate(t *testing.T) {
	env := newTestServer(t)

	// first claim wins
	w := doJSON(t, env.srv, http.MethodPost, "/admin/claim", "1.2.3.4:5000", AdminClaimReq{Password: "hunter2hunter2"})
	if w.Code != http.StatusOK {
		t.Fatalf("claim: status = %d, body %s", w.Code, w.Body.String())
	}
	var adminCookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == "login" {
			adminCookie = c
		}
	}
	if adminCookie == nil {
		t.Fatal("claim did not set the login cookie")
	}

	// a different password can never claim again
	w = doJSON(t, env.srv, http.MethodPost, "/admin/claim", "5.6.7.8:5000", AdminClaimReq{Password: "someone-else"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("second claim: status = %d, want %d", w.Code, http.StatusUnauthorized)
	}

	// admin routes reject anonymous callers and accept the claimed cookie
	w = doJSON(t, env.srv, http.MethodPost, "/admin/ban", "1.2.3.4:5000", IPReq{IP: "6.6.6.6"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("anonymous ban: status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
	w = doJSON(t, env.srv, http.MethodPost, "/admin/ban", "1.2.3.4:5000", IPReq{IP: "6.6.6.6"}, adminCookie)
	if w.Code != http.StatusNoContent {
		t.Fatalf("admin ban: status = %d, body %s", w.Code, w.Body.String())
	}
	if !env.access.IsBanned("6.6.6.6") {
		t.Error("ban did not land in the registry")
	}

	// and the unban path undoes it
	w = doJSON(t, env.srv, http.MethodPost, "/admin/unban", "1.2.3.4:5000", IPReq{IP: "6.6.6.6"}, adminCookie)
	if w.Code != http.StatusNoContent {
		t.Fatalf("admin unban: status = %d", w.Code)
	}
	if env.access.IsBanned("6.6.6.6") {
		t.Error("unban did not land in the registry")
	}
}

func TestAdminResetCooldown(t *testing.T) {
	env := newTestServer(t)

	w := doJSON(t, env.srv, http.MethodPost, "/admin/claim", "1.2.3.4:5000", AdminClaimReq{Password: "hunter2hunter2"})
	if w.Code != http.StatusOK {
		t.Fatalf("claim: status = %d", w.Code)
	}
	adminCookie := w.Result().Cookies()[0]

	if w = doJSON(t, env.srv, http.MethodPost, "/messages", "9.9.9.9:5000", PostMessageReq{Message: "first post"}); w.Code != http.StatusCreated {
		t.Fatalf("post: status = %d", w.Code)
	}
	if w = doJSON(t, env.srv, http.MethodPost, "/admin/cooldown/reset", "1.2.3.4:5000", IPReq{IP: "9.9.9.9"}, adminCookie); w.Code != http.StatusNoContent {
		t.Fatalf("reset: status = %d", w.Code)
	}
	if w = doJSON(t, env.srv, http.MethodPost, "/messages", "9.9.9.9:5000", PostMessageReq{Message: "second post"}); w.Code != http.StatusCreated {
		t.Errorf("post after reset: status = %d, want %d", w.Code, http.StatusCreated)
	}
}

func TestPasteLifecycle(t *testing.T) {
	env := newTestServer(t)

	w := doJSON(t, env.srv, http.MethodPost, "/pastes", "1.2.3.4:5000", CreatePasteReq{Content: "some paste content"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create: status = %d, body %s", w.Code, w.Body.String())
	}
	var created CreatePasteResp
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if created.ID == "" {
		t.Fatal("create returned empty id")
	}

	w = doJSON(t, env.srv, http.MethodGet, "/pastes/"+created.ID, "5.6.7.8:5000", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("view: status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "some paste content") {
		t.Errorf("view body missing content: %s", w.Body.String())
	}

	w = doJSON(t, env.srv, http.MethodGet, "/pastes/"+created.ID+"/download", "5.6.7.8:5000", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("download: status = %d", w.Code)
	}
	if got := w.Body.String(); got != "some paste content" {
		t.Errorf("download body = %q", got)
	}

	w = doJSON(t, env.srv, http.MethodGet, "/pastes/nope", "5.6.7.8:5000", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown paste: status = %d", w.Code)
	}
}

func TestViewPasteHidesPosterIdentity(t *testing.T) {
	env := newTestServer(t)

	w := doJSON(t, env.srv, http.MethodPost, "/admin/claim", "1.2.3.4:5000", AdminClaimReq{Password: "hunter2hunter2"})
	if w.Code != http.StatusOK {
		t.Fatalf("claim: status = %d", w.Code)
	}
	adminCookie := w.Result().Cookies()[0]

	// the admin posts a paste while logged in
	w = doJSON(t, env.srv, http.MethodPost, "/pastes", "1.2.3.4:5000", CreatePasteReq{Content: "public content"}, adminCookie)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: status = %d", w.Code)
	}
	var created CreatePasteResp
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	// an anonymous stranger views it
	w = doJSON(t, env.srv, http.MethodGet, "/pastes/"+created.ID, "66.66.66.66:5000", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("view: status = %d", w.Code)
	}
	body := w.Body.String()
	if strings.Contains(body, adminCookie.Value) {
		t.Fatalf("view leaked the poster's credential: %s", body)
	}
	var fields map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &fields); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	for _, key := range []string{"poster_hash", "poster_ip", "file_path"} {
		if _, ok := fields[key]; ok {
			t.Errorf("view exposes %q", key)
		}
	}

	// even knowing the content, a forged cookie cannot pass the admin gate
	forged := &http.Cookie{Name: "login", Value: "not-the-credential"}
	w = doJSON(t, env.srv, http.MethodPost, "/admin/ban", "66.66.66.66:5000", IPReq{IP: "9.9.9.9"}, forged)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("forged cookie ban: status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestAdminDeletePaste(t *testing.T) {
	env := newTestServer(t)

	w := doJSON(t, env.srv, http.MethodPost, "/admin/claim", "1.2.3.4:5000", AdminClaimReq{Password: "hunter2hunter2"})
	if w.Code != http.StatusOK {
		t.Fatalf("claim: status = %d", w.Code)
	}
	adminCookie := w.Result().Cookies()[0]

	w = doJSON(t, env.srv, http.MethodPost, "/pastes", "1.2.3.4:5000", CreatePasteReq{Content: "short lived"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create: status = %d", w.Code)
	}
	var created CreatePasteResp
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	w = doJSON(t, env.srv, http.MethodDelete, "/admin/pastes/"+created.ID, "1.2.3.4:5000", nil, adminCookie)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete: status = %d, body %s", w.Code, w.Body.String())
	}
	w = doJSON(t, env.srv, http.MethodGet, "/pastes/"+created.ID, "1.2.3.4:5000", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("deleted paste still served: status = %d", w.Code)
	}
}

func TestLoginSetsCredentialCookie(t *testing.T) {
	env := newTestServer(t)

	w := doJSON(t, env.srv, http.MethodPost, "/login", "1.2.3.4:5000", LoginReq{Password: "my-passphrase"})
	if w.Code != http.StatusOK {
		t.Fatalf("login: status = %d, body %s", w.Code, w.Body.String())
	}
	var resp LoginResp
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Credential == "" {
		t.Fatal("login returned empty credential")
	}
	var found bool
	for _, c := range w.Result().Cookies() {
		if c.Name == "login" && c.Value == resp.Credential {
			found = true
			if !c.HttpOnly {
				t.Error("login cookie is not HttpOnly")
			}
		}
	}
	if !found {
		t.Error("login cookie not set to the credential")
	}

	// the same password always maps to the same credential
	w = doJSON(t, env.srv, http.MethodPost, "/login", "5.6.7.8:5000", LoginReq{Password: "my-passphrase"})
	var again LoginResp
	if err := json.Unmarshal(w.Body.Bytes(), &again); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if again.Credential != resp.Credential {
		t.Error("credential is not deterministic across logins")
	}
}

func TestHealth(t *testing.T) {
	env := newTestServer(t)
	w := doJSON(t, env.srv, http.MethodGet, "/health", "1.2.3.4:5000", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("health: status = %d", w.Code)
	}
	var resp HealthResp
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("status = %q", resp.Status)
	}
}
