package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/MrEthical07/connectauth"
	promexport "github.com/MrEthical07/connectauth/metrics/export/prometheus"
	"github.com/MrEthical07/connectauth/store"
)

var tokenPattern = regexp.MustCompile(`token=([0-9a-f]+)`)

type inbox struct {
	mu   sync.Mutex
	sent []connectauth.Email
}

func (b *inbox) Send(_ context.Context, e connectauth.Email) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, e)
	return nil
}

func (b *inbox) token(t *testing.T, to string) string {
	t.Helper()

	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(b.sent) - 1; i >= 0; i-- {
		if b.sent[i].To != to {
			continue
		}
		if m := tokenPattern.FindStringSubmatch(b.sent[i].Text); m != nil {
			return m[1]
		}
	}
	t.Fatalf("no token mailed to %s", to)
	return ""
}

type apiEnv struct {
	srv    *httptest.Server
	client *http.Client
	store  *store.MemoryStore
	inbox  *inbox
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()

	cfg := connectauth.DefaultConfig()
	cfg.JWT.Secret = []byte("httpapi-test-secret")
	cfg.URLs.BaseURL = "https://app.example.com"
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Verification.OTPCost = 4
	for _, p := range []*connectauth.RatePolicy{
		&cfg.RateLimit.Register, &cfg.RateLimit.Login, &cfg.RateLimit.VerifyOTP,
		&cfg.RateLimit.Resend, &cfg.RateLimit.MagicLink,
	} {
		p.Cooldown = 0
	}

	env := &apiEnv{store: store.NewMemoryStore(), inbox: &inbox{}}
	engine, err := connectauth.New().
		WithConfig(cfg).
		WithStore(env.store).
		WithMailer(env.inbox).
		Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(engine.Close)

	env.srv = httptest.NewServer(NewRouter(Options{
		Engine:  engine,
		Logger:  zerolog.Nop(),
		Metrics: promexport.NewPrometheusExporter(engine).Handler(),
	}))
	t.Cleanup(env.srv.Close)

	env.client = env.newClient(t)
	return env
}

func (env *apiEnv) newClient(t *testing.T) *http.Client {
	t.Helper()

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func (env *apiEnv) do(t *testing.T, c *http.Client, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, env.srv.URL+path, rd)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	out := map[string]any{}
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("%s %s: decode %q: %v", method, path, raw, err)
		}
	}
	return resp, out
}

func (env *apiEnv) cookie(t *testing.T, c *http.Client, name string) string {
	t.Helper()

	u, _ := url.Parse(env.srv.URL)
	for _, ck := range c.Jar.Cookies(u) {
		if ck.Name == name {
			return ck.Value
		}
	}
	return ""
}

func (env *apiEnv) signUp(t *testing.T, c *http.Client, name, email string) {
	t.Helper()

	resp, _ := env.do(t, c, http.MethodPost, "/api/auth/register", map[string]string{
		"name": name, "email": email, "password": "Secret123!",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register %s: expected 201, got %d", email, resp.StatusCode)
	}
	resp, _ = env.do(t, c, http.MethodGet, "/api/auth/verify-email?token="+env.inbox.token(t, email), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("verify %s: expected 200, got %d", email, resp.StatusCode)
	}
	resp, _ = env.do(t, c, http.MethodPost, "/api/auth/login", map[string]string{
		"email": email, "password": "Secret123!",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login %s: expected 200, got %d", email, resp.StatusCode)
	}
}

func TestEndToEndRegisterVerifyLoginOnboard(t *testing.T) {
	env := newAPIEnv(t)
	c := env.client

	resp, body := env.do(t, c, http.MethodPost, "/api/auth/register", map[string]string{
		"name": "Jane", "email": "jane@x.com", "password": "Secret123!",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d %v", resp.StatusCode, body)
	}
	if strings.Contains(body["message"].(string), env.inbox.token(t, "jane@x.com")) {
		t.Fatal("register response leaked the token")
	}

	resp, body = env.do(t, c, http.MethodPost, "/api/auth/login", map[string]string{
		"email": "jane@x.com", "password": "Secret123!",
	})
	if resp.StatusCode != http.StatusUnauthorized || body["unverified"] != true {
		t.Fatalf("login before verify: expected 401 unverified, got %d %v", resp.StatusCode, body)
	}

	resp, body = env.do(t, c, http.MethodGet, "/api/auth/verify-email?token="+env.inbox.token(t, "jane@x.com"), nil)
	if resp.StatusCode != http.StatusOK || body["redirect"] != "/onboarding" {
		t.Fatalf("verify: expected 200 to onboarding, got %d %v", resp.StatusCode, body)
	}

	resp, body = env.do(t, c, http.MethodPost, "/api/auth/login", map[string]string{
		"email": "jane@x.com", "password": "Secret123!",
	})
	if resp.StatusCode != http.StatusOK || body["onboarded"] != false {
		t.Fatalf("login: expected 200 onboarded=false, got %d %v", resp.StatusCode, body)
	}
	if _, ok := body["accessToken"]; ok {
		t.Fatal("tokens must not appear in the body")
	}

	var session, refresh *http.Cookie
	for _, ck := range resp.Cookies() {
		switch ck.Name {
		case "session":
			session = ck
		case "refreshToken":
			refresh = ck
		}
	}
	if session == nil || refresh == nil {
		t.Fatal("login must set both cookies")
	}
	if !session.HttpOnly || session.MaxAge != 3600 || session.SameSite != http.SameSiteLaxMode || session.Path != "/" {
		t.Fatalf("unexpected session cookie %+v", session)
	}
	if !refresh.HttpOnly || refresh.MaxAge != 604800 {
		t.Fatalf("unexpected refresh cookie %+v", refresh)
	}

	resp, body = env.do(t, c, http.MethodGet, "/api/auth/session", nil)
	if resp.StatusCode != http.StatusOK || body["authenticated"] != true || body["onboarded"] != false || body["name"] != "Jane" {
		t.Fatalf("session: unexpected %d %v", resp.StatusCode, body)
	}

	resp, body = env.do(t, c, http.MethodPost, "/api/user/onboarded", nil)
	if resp.StatusCode != http.StatusOK || body["onboarded"] != true {
		t.Fatalf("onboarded: unexpected %d %v", resp.StatusCode, body)
	}

	resp, body = env.do(t, c, http.MethodGet, "/api/auth/session", nil)
	if resp.StatusCode != http.StatusOK || body["onboarded"] != true {
		t.Fatalf("session after onboarding: unexpected %d %v", resp.StatusCode, body)
	}

	resp, body = env.do(t, c, http.MethodPost, "/api/auth/heartbeat", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("heartbeat: unexpected %d %v", resp.StatusCode, body)
	}

	resp, body = env.do(t, c, http.MethodGet, "/api/user/activity", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("activity: unexpected %d", resp.StatusCode)
	}
	if acts, _ := body["activities"].([]any); len(acts) != 3 {
		t.Fatalf("expected 3 activities, got %v", body["activities"])
	}
}

func TestRefreshReplayOverHTTP(t *testing.T) {
	env := newAPIEnv(t)
	c := env.client
	env.signUp(t, c, "Jane", "jane@x.com")

	r1 := env.cookie(t, c, "refreshToken")
	resp, body := env.do(t, c, http.MethodPost, "/api/auth/refresh", nil)
	if resp.StatusCode != http.StatusOK || body["success"] != true {
		t.Fatalf("refresh: unexpected %d %v", resp.StatusCode, body)
	}
	r2 := env.cookie(t, c, "refreshToken")
	if r2 == "" || r2 == r1 {
		t.Fatal("refresh must rotate the cookie")
	}

	replay := env.newClient(t)
	u, _ := url.Parse(env.srv.URL)
	replay.Jar.SetCookies(u, []*http.Cookie{{Name: "refreshToken", Value: r1, Path: "/"}})
	resp, body = env.do(t, replay, http.MethodPost, "/api/auth/refresh", nil)
	if resp.StatusCode != http.StatusUnauthorized || body["error"] != connectauth.ErrUnauthenticated.Error() {
		t.Fatalf("replay: expected generic 401, got %d %v", resp.StatusCode, body)
	}

	anon := env.newClient(t)
	if resp, _ := env.do(t, anon, http.MethodPost, "/api/auth/refresh", nil); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("missing cookie: expected 401, got %d", resp.StatusCode)
	}
}

func TestLogoutClearsCookies(t *testing.T) {
	env := newAPIEnv(t)
	c := env.client
	env.signUp(t, c, "Jane", "jane@x.com")

	resp, body := env.do(t, c, http.MethodPost, "/api/auth/logout", nil)
	if resp.StatusCode != http.StatusOK || body["success"] != true {
		t.Fatalf("logout: unexpected %d %v", resp.StatusCode, body)
	}
	for _, ck := range resp.Cookies() {
		if ck.MaxAge >= 0 || ck.Value != "" {
			t.Fatalf("cookie %s not cleared: %+v", ck.Name, ck)
		}
	}
	if resp, _ := env.do(t, c, http.MethodGet, "/api/auth/session", nil); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("session after logout: expected 401, got %d", resp.StatusCode)
	}

	// Anonymous logout still succeeds.
	if resp, _ := env.do(t, env.newClient(t), http.MethodPost, "/api/auth/logout", nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("anonymous logout: expected 200, got %d", resp.StatusCode)
	}
}

func TestMagicLinkVerifyRedirects(t *testing.T) {
	env := newAPIEnv(t)
	setup := env.newClient(t)
	env.signUp(t, setup, "Jane", "jane@x.com")

	c := env.newClient(t)
	resp, body := env.do(t, c, http.MethodPost, "/api/auth/magiclink", map[string]string{"email": "jane@x.com"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("magiclink: unexpected %d %v", resp.StatusCode, body)
	}
	token := env.inbox.token(t, "jane@x.com")

	resp, _ = env.do(t, c, http.MethodGet, "/api/auth/magiclink/verify?token="+token, nil)
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("verify: expected 303, got %d", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "https://app.example.com/onboarding" {
		t.Fatalf("unexpected redirect %q", loc)
	}
	if env.cookie(t, c, "session") == "" {
		t.Fatal("magic link must set the session cookie")
	}

	resp, _ = env.do(t, c, http.MethodGet, "/api/auth/magiclink/verify?token="+token, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("reuse: expected 401, got %d", resp.StatusCode)
	}

	resp, _ = env.do(t, c, http.MethodPost, "/api/auth/magiclink", map[string]string{"email": "nobody@x.com"})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown email: expected 404, got %d", resp.StatusCode)
	}
}

func TestAdminRoutes(t *testing.T) {
	env := newAPIEnv(t)
	admin := env.client
	env.signUp(t, admin, "Admin", "admin@x.com")
	user := env.newClient(t)
	env.signUp(t, user, "Jane", "jane@x.com")

	adminUser, err := env.store.FindUserByEmail(context.Background(), "admin@x.com")
	if err != nil {
		t.Fatalf("find admin: %v", err)
	}
	role := store.RoleAdmin
	if _, err := env.store.UpdateUser(context.Background(), adminUser.ID, store.UserPatch{Role: &role}); err != nil {
		t.Fatalf("promote: %v", err)
	}
	jane, err := env.store.FindUserByEmail(context.Background(), "jane@x.com")
	if err != nil {
		t.Fatalf("find jane: %v", err)
	}

	if resp, _ := env.do(t, user, http.MethodGet, "/api/admin/users", nil); resp.StatusCode != http.StatusForbidden {
		t.Fatalf("non-admin: expected 403, got %d", resp.StatusCode)
	}
	if resp, _ := env.do(t, env.newClient(t), http.MethodGet, "/api/admin/users", nil); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("anonymous: expected 401, got %d", resp.StatusCode)
	}

	resp, body := env.do(t, admin, http.MethodGet, "/api/admin/online-sessions", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("online sessions: unexpected %d", resp.StatusCode)
	}
	online, _ := body["onlineSessions"].(map[string]any)
	if _, ok := online[jane.ID]; !ok || len(online) != 2 {
		t.Fatalf("expected both users online, got %v", online)
	}

	resp, body = env.do(t, admin, http.MethodGet, "/api/admin/online-user?userId="+jane.ID, nil)
	if resp.StatusCode != http.StatusOK || body["online"] != true {
		t.Fatalf("online user: unexpected %d %v", resp.StatusCode, body)
	}

	resp, body = env.do(t, admin, http.MethodGet, "/api/admin/users/search?q=jane", nil)
	if users, _ := body["users"].([]any); resp.StatusCode != http.StatusOK || len(users) != 1 {
		t.Fatalf("search: unexpected %d %v", resp.StatusCode, body)
	}
	resp, body = env.do(t, admin, http.MethodGet, "/api/admin/users/"+jane.ID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get user: unexpected %d", resp.StatusCode)
	}
	if u, _ := body["user"].(map[string]any); u["email"] != "jane@x.com" || u["passwordHash"] != nil {
		t.Fatalf("unexpected user body %v", body)
	}

	resp, _ = env.do(t, admin, http.MethodPost, "/api/admin/ban-user", map[string]string{"userId": adminUser.ID})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("self ban: expected 403, got %d", resp.StatusCode)
	}

	resp, body = env.do(t, admin, http.MethodPost, "/api/admin/ban-user", map[string]string{"userId": jane.ID})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ban: unexpected %d %v", resp.StatusCode, body)
	}
	if u, _ := body["user"].(map[string]any); u["banned"] != true {
		t.Fatalf("expected banned user in body, got %v", body)
	}

	if resp, _ := env.do(t, user, http.MethodPost, "/api/auth/refresh", nil); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("refresh after ban: expected 401, got %d", resp.StatusCode)
	}
	if resp, _ := env.do(t, user, http.MethodPost, "/api/auth/heartbeat", nil); resp.StatusCode != http.StatusForbidden {
		t.Fatalf("heartbeat after ban: expected 403, got %d", resp.StatusCode)
	}

	resp, _ = env.do(t, admin, http.MethodPost, "/api/admin/unban-user", map[string]string{"userId": jane.ID})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unban: unexpected %d", resp.StatusCode)
	}
}

func TestErrorBodies(t *testing.T) {
	env := newAPIEnv(t)
	c := env.client

	resp, body := env.do(t, c, http.MethodPost, "/api/auth/register", map[string]string{"email": "x"})
	if resp.StatusCode != http.StatusBadRequest || body["error"] == "" {
		t.Fatalf("validation: unexpected %d %v", resp.StatusCode, body)
	}

	req, _ := http.NewRequest(http.MethodPost, env.srv.URL+"/api/auth/login", strings.NewReader("{not json"))
	raw, err := c.Do(req)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	raw.Body.Close()
	if raw.StatusCode != http.StatusBadRequest {
		t.Fatalf("malformed body: expected 400, got %d", raw.StatusCode)
	}

	now := env.store.Now()
	if err := env.store.CreateUser(context.Background(), &store.User{
		Email: "nopass@x.com", Name: "No Pass", Role: store.RoleUser, EmailVerified: &now,
	}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	resp, body = env.do(t, c, http.MethodPost, "/api/auth/login", map[string]string{"email": "nopass@x.com", "password": "whatever1"})
	if resp.StatusCode != http.StatusBadRequest || body["useMagicLink"] != true {
		t.Fatalf("passwordless: unexpected %d %v", resp.StatusCode, body)
	}

	resp, _ = env.do(t, c, http.MethodPost, "/api/auth/heartbeat", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("heartbeat without cookie: expected 401, got %d", resp.StatusCode)
	}
}

func TestLoginRateLimitOverHTTP(t *testing.T) {
	env := newAPIEnv(t)
	c := env.client

	var last *http.Response
	for i := 0; i < 6; i++ {
		last, _ = env.do(t, c, http.MethodPost, "/api/auth/login", map[string]string{"email": "jane@x.com", "password": "whatever1"})
	}
	if last.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429 on the 6th attempt, got %d", last.StatusCode)
	}
	if last.Header.Get("Retry-After") != "60" {
		t.Fatalf("expected Retry-After 60, got %q", last.Header.Get("Retry-After"))
	}
}

func TestHealthAndMetrics(t *testing.T) {
	env := newAPIEnv(t)

	resp, body := env.do(t, env.client, http.MethodGet, "/healthz", nil)
	if resp.StatusCode != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("healthz: unexpected %d %v", resp.StatusCode, body)
	}

	env.do(t, env.client, http.MethodPost, "/api/auth/login", map[string]string{"email": "a@x.com", "password": "whatever1"})

	res, err := env.client.Get(env.srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	defer res.Body.Close()
	raw, _ := io.ReadAll(res.Body)
	if !strings.Contains(string(raw), "connectauth_login_failure_total 1") {
		t.Fatalf("expected login failure counter in scrape:\n%s", raw)
	}
}
