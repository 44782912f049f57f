package engine_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/horanet/hauth/internal/engine"
	"github.com/horanet/hauth/internal/policy"
	"github.com/horanet/hauth/internal/shared"
)

func newTestEngine(t *testing.T, st engine.Store, cfg engine.Config) *engine.Engine {
	t.Helper()
	if cfg.SigningKey == nil {
		cfg.SigningKey = []byte("test-key")
	}
	if cfg.TokenExpiry == 0 {
		cfg.TokenExpiry = time.Hour
	}
	e, err := engine.New(st, cfg)
	require.NoError(t, err)
	return e
}

// downstream echoes the principal login from context, proving both that
// it ran and that the principal was attached.
func downstream() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p := shared.PrincipalFromContext(r.Context()); p != nil {
			io.WriteString(w, "hello "+p.Login)
			return
		}
		io.WriteString(w, "hello anonymous")
	})
}

func scenarioRules() []policy.Entry {
	return []policy.Entry{
		{Pattern: "/skip", Rule: policy.Skip},
		{Pattern: "/reserved", Rule: policy.RoleSet("admin")},
		{Pattern: "/", Rule: policy.Deny},
	}
}

func TestControlSkipBypassesAuthentication(t *testing.T) {
	st := newMockStore()
	e := newTestEngine(t, st, engine.Config{Rules: scenarioRules()})
	handler := e.Control(downstream())

	req := httptest.NewRequest(http.MethodGet, "/skip/anything", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	require.Equal(t, http.StatusOK, res.Code, "skip paths pass through with no credentials, never 401")
	assert.Equal(t, "hello anonymous", res.Body.String())
}

func TestControlRoleSet(t *testing.T) {
	st := newMockStore()
	adminHash, err := shared.HashPassword("adminpw")
	require.NoError(t, err)
	userHash, err := shared.HashPassword("userpw")
	require.NoError(t, err)
	st.put("root", "", "admin", &adminHash, nil)
	st.put("joe", "", "user", &userHash, nil)

	e := newTestEngine(t, st, engine.Config{Rules: scenarioRules()})
	handler := e.Control(downstream())

	t.Run("wrong role is forbidden", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/reserved/x", nil)
		req.SetBasicAuth("joe", "userpw")
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		assert.Equal(t, http.StatusForbidden, res.Code)
	})

	t.Run("admin passes through", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/reserved/x", nil)
		req.SetBasicAuth("root", "adminpw")
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		require.Equal(t, http.StatusOK, res.Code)
		assert.Equal(t, "hello root", res.Body.String())
	})

	t.Run("deny rejects even authenticated admins", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/anything-else", nil)
		req.SetBasicAuth("root", "adminpw")
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		assert.Equal(t, http.StatusForbidden, res.Code)
	})

	t.Run("no credentials is unauthorized", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/reserved/x", nil)
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		assert.Equal(t, http.StatusUnauthorized, res.Code)
	})

	t.Run("skip prefix inside a guarded path does not bypass", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/reserved/skip", nil)
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		assert.Equal(t, http.StatusUnauthorized, res.Code)

		req = httptest.NewRequest(http.MethodGet, "/reserved/skip", nil)
		req.SetBasicAuth("root", "adminpw")
		res = httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		assert.Equal(t, http.StatusOK, res.Code)
	})
}

func TestControlAcceptsSessionCookie(t *testing.T) {
	st := newMockStore()
	hash, err := shared.HashPassword("adminpw")
	require.NoError(t, err)
	st.put("root", "Root", "admin", &hash, nil)

	rules := []policy.Entry{
		{Pattern: "/reserved", Rule: policy.RoleSet("admin")},
	}
	e := newTestEngine(t, st, engine.Config{Rules: rules})
	h := engine.NewHandler(nil, e)

	loginRes := httptest.NewRecorder()
	h.Login(loginRes, jsonLogin("root", "adminpw"))
	require.Equal(t, http.StatusOK, loginRes.Code)
	cookies := loginRes.Result().Cookies()
	require.Len(t, cookies, 1)

	// The issued cookie pre-authenticates a later request; the verifier
	// is never consulted (no credentials supplied).
	req := httptest.NewRequest(http.MethodGet, "/reserved/x", nil)
	req.AddCookie(cookies[0])
	res := httptest.NewRecorder()
	e.Control(downstream()).ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "hello root", res.Body.String())

	// A tampered cookie silently falls through and ends in 401.
	req = httptest.NewRequest(http.MethodGet, "/reserved/x", nil)
	req.AddCookie(&http.Cookie{Name: cookies[0].Name, Value: cookies[0].Value + "x"})
	res = httptest.NewRecorder()
	e.Control(downstream()).ServeHTTP(res, req)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

type textResponder struct{}

func (textResponder) Unauthenticated(w http.ResponseWriter, _ *http.Request) {
	http.Error(w, "please sign in", http.StatusUnauthorized)
}

func (textResponder) Forbidden(w http.ResponseWriter, _ *http.Request) {
	http.Error(w, "Forbidden", http.StatusForbidden)
}

func (textResponder) LoggedOut(w http.ResponseWriter, _ *http.Request) {
	http.Error(w, "You are logged out", http.StatusOK)
}

func TestControlCustomResponder(t *testing.T) {
	st := newMockStore()
	e := newTestEngine(t, st, engine.Config{
		Rules:     []policy.Entry{{Pattern: "/", Rule: policy.Allow}},
		Responder: textResponder{},
	})

	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	res := httptest.NewRecorder()
	e.Control(downstream()).ServeHTTP(res, req)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
	assert.Contains(t, res.Body.String(), "please sign in")
}

func TestControlStoreErrorIsServerError(t *testing.T) {
	st := newMockStore()
	st.getErr = assert.AnError
	e := newTestEngine(t, st, engine.Config{Rules: []policy.Entry{{Pattern: "/", Rule: policy.Allow}}})

	req := jsonLogin("alice", "pw")
	res := httptest.NewRecorder()
	e.Control(downstream()).ServeHTTP(res, req)
	assert.Equal(t, http.StatusInternalServerError, res.Code)
}

func TestLoginRotationScenario(t *testing.T) {
	st := newMockStore()
	st.put("bob", "", "user", nil, strptr("temp1"))
	e := newTestEngine(t, st, engine.Config{Rules: scenarioRules()})
	h := engine.NewHandler(nil, e)

	res := httptest.NewRecorder()
	h.Login(res, jsonLogin("bob", "temp1"))
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Header().Get("Cache-Control"), "no-store")
	require.Len(t, res.Result().Cookies(), 1, "session issued")

	cred := st.creds["bob"]
	require.NotNil(t, cred.PasswordHash, "store now holds a hashed password")
	assert.Nil(t, cred.NextPassword, "one-shot channel cleared")
}

func TestLoginUnknownEve(t *testing.T) {
	st := newMockStore()
	e := newTestEngine(t, st, engine.Config{Rules: scenarioRules()})
	h := engine.NewHandler(nil, e)

	res := httptest.NewRecorder()
	h.Login(res, jsonLogin("eve", "whatever"))
	assert.Equal(t, http.StatusUnauthorized, res.Code)
	assert.Empty(t, res.Result().Cookies(), "no session on failure")
	assert.NotContains(t, st.creds, "eve", "no row created for the rejected login")
}

func TestLogoutClearsCookie(t *testing.T) {
	st := newMockStore()
	e := newTestEngine(t, st, engine.Config{Rules: scenarioRules(), Responder: textResponder{}})
	h := engine.NewHandler(nil, e)

	res := httptest.NewRecorder()
	h.Logout(res, httptest.NewRequest(http.MethodPost, "/hauth/logout", nil))
	assert.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "You are logged out")
	cookies := res.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)
}

func TestAdminRoutes(t *testing.T) {
	st := newMockStore()
	e := newTestEngine(t, st, engine.Config{Rules: scenarioRules()})
	h := engine.NewHandler(nil, e)

	r := chi.NewRouter()
	r.Route("/hauth", h.MountRoutes)
	server := httptest.NewServer(r)
	defer server.Close()

	post := func(t *testing.T, path, body string) *http.Response {
		t.Helper()
		res, err := http.Post(server.URL+path, "application/json", strings.NewReader(body))
		require.NoError(t, err)
		return res
	}

	res := post(t, "/hauth/adduser", `{"login":"carol","role":"user","password":"pw"}`)
	require.Equal(t, http.StatusOK, res.StatusCode)
	_ = res.Body.Close()
	require.Contains(t, st.creds, "carol")

	// Duplicate insert is tolerated and reports no row.
	res = post(t, "/hauth/adduser", `{"login":"carol"}`)
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	_ = res.Body.Close()
	assert.Equal(t, "null\n", string(body))

	// Missing login is a validation error.
	res = post(t, "/hauth/adduser", `{"name":"No Login"}`)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	_ = res.Body.Close()

	req, err := http.NewRequest(http.MethodPut, server.URL+"/hauth/moduser/carol", strings.NewReader(`{"name":"Carol"}`))
	require.NoError(t, err)
	res, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "Carol", st.creds["carol"].User.Name)

	req, err = http.NewRequest(http.MethodDelete, server.URL+"/hauth/deluser/carol", nil)
	require.NoError(t, err)
	res, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.NotContains(t, st.creds, "carol")

	// Idempotent delete on a missing login reports no row, not an error.
	req, err = http.NewRequest(http.MethodDelete, server.URL+"/hauth/deluser/carol", nil)
	require.NoError(t, err)
	res, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	body, err = io.ReadAll(res.Body)
	require.NoError(t, err)
	_ = res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "null\n", string(body))
}
