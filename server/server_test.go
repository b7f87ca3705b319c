package server_test

import (
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/jrsteele09/go-frontdoor-relay/internal/config"
	"github.com/jrsteele09/go-frontdoor-relay/server"
	"github.com/jrsteele09/go-frontdoor-relay/sessions"
	"github.com/stretchr/testify/require"
)

const (
	testClientID      = "test-client-id"
	testClientSecret  = "test-client-secret"
	testRedirectURI   = "https://relay.example.com/oauth/callback"
	testAccessToken   = "00Dabc!XYZ"
	testOrigin        = "https://acme.lightning.force.com"
	testSessionSecret = "test-session-secret"
)

// fakeProvider plays both the login host and the tenant instance.
type fakeProvider struct {
	srv          *httptest.Server
	token        http.HandlerFunc
	singleAccess http.HandlerFunc
	tokenCalls   atomic.Int32
	strayCalls   atomic.Int32
}

func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()

	p := &fakeProvider{}
	p.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/services/oauth2/token":
			p.tokenCalls.Add(1)
			p.token(w, r)
		case "/services/oauth2/singleaccess":
			p.singleAccess(w, r)
		default:
			p.strayCalls.Add(1)
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(p.srv.Close)

	p.token = p.issueTokens
	p.singleAccess = func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"frontdoor_uri":"/secur/frontdoor.jsp?otp=one-time"}`)
	}
	return p
}

func (p *fakeProvider) issueTokens(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"access_token":  testAccessToken,
		"refresh_token": "refresh-secret",
		"instance_url":  p.srv.URL,
		"id":            p.srv.URL + "/id/00D/005",
	})
}

type harness struct {
	t        *testing.T
	provider *fakeProvider
	store    *sessions.MemoryStore
	srv      *server.Server
}

func newHarness(t *testing.T, overrides map[string]string) *harness {
	t.Helper()

	p := newFakeProvider(t)

	staticDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(staticDir, "index.html"), []byte("<html>client app</html>"), 0o600))

	vars := map[string]string{
		"ENV":              "TEST",
		"SF_LOGIN_URL":     p.srv.URL,
		"SF_CLIENT_ID":     testClientID,
		"SF_CLIENT_SECRET": testClientSecret,
		"SF_REDIRECT_URI":  testRedirectURI,
		"SESSION_SECRET":   testSessionSecret,
		"STATIC_DIR":       staticDir,
		"PROVIDER_TIMEOUT": "2s",
		"ALLOWED_ORIGINS":  testOrigin,
	}
	for k, v := range overrides {
		vars[k] = v
	}
	cfg, err := config.FromMap(vars)
	require.NoError(t, err)

	store := sessions.NewMemoryStore(time.Hour, 0)
	srv, err := server.New(cfg, store)
	require.NoError(t, err)

	return &harness{t: t, provider: p, store: store, srv: srv}
}

func (h *harness) do(method, target string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	h.t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.srv.ServeHTTP(rec, req)
	return rec
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == "frontdoor_sid" {
			return c
		}
	}
	return nil
}

// login runs a successful callback and returns the session cookie
func (h *harness) login() *http.Cookie {
	h.t.Helper()
	rec := h.do(http.MethodGet, "/oauth/callback?code=good-code")
	require.Equal(h.t, http.StatusFound, rec.Code)
	cookie := sessionCookie(h.t, rec)
	require.NotNil(h.t, cookie)
	return cookie
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestAuthRedirect(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(http.MethodGet, "/auth")
	require.Equal(t, http.StatusFound, rec.Code)
	require.Nil(t, sessionCookie(t, rec), "beginning the flow creates no session")

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, h.provider.srv.URL+"/services/oauth2/authorize", loc.Scheme+"://"+loc.Host+loc.Path)
	require.Equal(t, "code", loc.Query().Get("response_type"))
	require.Equal(t, testClientID, loc.Query().Get("client_id"))
	require.Equal(t, testRedirectURI, loc.Query().Get("redirect_uri"))
	require.Equal(t, "web refresh_token openid", loc.Query().Get("scope"))
}

func TestCallback_MissingCode(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(http.MethodGet, "/oauth/callback")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "MissingCode")
	require.Nil(t, sessionCookie(t, rec))
	require.Zero(t, h.provider.tokenCalls.Load())

	rec = h.do(http.MethodGet, "/oauth/callback?error=access_denied&error_description=user+denied")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCallback_MissingCodeKeepsExistingSession(t *testing.T) {
	h := newHarness(t, nil)
	cookie := h.login()

	rec := h.do(http.MethodGet, "/oauth/callback", cookie)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	me := decode[sessions.Status](t, h.do(http.MethodGet, "/api/me", cookie))
	require.True(t, me.Authenticated)
}

func TestCallback_SuccessAuthenticatesSession(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(http.MethodGet, "/oauth/callback?code=good-code")
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "/", rec.Header().Get("Location"))

	cookie := sessionCookie(t, rec)
	require.NotNil(t, cookie)
	require.True(t, cookie.HttpOnly)
	require.True(t, cookie.Secure)
	require.Equal(t, http.SameSiteNoneMode, cookie.SameSite)
	require.Equal(t, 3600, cookie.MaxAge)
	require.NotContains(t, cookie.Value, testAccessToken)

	first := h.do(http.MethodGet, "/api/me", cookie)
	require.Equal(t, http.StatusOK, first.Code)
	require.Equal(t, sessions.Status{Authenticated: true, InstanceURL: h.provider.srv.URL}, decode[sessions.Status](t, first))
	require.NotContains(t, first.Body.String(), testAccessToken)
	require.NotContains(t, first.Body.String(), "refresh-secret")

	second := h.do(http.MethodGet, "/api/me", cookie)
	require.Equal(t, first.Body.String(), second.Body.String())
}

func TestCallback_ExchangeFailures(t *testing.T) {
	tests := map[string]http.HandlerFunc{
		"200 without access_token": func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"instance_url":"https://example.my.salesforce.com"}`)
		},
		"redirect from token endpoint": func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/elsewhere", http.StatusFound)
		},
		"rejected code": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":"invalid_grant","error_description":"secret upstream detail"}`)
		},
		"provider error": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		},
	}

	for name, handler := range tests {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, nil)
			h.provider.token = handler

			rec := h.do(http.MethodGet, "/oauth/callback?code=bad-code")
			require.Equal(t, http.StatusInternalServerError, rec.Code)
			require.Contains(t, rec.Body.String(), "TokenExchangeFailed")
			require.NotContains(t, rec.Body.String(), "secret upstream detail")
			require.Nil(t, sessionCookie(t, rec))
			require.Zero(t, h.provider.strayCalls.Load(), "redirects are never followed")
			require.Zero(t, h.store.Len())
		})
	}
}

func TestFrontDoor_NotAuthenticated(t *testing.T) {
	h := newHarness(t, nil)

	forged := &http.Cookie{Name: "frontdoor_sid", Value: "forged-session-id"}
	for name, cookies := range map[string][]*http.Cookie{
		"no cookie":     nil,
		"forged cookie": {forged},
	} {
		t.Run(name, func(t *testing.T) {
			rec := h.do(http.MethodGet, "/api/frontdoor", cookies...)
			require.Equal(t, http.StatusUnauthorized, rec.Code)
			require.Equal(t, server.APIError{Error: "not_authenticated"}, decode[server.APIError](t, rec))
		})
	}

	t.Run("session without tokens", func(t *testing.T) {
		require.NoError(t, h.store.Upsert(context.Background(), "empty-session", sessions.Record{}))

		rec := h.do(http.MethodGet, "/api/frontdoor", signedCookie(t, "empty-session"))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

// signedCookie encodes sessionID the way the server does for the harness secret.
func signedCookie(t *testing.T, sessionID string) *http.Cookie {
	t.Helper()
	key := sha256.Sum256([]byte(testSessionSecret))
	value, err := securecookie.New(key[:], nil).Encode("frontdoor_sid", sessionID)
	require.NoError(t, err)
	return &http.Cookie{Name: "frontdoor_sid", Value: value}
}

// cookieSessionID decodes the session id carried by a cookie from the harness.
func cookieSessionID(t *testing.T, cookie *http.Cookie) string {
	t.Helper()
	key := sha256.Sum256([]byte(testSessionSecret))
	var sessionID string
	require.NoError(t, securecookie.New(key[:], nil).Decode("frontdoor_sid", cookie.Value, &sessionID))
	return sessionID
}

func TestCallback_RotatesSessionID(t *testing.T) {
	h := newHarness(t, nil)
	first := h.login()

	rec := h.do(http.MethodGet, "/oauth/callback?code=second-code", first)
	require.Equal(t, http.StatusFound, rec.Code)
	second := sessionCookie(t, rec)
	require.NotNil(t, second)
	require.NotEqual(t, cookieSessionID(t, first), cookieSessionID(t, second))

	stale := decode[sessions.Status](t, h.do(http.MethodGet, "/api/me", first))
	require.False(t, stale.Authenticated, "the previous id no longer reaches the session")

	current := decode[sessions.Status](t, h.do(http.MethodGet, "/api/me", second))
	require.True(t, current.Authenticated)
	require.Equal(t, 1, h.store.Len())
}

func TestCallback_KnownIDIsNotAdopted(t *testing.T) {
	h := newHarness(t, nil)
	planted := signedCookie(t, "planted-session-id")

	rec := h.do(http.MethodGet, "/oauth/callback?code=good-code", planted)
	require.Equal(t, http.StatusFound, rec.Code)
	issued := sessionCookie(t, rec)
	require.NotNil(t, issued)
	require.NotEqual(t, "planted-session-id", cookieSessionID(t, issued))

	_, err := h.store.Get(context.Background(), "planted-session-id")
	require.Error(t, err)
	me := decode[sessions.Status](t, h.do(http.MethodGet, "/api/me", planted))
	require.False(t, me.Authenticated)
}

func TestFrontDoor_ExchangedURL(t *testing.T) {
	h := newHarness(t, nil)
	cookie := h.login()

	rec := h.do(http.MethodGet, "/api/frontdoor", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	resp := decode[server.FrontDoorResponse](t, rec)
	require.Equal(t, h.provider.srv.URL+"/secur/frontdoor.jsp?otp=one-time", resp.FrontdoorURL)
	require.Empty(t, resp.Note)
	require.NotContains(t, rec.Body.String(), testAccessToken)
}

func TestFrontDoor_Fallback(t *testing.T) {
	h := newHarness(t, nil)
	h.provider.singleAccess = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, `{}`)
	}
	cookie := h.login()

	rec := h.do(http.MethodGet, "/api/frontdoor", cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[server.FrontDoorResponse](t, rec)
	require.Equal(t, h.provider.srv.URL+"/secur/frontdoor.jsp?sid=00Dabc%21XYZ", resp.FrontdoorURL)
	require.Contains(t, resp.Note, "fallback")
}

func TestFrontDoor_TransportFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.provider.singleAccess = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, "upstream stack trace")
	}
	cookie := h.login()

	rec := h.do(http.MethodGet, "/api/frontdoor", cookie)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	apiErr := decode[server.APIError](t, rec)
	require.Equal(t, "singleaccess_failed", apiErr.Error)
	require.NotEmpty(t, apiErr.Detail)
	require.NotContains(t, rec.Body.String(), "upstream stack trace")
	require.NotContains(t, rec.Body.String(), testAccessToken)
	require.NotContains(t, rec.Body.String(), "sid=")
}

func TestLogout(t *testing.T) {
	h := newHarness(t, nil)
	cookie := h.login()

	rec := h.do(http.MethodGet, "/logout", cookie)
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "/", rec.Header().Get("Location"))
	cleared := sessionCookie(t, rec)
	require.NotNil(t, cleared)
	require.Negative(t, cleared.MaxAge)
	require.Zero(t, h.store.Len())

	me := decode[sessions.Status](t, h.do(http.MethodGet, "/api/me", cookie))
	require.False(t, me.Authenticated)

	t.Run("already empty", func(t *testing.T) {
		rec := h.do(http.MethodGet, "/logout")
		require.Equal(t, http.StatusFound, rec.Code)
		require.Equal(t, "/", rec.Header().Get("Location"))
	})
}

func TestMe_Unauthenticated(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(http.MethodGet, "/api/me")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"authenticated":false}`, rec.Body.String())
}

func TestSameSiteCookieMode(t *testing.T) {
	h := newHarness(t, map[string]string{"COOKIE_CROSS_SITE": "false"})

	cookie := h.login()
	require.True(t, cookie.HttpOnly)
	require.False(t, cookie.Secure)
	require.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
}

func TestFrameAncestors(t *testing.T) {
	h := newHarness(t, map[string]string{"FRAME_ANCESTORS": "https://acme.lightning.force.com"})

	rec := h.do(http.MethodGet, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "client app")
	require.Equal(t, "frame-ancestors https://acme.lightning.force.com", rec.Header().Get("Content-Security-Policy"))
	require.Empty(t, rec.Header().Get("X-Frame-Options"))
}

func TestCors(t *testing.T) {
	h := newHarness(t, nil)

	t.Run("allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		req.Header.Set("Origin", testOrigin)
		rec := httptest.NewRecorder()
		h.srv.ServeHTTP(rec, req)

		require.Equal(t, testOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
		require.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	})

	t.Run("unknown origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		rec := httptest.NewRecorder()
		h.srv.ServeHTTP(rec, req)

		require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/frontdoor", nil)
		req.Header.Set("Origin", testOrigin)
		rec := httptest.NewRecorder()
		h.srv.ServeHTTP(rec, req)

		require.Equal(t, http.StatusNoContent, rec.Code)
		require.Equal(t, testOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
		require.Equal(t, "GET, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
	})
}

func TestHealth(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(http.MethodGet, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRecoverMiddleware(t *testing.T) {
	h := newHarness(t, nil)

	handler := server.ChainMiddleware(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}, h.srv.RecoverMiddleware)

	rec := httptest.NewRecorder()
	require.NotPanics(t, func() {
		handler(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	})
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestStaticCompression(t *testing.T) {
	h := newHarness(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/index.html", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	h.srv.ServeHTTP(rec, req)

	// http.FileServer redirects /index.html to the directory root
	require.Equal(t, http.StatusMovedPermanently, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec = httptest.NewRecorder()
	h.srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
	require.Empty(t, rec.Header().Get("Content-Length"))

	zr, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	body, err := io.ReadAll(zr)
	require.NoError(t, err)
	require.Contains(t, string(body), "client app")
}

func TestStaticCompression_ResponsesWithoutBody(t *testing.T) {
	h := newHarness(t, nil)

	t.Run("head", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodHead, "/", nil)
		req.Header.Set("Accept-Encoding", "gzip")
		rec := httptest.NewRecorder()
		h.srv.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		require.Empty(t, rec.Header().Get("Content-Encoding"))
		require.Zero(t, rec.Body.Len())
	})

	t.Run("not modified", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Accept-Encoding", "gzip")
		req.Header.Set("If-Modified-Since", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		rec := httptest.NewRecorder()
		h.srv.ServeHTTP(rec, req)

		require.Equal(t, http.StatusNotModified, rec.Code)
		require.Empty(t, rec.Header().Get("Content-Encoding"))
		require.Zero(t, rec.Body.Len())
	})
}
