package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dexidp/dex-mini/password"
	"github.com/dexidp/dex-mini/signer"
	"github.com/dexidp/dex-mini/storage"
)

func noopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T) (*Server, *storage.Store) {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	require.NoError(t, signer.Bootstrap(store))
	sign, err := signer.New(store)
	require.NoError(t, err)

	srv, err := New(Config{
		Store:              store,
		Signer:             sign,
		CSRFKey:            []byte("test-csrf-key"),
		ClientSecretPepper: []byte("test-pepper"),
		IssuerURL:          "https://idp.test",
		Logger:             noopLogger(),
	})
	require.NoError(t, err)
	return srv, store
}

// cookieJar is a minimal helper since the interactive flow round-trips
// the csrf and session_id cookies across several requests.
type cookieJar struct {
	cookies map[string]*http.Cookie
}

func newCookieJar() *cookieJar { return &cookieJar{cookies: map[string]*http.Cookie{}} }

func (j *cookieJar) absorb(resp *http.Response) {
	for _, c := range resp.Cookies() {
		j.cookies[c.Name] = c
	}
}

func (j *cookieJar) attach(r *http.Request) {
	for _, c := range j.cookies {
		r.AddCookie(c)
	}
}

func (j *cookieJar) value(name string) string {
	if c, ok := j.cookies[name]; ok {
		return c.Value
	}
	return ""
}

// csrfNonce returns the nonce half of the signed csrf cookie
// ("nonce.mac"), which is what the rendered form's hidden field carries.
func (j *cookieJar) csrfNonce() string {
	return strings.SplitN(j.value("csrf"), ".", 2)[0]
}

func TestDiscoveryAndJWKS(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/.well-known/openid-configuration", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var doc discoveryDoc
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &doc))
	require.Equal(t, "https://idp.test", doc.Issuer)
	require.Equal(t, []string{"code"}, doc.ResponseTypes)

	rr = httptest.NewRecorder()
	srv.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/oidc/jwks", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"keys"`)
}

func TestRegisterClientRequiresName(t *testing.T) {
	srv, _ := newTestServer(t)

	body := strings.NewReader(`{"redirect_uris":["https://rp.test/cb"]}`)
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/oidc/register", body))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	var errBody struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &errBody))
	require.Equal(t, "invalid_client_metadata", errBody.Error)
}

// TestFullAuthorizationCodeHappyPath drives spec §8 scenario 1: create a
// user and client, log in, grant consent, redeem the code, call
// UserInfo.
func TestFullAuthorizationCodeHappyPath(t *testing.T) {
	srv, store := newTestServer(t)

	hash, err := password.Hash("p4ss")
	require.NoError(t, err)
	user, err := store.CreateUser("alice", "alice@example.com", hash)
	require.NoError(t, err)

	reg, err := store.RegisterClient(storage.ClientMetadata{
		ClientName:   "Test RP",
		RedirectURIs: []string{"https://rp.test/cb"},
	}, srv.hashClientSecret("S"), "regtoken")
	require.NoError(t, err)

	jar := newCookieJar()

	// Prime the CSRF cookie.
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	srv.ServeHTTP(rr, req)
	jar.absorb(rr.Result())

	// Log in.
	form := url.Values{"username": {"alice"}, "password": {"p4ss"}, "csrf": {jar.csrfNonce()}}
	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	jar.attach(req)
	srv.ServeHTTP(rr, req)
	require.Equal(t, http.StatusSeeOther, rr.Code)
	jar.absorb(rr.Result())
	require.NotEmpty(t, jar.value("session_id"))

	// GET the authorization endpoint to render consent.
	authQuery := url.Values{
		"client_id":     {reg.ClientID.String()},
		"redirect_uri":  {"https://rp.test/cb"},
		"scope":         {"openid email"},
		"state":         {"xyz"},
		"response_type": {"code"},
	}
	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/oauth2/auth?"+authQuery.Encode(), nil)
	jar.attach(req)
	srv.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	jar.absorb(rr.Result())

	// POST consent: allow.
	consentForm := url.Values{"action": {"allow"}, "csrf": {jar.csrfNonce()}}
	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/oauth2/auth?"+authQuery.Encode(), strings.NewReader(consentForm.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	jar.attach(req)
	srv.ServeHTTP(rr, req)
	require.Equal(t, http.StatusSeeOther, rr.Code)
	loc, err := url.Parse(rr.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "xyz", loc.Query().Get("state"))
	code := loc.Query().Get("code")
	require.NotEmpty(t, code)

	// Exchange the code at the token endpoint.
	tokenForm := url.Values{"code": {code}, "redirect_uri": {"https://rp.test/cb"}}
	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/oauth2/token", strings.NewReader(tokenForm.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(reg.ClientID.String(), "S")
	srv.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	var tok tokenResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &tok))
	require.NotEmpty(t, tok.AccessToken)
	require.NotEmpty(t, tok.IDToken)
	require.Equal(t, "Bearer", tok.TokenType)

	// Replay must fail with invalid_grant (spec §8 property 4).
	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/oauth2/token", strings.NewReader(tokenForm.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(reg.ClientID.String(), "S")
	srv.ServeHTTP(rr, req)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	var errBody struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &errBody))
	require.Equal(t, "invalid_grant", errBody.Error)

	// UserInfo with the minted access token.
	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/oidc/userinfo", nil)
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	srv.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	var info struct {
		Sub           string `json:"sub"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &info))
	require.Equal(t, user.ID.String(), info.Sub)
	require.Equal(t, "alice@example.com", info.Email)
	require.True(t, info.EmailVerified)
}

func TestWrongClientSecretRejected(t *testing.T) {
	srv, store := newTestServer(t)
	reg, err := store.RegisterClient(storage.ClientMetadata{
		ClientName:   "RP",
		RedirectURIs: []string{"https://rp.test/cb"},
	}, srv.hashClientSecret("S"), "regtoken")
	require.NoError(t, err)

	form := url.Values{"code": {"whatever"}, "redirect_uri": {"https://rp.test/cb"}}
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/oauth2/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(reg.ClientID.String(), "WRONG")
	srv.ServeHTTP(rr, req)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	var errBody struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &errBody))
	require.Equal(t, "invalid_client", errBody.Error)
}

// TestUnregisteredRedirectURIRejected covers spec scenario 5 / testable
// property 7: an authenticated session hitting the authorization
// endpoint with an unregistered redirect_uri gets a 404 problem+json
// response, not a redirect, since the redirect_uri is untrusted.
func TestUnregisteredRedirectURIRejected(t *testing.T) {
	srv, store := newTestServer(t)
	reg, err := store.RegisterClient(storage.ClientMetadata{
		ClientName:   "RP",
		RedirectURIs: []string{"https://rp.test/cb"},
	}, srv.hashClientSecret("S"), "regtoken")
	require.NoError(t, err)

	hash, err := password.Hash("p4ss")
	require.NoError(t, err)
	_, err = store.CreateUser("bob", "", hash)
	require.NoError(t, err)

	jar := newCookieJar()

	// Prime the CSRF cookie.
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	srv.ServeHTTP(rr, req)
	jar.absorb(rr.Result())

	// Log in.
	form := url.Values{"username": {"bob"}, "password": {"p4ss"}, "csrf": {jar.csrfNonce()}}
	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	jar.attach(req)
	srv.ServeHTTP(rr, req)
	require.Equal(t, http.StatusSeeOther, rr.Code)
	jar.absorb(rr.Result())
	require.NotEmpty(t, jar.value("session_id"))

	q := url.Values{
		"client_id":     {reg.ClientID.String()},
		"redirect_uri":  {"https://evil.test/cb"},
		"response_type": {"code"},
	}
	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/oauth2/auth?"+q.Encode(), nil)
	jar.attach(req)
	srv.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Empty(t, rr.Header().Get("Location"))
}

func TestCSRFEnforcedOnLogin(t *testing.T) {
	srv, store := newTestServer(t)
	hash, err := password.Hash("p4ss")
	require.NoError(t, err)
	_, err = store.CreateUser("carol", "", hash)
	require.NoError(t, err)

	form := url.Values{"username": {"carol"}, "password": {"p4ss"}, "csrf": {"bogus"}}
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	srv.ServeHTTP(rr, req)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))
}
