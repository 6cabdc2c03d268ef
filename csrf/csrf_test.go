package csrf

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareSetsCookieAndContext(t *testing.T) {
	g := New([]byte("test-secret"))

	var gotNonce string
	h := g.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotNonce = NonceFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.NotEmpty(t, gotNonce)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, CookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
}

func TestVerifyPassesOnMatch(t *testing.T) {
	g := New([]byte("test-secret"))
	var verifyErr error
	h := g.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		verifyErr = Verify(r)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	cookie := rec.Result().Cookies()[0]

	var gotNonce string
	h2 := g.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotNonce = NonceFromContext(r.Context())
	}))
	req2 := httptest.NewRequest(http.MethodGet, "/", nil)
	req2.AddCookie(cookie)
	rec2 := httptest.NewRecorder()
	h2.ServeHTTP(rec2, req2)

	form := url.Values{"csrf": {gotNonce}}
	postReq := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	postReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	postReq.AddCookie(cookie)
	rec3 := httptest.NewRecorder()
	h.ServeHTTP(rec3, postReq)
	assert.NoError(t, verifyErr)
}

func TestVerifyFailsOnMismatch(t *testing.T) {
	g := New([]byte("test-secret"))
	var verifyErr error
	h := g.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		verifyErr = Verify(r)
	}))

	form := url.Values{"csrf": {"wrong-nonce"}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Error(t, verifyErr)
	assert.IsType(t, ErrMismatch{}, verifyErr)
}

func TestTamperedCookieIsRejected(t *testing.T) {
	g := New([]byte("test-secret"))
	var gotNonce string
	h := g.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotNonce = NonceFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "forged.nonce.value"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.NotEmpty(t, gotNonce)
	assert.NotEqual(t, "forged", gotNonce)
}
