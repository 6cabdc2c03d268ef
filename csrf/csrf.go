// Package csrf is the CSRF guard protecting the interactive
// login/consent surface (spec component H). A per-browser nonce is
// stored in an HMAC-signed cookie so a forged submission must both guess
// the nonce and produce a valid MAC under the server's secret — the §9
// "HMAC-signed cookie" improvement over the source's unsigned nonce.
package csrf

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/dexidp/dex-mini/secret"
)

// CookieName is the name of the CSRF nonce cookie.
const CookieName = "csrf"

// FieldName is the form field a state-changing POST must echo the nonce
// in.
const FieldName = "csrf"

// ErrMismatch is returned by Verify when the submitted field does not
// match the cookie's nonce.
type ErrMismatch struct{}

func (ErrMismatch) Error() string { return "csrf: token mismatch" }

type contextKey struct{}

// Guard issues and verifies CSRF nonces under a server-wide HMAC key.
type Guard struct {
	key []byte
}

// New builds a Guard keyed by key, which should be the same secret used
// nowhere else that's exposed to untrusted parties.
func New(key []byte) *Guard {
	return &Guard{key: key}
}

func (g *Guard) mac(nonce string) string {
	h := hmac.New(sha256.New, g.key)
	h.Write([]byte(nonce))
	return hex.EncodeToString(h.Sum(nil))
}

func (g *Guard) cookieValue(nonce string) string {
	return nonce + "." + g.mac(nonce)
}

func (g *Guard) verifyCookieValue(value string) (nonce string, ok bool) {
	parts := strings.SplitN(value, ".", 2)
	if len(parts) != 2 {
		return "", false
	}
	nonce, mac := parts[0], parts[1]
	if subtle.ConstantTimeCompare([]byte(mac), []byte(g.mac(nonce))) != 1 {
		return "", false
	}
	return nonce, true
}

// Middleware ensures every request carries a valid csrf cookie, setting
// one if absent or tampered with, and attaches the nonce to the request
// context for template rendering.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var nonce string
		if c, err := r.Cookie(CookieName); err == nil {
			if n, ok := g.verifyCookieValue(c.Value); ok {
				nonce = n
			}
		}
		if nonce == "" {
			n, err := secret.New()
			if err != nil {
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
			nonce = n
			http.SetCookie(w, &http.Cookie{
				Name:     CookieName,
				Value:    g.cookieValue(nonce),
				Path:     "/",
				HttpOnly: true,
			})
		}
		ctx := context.WithValue(r.Context(), contextKey{}, nonce)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// NonceFromContext returns the nonce the Middleware attached, for
// rendering into a hidden form field.
func NonceFromContext(ctx context.Context) string {
	n, _ := ctx.Value(contextKey{}).(string)
	return n
}

// Verify compares the nonce attached to the request's context against
// the value submitted in the form field named FieldName, in constant
// time. It requires r.ParseForm to already have been called.
func Verify(r *http.Request) error {
	want := NonceFromContext(r.Context())
	got := r.FormValue(FieldName)
	if want == "" || subtle.ConstantTimeCompare([]byte(want), []byte(got)) != 1 {
		return ErrMismatch{}
	}
	return nil
}
