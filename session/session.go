// Package session is the session middleware (spec component I): cookie
// resolution, sliding expiry, last-IP tracking, and request-scoped
// attachment of the authenticated caller.
package session

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dexidp/dex-mini/entityid"
	"github.com/dexidp/dex-mini/storage"
)

// CookieName is the name of the session cookie.
const CookieName = "session_id"

// AuthSession is the authenticated caller attached to a request's
// context by Middleware.
type AuthSession struct {
	SID      string
	UserID   entityid.ID
	Username string
	LastIP   string
	Expires  time.Time
}

type contextKey struct{}

// Middleware resolves the session_id cookie against store, attaching an
// AuthSession to the request context when found. It slides the
// session's expiry forward on every request that carries a valid
// cookie; the refresh is best-effort and never fails the request (spec
// §3: "a failure must not drop the caller's request").
func Middleware(store *storage.Store, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			c, err := r.Cookie(CookieName)
			if err == nil {
				if sess, err := store.GetSession(c.Value); err == nil {
					if user, err := store.GetUser(sess.UserID); err == nil {
						ip := peerIP(r)
						newExpires := time.Now().UTC().Add(storage.SessionLifetime)
						if err := store.RefreshSession(sess.UID, ip, newExpires); err != nil {
							logger.WarnContext(ctx, "session refresh failed", "err", err)
						}
						ctx = withAuthSession(ctx, AuthSession{
							SID: sess.UID, UserID: user.ID, Username: user.Username,
							LastIP: ip, Expires: newExpires,
						})
					}
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func withAuthSession(ctx context.Context, s AuthSession) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext returns the AuthSession attached by Middleware, if any.
func FromContext(ctx context.Context) (AuthSession, bool) {
	s, ok := ctx.Value(contextKey{}).(AuthSession)
	return s, ok
}

// Require redirects to loginURL (carrying the original request URL as
// redirect_uri) when no AuthSession is attached to the request.
func Require(loginURL string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := FromContext(r.Context()); !ok {
			dest := loginURL + "?redirect_uri=" + url.QueryEscape(r.URL.String())
			http.Redirect(w, r, dest, http.StatusFound)
			return
		}
		next(w, r)
	}
}

// SetCookie writes the session cookie for a freshly created session.
func SetCookie(w http.ResponseWriter, uid string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    uid,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   true,
	})
}

// ClearCookie overwrites the session cookie with an epoch expiry
// (logout).
func ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
	})
}

// peerIP extracts the observed client IP, preferring the first
// X-Forwarded-For hop when present (the teacher's server sits behind a
// proxy in its usual deployment; spec.md is silent on this but every
// pack example that tracks last_ip/remote_addr does the same).
func peerIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	host := r.RemoteAddr
	if i := strings.LastIndexByte(host, ':'); i >= 0 {
		return host[:i]
	}
	return host
}
