package server

import (
	"errors"
	"net"
	"net/http"

	"github.com/dexidp/dex-mini/apierror"
	"github.com/dexidp/dex-mini/csrf"
	"github.com/dexidp/dex-mini/password"
	"github.com/dexidp/dex-mini/session"
	"github.com/dexidp/dex-mini/storage"
)

func (s *Server) handleLoginGet(w http.ResponseWriter, r *http.Request) {
	if err := s.tmpl.renderLogin(w, loginPage{
		RedirectURI: r.URL.Query().Get("redirect_uri"),
		CSRF:        csrf.NonceFromContext(r.Context()),
	}); err != nil {
		s.logger.ErrorContext(r.Context(), "render login page failed", "err", err)
	}
}

// handleLoginPost authenticates by password and mints a session (spec
// §4.I "login").
func (s *Server) handleLoginPost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.renderErr(w, r, apierror.BadRequest("malformed form body"))
		return
	}
	redirectURI := r.Form.Get("redirect_uri")
	if redirectURI == "" {
		redirectURI = "/"
	}

	if err := csrf.Verify(r); err != nil {
		s.renderErr(w, r, apierror.CSRFFailure())
		return
	}

	username := r.Form.Get("username")
	user, err := s.store.GetUserByUsername(username)
	if errors.Is(err, storage.ErrNotFound) {
		s.reLogin(w, r, redirectURI, "No such user")
		return
	}
	if err != nil {
		s.renderErr(w, r, apierror.Database(err))
		return
	}

	if err := password.Verify(r.Form.Get("password"), user.PasswordHash); err != nil {
		s.reLogin(w, r, redirectURI, "Wrong password")
		return
	}

	sess, err := s.store.CreateSession(user.ID, peerIPFromRequest(r))
	if err != nil {
		s.renderErr(w, r, apierror.Database(err))
		return
	}

	session.SetCookie(w, sess.UID, sess.Expires)
	http.Redirect(w, r, redirectURI, http.StatusSeeOther)
}

func (s *Server) reLogin(w http.ResponseWriter, r *http.Request, redirectURI, errMsg string) {
	if err := s.tmpl.renderLogin(w, loginPage{
		RedirectURI: redirectURI,
		CSRF:        csrf.NonceFromContext(r.Context()),
		Error:       errMsg,
	}); err != nil {
		s.logger.ErrorContext(r.Context(), "render login page failed", "err", err)
	}
}

func peerIPFromRequest(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
