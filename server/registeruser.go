package server

import (
	"net/http"

	"github.com/dexidp/dex-mini/apierror"
	"github.com/dexidp/dex-mini/csrf"
	"github.com/dexidp/dex-mini/password"
	"github.com/dexidp/dex-mini/session"
)

func (s *Server) handleRegisterUserGet(w http.ResponseWriter, r *http.Request) {
	if err := s.tmpl.renderRegister(w, registerPage{
		RedirectURI: r.URL.Query().Get("redirect_uri"),
		CSRF:        csrf.NonceFromContext(r.Context()),
	}); err != nil {
		s.logger.ErrorContext(r.Context(), "render register page failed", "err", err)
	}
}

// handleRegisterUserPost creates a new end-user account and immediately
// signs them in (spec §4.I "register").
func (s *Server) handleRegisterUserPost(w http.ResponseWriter, r *http.Request) {
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
	if username == "" {
		s.reRegister(w, r, redirectURI, "Username is required")
		return
	}

	hash, err := password.Hash(r.Form.Get("password"))
	if err != nil {
		s.renderErr(w, r, apierror.PasswordHash(err))
		return
	}

	user, err := s.store.CreateUser(username, r.Form.Get("email"), hash)
	if err != nil {
		s.renderErr(w, r, apierror.Database(err))
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

func (s *Server) reRegister(w http.ResponseWriter, r *http.Request, redirectURI, errMsg string) {
	if err := s.tmpl.renderRegister(w, registerPage{
		RedirectURI: redirectURI,
		CSRF:        csrf.NonceFromContext(r.Context()),
		Error:       errMsg,
	}); err != nil {
		s.logger.ErrorContext(r.Context(), "render register page failed", "err", err)
	}
}
