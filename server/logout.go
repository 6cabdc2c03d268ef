package server

import (
	"net/http"

	"github.com/dexidp/dex-mini/apierror"
	"github.com/dexidp/dex-mini/csrf"
	"github.com/dexidp/dex-mini/session"
)

// handleLogout destroys the caller's session (spec §4.I "logout").
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.renderErr(w, r, apierror.BadRequest("malformed form body"))
		return
	}
	if err := csrf.Verify(r); err != nil {
		s.renderErr(w, r, apierror.CSRFFailure())
		return
	}

	redirectURI := r.Form.Get("redirect_uri")
	if redirectURI == "" {
		redirectURI = "/"
	}

	if auth, ok := session.FromContext(r.Context()); ok {
		if err := s.store.DeleteSession(auth.SID); err != nil {
			s.renderErr(w, r, apierror.Database(err))
			return
		}
	}

	session.ClearCookie(w)
	http.Redirect(w, r, redirectURI, http.StatusSeeOther)
}
