package server

import (
	"net/http"
	"net/url"

	"github.com/dexidp/dex-mini/apierror"
	"github.com/dexidp/dex-mini/csrf"
	"github.com/dexidp/dex-mini/oauth2request"
	"github.com/dexidp/dex-mini/session"
)

// handleAuthorizeGet renders the consent screen (spec §4.K GET).
func (s *Server) handleAuthorizeGet(w http.ResponseWriter, r *http.Request) {
	if _, ok := session.FromContext(r.Context()); !ok {
		redirectToLogin(w, r)
		return
	}

	head, err := oauth2request.ParseHead(r)
	if err != nil {
		s.renderErr(w, r, apierror.BadRequest(err.Error()))
		return
	}

	client, err := s.store.GetClientForRedirect(head.ClientID, head.RedirectURI)
	if err != nil {
		s.renderErr(w, r, apierror.NotFound("unknown client or redirect_uri"))
		return
	}

	full, err := oauth2request.ParseFull(r, *head)
	if err != nil {
		fe := err.(oauth2request.FullError)
		redirectAuthError(w, r, head.RedirectURI, fe.Code, fe.Description, head.State)
		return
	}

	if err := s.tmpl.renderApproval(w, approvalPage{
		ClientName: client.Name,
		LogoURI:    client.LogoURI,
		Scope:      full.Scope.String(),
		AuthURL:    r.URL.String(),
		CSRF:       csrf.NonceFromContext(r.Context()),
	}); err != nil {
		s.logger.ErrorContext(r.Context(), "render approval page failed", "err", err)
	}
}

// handleAuthorizePost records the consent decision (spec §4.K POST).
func (s *Server) handleAuthorizePost(w http.ResponseWriter, r *http.Request) {
	auth, ok := session.FromContext(r.Context())
	if !ok {
		redirectToLogin(w, r)
		return
	}

	if err := r.ParseForm(); err != nil {
		s.renderErr(w, r, apierror.BadRequest("malformed form body"))
		return
	}
	if err := csrf.Verify(r); err != nil {
		s.renderErr(w, r, apierror.CSRFFailure())
		return
	}

	head, err := oauth2request.ParseHead(r)
	if err != nil {
		s.renderErr(w, r, apierror.BadRequest(err.Error()))
		return
	}
	// Defense in depth: re-validate the redirect URI whitelist even
	// though the GET handler already did, since this is a fresh request.
	if _, err := s.store.GetClientForRedirect(head.ClientID, head.RedirectURI); err != nil {
		s.renderErr(w, r, apierror.NotFound("unknown client or redirect_uri"))
		return
	}

	full, err := oauth2request.ParseFull(r, *head)
	if err != nil {
		fe := err.(oauth2request.FullError)
		redirectAuthError(w, r, head.RedirectURI, fe.Code, fe.Description, head.State)
		return
	}

	if r.FormValue("action") == "deny" {
		redirectAuthError(w, r, head.RedirectURI, "access_denied", "", head.State)
		return
	}

	code, err := s.store.CreateAuthCode(auth.UserID, head.ClientID, head.RedirectURI, full.Scope, head.State, full.Nonce)
	if err != nil {
		s.renderErr(w, r, apierror.Database(err))
		return
	}

	dest := head.RedirectURI + "?code=" + url.QueryEscape(code.UID) + "&state=" + url.QueryEscape(head.State)
	http.Redirect(w, r, dest, http.StatusSeeOther)
}

func redirectToLogin(w http.ResponseWriter, r *http.Request) {
	dest := "/login?redirect_uri=" + url.QueryEscape(r.URL.String())
	http.Redirect(w, r, dest, http.StatusFound)
}

// redirectAuthError redirects back to the relying party's redirect_uri
// carrying error, error_description, and state, per spec §4.J stage-2
// error policy.
func redirectAuthError(w http.ResponseWriter, r *http.Request, redirectURI, code, description, state string) {
	v := url.Values{"error": {code}}
	if description != "" {
		v.Set("error_description", description)
	}
	if state != "" {
		v.Set("state", state)
	}
	http.Redirect(w, r, redirectURI+"?"+v.Encode(), http.StatusSeeOther)
}
