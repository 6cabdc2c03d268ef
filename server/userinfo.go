package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dexidp/dex-mini/apierror"
	"github.com/dexidp/dex-mini/claims"
)

// handleUserInfo returns the scope-filtered claim bundle for the bearer
// token's subject (spec §4.M).
func (s *Server) handleUserInfo(w http.ResponseWriter, r *http.Request) {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		apierror.Render(w, apierror.Unauthorized("missing bearer token"))
		return
	}
	tokenUID := strings.TrimPrefix(auth, prefix)

	token, err := s.store.GetAccessToken(tokenUID)
	if err != nil {
		apierror.Render(w, apierror.Unauthorized("unknown or expired access token"))
		return
	}

	user, err := s.store.GetUser(token.UserID)
	if err != nil {
		s.renderErr(w, r, apierror.Database(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(claims.Gather(user, token.Scope))
}
