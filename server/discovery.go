package server

import (
	"encoding/json"
	"net/http"
)

// discoveryDoc is the OIDC discovery document shape (spec §4.N), modeled
// on the teacher's discovery struct in server/handlers.go.
type discoveryDoc struct {
	Issuer        string   `json:"issuer"`
	Auth          string   `json:"authorization_endpoint"`
	Token         string   `json:"token_endpoint"`
	UserInfo      string   `json:"userinfo_endpoint"`
	JWKS          string   `json:"jwks_uri"`
	Registration  string   `json:"registration_endpoint"`
	ResponseTypes []string `json:"response_types_supported"`
	Subjects      []string `json:"subject_types_supported"`
	IDTokenAlgs   []string `json:"id_token_signing_alg_values_supported"`
	Scopes        []string `json:"scopes_supported"`
	Claims        []string `json:"claims_supported"`
}

func (s *Server) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	d := discoveryDoc{
		Issuer:        s.issuerURL.String(),
		Auth:          s.absURL("/api/oauth2/auth"),
		Token:         s.absURL("/api/oauth2/token"),
		UserInfo:      s.absURL("/api/oidc/userinfo"),
		JWKS:          s.absURL("/api/oidc/jwks"),
		Registration:  s.absURL("/api/oidc/register"),
		ResponseTypes: []string{"code"},
		Subjects:      []string{"public"},
		IDTokenAlgs:   []string{"RS256"},
		Scopes:        []string{"openid", "profile", "email"},
		Claims:        []string{"sub", "iss", "aud", "exp", "iat", "preferred_username", "email", "email_verified"},
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(d)
}
