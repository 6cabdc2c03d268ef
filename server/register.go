package server

import (
	"encoding/json"
	"net/http"

	"github.com/dexidp/dex-mini/apierror"
	"github.com/dexidp/dex-mini/secret"
	"github.com/dexidp/dex-mini/storage"
)

// registerRequest is the RFC 7591 dynamic-client-registration request
// body this provider understands.
type registerRequest struct {
	ClientName      string   `json:"client_name"`
	ApplicationType string   `json:"application_type"`
	ClientURI       string   `json:"client_uri"`
	LogoURI         string   `json:"logo_uri"`
	RedirectURIs    []string `json:"redirect_uris"`
	Contacts        []string `json:"contacts"`
}

// registerResponse is the RFC 7591 response: client credentials plus the
// echoed metadata.
type registerResponse struct {
	ClientID              string   `json:"client_id"`
	ClientSecret          string   `json:"client_secret"`
	ClientName            string   `json:"client_name"`
	ApplicationType       string   `json:"application_type"`
	ClientURI             string   `json:"client_uri,omitempty"`
	LogoURI               string   `json:"logo_uri"`
	RedirectURIs          []string `json:"redirect_uris"`
	Contacts              []string `json:"contacts,omitempty"`
	RegistrationToken     string   `json:"registration_access_token"`
	RegistrationClientURI string   `json:"registration_client_uri"`
}

// handleRegister runs the client registration transaction (spec §4.G).
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierror.Render(w, apierror.OidcRegistration("invalid_client_metadata", "malformed JSON body"))
		return
	}

	if req.ClientName == "" {
		apierror.Render(w, apierror.OidcRegistration("invalid_client_metadata", "client_name is required"))
		return
	}
	if len(req.RedirectURIs) == 0 {
		apierror.Render(w, apierror.OidcRegistration("invalid_client_metadata", "at least one redirect_uri is required"))
		return
	}
	if req.ApplicationType == "" {
		req.ApplicationType = "web"
	}
	if req.LogoURI == "" {
		req.LogoURI = s.absURL("/static/default_icon.png")
	}

	plainSecret, err := secret.New()
	if err != nil {
		s.renderErr(w, r, apierror.Crypto(err))
		return
	}
	regToken, err := secret.New()
	if err != nil {
		s.renderErr(w, r, apierror.Crypto(err))
		return
	}

	meta := storage.ClientMetadata{
		ClientName:      req.ClientName,
		ApplicationType: req.ApplicationType,
		ClientURI:       req.ClientURI,
		LogoURI:         req.LogoURI,
		RedirectURIs:    req.RedirectURIs,
		Contacts:        req.Contacts,
	}
	reg, err := s.store.RegisterClient(meta, s.hashClientSecret(plainSecret), regToken)
	if err != nil {
		s.renderErr(w, r, apierror.Database(err))
		return
	}

	resp := registerResponse{
		ClientID:              reg.ClientID.String(),
		ClientSecret:          plainSecret,
		ClientName:            req.ClientName,
		ApplicationType:       req.ApplicationType,
		ClientURI:             req.ClientURI,
		LogoURI:               req.LogoURI,
		RedirectURIs:          req.RedirectURIs,
		Contacts:              req.Contacts,
		RegistrationToken:     reg.RegistrationToken,
		RegistrationClientURI: s.absURL("/api/oidc/register/" + reg.ClientID.String()),
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(resp)
}
