// Package server wires the storage, signer, CSRF, and session layers
// into the HTTP surface spec §6 defines: discovery, JWKS, dynamic client
// registration, the authorization and token endpoints, UserInfo, and the
// interactive login/consent/registration pages. Route wiring follows the
// teacher's server.go: a gorilla/mux router built once in New, with
// every handler method hung off *Server.
package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/mux"

	"github.com/dexidp/dex-mini/apierror"
	"github.com/dexidp/dex-mini/csrf"
	"github.com/dexidp/dex-mini/session"
	"github.com/dexidp/dex-mini/signer"
	"github.com/dexidp/dex-mini/storage"
)

// Server is the assembled dependency set every handler closes over.
type Server struct {
	store              *storage.Store
	signer             *signer.Signer
	csrf               *csrf.Guard
	clientSecretPepper []byte
	issuerURL          url.URL
	logger             *slog.Logger
	tmpl               *templates
	mux                http.Handler
}

// Config carries everything New needs that isn't already owned by
// one of the lower layers.
type Config struct {
	Store              *storage.Store
	Signer             *signer.Signer
	CSRFKey            []byte
	ClientSecretPepper []byte
	IssuerURL          string
	Logger             *slog.Logger
}

// New assembles a Server and its route table.
func New(c Config) (*Server, error) {
	issuer, err := url.Parse(strings.TrimRight(c.IssuerURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("server: parse issuer url: %w", err)
	}
	tmpl, err := loadTemplates()
	if err != nil {
		return nil, fmt.Errorf("server: load templates: %w", err)
	}

	s := &Server{
		store:              c.Store,
		signer:             c.Signer,
		csrf:               csrf.New(c.CSRFKey),
		clientSecretPepper: c.ClientSecretPepper,
		issuerURL:          *issuer,
		logger:             c.Logger,
		tmpl:               tmpl,
	}
	s.mux = s.routes()
	return s, nil
}

// ServeHTTP makes Server an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// absURL joins p onto the issuer's path, the way the teacher's absURL
// does for every endpoint advertised from discovery.
func (s *Server) absURL(p string) string {
	return s.issuerURL.String() + p
}

func (s *Server) routes() http.Handler {
	r := mux.NewRouter().SkipClean(true)

	sessionMW := session.Middleware(s.store, s.logger)

	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/api/", s.handleAPIIndex).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	r.HandleFunc("/.well-known/openid-configuration", s.handleDiscovery).Methods(http.MethodGet)
	r.HandleFunc("/api/oidc/jwks", s.handleJWKS).Methods(http.MethodGet)
	r.HandleFunc("/api/oidc/register", s.handleRegister).Methods(http.MethodPost)
	r.HandleFunc("/api/oidc/userinfo", s.handleUserInfo).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/api/oauth2/token", s.handleToken).Methods(http.MethodPost)

	interactive := r.NewRoute().Subrouter()
	interactive.Use(sessionMW, s.csrf.Middleware)
	interactive.HandleFunc("/api/oauth2/auth", s.handleAuthorizeGet).Methods(http.MethodGet)
	interactive.HandleFunc("/api/oauth2/auth", s.handleAuthorizePost).Methods(http.MethodPost)
	interactive.HandleFunc("/login", s.handleLoginGet).Methods(http.MethodGet)
	interactive.HandleFunc("/login", s.handleLoginPost).Methods(http.MethodPost)
	interactive.HandleFunc("/logout", s.handleLogout).Methods(http.MethodPost)
	interactive.HandleFunc("/register", s.handleRegisterUserGet).Methods(http.MethodGet)
	interactive.HandleFunc("/register", s.handleRegisterUserPost).Methods(http.MethodPost)

	return r
}

// renderErr is the single seam every handler calls to turn an
// *apierror.Error into a response, logging the cause server-side before
// the opaque body goes out.
func (s *Server) renderErr(w http.ResponseWriter, r *http.Request, err *apierror.Error) {
	s.logger.ErrorContext(r.Context(), "request failed", "kind", err.Kind, "err", err.Error())
	apierror.Render(w, err)
}
