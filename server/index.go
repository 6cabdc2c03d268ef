package server

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// handleIndex renders the fixed informational root page (spec §6, out
// of scope beyond the literal data it must carry).
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintf(w, `<!DOCTYPE html>
<title>dex-mini</title>
<h1>dex-mini</h1>
<h3>A minimal OpenID Connect Identity Provider</h3>
<p><a href=%q>Discovery document</a></p>`, s.absURL("/.well-known/openid-configuration"))
}

// handleAPIIndex renders the fixed JSON informational document at
// GET /api/ (spec §6).
func (s *Server) handleAPIIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(struct {
		Name    string `json:"name"`
		Version string `json:"version"`
		Note    string `json:"note"`
	}{Name: "dex-mini", Version: apiVersion, Note: "a minimal OpenID Connect Identity Provider"})
}

// handleHealthz is the liveness probe the ambient-stack expansion adds
// alongside the spec's informational routes.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(struct {
		Status string `json:"status"`
	}{Status: "ok"})
}

const apiVersion = "0.1.0"
