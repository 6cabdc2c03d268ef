// Package oauth2request implements the two-stage decode of an OIDC
// authorization request (spec component J). The split exists because
// error-reporting policy depends on which fields already parsed: once a
// client_id and a whitelisted redirect_uri are attested, later failures
// may be reported by redirecting back to the client; before that point,
// the only safe response is an HTTP error, never a redirect.
package oauth2request

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/dexidp/dex-mini/entityid"
	"github.com/dexidp/dex-mini/scope"
)

// HeadError is returned by ParseHead. It always maps to an HTTP error
// response, never a redirect, because the redirect_uri isn't trusted
// yet.
type HeadError struct {
	Msg string
}

func (e HeadError) Error() string { return e.Msg }

// FullError is returned by ParseFull. It carries an OAuth2 error code
// and description meant to be appended to a redirect back to the
// client's (already validated) redirect_uri.
type FullError struct {
	Code        string
	Description string
}

func (e FullError) Error() string { return fmt.Sprintf("%s: %s", e.Code, e.Description) }

// Head is the result of Stage 1 parsing.
type Head struct {
	ClientID    entityid.ID
	RedirectURI string
	State       string
}

// Full is the result of Stage 2 parsing, carrying every remaining OIDC
// authorization request parameter.
type Full struct {
	Head

	Scope        scope.Set
	ResponseType string
	ResponseMode string
	Nonce        string
	Display      string
	Prompt       string
	MaxAge       *int
	UILocales    []string
	IDTokenHint  string
	LoginHint    string
}

// ParseHead extracts client_id, redirect_uri, and state. Any failure here
// means the caller cannot safely redirect and must render an HTTP error
// instead (spec §4.J).
func ParseHead(r *http.Request) (*Head, error) {
	if err := r.ParseForm(); err != nil {
		return nil, HeadError{Msg: "malformed request: " + err.Error()}
	}

	rawClientID := r.Form.Get("client_id")
	if rawClientID == "" {
		return nil, HeadError{Msg: "missing client_id"}
	}
	clientID, err := entityid.Parse(rawClientID)
	if err != nil {
		return nil, HeadError{Msg: "invalid client_id: " + err.Error()}
	}

	redirectURI := r.Form.Get("redirect_uri")
	if redirectURI == "" {
		return nil, HeadError{Msg: "missing redirect_uri"}
	}
	if _, err := url.Parse(redirectURI); err != nil {
		return nil, HeadError{Msg: "invalid redirect_uri: " + err.Error()}
	}

	return &Head{
		ClientID:    clientID,
		RedirectURI: redirectURI,
		State:       r.Form.Get("state"),
	}, nil
}

// ParseFull parses every remaining authorization request parameter.
// Failures here are reported as a redirect back to head.RedirectURI,
// never an HTTP error (spec §4.J).
func ParseFull(r *http.Request, head Head) (*Full, error) {
	if err := r.ParseForm(); err != nil {
		return nil, FullError{Code: "invalid_request", Description: err.Error()}
	}

	responseType := r.Form.Get("response_type")
	if responseType == "" {
		return nil, FullError{Code: "invalid_request", Description: "missing response_type"}
	}
	if responseType != "code" {
		return nil, FullError{Code: "unsupported_response_type", Description: "only the authorization code flow is supported"}
	}

	full := &Full{
		Head:         head,
		Scope:        scope.Parse(r.Form.Get("scope")),
		ResponseType: responseType,
		ResponseMode: r.Form.Get("response_mode"),
		Nonce:        r.Form.Get("nonce"),
		Display:      r.Form.Get("display"),
		Prompt:       r.Form.Get("prompt"),
		IDTokenHint:  r.Form.Get("id_token_hint"),
		LoginHint:    r.Form.Get("login_hint"),
	}

	if raw := r.Form.Get("max_age"); raw != "" {
		age, err := strconv.Atoi(raw)
		if err != nil {
			return nil, FullError{Code: "invalid_request", Description: "max_age must be an integer"}
		}
		full.MaxAge = &age
	}
	if raw := r.Form.Get("ui_locales"); raw != "" {
		full.UILocales = strings.Fields(raw)
	}

	return full, nil
}
