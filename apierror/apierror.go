// Package apierror is the unified error taxonomy with per-kind HTTP
// rendering (spec component P). Database and crypto failures bubble up
// as opaque 500s; auth-protocol failures (bad client, bad grant, bad
// client metadata) render as the RFC 6749/7591 JSON error bodies their
// specifications define; CSRF and redirect-URI failures render as
// problem+json, per spec §7.
//
// problem+json bodies use github.com/moogar0880/problems, an RFC 7807
// library pulled in from the retrieval pack's manifest set (not grounded
// in the five primary teacher repos, which don't render problem+json
// themselves — named, not grounded, per the ambient-stack rule for
// error rendering).
package apierror

import (
	"encoding/json"
	"net/http"

	"github.com/moogar0880/problems"
)

// Kind is the error taxonomy spec §7 defines.
type Kind int

const (
	KindCSRF Kind = iota
	KindDatabase
	KindPasswordHash
	KindURLParse
	KindCrypto
	KindOidcRegistration
	KindOauthToken
	KindNotFound
	KindUnauthorized
	KindBadRequest
)

// Error is the sum error type every handler in this module returns.
type Error struct {
	Kind      Kind
	Detail    string
	OAuthCode string // populated for KindOidcRegistration and KindOauthToken
	cause     error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Detail + ": " + e.cause.Error()
	}
	return e.Detail
}

func (e *Error) Unwrap() error { return e.cause }

// CSRFFailure builds a KindCSRF error.
func CSRFFailure() *Error {
	return &Error{Kind: KindCSRF, Detail: "CSRF token mismatch"}
}

// Database wraps a storage failure. The underlying error is never
// rendered to the client — only logged — per spec §7's propagation
// policy.
func Database(err error) *Error {
	return &Error{Kind: KindDatabase, Detail: "database error", cause: err}
}

// PasswordHash wraps an Argon2 failure.
func PasswordHash(err error) *Error {
	return &Error{Kind: KindPasswordHash, Detail: "password hashing error", cause: err}
}

// URLParse wraps a malformed-URL failure.
func URLParse(err error) *Error {
	return &Error{Kind: KindURLParse, Detail: "URL parse error", cause: err}
}

// Crypto wraps a signing/key failure.
func Crypto(err error) *Error {
	return &Error{Kind: KindCrypto, Detail: "cryptographic error", cause: err}
}

// OidcRegistration builds an RFC 7591 dynamic-client-registration error.
func OidcRegistration(code, detail string) *Error {
	return &Error{Kind: KindOidcRegistration, OAuthCode: code, Detail: detail}
}

// OauthToken builds an RFC 6749 token-endpoint error.
func OauthToken(code, detail string) *Error {
	return &Error{Kind: KindOauthToken, OAuthCode: code, Detail: detail}
}

// NotFound builds a KindNotFound error (unknown client/redirect on
// authorize).
func NotFound(detail string) *Error {
	return &Error{Kind: KindNotFound, Detail: detail}
}

// Unauthorized builds a KindUnauthorized error (UserInfo bearer-token
// rejection).
func Unauthorized(detail string) *Error {
	return &Error{Kind: KindUnauthorized, Detail: detail}
}

// BadRequest builds a generic malformed-request error for the
// interactive login/consent/registration surface, rendered as
// problem+json like the other pre-redirect failures in spec §7.
func BadRequest(detail string) *Error {
	return &Error{Kind: KindBadRequest, Detail: detail}
}

const problemMediaType = "application/problem+json"

// Render writes e to w using the rendering rule for its Kind.
func Render(w http.ResponseWriter, e *Error) {
	switch e.Kind {
	case KindCSRF:
		writeProblem(w, http.StatusBadRequest, "https://dex-mini.example/errors/csrf", "CSRF token mismatch", e.Detail)
	case KindDatabase, KindPasswordHash, KindURLParse, KindCrypto:
		writeProblem(w, http.StatusInternalServerError, "https://dex-mini.example/errors/internal", "Internal Server Error", "an internal error occurred")
	case KindNotFound:
		writeProblem(w, http.StatusNotFound, "https://dex-mini.example/errors/not-found", "Not Found", e.Detail)
	case KindBadRequest:
		writeProblem(w, http.StatusBadRequest, "https://dex-mini.example/errors/bad-request", "Bad Request", e.Detail)
	case KindOidcRegistration, KindOauthToken:
		writeOAuthError(w, http.StatusBadRequest, e.OAuthCode, e.Detail)
	case KindUnauthorized:
		w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
		w.WriteHeader(http.StatusUnauthorized)
	default:
		writeProblem(w, http.StatusInternalServerError, "https://dex-mini.example/errors/internal", "Internal Server Error", "an internal error occurred")
	}
}

func writeProblem(w http.ResponseWriter, status int, typ, title, detail string) {
	p := &problems.DefaultProblem{
		Type:   typ,
		Title:  title,
		Status: status,
		Detail: detail,
	}
	w.Header().Set("Content-Type", problemMediaType)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(p)
}

func writeOAuthError(w http.ResponseWriter, status int, code, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description,omitempty"`
	}{Error: code, ErrorDescription: description})
}
