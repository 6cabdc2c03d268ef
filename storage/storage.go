// Package storage is the credential lifecycle manager and client
// registry (spec components F and G): table-backed CRUD for users,
// clients, sessions, authorization codes, and access tokens, plus the
// periodic expiry sweep shared by the three credential tables.
//
// There is exactly one backend, SQLite, so unlike the teacher's
// multi-backend storage interface this package exposes a single concrete
// *Store rather than an interface — there is nothing else to swap in.
package storage

import (
	"errors"
	"time"

	"github.com/dexidp/dex-mini/entityid"
	"github.com/dexidp/dex-mini/scope"
)

// ErrNotFound is returned when a lookup by ID finds no row, including rows
// that exist but have already expired.
var ErrNotFound = errors.New("storage: not found")

// User is an authenticated end user. Created at registration; the core
// never deletes or otherwise mutates a user row.
type User struct {
	ID           entityid.ID
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// ClientMetadata is the registration request body for a new client.
type ClientMetadata struct {
	ClientName      string
	ApplicationType string
	ClientURI       string
	LogoURI         string
	RedirectURIs    []string
	Contacts        []string
}

// Client is a registered relying party.
type Client struct {
	ID                entityid.ID
	Name              string
	ApplicationType   string
	ClientURI         string
	LogoURI           string
	RegistrationToken string
	SecretHash        string
	RedirectURIs      []string
	Contacts          []string
}

// ClientRegistration is the result of a successful RegisterClient call.
// The plaintext secret never round-trips through storage: the caller
// that generated it holds the only copy, for the one response that
// returns it.
type ClientRegistration struct {
	ClientID          entityid.ID
	RegistrationToken string
}

// Session is a server-side row representing an authenticated browser.
type Session struct {
	UID     string
	UserID  entityid.ID
	LastIP  string
	Expires time.Time
}

// AuthCode is a short-lived, single-use authorization code.
type AuthCode struct {
	UID         string
	UserID      entityid.ID
	ClientID    entityid.ID
	RedirectURI string
	Scope       scope.Set
	State       string
	Nonce       string
	Expires     time.Time
}

// AccessToken is an opaque bearer credential authorizing UserInfo calls.
type AccessToken struct {
	UID      string
	UserID   entityid.ID
	ClientID entityid.ID
	Scope    scope.Set
	Expires  time.Time
}

// SigningKey is an RSA private key at rest, PEM-encoded.
type SigningKey struct {
	ID  entityid.ID
	PEM string
}
