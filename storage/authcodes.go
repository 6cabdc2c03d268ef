package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dexidp/dex-mini/entityid"
	sc "github.com/dexidp/dex-mini/scope"
	"github.com/dexidp/dex-mini/secret"
)

// AuthCodeLifetime is the validity window of a freshly issued
// authorization code (spec §3).
const AuthCodeLifetime = 2 * time.Minute

// AccessTokenLifetime is the validity window of a freshly minted access
// token (spec §3).
const AccessTokenLifetime = 30 * time.Minute

type authCodeBody struct {
	RedirectURI string `json:"redirect_uri"`
	Scope       string `json:"scope"`
	State       string `json:"state"`
	Nonce       string `json:"nonce"`
}

type accessTokenBody struct {
	Scope string `json:"scope"`
}

// CreateAuthCode inserts a fresh single-use authorization code bound to
// userID/clientID, carrying the requested scope, the client's echoed
// state, and an optional nonce (spec §3, §4.K step 5).
func (s *Store) CreateAuthCode(userID, clientID entityid.ID, redirectURI string, scope sc.Set, state, nonce string) (*AuthCode, error) {
	uid, err := secret.New()
	if err != nil {
		return nil, fmt.Errorf("storage: generate auth code uid: %w", err)
	}
	body, err := json.Marshal(authCodeBody{RedirectURI: redirectURI, Scope: scope.String(), State: state, Nonce: nonce})
	if err != nil {
		return nil, fmt.Errorf("storage: encode auth code body: %w", err)
	}
	expires := time.Now().UTC().Add(AuthCodeLifetime)
	_, err = s.db.Exec(
		`INSERT INTO authorization_codes (uid, user_id, client_id, body, expires) VALUES (?, ?, ?, ?, ?)`,
		uid, userID.String(), clientID.String(), body, expires,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: create auth code: %w", err)
	}
	return &AuthCode{
		UID: uid, UserID: userID, ClientID: clientID, RedirectURI: redirectURI,
		Scope: scope, State: state, Nonce: nonce, Expires: expires,
	}, nil
}

// ExchangeAuthCode redeems code in a single transaction with minting the
// returned access token. It binds the redemption to clientID: the stored
// client_id is checked against clientID before anything is mutated, so a
// client presenting a code it was never issued gets ErrNotFound without
// burning the code's single use (RFC 6749 §4.1.3 client binding). The code
// row is then deleted, and if that delete affected zero rows (already
// redeemed, or a concurrent redemption won the race) the whole exchange
// fails with ErrNotFound before any token is issued. This is the single-use
// enforcement spec §9 requires.
func (s *Store) ExchangeAuthCode(uid string, clientID entityid.ID) (*AuthCode, *AccessToken, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, nil, fmt.Errorf("storage: begin exchange: %w", err)
	}
	defer tx.Rollback()

	var (
		userIDStr, clientIDStr string
		bodyRaw                []byte
		expires                time.Time
	)
	err = tx.QueryRow(
		`SELECT user_id, client_id, body, expires FROM authorization_codes WHERE uid = ?`, uid,
	).Scan(&userIDStr, &clientIDStr, &bodyRaw, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("storage: get auth code: %w", err)
	}
	if !expires.After(time.Now().UTC()) {
		return nil, nil, ErrNotFound
	}
	if clientIDStr != clientID.String() {
		return nil, nil, ErrNotFound
	}

	var body authCodeBody
	if err := json.Unmarshal(bodyRaw, &body); err != nil {
		return nil, nil, fmt.Errorf("storage: decode auth code body: %w", err)
	}

	res, err := tx.Exec(`DELETE FROM authorization_codes WHERE uid = ?`, uid)
	if err != nil {
		return nil, nil, fmt.Errorf("storage: delete auth code: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		return nil, nil, ErrNotFound
	}

	userID, err := entityid.Parse(userIDStr)
	if err != nil {
		return nil, nil, fmt.Errorf("storage: corrupt auth code user id %q: %w", userIDStr, err)
	}
	codeScope := sc.Parse(body.Scope)

	atUID, err := secret.New()
	if err != nil {
		return nil, nil, fmt.Errorf("storage: generate access token uid: %w", err)
	}
	atBody, err := json.Marshal(accessTokenBody{Scope: codeScope.String()})
	if err != nil {
		return nil, nil, fmt.Errorf("storage: encode access token body: %w", err)
	}
	atExpires := time.Now().UTC().Add(AccessTokenLifetime)
	_, err = tx.Exec(
		`INSERT INTO access_tokens (uid, user_id, client_id, body, expires) VALUES (?, ?, ?, ?, ?)`,
		atUID, userIDStr, clientIDStr, atBody, atExpires,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("storage: mint access token: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("storage: commit exchange: %w", err)
	}

	code := &AuthCode{
		UID: uid, UserID: userID, ClientID: clientID, RedirectURI: body.RedirectURI,
		Scope: codeScope, State: body.State, Nonce: body.Nonce, Expires: expires,
	}
	token := &AccessToken{UID: atUID, UserID: userID, ClientID: clientID, Scope: codeScope, Expires: atExpires}
	return code, token, nil
}

// GetAccessToken fetches and validates an access token by uid (spec
// §4.M step 1).
func (s *Store) GetAccessToken(uid string) (*AccessToken, error) {
	var (
		userIDStr, clientIDStr string
		bodyRaw                []byte
		expires                time.Time
	)
	err := s.db.QueryRow(
		`SELECT user_id, client_id, body, expires FROM access_tokens WHERE uid = ?`, uid,
	).Scan(&userIDStr, &clientIDStr, &bodyRaw, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: get access token: %w", err)
	}
	if !expires.After(time.Now().UTC()) {
		return nil, ErrNotFound
	}
	var body accessTokenBody
	if err := json.Unmarshal(bodyRaw, &body); err != nil {
		return nil, fmt.Errorf("storage: decode access token body: %w", err)
	}
	userID, err := entityid.Parse(userIDStr)
	if err != nil {
		return nil, fmt.Errorf("storage: corrupt access token user id %q: %w", userIDStr, err)
	}
	clientID, err := entityid.Parse(clientIDStr)
	if err != nil {
		return nil, fmt.Errorf("storage: corrupt access token client id %q: %w", clientIDStr, err)
	}
	return &AccessToken{UID: uid, UserID: userID, ClientID: clientID, Scope: sc.Parse(body.Scope), Expires: expires}, nil
}
