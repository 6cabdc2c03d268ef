package server

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	"github.com/dexidp/dex-mini/apierror"
	"github.com/dexidp/dex-mini/claims"
	"github.com/dexidp/dex-mini/entityid"
)

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	IDToken     string `json:"id_token"`
}

type idTokenClaims struct {
	Issuer   string   `json:"iss"`
	Subject  string   `json:"sub"`
	Audience []string `json:"aud"`
	Expiry   int64    `json:"exp"`
	IssuedAt int64    `json:"iat"`
	Nonce    string   `json:"nonce,omitempty"`
	CHash    string   `json:"c_hash,omitempty"`
	claims.StandardClaims
}

// handleToken redeems an authorization code for an ID token and an
// access token (spec §4.L).
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		apierror.Render(w, apierror.OauthToken("invalid_request", "malformed form body"))
		return
	}

	basicUser, basicPass, ok := r.BasicAuth()
	if !ok {
		apierror.Render(w, apierror.OauthToken("invalid_client", "missing HTTP Basic credentials"))
		return
	}
	clientID, err := entityid.Parse(basicUser)
	if err != nil {
		apierror.Render(w, apierror.OauthToken("invalid_client", "malformed client_id"))
		return
	}
	client, err := s.store.GetClient(clientID)
	if err != nil {
		apierror.Render(w, apierror.OauthToken("invalid_client", "unknown client"))
		return
	}
	if !s.verifyClientSecret(basicPass, client.SecretHash) {
		apierror.Render(w, apierror.OauthToken("invalid_client", "wrong client secret"))
		return
	}

	code := r.Form.Get("code")
	redirectURI := r.Form.Get("redirect_uri")
	if code == "" {
		apierror.Render(w, apierror.OauthToken("invalid_grant", "missing code"))
		return
	}

	authCode, token, err := s.store.ExchangeAuthCode(code, clientID)
	if err != nil {
		apierror.Render(w, apierror.OauthToken("invalid_grant", "unknown, expired, or already-redeemed code"))
		return
	}
	// RFC 6749 §4.1.3: if the authorization request carried a
	// redirect_uri, the token request's must match it exactly.
	if redirectURI != authCode.RedirectURI {
		apierror.Render(w, apierror.OauthToken("invalid_grant", "redirect_uri does not match the authorization request"))
		return
	}

	user, err := s.store.GetUser(authCode.UserID)
	if err != nil {
		s.renderErr(w, r, apierror.Database(err))
		return
	}

	now := time.Now().UTC()
	idClaims := idTokenClaims{
		Issuer:         s.issuerURL.String(),
		Subject:        user.ID.String(),
		Audience:       []string{clientID.String()},
		Expiry:         now.Add(30 * time.Minute).Unix(),
		IssuedAt:       now.Unix(),
		Nonce:          authCode.Nonce,
		CHash:          codeHash(code),
		StandardClaims: claims.Gather(user, authCode.Scope),
	}
	payload, err := json.Marshal(idClaims)
	if err != nil {
		s.renderErr(w, r, apierror.Crypto(err))
		return
	}
	idToken, err := s.signer.Sign(payload)
	if err != nil {
		s.renderErr(w, r, apierror.Crypto(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(tokenResponse{
		AccessToken: token.UID,
		TokenType:   "Bearer",
		IDToken:     idToken,
	})
}

// codeHash binds the redeemed authorization code into the ID token's
// c_hash claim: the left half of SHA-256(code), base64url-encoded, per
// OIDC Core §3.1.3.6's half-hash construction for the RS256 (SHA-256)
// signing algorithm this provider uses exclusively.
func codeHash(code string) string {
	sum := sha256.Sum256([]byte(code))
	return base64.RawURLEncoding.EncodeToString(sum[:len(sum)/2])
}
