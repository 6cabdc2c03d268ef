// Package signer is the signing-key store (spec component E): it
// bootstraps an RSA-2048 key on first boot, keeps every stored key
// cached in memory for the server's lifetime, signs ID tokens with a
// deterministically chosen active key, and projects the public half of
// every key into a JWK Set for verification across future rotations.
//
// Signing uses gopkg.in/square/go-jose.v2, the same library the teacher
// uses for JWS and JWK handling (server/security.go, server/publickeyshandlers.go).
package signer

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"sort"

	jose "gopkg.in/square/go-jose.v2"

	"github.com/dexidp/dex-mini/entityid"
	"github.com/dexidp/dex-mini/storage"
)

// KeyBits is the RSA modulus size spec.md §3 mandates.
const KeyBits = 2048

// Alg is the only signing algorithm this provider supports.
const Alg = jose.RS256

// Signer caches every stored signing key and picks one of them,
// deterministically, as the active key used to sign new ID tokens.
type Signer struct {
	keys     map[entityid.ID]*rsa.PrivateKey
	activeID entityid.ID
}

// Bootstrap ensures at least one signing key exists in store, generating
// one off the request path if none is found (spec §4.E, §5: "RSA key
// generation at startup is CPU-bound and MUST be offloaded to a blocking
// worker" — here that's simply: do it before ListenAndServe is called).
func Bootstrap(store *storage.Store) error {
	keys, err := store.GetAllSigningKeys()
	if err != nil {
		return fmt.Errorf("signer: list keys: %w", err)
	}
	if len(keys) > 0 {
		return nil
	}

	id, err := entityid.New()
	if err != nil {
		return fmt.Errorf("signer: allocate key id: %w", err)
	}
	priv, err := rsa.GenerateKey(rand.Reader, KeyBits)
	if err != nil {
		return fmt.Errorf("signer: generate key: %w", err)
	}
	pemBytes := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(priv),
	})
	return store.InsertSigningKey(storage.SigningKey{ID: id, PEM: string(pemBytes)})
}

// New loads every stored signing key into memory and picks the active
// one. Bootstrap must have run (or a key must already exist) before
// calling New.
func New(store *storage.Store) (*Signer, error) {
	rows, err := store.GetAllSigningKeys()
	if err != nil {
		return nil, fmt.Errorf("signer: list keys: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("signer: no signing keys found; Bootstrap must run first")
	}

	keys := make(map[entityid.ID]*rsa.PrivateKey, len(rows))
	ids := make([]string, 0, len(rows))
	idByStr := make(map[string]entityid.ID, len(rows))
	for _, row := range rows {
		block, _ := pem.Decode([]byte(row.PEM))
		if block == nil {
			return nil, fmt.Errorf("signer: key %s: malformed PEM", row.ID)
		}
		priv, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("signer: key %s: %w", row.ID, err)
		}
		keys[row.ID] = priv
		s := row.ID.String()
		ids = append(ids, s)
		idByStr[s] = row.ID
	}

	// Deterministic active-key selection (spec §9 open question):
	// lowest EntityId string, stable across restarts.
	sort.Strings(ids)
	active := idByStr[ids[0]]

	return &Signer{keys: keys, activeID: active}, nil
}

// Sign produces a compact JWS over payload using the active key.
func (s *Signer) Sign(payload []byte) (string, error) {
	priv := s.keys[s.activeID]
	key := jose.SigningKey{Algorithm: Alg, Key: priv}
	joseSigner, err := jose.NewSigner(key, (&jose.SignerOptions{}).WithType("JWT").WithHeader("kid", s.activeID.String()))
	if err != nil {
		return "", fmt.Errorf("signer: build signer: %w", err)
	}
	jws, err := joseSigner.Sign(payload)
	if err != nil {
		return "", fmt.Errorf("signer: sign: %w", err)
	}
	return jws.CompactSerialize()
}

// ActiveKeyID returns the EntityId of the key used for signing.
func (s *Signer) ActiveKeyID() entityid.ID {
	return s.activeID
}

// JWKS projects the public half of every stored key, so relying parties
// can verify ID tokens signed by any key this provider has ever used,
// across rotations (spec §4.N).
func (s *Signer) JWKS() jose.JSONWebKeySet {
	ids := make([]string, 0, len(s.keys))
	byStr := make(map[string]entityid.ID, len(s.keys))
	for id := range s.keys {
		str := id.String()
		ids = append(ids, str)
		byStr[str] = id
	}
	sort.Strings(ids)

	set := jose.JSONWebKeySet{Keys: make([]jose.JSONWebKey, 0, len(ids))}
	for _, str := range ids {
		id := byStr[str]
		priv := s.keys[id]
		set.Keys = append(set.Keys, jose.JSONWebKey{
			Key:       &priv.PublicKey,
			KeyID:     str,
			Algorithm: string(Alg),
			Use:       "sig",
		})
	}
	return set
}
