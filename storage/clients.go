package storage

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/dexidp/dex-mini/entityid"
)

// RegisterClient runs the dynamic-client-registration transaction (spec
// §4.G): allocate an ID, insert the client row (with the caller-supplied
// secret hash and registration token) plus its redirect URIs and
// contacts, all-or-nothing.
func (s *Store) RegisterClient(meta ClientMetadata, secretHash, registrationToken string) (*ClientRegistration, error) {
	id, err := entityid.New()
	if err != nil {
		return nil, fmt.Errorf("storage: allocate client id: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("storage: begin registration: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO clients (id, client_name, app_type, client_uri, logo_uri, registration_token, secret_hash)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id.String(), meta.ClientName, meta.ApplicationType, nullable(meta.ClientURI), meta.LogoURI, registrationToken, secretHash,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: insert client: %w", err)
	}

	for _, uri := range meta.RedirectURIs {
		if _, err := tx.Exec(
			`INSERT INTO client_redirect_uris (client_id, redirect_uri) VALUES (?, ?)`,
			id.String(), uri,
		); err != nil {
			return nil, fmt.Errorf("storage: insert redirect uri: %w", err)
		}
	}
	for _, email := range meta.Contacts {
		if _, err := tx.Exec(
			`INSERT INTO client_contacts (client_id, email) VALUES (?, ?)`,
			id.String(), email,
		); err != nil {
			return nil, fmt.Errorf("storage: insert contact: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("storage: commit registration: %w", err)
	}

	// The result carries no client secret: storage only ever sees the hash.
	// The caller holds the plaintext for the one response that returns it.
	return &ClientRegistration{ClientID: id, RegistrationToken: registrationToken}, nil
}

func nullable(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// GetClient fetches a client by ID, including its redirect URIs and
// contacts.
func (s *Store) GetClient(id entityid.ID) (*Client, error) {
	row := s.db.QueryRow(
		`SELECT id, client_name, app_type, client_uri, logo_uri, registration_token, secret_hash
		 FROM clients WHERE id = ?`,
		id.String(),
	)
	c, err := scanClient(row)
	if err != nil {
		return nil, err
	}
	if err := s.loadClientExtras(c); err != nil {
		return nil, err
	}
	return c, nil
}

// GetClientForRedirect validates that redirectURI is byte-equal to one
// stored for clientID (the whitelist check in spec §4.K step 3) and
// returns the client if so. A miss returns ErrNotFound, which callers
// render as a 404 rather than a redirect — the redirect URI is, by
// definition, not yet trustworthy.
func (s *Store) GetClientForRedirect(id entityid.ID, redirectURI string) (*Client, error) {
	var exists int
	err := s.db.QueryRow(
		`SELECT 1 FROM clients c
		 JOIN client_redirect_uris r ON r.client_id = c.id
		 WHERE c.id = ? AND r.redirect_uri = ?`,
		id.String(), redirectURI,
	).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: check redirect uri: %w", err)
	}
	return s.GetClient(id)
}

func scanClient(row *sql.Row) (*Client, error) {
	var (
		idStr, name, appType, logoURI, regToken, secretHash string
		clientURI                                           sql.NullString
	)
	if err := row.Scan(&idStr, &name, &appType, &clientURI, &logoURI, &regToken, &secretHash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("storage: scan client: %w", err)
	}
	id, err := entityid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("storage: corrupt client id %q: %w", idStr, err)
	}
	return &Client{
		ID:                id,
		Name:              name,
		ApplicationType:   appType,
		ClientURI:         clientURI.String,
		LogoURI:           logoURI,
		RegistrationToken: regToken,
		SecretHash:        secretHash,
	}, nil
}

func (s *Store) loadClientExtras(c *Client) error {
	rows, err := s.db.Query(`SELECT redirect_uri FROM client_redirect_uris WHERE client_id = ?`, c.ID.String())
	if err != nil {
		return fmt.Errorf("storage: load redirect uris: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var uri string
		if err := rows.Scan(&uri); err != nil {
			return fmt.Errorf("storage: scan redirect uri: %w", err)
		}
		c.RedirectURIs = append(c.RedirectURIs, uri)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = s.db.Query(`SELECT email FROM client_contacts WHERE client_id = ?`, c.ID.String())
	if err != nil {
		return fmt.Errorf("storage: load contacts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return fmt.Errorf("storage: scan contact: %w", err)
		}
		c.Contacts = append(c.Contacts, email)
	}
	return rows.Err()
}
