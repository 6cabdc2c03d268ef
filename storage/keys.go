package storage

import (
	"fmt"

	"github.com/dexidp/dex-mini/entityid"
)

// GetAllSigningKeys returns every stored signing key, in no particular
// order; the signer package is responsible for choosing the active one
// deterministically.
func (s *Store) GetAllSigningKeys() ([]SigningKey, error) {
	rows, err := s.db.Query(`SELECT id, pem_body FROM jwt_keys`)
	if err != nil {
		return nil, fmt.Errorf("storage: list signing keys: %w", err)
	}
	defer rows.Close()

	var keys []SigningKey
	for rows.Next() {
		var idStr, pem string
		if err := rows.Scan(&idStr, &pem); err != nil {
			return nil, fmt.Errorf("storage: scan signing key: %w", err)
		}
		id, err := entityid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("storage: corrupt signing key id %q: %w", idStr, err)
		}
		keys = append(keys, SigningKey{ID: id, PEM: pem})
	}
	return keys, rows.Err()
}

// InsertSigningKey persists a freshly generated key. Called once, at
// cold-boot bootstrap, when GetAllSigningKeys returns none.
func (s *Store) InsertSigningKey(key SigningKey) error {
	_, err := s.db.Exec(`INSERT INTO jwt_keys (id, pem_body) VALUES (?, ?)`, key.ID.String(), key.PEM)
	if err != nil {
		return fmt.Errorf("storage: insert signing key: %w", err)
	}
	return nil
}
